// Package account exposes the credential lifecycle over HTTP.
//
// Routes (all JSON, wrapped in the handler envelope):
//
//	POST /auth/login
//	GET  /auth/me                         session
//	GET  /auth/login-history              session
//	POST /auth/forgot-password
//	GET  /auth/verify-reset-token/{token}
//	POST /auth/reset-password/{token}
//	POST /auth/send-otp-reset
//	POST /auth/verify-otp-reset
//	POST /auth/send-email-verification    session
//	GET  /auth/verify-email/{token}
//	POST /auth/link-email                 session
//	PUT  /auth/change-password            session, verified email
//	POST /auth/accounts                   session, admin
//
// Service errors are translated to status codes and stable keys in
// errors.go.
package account
