// Package validator builds request validation from small declarative rules.
//
// Each rule pairs a check with the ValidationError reported when it fails.
// Apply runs every rule and returns ValidationErrors, which the HTTP layer
// turns into a 400 response with per-field details.
//
//	err := validator.Apply(
//		validator.Required("username", in.Username),
//		validator.MinLen("password", in.Password, 6),
//	)
package validator
