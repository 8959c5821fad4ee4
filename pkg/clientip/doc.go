// Package clientip resolves the address of the client behind an HTTP
// request.
//
// Proxy headers are consulted in order (CF-Connecting-IP, X-Forwarded-For,
// X-Real-IP) and the first value that parses as an IP wins; RemoteAddr is
// the fallback. Only deploy behind a proxy that overwrites these headers,
// otherwise clients can choose their own address.
package clientip
