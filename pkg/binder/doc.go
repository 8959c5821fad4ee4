// Package binder decodes HTTP requests into typed request structs for
// handler.Wrap.
//
// JSON decodes the body of application/json requests. Path copies router
// parameters into string fields tagged `path:"name"`. A binder that does not
// apply to a request returns ErrBinderNotApplicable and is skipped.
package binder
