package binder

import "errors"

var (
	ErrBinderNotApplicable  = errors.New("binder: not applicable")
	ErrUnsupportedMediaType = errors.New("binder: unsupported media type")
	ErrFailedToParseJSON    = errors.New("binder: failed to parse JSON request body")
	ErrFailedToParsePath    = errors.New("binder: failed to parse path parameters")
)
