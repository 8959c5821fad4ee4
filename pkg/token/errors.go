package token

import "errors"

var ErrRandomSource = errors.New("token: random source failure")
