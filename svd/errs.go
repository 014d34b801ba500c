package svd

import "errors"

var (
	ErrParse      = errors.New("svd parse error")
	ErrValidation = errors.New("svd validation error")
)
