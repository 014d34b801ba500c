package ir

import (
	"errors"
	"fmt"
)

var (
	ErrParse = errors.New("parse error")

	// ErrDocumentType is wrapped by every TypeError.
	ErrDocumentType = errors.New("document type error")
)

// TypeError reports a document value of the wrong shape.
type TypeError struct {
	Path string
	Want string
	Got  Type
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("%s: expected %s, got %s", e.Path, e.Want, e.Got)
}

func (e *TypeError) Unwrap() error {
	return ErrDocumentType
}

func typeError(y *Node, want string) error {
	return &TypeError{Path: y.Path(), Want: want, Got: y.Type}
}
