package reconcile

import (
	"errors"
	"fmt"
)

// Kind classifies a reconciliation failure
type Kind string

const (
	KindInvalidTemplate Kind = "invalid template"
	KindReadFailure     Kind = "read failure"
	KindParseFailure    Kind = "parse failure"
	KindPatchFailure    Kind = "patch failure"
	KindWriteFailure    Kind = "write failure"
)

// Sentinel errors for errors.Is
var (
	ErrInvalidTemplate = errors.New(string(KindInvalidTemplate))
	ErrReadFailure     = errors.New(string(KindReadFailure))
	ErrParseFailure    = errors.New(string(KindParseFailure))
	ErrPatchFailure    = errors.New(string(KindPatchFailure))
	ErrWriteFailure    = errors.New(string(KindWriteFailure))
)

var sentinels = map[Kind]error{
	KindInvalidTemplate: ErrInvalidTemplate,
	KindReadFailure:     ErrReadFailure,
	KindParseFailure:    ErrParseFailure,
	KindPatchFailure:    ErrPatchFailure,
	KindWriteFailure:    ErrWriteFailure,
}

// Error is a failed reconciliation step on one file
type Error struct {
	Kind Kind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's kind
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, path string, err error) *Error {
	return &Error{Kind: kind, Path: path, Err: err}
}
