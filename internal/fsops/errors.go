package fsops

import "fmt"

// ErrorCode classifies mutator failures so the dispatcher can react without
// parsing message strings.
type ErrorCode string

const (
	CodeNotFound      ErrorCode = "not_found"
	CodeAlreadyExists ErrorCode = "already_exists"
	CodeInvalidInput  ErrorCode = "invalid_input"
	CodeIOFailure     ErrorCode = "io_failure"
)

// Error is the typed failure returned by all mutators.
type Error struct {
	Code  ErrorCode
	Path  string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Msg, e.Path, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Msg, e.Path)
}

func (e *Error) Unwrap() error { return e.Cause }

func notFound(path, msg string) *Error {
	return &Error{Code: CodeNotFound, Path: path, Msg: msg}
}

func alreadyExists(path string) *Error {
	return &Error{Code: CodeAlreadyExists, Path: path, Msg: "already exists"}
}

func invalidInput(path, msg string) *Error {
	return &Error{Code: CodeInvalidInput, Path: path, Msg: msg}
}

func ioFailure(path, msg string, cause error) *Error {
	return &Error{Code: CodeIOFailure, Path: path, Msg: msg, Cause: cause}
}
