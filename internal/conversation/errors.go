package conversation

import "fmt"

type ErrorCode string

const (
	// ErrorCallerMisuse means the router called the engine in a way the
	// contract forbids, e.g. advancing a conversation that does not exist.
	ErrorCallerMisuse ErrorCode = "CALLER_MISUSE"
	// ErrorCollaborator wraps failures of the session store, an existence
	// check or a record sink.
	ErrorCollaborator ErrorCode = "COLLABORATOR_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("conversation: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("conversation: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// Rejection is returned by a Validator when the input is not acceptable for
// the current step. It is a user-facing outcome, not a failure.
type Rejection struct {
	Message string
}

func (r *Rejection) Error() string {
	return "conversation: input rejected: " + r.Message
}

// Reject builds a Rejection with the given user-facing message.
func Reject(message string) error {
	return &Rejection{Message: message}
}
