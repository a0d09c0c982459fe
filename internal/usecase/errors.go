package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	ErrorUpstream ErrorCode = "UPSTREAM_ERROR"
	ErrorInternal ErrorCode = "INTERNAL_ERROR"
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
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
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

// userMessages are the texts shown in "Error: ..." replies, by reason.
var userMessages = map[string]string{
	"notion_query_error":      "Failed to retrieve expenses from Notion",
	"notion_categories_error": "Failed to fetch categories from Notion",
	"notion_write_error":      "Failed to save to Notion",
	"notion_list_error":       "Failed to retrieve records from Notion",
	"budget_read_error":       "Failed to read your budget",
	"budget_write_error":      "Failed to save your budget",
	"session_error":           "Failed to read your conversation",
	"receipt_scan_error":      "Failed to process receipt",
}

// UserMessage turns err into a short text safe to send to the user.
func UserMessage(err error) string {
	var ue *Error
	if errors.As(err, &ue) {
		if msg, ok := userMessages[ue.Reason]; ok {
			return msg
		}
	}
	return "Something went wrong, please try again"
}
