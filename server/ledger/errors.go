package ledger

import "errors"

// Code is the machine-readable failure class of a ledger operation.
type Code string

const (
	CodePlayerNotFound          Code = "PLAYER_NOT_FOUND"
	CodePlayerExists            Code = "PLAYER_EXISTS"
	CodeInvalidResultFormat     Code = "INVALID_RESULT_FORMAT"
	CodeInvalidScore            Code = "INVALID_SCORE"
	CodeInvalidName             Code = "INVALID_NAME"
	CodeInvalidMatch            Code = "INVALID_MATCH"
	CodeInsufficientHistory     Code = "INSUFFICIENT_HISTORY"
	CodeEmptyLog                Code = "EMPTY_LOG"
	CodeInvalidPosition         Code = "INVALID_POSITION"
	CodeTimestampMismatch       Code = "TIMESTAMP_MISMATCH"
	CodeInvalidComment          Code = "INVALID_COMMENT"
	CodePendingNotFound         Code = "PENDING_NOT_FOUND"
	CodePartialApprovalFailure  Code = "PARTIAL_APPROVAL_FAILURE"
	CodeInconsistentLedgerState Code = "INCONSISTENT_LEDGER_STATE"
	CodeCorruptStorage          Code = "CORRUPT_STORAGE"
	CodeUnknown                 Code = "UNKNOWN"
)

// Error is the domain error returned by stores and the engine.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so callers can write
// errors.Is(err, ledger.ErrEmptyLog).
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is comparisons.
var (
	ErrPlayerNotFound          = New(CodePlayerNotFound, "player not found")
	ErrPlayerExists            = New(CodePlayerExists, "player already exists")
	ErrInvalidResultFormat     = New(CodeInvalidResultFormat, "invalid result format")
	ErrInvalidScore            = New(CodeInvalidScore, "invalid score")
	ErrInvalidName             = New(CodeInvalidName, "invalid name")
	ErrInvalidMatch            = New(CodeInvalidMatch, "invalid match")
	ErrInsufficientHistory     = New(CodeInsufficientHistory, "insufficient history")
	ErrEmptyLog                = New(CodeEmptyLog, "log is empty")
	ErrInvalidPosition         = New(CodeInvalidPosition, "invalid position")
	ErrTimestampMismatch       = New(CodeTimestampMismatch, "timestamp mismatch")
	ErrInvalidComment          = New(CodeInvalidComment, "invalid comment")
	ErrPendingNotFound         = New(CodePendingNotFound, "pending result not found")
	ErrPartialApprovalFailure  = New(CodePartialApprovalFailure, "partial approval failure")
	ErrInconsistentLedgerState = New(CodeInconsistentLedgerState, "inconsistent ledger state")
	ErrCorruptStorage          = New(CodeCorruptStorage, "corrupt storage")
)

// CodeOf extracts the domain code from anywhere in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}
