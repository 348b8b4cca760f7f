package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a domain failure so the transport layer can pick a
// status code without inspecting message text.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindLimitExceeded
	KindDuplicateName
	KindCrossBoardMove
	KindCollaborator
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindLimitExceeded:
		return "limit_exceeded"
	case KindDuplicateName:
		return "duplicate_name"
	case KindCrossBoardMove:
		return "cross_board_move"
	case KindCollaborator:
		return "collaborator_failure"
	default:
		return "unknown"
	}
}

// Error is the taxonomy type surfaced to the request boundary. Message
// is user-displayable.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func LimitExceededf(format string, args ...any) *Error {
	return &Error{Kind: KindLimitExceeded, Message: fmt.Sprintf(format, args...)}
}

func DuplicateNamef(format string, args ...any) *Error {
	return &Error{Kind: KindDuplicateName, Message: fmt.Sprintf(format, args...)}
}

func CrossBoardMovef(format string, args ...any) *Error {
	return &Error{Kind: KindCrossBoardMove, Message: fmt.Sprintf(format, args...)}
}

// CollaboratorErr wraps a failure from an external collaborator such as
// the export webhook.
func CollaboratorErr(message string, err error) *Error {
	return &Error{Kind: KindCollaborator, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind from err, or KindUnknown when err
// is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}
