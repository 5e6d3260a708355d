package registrations

import "errors"

// Kind is the stable machine-readable category of a workflow error.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindEventNotFound     Kind = "event_not_found"
	KindNotFound          Kind = "registration_not_found"
	KindDuplicateActive   Kind = "duplicate_active_registration"
	KindTokenNotFound     Kind = "token_not_found"
	KindTokenExpired      Kind = "token_expired"
	KindInvalidTransition Kind = "invalid_transition"
	KindPermissionDenied  Kind = "permission_denied"
)

// Error is a recoverable workflow error. Two errors match under errors.Is when their kinds match.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches on Kind so callers can compare against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation                  = &Error{Kind: KindValidation, Message: "invalid registration data"}
	ErrEventNotFound               = &Error{Kind: KindEventNotFound, Message: "event not found"}
	ErrRegistrationNotFound        = &Error{Kind: KindNotFound, Message: "registration not found"}
	ErrDuplicateActiveRegistration = &Error{Kind: KindDuplicateActive, Message: "an active registration already exists for this email and event"}
	ErrTokenNotFound               = &Error{Kind: KindTokenNotFound, Message: "invalid confirmation link"}
	ErrTokenExpired                = &Error{Kind: KindTokenExpired, Message: "confirmation link has expired"}
	ErrInvalidTransition           = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrPermissionDenied            = &Error{Kind: KindPermissionDenied, Message: "insufficient permissions"}
)

func validationError(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

func transitionError(msg string) error {
	return &Error{Kind: KindInvalidTransition, Message: msg}
}

// KindOf returns the kind of a workflow error, or "" for any other error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
