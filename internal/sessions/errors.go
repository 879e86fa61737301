package sessions

import "errors"

var (
	// ErrSessionNotFound is returned when no session matches the id and
	// caller. A session owned by someone else is reported the same way so
	// existence never leaks to non-owners.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSlotConflict is returned when conflict checking is enabled and a
	// non-cancelled session for the same doctor overlaps the requested
	// interval.
	ErrSlotConflict = errors.New("doctor already has a session in this time slot")

	// ErrInvalidAction is returned for transition actions outside
	// complete/cancel.
	ErrInvalidAction = errors.New("invalid action")

	// ErrUnknownRole is returned when a caller tries to book without a
	// patient or doctor role. Without a role there is no implicit party,
	// and the body's ids must not be trusted for both sides.
	ErrUnknownRole = errors.New("booking requires a patient or doctor role")
)

// FieldError describes a single failed validation constraint.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// ValidationErrors is the structured list returned before any persistence
// attempt.
type ValidationErrors []FieldError

// Add appends a field error and returns the extended list.
func (v ValidationErrors) Add(path, message string) ValidationErrors {
	return append(v, FieldError{Path: path, Message: message})
}

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}
	msg := v[0].Message
	if v[0].Path != "" {
		msg = v[0].Path + ": " + msg
	}
	if len(v) > 1 {
		return msg + " (and more)"
	}
	return msg
}

// AsValidationErrors unwraps err into ValidationErrors if possible.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var verrs ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
