package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrClientNotFound      = errors.New("client not found")
)

// ValidationError reports malformed input. Message, when set, replaces the
// field listing.
type ValidationError struct {
	Missing []string
	Invalid []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("validation failed: missing=%v invalid=%v", e.Missing, e.Invalid)
}

// UserMessage renders the bot-facing text.
func (e *ValidationError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	fields := append(append([]string{}, e.Missing...), e.Invalid...)
	return "⚠️ Error: Faltan o son inválidos los siguientes datos obligatorios:\n\n❌ " +
		strings.Join(fields, "\n❌ ") +
		"\n\nEl bot debe recopilar TODOS los datos antes de enviar la solicitud."
}

// PolicyKind names the rule a request broke.
type PolicyKind string

const (
	PolicyPastDate     PolicyKind = "past-date"
	PolicyLeadTime     PolicyKind = "lead-time"
	PolicySunday       PolicyKind = "sunday"
	PolicyOutsideHours PolicyKind = "outside-hours"
	PolicyCancelled    PolicyKind = "cancelled"
)

// PolicyViolation is a well-formed request the clinic rules reject.
// Suggested carries the next working day for lead-time rejections.
type PolicyViolation struct {
	Kind      PolicyKind
	Message   string
	Suggested time.Time
}

func (e *PolicyViolation) Error() string { return fmt.Sprintf("policy violation: %s", e.Kind) }

// ConflictError means the slot is taken or being taken right now.
type ConflictError struct {
	Time string
}

func (e *ConflictError) Error() string { return "slot " + e.Time + " is no longer available" }

// NotFoundError is an informational outcome: unknown or already cancelled
// reservation code.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string { return "reservation " + e.Code + " not found" }

// CollaboratorError wraps a calendar, store or transport failure. Message,
// when set, overrides the operation's generic apology.
type CollaboratorError struct {
	Op      string
	Err     error
	Message string
}

func (e *CollaboratorError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *CollaboratorError) Unwrap() error { return e.Err }

func collaborator(op string, err error) error {
	return &CollaboratorError{Op: op, Err: err}
}
