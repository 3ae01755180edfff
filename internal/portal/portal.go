// Package portal checks the enrollment portal for course availability.
package portal

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/slotwatch/internal/domain"
)

// Kind classifies a failed portal check.
type Kind int

const (
	// KindNetwork is a transport failure or timeout. Retrying later may help.
	KindNetwork Kind = iota
	// KindAuthRejected means the portal did not accept the credentials.
	KindAuthRejected
	// KindPageUnreachable means a portal page loaded without its expected markers.
	KindPageUnreachable
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthRejected:
		return "auth_rejected"
	case KindPageUnreachable:
		return "page_unreachable"
	default:
		return "unknown"
	}
}

// Stages of a check, used as Error.Op.
const (
	OpLoadLogin      = "load login page"
	OpSubmitLogin    = "submit login"
	OpLoadEnrollment = "load enrollment page"
)

// Error is returned by Client implementations for every failed check.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("portal: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("portal: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err if it is, or wraps, a *Error.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return KindNetwork, false
}

// DuringLogin reports whether err failed while loading or submitting the
// login form.
func DuringLogin(err error) bool {
	var pe *Error
	if !errors.As(err, &pe) {
		return false
	}
	return pe.Op == OpLoadLogin || pe.Op == OpSubmitLogin
}

// Report maps each found course code to the slot it was found in. Courses
// absent from Found were not present in any slot.
type Report struct {
	Found map[string]domain.Slot
}

// Slot returns the slot course was found in.
func (r Report) Slot(course string) (domain.Slot, bool) {
	s, ok := r.Found[course]
	return s, ok
}

// Client performs one batched availability check: it authenticates once and
// sweeps every slot for all courses.
type Client interface {
	CheckCourses(ctx context.Context, creds domain.Credentials, courses []string) (Report, error)
}
