package portal

import (
	"context"
	"slices"
	"sync"

	"github.com/ashureev/slotwatch/internal/domain"
)

// FakeCall records one CheckCourses invocation.
type FakeCall struct {
	Credentials domain.Credentials
	Courses     []string
}

// Fake is an in-memory Client. It reports every course present in Found and
// fails every check with Err when set. It backs PORTAL_MOCK mode and tests.
type Fake struct {
	mu    sync.Mutex
	found map[string]domain.Slot
	err   error
	calls []FakeCall
}

// NewFake returns a Fake that reports the given course placements.
func NewFake(found map[string]domain.Slot) *Fake {
	f := &Fake{found: make(map[string]domain.Slot)}
	for code, slot := range found {
		f.found[code] = slot
	}
	return f
}

// Place makes course appear in slot on subsequent checks.
func (f *Fake) Place(course string, slot domain.Slot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.found[course] = slot
}

// Fail makes subsequent checks return err. A nil err restores success.
func (f *Fake) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Calls returns a copy of the recorded invocations.
func (f *Fake) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CheckCourses implements Client.
func (f *Fake) CheckCourses(ctx context.Context, creds domain.Credentials, courses []string) (Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, FakeCall{Credentials: creds, Courses: slices.Clone(courses)})
	if err := ctx.Err(); err != nil {
		return Report{}, newError(KindNetwork, "check", err)
	}
	if f.err != nil {
		return Report{}, f.err
	}

	report := Report{Found: make(map[string]domain.Slot)}
	for _, code := range courses {
		if slot, ok := f.found[code]; ok {
			report.Found[code] = slot
		}
	}
	return report, nil
}
