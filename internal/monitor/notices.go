package monitor

import (
	"fmt"

	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/portal"
)

const (
	msgLoginFailed      = "❌ Login failed."
	msgEnrollmentFailed = "❌ Enrollment page failed."
	msgLoginPageFailed  = "❌ Login page failed."
)

func msgFound(course string, slot domain.Slot) string {
	return fmt.Sprintf("🔄 Checking course: %s\n🎯 Found in Slot %s!", course, slot.Label)
}

func msgNotFound(course string) string {
	return fmt.Sprintf("🔄 Checking course: %s\n❌ Not found in any slot.", course)
}

func msgComplete(found []string) string {
	return fmt.Sprintf("✅ Monitoring complete for %s. Send a new course or /stop.", domain.JoinCourseCodes(found))
}

func msgError(err error) string {
	return fmt.Sprintf("⚠️ Error occurred: %v", err)
}

func msgSchedulerError(cycleID string, v any) string {
	return fmt.Sprintf("⚠️ Scheduler error in cycle %s: %v", cycleID, v)
}

// failureNotice maps a failed check to the notice for the chat and the
// outcome recorded in history.
func failureNotice(err error) (string, domain.Outcome) {
	kind, ok := portal.KindOf(err)
	if !ok {
		return msgError(err), domain.OutcomeError
	}
	switch kind {
	case portal.KindAuthRejected:
		return msgLoginFailed, domain.OutcomeAuthRejected
	case portal.KindPageUnreachable:
		if portal.DuringLogin(err) {
			return msgLoginPageFailed, domain.OutcomePageUnreachable
		}
		return msgEnrollmentFailed, domain.OutcomePageUnreachable
	default:
		return msgError(err), domain.OutcomeError
	}
}
