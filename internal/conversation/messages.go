package conversation

import "github.com/ashureev/slotwatch/internal/domain"

const (
	msgAskUsername = "👤 Please enter your ARMS username:"
	msgAskPassword = "🔐 Please enter your ARMS password:"
	msgAskCourse   = "📘 Please enter the course code to monitor (e.g. ECA20). Separate several codes with commas or new lines."
	msgNoCourse    = "⚠️ No course code found in that message."
	msgStarted     = "🤖 Monitoring started."
	msgStopped     = "🛑 Monitoring stopped. Send /start to resume."
	msgLoggedOut   = "🔓 Logged out. Send /start to begin again."
	msgCleared     = "🧹 Chat cleared."
	msgHint        = "👋 Send /start to begin monitoring."
)

func msgMonitoring(codes []string) string {
	return "📌 Monitoring course: " + domain.JoinCourseCodes(codes)
}
