package conversation

import (
	"slices"
	"strings"
	"testing"

	"github.com/ashureev/slotwatch/internal/domain"
	"github.com/ashureev/slotwatch/internal/registry"
)

func configured() *domain.ChatSession {
	return &domain.ChatSession{
		ChatID:            "7",
		Credentials:       domain.Credentials{Username: "alice", Password: "secret"},
		WatchList:         []string{"ECA20"},
		MonitoringEnabled: true,
	}
}

func TestOnboardingScenario(t *testing.T) {
	reg := registry.New()
	svc := NewService(reg, nil)

	steps := []struct {
		text       string
		wantPrompt string
	}{
		{"/start", msgAskUsername},
		{"alice", msgAskPassword},
		{"secret", msgAskCourse},
		{"ECA20", "📌 Monitoring course: ECA20"},
	}

	for _, step := range steps {
		out := svc.Handle(domain.Update{ChatID: "7", Text: step.text})
		if len(out.Notices) != 1 {
			t.Fatalf("%q: expected one notice, got %d", step.text, len(out.Notices))
		}
		if !strings.Contains(out.Notices[0].Text, step.wantPrompt) {
			t.Fatalf("%q: notice %q does not contain %q", step.text, out.Notices[0].Text, step.wantPrompt)
		}
		if out.Notices[0].ChatID != "7" {
			t.Fatalf("%q: notice addressed to %q", step.text, out.Notices[0].ChatID)
		}
	}

	got, ok := reg.Get("7")
	if !ok {
		t.Fatal("session missing after onboarding")
	}
	if got.Credentials.Username != "alice" || got.Credentials.Password != "secret" {
		t.Fatalf("unexpected credentials: %+v", got.Credentials)
	}
	if !slices.Equal(got.WatchList, []string{"ECA20"}) {
		t.Fatalf("unexpected watch list: %q", got.WatchList)
	}
	if !got.MonitoringEnabled || got.Step != domain.StepNone {
		t.Fatalf("expected monitoring with step none, got %+v", got)
	}
}

func TestLogoutAlwaysTearsDown(t *testing.T) {
	inputs := []string{"/start", "/stop", "/empty", "alice", "secret", "ECA20, EEE20", "junk"}

	// Every prefix of every rotation of the inputs, followed by /logout.
	for offset := range inputs {
		seq := append(slices.Clone(inputs[offset:]), inputs[:offset]...)
		for n := 0; n <= len(seq); n++ {
			reg := registry.New()
			svc := NewService(reg, nil)
			for _, text := range seq[:n] {
				svc.Handle(domain.Update{ChatID: "1", Text: text})
			}

			out := svc.Handle(domain.Update{ChatID: "1", Text: "/logout"})
			if !out.Deleted {
				t.Fatalf("sequence %q: /logout did not delete", seq[:n])
			}
			if _, ok := reg.Get("1"); ok {
				t.Fatalf("sequence %q: session survived /logout", seq[:n])
			}

			fresh := reg.GetOrCreate("1")
			if fresh.HasCredentials() || len(fresh.WatchList) != 0 || fresh.Step != domain.StepNone {
				t.Fatalf("sequence %q: state leaked after logout: %+v", seq[:n], fresh)
			}
		}
	}
}

func TestStartResumesAtFirstMissingField(t *testing.T) {
	tests := []struct {
		name     string
		session  *domain.ChatSession
		wantStep domain.Step
		rearm    bool
	}{
		{"fresh", &domain.ChatSession{ChatID: "1"}, domain.StepAwaitingUsername, false},
		{"no password", &domain.ChatSession{ChatID: "1", Credentials: domain.Credentials{Username: "a"}}, domain.StepAwaitingPassword, false},
		{"no course", &domain.ChatSession{ChatID: "1", Credentials: domain.Credentials{Username: "a", Password: "b"}}, domain.StepAwaitingCourse, false},
		{"complete", configured(), domain.StepNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.session.MonitoringEnabled = false
			res := Apply(tt.session, "/START")
			if res.Session.Step != tt.wantStep {
				t.Fatalf("step = %s, want %s", res.Session.Step, tt.wantStep)
			}
			if !res.Session.MonitoringEnabled {
				t.Fatal("/start must enable monitoring")
			}
			if res.Rearm != tt.rearm {
				t.Fatalf("rearm = %v, want %v", res.Rearm, tt.rearm)
			}
			if len(res.Notices) != 1 {
				t.Fatalf("expected one notice, got %q", res.Notices)
			}
		})
	}
}

func TestStartReaffirmsWatchList(t *testing.T) {
	s := configured()
	s.WatchList = []string{"ECA20", "EEE20"}
	res := Apply(s, "/start")
	if !strings.Contains(res.Notices[0], "ECA20, EEE20") {
		t.Fatalf("expected watch list in notice, got %q", res.Notices[0])
	}
	if res.Rearm {
		t.Fatal("/start on a running watch must not trigger an early check")
	}
}

func TestStopKeepsConfiguration(t *testing.T) {
	res := Apply(configured(), "/stop")
	s := res.Session
	if s.MonitoringEnabled {
		t.Fatal("/stop must disable monitoring")
	}
	if !s.HasCredentials() || len(s.WatchList) != 1 {
		t.Fatalf("/stop must keep credentials and watch list, got %+v", s)
	}
	if s.Eligible() {
		t.Fatal("stopped session must not be eligible")
	}
}

func TestEmptyIsCosmetic(t *testing.T) {
	before := configured()
	res := Apply(before, "/empty")
	if len(res.Notices) != 1 || res.Notices[0] != msgCleared {
		t.Fatalf("unexpected notices %q", res.Notices)
	}
	if res.Session.MonitoringEnabled != before.MonitoringEnabled || !slices.Equal(res.Session.WatchList, before.WatchList) {
		t.Fatal("/empty must not change state")
	}
}

func TestFreeTextIgnoredWhenConfigured(t *testing.T) {
	res := Apply(configured(), "CSA20")
	if len(res.Notices) != 0 {
		t.Fatalf("expected silence, got %q", res.Notices)
	}
	if !slices.Equal(res.Session.WatchList, []string{"ECA20"}) {
		t.Fatalf("watch list overwritten: %q", res.Session.WatchList)
	}
}

func TestFreeTextHintForUnknownChat(t *testing.T) {
	res := Apply(domain.NewChatSession("1"), "hello")
	if len(res.Notices) != 1 || res.Notices[0] != msgHint {
		t.Fatalf("expected hint, got %q", res.Notices)
	}
}

func TestGarbageAcceptedVerbatim(t *testing.T) {
	s := &domain.ChatSession{ChatID: "1", Step: domain.StepAwaitingUsername, MonitoringEnabled: true}
	res := Apply(s, "  /not-a-command x ")
	if res.Session.Credentials.Username != "/not-a-command x" {
		t.Fatalf("username = %q", res.Session.Credentials.Username)
	}
	if res.Session.Step != domain.StepAwaitingPassword {
		t.Fatalf("step = %s", res.Session.Step)
	}
}

func TestCourseInputWithoutCodesReprompts(t *testing.T) {
	s := &domain.ChatSession{
		ChatID:            "1",
		Credentials:       domain.Credentials{Username: "a", Password: "b"},
		Step:              domain.StepAwaitingCourse,
		MonitoringEnabled: true,
	}
	res := Apply(s, " , \n ")
	if res.Session.Step != domain.StepAwaitingCourse {
		t.Fatalf("step = %s, want awaiting_course", res.Session.Step)
	}
	if res.Rearm {
		t.Fatal("empty course input must not rearm")
	}
}

func TestCourseInputReplacesWatchList(t *testing.T) {
	s := configured()
	s.Step = domain.StepAwaitingCourse
	res := Apply(s, "ecA20, eee20\nCSA20")
	if !slices.Equal(res.Session.WatchList, []string{"ECA20", "EEE20", "CSA20"}) {
		t.Fatalf("watch list = %q", res.Session.WatchList)
	}
	if !res.Rearm || res.Session.Step != domain.StepNone || !res.Session.MonitoringEnabled {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	s := configured()
	s.Step = domain.StepAwaitingCourse
	_ = Apply(s, "EEE20")
	if !slices.Equal(s.WatchList, []string{"ECA20"}) || s.Step != domain.StepAwaitingCourse {
		t.Fatalf("input session mutated: %+v", s)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		raw  string
		want Input
	}{
		{"/start", InputStart},
		{"  /Stop  ", InputStop},
		{"/LOGOUT", InputLogout},
		{"/empty@slot_watch_bot", InputEmpty},
		{"/help", InputText},
		{"start", InputText},
		{"", InputText},
	}
	for _, tt := range tests {
		if got, _ := Classify(tt.raw); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestEveryStepHasTextTransition(t *testing.T) {
	for _, step := range []domain.Step{
		domain.StepNone,
		domain.StepAwaitingUsername,
		domain.StepAwaitingPassword,
		domain.StepAwaitingCourse,
	} {
		if _, ok := textTransitions[step]; !ok {
			t.Errorf("no text transition for step %s", step)
		}
	}
}
