package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub()
	a := h.Subscribe("a")
	b := h.Subscribe("b")

	h.Publish(Event{Type: EventCycleStarted, CycleID: "c1"})

	for name, ch := range map[string]<-chan Event{"a": a, "b": b} {
		select {
		case e := <-ch:
			if e.CycleID != "c1" || e.Time.IsZero() {
				t.Fatalf("%s: unexpected event %+v", name, e)
			}
		default:
			t.Fatalf("%s: no event delivered", name)
		}
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe("a")
	h.Unsubscribe("a")
	h.Unsubscribe("a")

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if h.Len() != 0 {
		t.Fatalf("expected no subscribers, got %d", h.Len())
	}
}

func TestHubResubscribeReplaces(t *testing.T) {
	h := NewHub()
	old := h.Subscribe("a")
	_ = h.Subscribe("a")

	if _, ok := <-old; ok {
		t.Fatal("replaced subscriber channel must be closed")
	}
	if h.Len() != 1 {
		t.Fatalf("expected one subscriber, got %d", h.Len())
	}
}

func TestHubPublishNeverBlocks(t *testing.T) {
	h := NewHub()
	_ = h.Subscribe("slow")

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			h.Publish(Event{Type: EventCheckResult})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestWebSocketHandlerStreamsEvents(t *testing.T) {
	h := NewHub()
	srv := httptest.NewServer(NewWebSocketHandler(h, "*"))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	// Wait for the handler to subscribe before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for h.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("handler never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	h.Publish(Event{Type: EventCheckResult, ChatID: "7", Course: "ECA20", Slot: "Q"})

	var got Event
	if err := wsjson.Read(ctx, conn, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != EventCheckResult || got.Course != "ECA20" || got.Slot != "Q" {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestWebSocketHandlerRejectsOrigin(t *testing.T) {
	h := NewWebSocketHandler(NewHub(), "https://ops.example.com")
	req := httptest.NewRequest(http.MethodGet, "/ws/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestHubReplaysBacklogToNewSubscribers(t *testing.T) {
	h := NewHub()
	for i := 0; i < backlogSize+5; i++ {
		h.Publish(Event{Type: EventCheckResult, Detail: string(rune('a' + i%26))})
	}

	ch := h.Subscribe("late")
	if got := len(ch); got != backlogSize {
		t.Fatalf("replayed %d events, want %d", got, backlogSize)
	}
	first := <-ch
	if want := string(rune('a' + 5%26)); first.Detail != want {
		t.Fatalf("oldest replayed event = %q, want %q", first.Detail, want)
	}
}

func TestBacklogOrder(t *testing.T) {
	b := newBacklog(3)
	if len(b.snapshot()) != 0 {
		t.Fatal("new backlog must be empty")
	}
	for _, id := range []string{"1", "2"} {
		b.push(Event{CycleID: id})
	}
	if got := b.snapshot(); len(got) != 2 || got[0].CycleID != "1" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	for _, id := range []string{"3", "4"} {
		b.push(Event{CycleID: id})
	}
	got := b.snapshot()
	if len(got) != 3 || got[0].CycleID != "2" || got[2].CycleID != "4" {
		t.Fatalf("unexpected wrapped snapshot %+v", got)
	}
}
