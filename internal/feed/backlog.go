package feed

// backlog is a fixed-size ring of the most recent events. When full, the
// oldest event is overwritten. Callers hold the Hub lock.
type backlog struct {
	buf  []Event
	head int // next write position
	full bool
}

func newBacklog(size int) *backlog {
	if size <= 0 {
		size = 1
	}
	return &backlog{buf: make([]Event, size)}
}

func (b *backlog) push(e Event) {
	b.buf[b.head] = e
	b.head = (b.head + 1) % len(b.buf)
	if b.head == 0 {
		b.full = true
	}
}

// snapshot returns the stored events, oldest first.
func (b *backlog) snapshot() []Event {
	if !b.full {
		out := make([]Event, b.head)
		copy(out, b.buf[:b.head])
		return out
	}
	out := make([]Event, 0, len(b.buf))
	out = append(out, b.buf[b.head:]...)
	return append(out, b.buf[:b.head]...)
}
