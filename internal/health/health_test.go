package health

import (
	"sync"
	"testing"
)

func TestEmptyMonitorIsUnknown(t *testing.T) {
	if got := NewMonitor().Overall(); got != Unknown {
		t.Fatalf("Overall() = %q, want %q", got, Unknown)
	}
}

func TestOverallIsWorst(t *testing.T) {
	m := NewMonitor()
	m.Update(Telegram, Healthy, "")
	m.Update(Portal, Degraded, "login rejected for 1 chat")
	if got := m.Overall(); got != Degraded {
		t.Fatalf("Overall() = %q, want %q", got, Degraded)
	}

	m.Update(History, Unhealthy, "ping failed")
	if got := m.Overall(); got != Unhealthy {
		t.Fatalf("Overall() = %q, want %q", got, Unhealthy)
	}

	m.Update(History, Healthy, "")
	m.Update(Portal, Healthy, "")
	if got := m.Overall(); got != Healthy {
		t.Fatalf("Overall() = %q, want %q", got, Healthy)
	}
}

func TestOnChangeFiresOnlyOnTransitions(t *testing.T) {
	m := NewMonitor()
	var seen []Status
	m.OnChange(func(s Status) { seen = append(seen, s) })

	m.Update(Telegram, Healthy, "")
	m.Update(Portal, Healthy, "")
	m.Update(Portal, Degraded, "")
	m.Update(Portal, Degraded, "still")
	m.Update(Portal, Healthy, "")

	want := []Status{Healthy, Degraded, Healthy}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestAllSortedByName(t *testing.T) {
	m := NewMonitor()
	m.Update(Telegram, Healthy, "")
	m.Update(History, Healthy, "")
	m.Update(Portal, Healthy, "")

	all := m.All()
	if len(all) != 3 || all[0].Name != History || all[1].Name != Portal || all[2].Name != Telegram {
		t.Fatalf("unexpected order: %+v", all)
	}
	if _, ok := m.Get(Scheduler); ok {
		t.Fatal("unexpected scheduler check")
	}
}

func TestConcurrentUpdates(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := Healthy
			if i%2 == 0 {
				status = Degraded
			}
			m.Update(Portal, status, "")
			_ = m.Overall()
			_ = m.All()
		}(i)
	}
	wg.Wait()
}
