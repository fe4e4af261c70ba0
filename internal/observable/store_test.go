package observable

import "testing"

type counter struct {
	N int
}

func TestUpdateNotifiesSubscribersInOrder(t *testing.T) {
	s := New(counter{})

	var calls []string
	s.Subscribe(func(c counter) { calls = append(calls, "a") })
	s.Subscribe(func(c counter) { calls = append(calls, "b") })

	got := s.Update(func(c counter) counter { c.N++; return c })
	if got.N != 1 {
		t.Errorf("Update returned N=%d, want 1", got.N)
	}
	if s.Snapshot().N != 1 {
		t.Errorf("Snapshot N=%d, want 1", s.Snapshot().N)
	}
	if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := New(0)
	var seen []int
	unsub := s.Subscribe(func(v int) { seen = append(seen, v) })

	s.Set(1)
	unsub()
	unsub()
	s.Set(2)

	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("seen = %v, want [1]", seen)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestListenerMayReadSnapshot(t *testing.T) {
	s := New(0)
	var inside int
	s.Subscribe(func(v int) { inside = s.Snapshot() })
	s.Set(7)
	if inside != 7 {
		t.Errorf("snapshot inside listener = %d, want 7", inside)
	}
}
