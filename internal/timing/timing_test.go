package timing

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRealClockSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RealClock{}.Sleep(ctx, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Sleep() err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled sleep should return immediately")
	}
}

func TestRealClockSleepElapses(t *testing.T) {
	start := time.Now()
	if err := (RealClock{}).Sleep(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("Sleep() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("slept %v, want >= 20ms", elapsed)
	}
}

func TestEnsureMinimum(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		min       time.Duration
		wantSleep []time.Duration
	}{
		{"fast call sleeps remainder", 500 * time.Millisecond, 3 * time.Second, []time.Duration{2500 * time.Millisecond}},
		{"slow call sleeps nothing", 4 * time.Second, 3 * time.Second, nil},
		{"exact floor sleeps nothing", 3 * time.Second, 3 * time.Second, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewManualClock(time.Unix(0, 0))
			start := clock.Now()
			clock.Advance(tt.elapsed)

			if err := EnsureMinimum(context.Background(), clock, start, tt.min); err != nil {
				t.Fatalf("EnsureMinimum() error: %v", err)
			}

			got := clock.Sleeps()
			if len(got) != len(tt.wantSleep) {
				t.Fatalf("sleeps = %v, want %v", got, tt.wantSleep)
			}
			for i := range got {
				if got[i] != tt.wantSleep[i] {
					t.Errorf("sleep[%d] = %v, want %v", i, got[i], tt.wantSleep[i])
				}
			}
			if total := clock.Now().Sub(start); total < tt.min {
				t.Errorf("virtual elapsed %v below floor %v", total, tt.min)
			}
		})
	}
}

func TestGuard(t *testing.T) {
	var g Guard
	if !g.TryEnter() {
		t.Fatal("first TryEnter should succeed")
	}
	if g.TryEnter() {
		t.Fatal("second TryEnter should fail while held")
	}
	if !g.Busy() {
		t.Error("guard should report busy")
	}
	g.Leave()
	if !g.TryEnter() {
		t.Fatal("TryEnter after Leave should succeed")
	}
}

func TestLifetimeEndCancelsBoundContexts(t *testing.T) {
	life := NewLifetime()
	ctx, stop := life.Bind(context.Background())
	defer stop()

	if !life.Alive() {
		t.Fatal("new lifetime should be alive")
	}
	life.End()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled after End")
	}
	if life.Alive() {
		t.Error("lifetime should not be alive after End")
	}
	life.End()
}

func TestLifetimeStopDoesNotEndLifetime(t *testing.T) {
	life := NewLifetime()
	ctx, stop := life.Bind(context.Background())
	stop()

	if ctx.Err() == nil {
		t.Error("stop should cancel the bound context")
	}
	if !life.Alive() {
		t.Error("stopping one binding must not end the lifetime")
	}
}
