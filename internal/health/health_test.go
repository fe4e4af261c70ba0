package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRunAllHealthy(t *testing.T) {
	res := Run(context.Background(), time.Second,
		Target{Name: "a", Check: func(context.Context) (string, error) { return "fine", nil }},
		Target{Name: "b", Check: func(context.Context) (string, error) { return "", nil }},
	)
	if !res.Healthy {
		t.Fatalf("expected healthy: %+v", res)
	}
	if res.Checks[0].Name != "a" || res.Checks[0].Detail != "fine" {
		t.Errorf("checks out of order or missing detail: %+v", res.Checks)
	}
}

func TestRunIndependentTimeouts(t *testing.T) {
	slow := Target{Name: "slow", Check: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	fast := Target{Name: "fast", Check: func(context.Context) (string, error) { return "", nil }}

	res := Run(context.Background(), 50*time.Millisecond, slow, fast)
	if res.Healthy {
		t.Fatal("expected unhealthy")
	}
	if res.Checks[0].OK || res.Checks[0].Error == "" {
		t.Errorf("slow check = %+v", res.Checks[0])
	}
	if !res.Checks[1].OK {
		t.Errorf("fast check = %+v", res.Checks[1])
	}
}

func TestRunFailure(t *testing.T) {
	res := Run(context.Background(), 0, Target{Name: "db", Check: func(context.Context) (string, error) {
		return "", errors.New("connection refused")
	}})
	if res.Healthy || res.Checks[0].Error != "connection refused" {
		t.Fatalf("result = %+v", res)
	}
}

func TestHTTPCheck(t *testing.T) {
	tests := []struct {
		name   string
		status int
		ok     bool
	}{
		{"ok", http.StatusOK, true},
		{"not found still reachable", http.StatusNotFound, true},
		{"server error", http.StatusBadGateway, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			_, err := HTTP(srv.Client(), srv.URL)(context.Background())
			if (err == nil) != tt.ok {
				t.Errorf("err = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}
