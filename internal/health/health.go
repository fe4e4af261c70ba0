// Package health checks that the services propfolio depends on are reachable.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds each check independently.
const DefaultTimeout = 10 * time.Second

// Target is one dependency to check. Check returns an optional detail line.
type Target struct {
	Name  string
	Check func(ctx context.Context) (string, error)
}

// CheckResult is the outcome for one target.
type CheckResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Result is the outcome of a health check run.
type Result struct {
	Timestamp string        `json:"timestamp"`
	Healthy   bool          `json:"healthy"`
	Checks    []CheckResult `json:"checks"`
}

// Run checks every target in parallel. Each check gets its own timeout so
// one slow dependency cannot starve the others; ctx cancellation still
// applies to all of them.
func Run(ctx context.Context, timeout time.Duration, targets ...Target) *Result {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	result := &Result{
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make([]CheckResult, len(targets)),
	}

	var wg sync.WaitGroup
	for i, t := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			cr := CheckResult{Name: t.Name}
			detail, err := t.Check(checkCtx)
			if err != nil {
				cr.Error = err.Error()
			} else {
				cr.OK = true
				cr.Detail = detail
			}
			cr.LatencyMs = time.Since(start).Milliseconds()
			result.Checks[i] = cr
		}()
	}
	wg.Wait()

	result.Healthy = true
	for _, cr := range result.Checks {
		if !cr.OK {
			result.Healthy = false
		}
	}
	return result
}

// HTTP returns a check that issues a GET to url. Any response below 500
// counts as reachable.
func HTTP(client *http.Client, url string) func(ctx context.Context) (string, error) {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%s returned status %d", url, resp.StatusCode)
		}
		return resp.Status, nil
	}
}
