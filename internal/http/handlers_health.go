package httpx

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthResponse = `{"status":"ok"}`

// healthHandler is the liveness probe; it never touches dependencies.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		return
	}
}

// ReadinessCheck probes one dependency.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

const defaultReadinessTimeout = 2 * time.Second

// readinessHandler runs every check concurrently and reports 503 if any fails.
func readinessHandler(checks []ReadinessCheck, timeout time.Duration) http.HandlerFunc {
	if timeout <= 0 {
		timeout = defaultReadinessTimeout
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu      sync.Mutex
			results = make(map[string]string, len(checks))
			failed  bool
			g       errgroup.Group
		)
		for _, c := range checks {
			g.Go(func() error {
				status := "ok"
				if err := c.Check(ctx); err != nil {
					status = err.Error()
				}
				mu.Lock()
				defer mu.Unlock()
				results[c.Name] = status
				if status != "ok" {
					failed = true
				}
				return nil
			})
		}
		_ = g.Wait()

		code, overall := http.StatusOK, "ok"
		if failed {
			code, overall = http.StatusServiceUnavailable, "unavailable"
		}
		WriteJSON(w, code, map[string]any{"status": overall, "checks": results})
	}
}
