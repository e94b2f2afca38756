package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

// DefaultProbeTimeout bounds a single readiness probe.
const DefaultProbeTimeout = 2 * time.Second

// Probe reports whether a dependency can serve traffic.
type Probe func(context.Context) error

// Check is a named readiness probe. A failing optional check marks the
// service DEGRADED but keeps it in rotation.
type Check struct {
	Name     string
	Probe    Probe
	Optional bool
	Timeout  time.Duration
}

// Required builds a check that takes the service out of rotation on failure.
func Required(name string, p Probe) Check { return Check{Name: name, Probe: p} }

// Optional builds a check that only degrades readiness on failure.
func Optional(name string, p Probe) Check { return Check{Name: name, Probe: p, Optional: true} }

// HealthCheckHandler serves liveness when no checks are given ("ALIVE") and
// readiness otherwise. Any failing required check answers 503 "NOT_READY";
// failing optional checks answer 200 "DEGRADED"; otherwise "READY".
func HealthCheckHandler(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if len(checks) == 0 {
			writeStatus(w, http.StatusOK, "ALIVE")
			return
		}

		degraded := false
		for _, c := range checks {
			err := c.run(r.Context())
			if err == nil {
				continue
			}
			if c.Optional {
				log.WarnContext(r.Context(), "optional readiness check failed",
					slog.String("check", c.Name), logger.Error(err))
				degraded = true
				continue
			}
			log.ErrorContext(r.Context(), "readiness check failed",
				slog.String("check", c.Name), logger.Error(err))
			writeStatus(w, http.StatusServiceUnavailable, "NOT_READY")
			return
		}

		if degraded {
			writeStatus(w, http.StatusOK, "DEGRADED")
			return
		}
		writeStatus(w, http.StatusOK, "READY")
	}
}

func (c Check) run(ctx context.Context) error {
	if c.Probe == nil {
		return nil
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := c.Probe(ctx)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.Join(ErrProbeTimeout, err)
	}
	return err
}

func writeStatus(w http.ResponseWriter, code int, body string) {
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}
