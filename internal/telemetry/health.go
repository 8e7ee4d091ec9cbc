package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheck — проверка одной зависимости процесса.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthHandler отдаёт состояние зависимостей.
//
// 200 — все проверки прошли, 503 — хотя бы одна упала. Тело:
//
//	{"status":"ok","checks":{"postgres":"ok","rabbitmq":"rabbitmq: not connected"}}
func HealthHandler(timeout time.Duration, checks ...HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		results := make(map[string]string, len(checks))
		for _, c := range checks {
			if err := c.Check(ctx); err != nil {
				results[c.Name] = err.Error()
				status = "unavailable"
				code = http.StatusServiceUnavailable
				FromContext(ctx).Warn("health check failed", "check", c.Name, "error", err)
				continue
			}
			results[c.Name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "checks": results})
	})
}
