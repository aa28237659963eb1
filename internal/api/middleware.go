package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/Greg89/normaize-server-sub004/internal/chaos"
)

// CorrelationHeader carries the caller's correlation id. When absent a fresh
// UUID is generated so every chaos decision stays traceable in the logs.
const CorrelationHeader = "X-Correlation-Id"

// ChaosMiddleware runs the named scenario against every request passing
// through it. This is how request-handling services wire the engine into
// their hot path: the decision is cheap, and on trigger the injected action
// (a delay, a failure) runs before the real handler.
//
// When the injected action fails and propagation is enabled, the request is
// answered with 503 instead of reaching the handler.
func ChaosMiddleware(engine *chaos.Engine, scenario string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(CorrelationHeader)
			if correlationID == "" {
				correlationID = uuid.NewString()
			}
			w.Header().Set(CorrelationHeader, correlationID)

			chaosCtx := map[string]interface{}{
				"method": r.Method,
				"path":   r.URL.Path,
			}
			if uid := r.Header.Get("X-User-Id"); uid != "" {
				chaosCtx[chaos.ContextUserIDKey] = uid
			}

			_, err := engine.Execute(r.Context(), scenario, correlationID, r.Method+" "+r.URL.Path, nil, chaosCtx)
			if err != nil {
				http.Error(w, "synthetic fault injected", http.StatusServiceUnavailable)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
