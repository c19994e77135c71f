package mediaapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Jari57/studio-agents-sub002/runtime/logger"
	prommetrics "github.com/Jari57/studio-agents-sub002/runtime/metrics/prometheus"
)

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-Id"

// withRequestID tags the request context with the caller's request id, or a
// new one, and echoes it in the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// instrument records request count and latency under the route pattern.
func instrument(pattern string, next http.Handler) http.Handler {
	method, route := splitPattern(pattern)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		prommetrics.RecordHTTPRequest(route, method, strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

func splitPattern(pattern string) (method, route string) {
	if m, r, ok := strings.Cut(pattern, " "); ok {
		return m, r
	}
	return "", pattern
}
