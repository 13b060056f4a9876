package middleware

import (
	"net/http"

	chimid "github.com/go-chi/chi/v5/middleware"
)

// HeaderRequestID 回應中帶回的 request id header
const HeaderRequestID = "X-Request-Id"

// RequestID 產生（或沿用上游的）request id，寫入 context 並帶回回應 header，方便對照 access log。
func RequestID(next http.Handler) http.Handler {
	return chimid.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimid.GetReqID(r.Context()); id != "" {
			w.Header().Set(HeaderRequestID, id)
		}
		next.ServeHTTP(w, r)
	}))
}

func GetReqId(r *http.Request) string {
	return chimid.GetReqID(r.Context())
}
