package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/zintix-labs/blocklab/errs"
	"github.com/zintix-labs/blocklab/server/httperr"
)

// Recover 攔下 handler panic，記錄 stack 後回 500。
//
// http.ErrAbortHandler 照舊往上拋，由 net/http 中斷連線。
// log 為 nil 時仍會攔截，只是不記錄。
func Recover(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				if log != nil {
					log.LogAttrs(r.Context(), slog.LevelError, "http.panic",
						slog.String("req_id", GetReqId(r)),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
				}
				httperr.Errs(w, errs.NewFatal(fmt.Sprintf("internal error: %v", rec)))
			}()
			next.ServeHTTP(w, r)
		})
	}
}
