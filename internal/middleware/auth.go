package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// ControlTokenHeader carries the token guarding control endpoints.
const ControlTokenHeader = "X-Control-Token"

// AuthMiddleware requires the control token on every path under /api/stop
// and /logs/*/clear. Viewing stays open. An empty token disables the check.
func AuthMiddleware(token string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token == "" || !isControlPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		provided := r.Header.Get(ControlTokenHeader)
		if provided == "" {
			provided = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isControlPath(path string) bool {
	return path == "/api/stop" ||
		(strings.HasPrefix(path, "/logs/") && strings.HasSuffix(path, "/clear"))
}
