package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
)

func writeError(w http.ResponseWriter, code int, msg string) {
	response, _ := json.Marshal(map[string]interface{}{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// ClientIP returns the first X-Forwarded-For address, falling back to the
// remote address without its port.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
