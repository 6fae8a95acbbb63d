package api

import (
	"net/http"
	"strings"
)

// CORSHandler wraps a handler with permissive cross origin headers, so
// the web frontend can be served from another host.
type CORSHandler struct {
	Handler             http.Handler
	SupportsCredentials bool
	AllowHeaders        func(headers []string) bool
}

func (c CORSHandler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	origin := req.Header.Get("Origin")
	if origin != "" {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		if c.SupportsCredentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
	}

	if req.Method == "OPTIONS" {
		requested := req.Header.Get("Access-Control-Request-Headers")
		if requested != "" {
			headers := strings.Split(strings.ToLower(strings.Replace(requested, " ", "", -1)), ",")
			if c.AllowHeaders == nil || c.AllowHeaders(headers) {
				w.Header().Set("Access-Control-Allow-Headers", requested)
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.WriteHeader(http.StatusOK)
		return
	}

	c.Handler.ServeHTTP(w, req)
}
