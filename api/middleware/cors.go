package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS admits browser clients from the configured origins. A "*" entry
// opens the API to any origin.
func CORS(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders: []string{requestIDHeader, replayedHeader},
		MaxAge:         600,
	}
	for _, o := range origins {
		if o == "*" {
			opts.AllowOriginFunc = func(*http.Request, string) bool { return true }
			return cors.New(opts).Handler
		}
	}
	opts.AllowedOrigins = origins
	return cors.New(opts).Handler
}
