package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS allows the configured client origins. Entries without a scheme are expanded to
// both http and https.
func CORS(origins []string) func(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   expandOrigins(origins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func expandOrigins(origins []string) []string {
	out := make([]string, 0, len(origins)*2)
	for _, o := range origins {
		if o == "*" || strings.Contains(o, "://") {
			out = append(out, o)
			continue
		}
		out = append(out, "http://"+o, "https://"+o)
	}
	return out
}
