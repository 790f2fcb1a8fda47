package http

import (
	"net/http"

	"go.uber.org/zap"
)

// AuthMiddleware guards the dashboard API with static API keys. With no
// keys configured the API is open, which is the local-development default.
type AuthMiddleware struct {
	keys map[string]bool
}

func NewAuthMiddleware(apiKeys []string) *AuthMiddleware {
	keys := make(map[string]bool, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = true
		}
	}
	return &AuthMiddleware{keys: keys}
}

func (m *AuthMiddleware) Wrap(next http.Handler) http.Handler {
	if len(m.keys) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"missing X-API-Key header"}`))
			return
		}
		if !m.keys[apiKey] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":"invalid API key"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogging(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Debugw("request", "method", r.Method, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
}
