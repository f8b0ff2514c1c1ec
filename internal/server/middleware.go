package server

import (
	"crypto/subtle"
	"net/http"
)

// requireAdminAPI protects admin endpoints with the configured admin API key.
// Requests must carry "Authorization: Bearer <key>"; with no key configured every request is refused.
func (s *Server) requireAdminAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		adminAPIKey := s.config.AdminAPIKey
		if adminAPIKey == "" {
			s.log.Warn("Admin API accessed but ADMIN_API_KEY not set")
			http.Error(w, "Admin API is disabled. Set ADMIN_API_KEY environment variable to enable.", http.StatusForbidden)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Missing Authorization header", http.StatusUnauthorized)
			return
		}

		expected := "Bearer " + adminAPIKey
		if subtle.ConstantTimeCompare([]byte(authHeader), []byte(expected)) != 1 {
			s.log.Warn("Invalid admin API key attempt", "remote_addr", r.RemoteAddr)
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
