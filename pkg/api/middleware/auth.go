package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dd0wney/cluso-bowtie/pkg/auth"
)

// TokenValidator validates bearer tokens
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*auth.Claims, error)
}

// AuthFailureRecorder counts rejected tokens
type AuthFailureRecorder interface {
	RecordAuthFailure()
}

// RoleFunc names the role a request needs
type RoleFunc func(*http.Request) string

// RoleByMethod requires viewer for safe methods and editor otherwise
func RoleByMethod(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return auth.RoleViewer
	}
	return auth.RoleEditor
}

// bearerToken returns the token from "Authorization: Bearer <token>". A
// ?access_token= query parameter is accepted for EventSource clients,
// which cannot set headers.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return r.URL.Query().Get("access_token")
	}
	return ""
}

// Auth requires a valid bearer token whose role satisfies required. Claims
// are stored in the request context for handlers (see auth.ClaimsFrom).
// A nil validator disables authentication.
func Auth(validator TokenValidator, required RoleFunc, recorder AuthFailureRecorder) func(http.Handler) http.Handler {
	if required == nil {
		required = RoleByMethod
	}
	return func(next http.Handler) http.Handler {
		if validator == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reject := func(status int, message string) {
				if recorder != nil {
					recorder.RecordAuthFailure()
				}
				if status == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="bowtie"`)
				}
				writeError(w, status, message)
			}

			token := bearerToken(r)
			if token == "" {
				reject(http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrAPIKeyExpired) {
					msg = "token expired"
				}
				reject(http.StatusUnauthorized, msg)
				return
			}

			if role := required(r); !claims.Allows(role) {
				reject(http.StatusForbidden, "role "+claims.Role+" cannot perform this request, requires "+role)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// writeError mirrors the API's JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   http.StatusText(status),
		"message": message,
		"code":    status,
	})
}
