package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/marc100s/store-core/internal/domain"
)

type contextKey string

const (
	userIDKey        contextKey = "user_id"
	sessionCartIDKey contextKey = "session_cart_id"
	requestIDKey     contextKey = "request_id"
)

// SessionCartCookie is the anonymous cart token. It only needs to be present
// and stable across requests from the same browser.
const SessionCartCookie = "session_cart_id"

// SessionCartMiddleware issues the anonymous cart token on first contact and
// puts it on the request context.
func SessionCartMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionCartID string
		if c, err := r.Cookie(SessionCartCookie); err == nil && c.Value != "" {
			sessionCartID = c.Value
		} else {
			sessionCartID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCartCookie,
				Value:    sessionCartID,
				Path:     "/",
				MaxAge:   int((30 * 24 * time.Hour).Seconds()),
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := context.WithValue(r.Context(), sessionCartIDKey, sessionCartID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MockAuthMiddleware simulates session authentication (replace with real JWT
// or session validation). The user id comes straight from a header.
func MockAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := r.Header.Get("X-User-ID"); userID != "" {
			ctx := context.WithValue(r.Context(), userIDKey, userID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("req-%d", time.Now().UnixNano())
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFromContext(ctx context.Context) domain.Identity {
	var id domain.Identity
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		id.UserID = userID
	}
	if sessionCartID, ok := ctx.Value(sessionCartIDKey).(string); ok {
		id.SessionCartID = sessionCartID
	}
	return id
}
