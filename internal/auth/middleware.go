package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/job-tracker/internal/apperror"
	"github.com/sakif/job-tracker/internal/model"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. If you use a plain string like
// context.WithValue(ctx, "user", u), ANY package that knows the string "user"
// can read or shadow your value. Using a package-private type prevents collisions:
// only THIS package can create a key of type contextKey.
type contextKey string

const userKey contextKey = "user"

// UserLookup loads the account a token's subject refers to.
// The sqlite user repository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// errMissingBearer is returned when the Authorization header is absent or
// doesn't use the Bearer scheme.
var errMissingBearer = errors.New("auth: missing bearer token")

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token, and then loads
// the user named by its "sub" claim. A valid signature is not enough: a token
// for a user that no longer exists is rejected too. Token failures answer 401;
// a store failure while loading the user answers 500. Either way the chain stops.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware is a function that takes an http.Handler and returns a new
// http.Handler. The new handler "wraps" the original:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... do stuff before the handler ...
//	        next.ServeHTTP(w, r)
//	    })
//	}
func RequireAuth(tokens *TokenService, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				unauthorized(w, "missing or malformed Authorization header")
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}

			user, err := users.GetByID(r.Context(), userID)
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				unauthorized(w, "token does not refer to an existing user")
				return
			case err != nil:
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user stored by RequireAuth.
// Returns (nil, false) on routes that are not behind RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// UserIDFromContext is a shortcut for the common case of needing only the ID.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous request
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	u, ok := UserFromContext(ctx)
	if !ok || u.ID == "" {
		return "", false
	}
	return u.ID, true
}

// WithUser returns a copy of ctx carrying user. Tests use it to call
// handlers directly without going through RequireAuth.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is case-insensitive (RFC 7235); the token itself is not.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errMissingBearer
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

// unauthorized answers 401 with a Bearer challenge.
func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="job-tracker"`)
	writeJSONError(w, http.StatusUnauthorized, "unauthorized", message)
}

// writeJSONError writes the same JSON error shape the handlers use.
func writeJSONError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": message,
	})
}
