package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/job-tracker/internal/auth"
	"github.com/sakif/job-tracker/internal/handler"
	"github.com/sakif/job-tracker/internal/model"
	sqliteRepo "github.com/sakif/job-tracker/internal/repository/sqlite"
	"github.com/sakif/job-tracker/internal/service"
)

// These tests run the real services over an in-memory SQLite database.
// Only Google is faked. The router below mirrors the one in
// internal/server so URL parameters and RequireAuth behave as in production.

type testDeps struct {
	verifier service.GoogleVerifier
	provider *auth.GoogleProvider
}

type testEnv struct {
	router http.Handler
	tokens *auth.TokenService
}

func newTestEnv(t *testing.T, deps testDeps) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := sqliteRepo.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret-0123456789")
	require.NoError(t, err)

	users := db.Users()
	authHandler := handler.NewAuthHandler(
		service.NewAuthService(users, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), deps.verifier, logger),
		deps.provider,
		logger,
	)
	recordHandler := handler.NewRecordHandler(service.NewRecordService(db.Records(), db.Applications(), logger), logger)
	profileHandler := handler.NewProfileHandler(service.NewProfileService(db.Applications(), logger), logger)
	healthHandler := handler.NewHealthHandler(db, logger)

	requireAuth := auth.RequireAuth(tokens, users)

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler.HandleHealth)
	r.Route("/users", func(r chi.Router) {
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/google-login", authHandler.HandleGoogleLogin)
		r.Get("/auth/google", authHandler.HandleGoogleRedirect)
		r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		r.With(requireAuth).Get("/", authHandler.HandleList)
		r.With(requireAuth).Get("/me", authHandler.HandleMe)
	})
	r.Route("/records", func(r chi.Router) {
		r.Put("/{id}/click", recordHandler.HandleClick)
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", recordHandler.HandleList)
			r.Post("/", recordHandler.HandleCreate)
			r.Post("/duplicate/{recordId}", recordHandler.HandleDuplicate)
			r.Put("/{id}", recordHandler.HandleUpdate)
			r.Delete("/{id}", recordHandler.HandleDelete)
			r.Get("/{id}/status", recordHandler.HandleGetStatus)
			r.Patch("/{id}/status", recordHandler.HandleSetStatus)
		})
	})
	r.Route("/profiles", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/{userId}", profileHandler.HandleGet)
		r.Put("/{userId}", profileHandler.HandleAddRecord)
	})

	return &testEnv{router: r, tokens: tokens}
}

// do sends body as JSON (a string is sent as-is) with an optional bearer token.
func (e *testEnv) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type authResponse struct {
	User  map[string]any `json:"user"`
	Token string         `json:"token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), "body: %s", rec.Body.String())
	return v
}

// signUp registers username and returns its id and bearer token.
func (e *testEnv) signUp(t *testing.T, username string) (string, string) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/users/auth/register", map[string]string{
		"username":        username,
		"password":        "hunter2hunter2",
		"confirmPassword": "hunter2hunter2",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[authResponse](t, rec)
	return resp.User["id"].(string), resp.Token
}

func validRecordBody(company string) map[string]any {
	return map[string]any{
		"company":        company,
		"employmentType": "Full-time",
		"jobTitle":       "Backend Engineer",
		"appliedDate":    "2024-03-01",
		"websiteLink":    "https://" + company + ".example/jobs/1",
		"click":          0,
	}
}

func (e *testEnv) createRecord(t *testing.T, token, company string) model.Record {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/records", validRecordBody(company), token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Record](t, rec)
}
