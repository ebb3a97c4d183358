package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/job-tracker/internal/auth"
)

type fakeVerifier map[string]*auth.GoogleIdentity

func (f fakeVerifier) Verify(_ context.Context, raw string) (*auth.GoogleIdentity, error) {
	if id, ok := f[raw]; ok {
		return id, nil
	}
	return nil, errors.New("bad token")
}

func TestHandleRegister(t *testing.T) {
	env := newTestEnv(t, testDeps{})

	t.Run("creates account and returns token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
			"username": "ada", "password": "pw-123456", "confirmPassword": "pw-123456",
		}, "")

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		resp := decode[authResponse](t, rec)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "ada", resp.User["username"])
		assert.NotContains(t, resp.User, "password")
		assert.NotContains(t, resp.User, "passwordHash")

		userID, err := env.tokens.Validate(resp.Token)
		require.NoError(t, err)
		assert.Equal(t, resp.User["id"], userID)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
			"username": "ada", "password": "other-pw", "confirmPassword": "other-pw",
		}, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "duplicate_key", body.Error)
		assert.Equal(t, "username", body.Field)
	})

	t.Run("confirmation mismatch", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
			"username": "grace", "password": "one", "confirmPassword": "two",
		}, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "validation_error", body.Error)
		assert.Equal(t, "confirmPassword", body.Field)
	})

	t.Run("empty body", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/register", "", "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "request body is required", body.Message)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/register", `{"username":`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode[errorResponse](t, rec)
		assert.Equal(t, "body", body.Field)
	})
}

func TestHandleLogin(t *testing.T) {
	env := newTestEnv(t, testDeps{})
	env.signUp(t, "linus")

	tests := []struct {
		name       string
		username   string
		password   string
		wantStatus int
		wantError  string
	}{
		{"correct password", "linus", "hunter2hunter2", http.StatusOK, ""},
		{"wrong password", "linus", "nope", http.StatusBadRequest, "invalid_credentials"},
		{"unknown user", "nobody", "hunter2hunter2", http.StatusBadRequest, "invalid_credentials"},
		{"missing password", "linus", "", http.StatusBadRequest, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/users/auth/login", map[string]string{
				"username": tt.username, "password": tt.password,
			}, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError == "" {
				assert.NotEmpty(t, decode[authResponse](t, rec).Token)
				return
			}
			body := decode[errorResponse](t, rec)
			assert.Equal(t, tt.wantError, body.Error)
			assert.NotContains(t, rec.Body.String(), "token\"")
		})
	}
}

func TestHandleGoogleLogin(t *testing.T) {
	verifier := fakeVerifier{
		"new-user":  {Subject: "g-1", Name: "Margaret", Email: "margaret@example.com"},
		"same-user": {Subject: "g-1", Name: "Margaret", Email: "margaret@example.com"},
	}
	env := newTestEnv(t, testDeps{verifier: verifier})

	t.Run("first sign-in creates the user", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "new-user"}, "")

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[authResponse](t, rec)
		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, "g-1", resp.User["googleId"])
		assert.Equal(t, "margaret@example.com", resp.User["email"])
	})

	t.Run("second sign-in finds the same user", func(t *testing.T) {
		first := decode[authResponse](t, env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "new-user"}, ""))
		second := decode[authResponse](t, env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "same-user"}, ""))

		assert.Equal(t, first.User["id"], second.User["id"])
	})

	t.Run("rejected token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "forged"}, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "token", decode[errorResponse](t, rec).Field)
	})

	t.Run("missing token", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{}, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No token provided", decode[errorResponse](t, rec).Message)
	})
}

func TestHandleGoogleLogin_LinksRegisteredEmail(t *testing.T) {
	verifier := fakeVerifier{"carol": {Subject: "g-77", Name: "Carol", Email: "carol@example.com"}}
	env := newTestEnv(t, testDeps{verifier: verifier})

	rec := env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
		"username": "carol", "password": "pw-123456", "confirmPassword": "pw-123456",
		"name": "Carol", "email": "carol@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	registered := decode[authResponse](t, rec)
	assert.Equal(t, "carol@example.com", registered.User["email"])
	assert.Equal(t, "Carol", registered.User["name"])

	rec = env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "carol"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	linked := decode[authResponse](t, rec)

	assert.Equal(t, registered.User["id"], linked.User["id"])
	assert.Equal(t, "g-77", linked.User["googleId"])
	assert.Equal(t, "carol", linked.User["username"])

	rec = env.do(t, http.MethodGet, "/users", nil, linked.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestHandleRegister_EmailChecks(t *testing.T) {
	env := newTestEnv(t, testDeps{})

	rec := env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
		"username": "erin", "password": "pw-123456", "confirmPassword": "pw-123456", "email": "erin-at-example",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error)
	assert.Equal(t, "email", body.Field)

	rec = env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
		"username": "erin", "password": "pw-123456", "confirmPassword": "pw-123456", "email": "erin@example.com",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/users/auth/register", map[string]string{
		"username": "erin2", "password": "pw-123456", "confirmPassword": "pw-123456", "email": "erin@example.com",
	}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[errorResponse](t, rec)
	assert.Equal(t, "duplicate_key", body.Error)
	assert.Equal(t, "email", body.Field)
}

func TestHandleGoogleLogin_NotConfigured(t *testing.T) {
	env := newTestEnv(t, testDeps{})

	rec := env.do(t, http.MethodPost, "/users/auth/google-login", map[string]string{"token": "anything"}, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[errorResponse](t, rec).Error)
}

func TestHandleGoogleRedirectAndCallback(t *testing.T) {
	provider := auth.NewGoogleProvider("client-id", "client-secret", "http://localhost:8080/users/auth/google/callback")
	env := newTestEnv(t, testDeps{provider: provider})

	rec := env.do(t, http.MethodGet, "/users/auth/google", nil, "")
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "accounts.google.com", location.Host)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	state := cookies[0]
	assert.Equal(t, "oauth_state", state.Name)
	assert.True(t, state.HttpOnly)
	assert.Equal(t, state.Value, location.Query().Get("state"))

	callback := func(query string, cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/users/auth/google/callback?"+query, nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("state mismatch", func(t *testing.T) {
		rec := callback("state=forged&code=abc", state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "state", decode[errorResponse](t, rec).Field)
	})

	t.Run("missing cookie", func(t *testing.T) {
		rec := callback("state="+state.Value+"&code=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("user denied", func(t *testing.T) {
		rec := callback("state="+state.Value+"&error=access_denied", state)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing code", func(t *testing.T) {
		rec := callback("state="+state.Value, state)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "code", decode[errorResponse](t, rec).Field)
	})
}

func TestHandleMeAndList(t *testing.T) {
	env := newTestEnv(t, testDeps{})
	adaID, adaToken := env.signUp(t, "ada")
	env.signUp(t, "grace")

	t.Run("me", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/users/me", nil, adaToken)

		assert.Equal(t, http.StatusOK, rec.Code)
		me := decode[map[string]any](t, rec)
		assert.Equal(t, adaID, me["id"])
		assert.Equal(t, "ada", me["username"])
	})

	t.Run("list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/users", nil, adaToken)

		assert.Equal(t, http.StatusOK, rec.Code)
		users := decode[[]map[string]any](t, rec)
		require.Len(t, users, 2)
		assert.Equal(t, "ada", users[0]["username"])
		assert.Equal(t, "grace", users[1]["username"])
	})

	t.Run("requires a token", func(t *testing.T) {
		for _, path := range []string{"/users", "/users/me"} {
			rec := env.do(t, http.MethodGet, path, nil, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
		}
	})

	t.Run("token for a user that doesn't exist", func(t *testing.T) {
		token, err := env.tokens.Generate("ghost")
		require.NoError(t, err)

		rec := env.do(t, http.MethodGet, "/users/me", nil, token)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
