package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestApp mounts the auth routes the way the router does
func newTestApp(e *env) *fiber.App {
	app := fiber.New()
	handler := NewHandler(e.svc)

	app.Post("/auth/login", handler.Login)
	app.Post("/auth/register", handler.Register)

	authed := app.Group("", Middleware(e.signer))
	authed.Get("/session", handler.Session)
	authed.Post("/logout", handler.Logout)

	return app
}

func postJSON(app *fiber.App, path string, payload any, headers map[string]string) (int, map[string]any, error) {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := app.Test(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)
	return resp.StatusCode, decoded, nil
}

func TestHandler_Login(t *testing.T) {
	t.Run("successful login", func(t *testing.T) {
		e := newTestEnv(t)
		e.signUp(t, "alice", "pw")
		app := newTestApp(e)

		status, body, err := postJSON(app, "/auth/login",
			LoginRequest{Username: "alice", Password: "pw"},
			map[string]string{FingerprintHeader: "fp-1"})
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, status)
		assert.Equal(t, true, body["success"])

		data := body["data"].(map[string]any)
		assert.NotEmpty(t, data["access_token"])
	})

	t.Run("missing fingerprint header", func(t *testing.T) {
		e := newTestEnv(t)
		app := newTestApp(e)

		status, body, err := postJSON(app, "/auth/login",
			LoginRequest{Username: "alice", Password: "pw"}, nil)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, status)
		assert.Equal(t, "missing_device_fingerprint", body["error"])
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		e := newTestEnv(t)
		app := newTestApp(e)

		req := httptest.NewRequest("POST", "/auth/login",
			bytes.NewReader([]byte(`{"username": "x", "password": }`)))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid credentials", func(t *testing.T) {
		e := newTestEnv(t)
		app := newTestApp(e)

		status, _, err := postJSON(app, "/auth/login",
			LoginRequest{Username: "ghost", Password: "pw"},
			map[string]string{FingerprintHeader: "fp-1"})
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, status)
	})

	t.Run("second device conflicts", func(t *testing.T) {
		e := newTestEnv(t)
		e.signUp(t, "alice", "pw")
		app := newTestApp(e)

		status, _, err := postJSON(app, "/auth/login",
			LoginRequest{Username: "alice", Password: "pw"},
			map[string]string{FingerprintHeader: "laptop"})
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, status)

		status, _, err = postJSON(app, "/auth/login",
			LoginRequest{Username: "alice", Password: "pw"},
			map[string]string{FingerprintHeader: "phone"})
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, status)
	})
}

func TestHandler_Register(t *testing.T) {
	t.Run("successful registration", func(t *testing.T) {
		e := newTestEnv(t)
		issued, err := e.tokens.Issue(context.Background(), "3month")
		require.NoError(t, err)
		app := newTestApp(e)

		status, body, err := postJSON(app, "/auth/register",
			RegisterRequest{Username: "alice", Password: "pw", Token: issued.Plain}, nil)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusCreated, status)
		assert.Equal(t, true, body["success"])
	})

	t.Run("unknown token", func(t *testing.T) {
		e := newTestEnv(t)
		app := newTestApp(e)

		status, _, err := postJSON(app, "/auth/register",
			RegisterRequest{Username: "alice", Password: "pw", Token: "bogus"}, nil)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusBadRequest, status)
	})

	t.Run("username taken", func(t *testing.T) {
		e := newTestEnv(t)
		e.signUp(t, "alice", "pw")
		issued, err := e.tokens.Issue(context.Background(), "3month")
		require.NoError(t, err)
		app := newTestApp(e)

		status, _, err := postJSON(app, "/auth/register",
			RegisterRequest{Username: "alice", Password: "other", Token: issued.Plain}, nil)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusConflict, status)
	})
}

func TestHandler_SessionAndLogout(t *testing.T) {
	e := newTestEnv(t)
	e.signUp(t, "alice", "pw")
	app := newTestApp(e)

	status, body, err := postJSON(app, "/auth/login",
		LoginRequest{Username: "alice", Password: "pw"},
		map[string]string{FingerprintHeader: "fp-1"})
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, status)
	access := body["data"].(map[string]any)["access_token"].(string)

	t.Run("session check with bearer token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/session", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		data := decoded["data"].(map[string]any)
		assert.Equal(t, string(StatusAuthenticated), data["status"])
	})

	t.Run("session check without token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/session", nil)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("session check with garbage token", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/session", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout clears the session", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/logout", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		// A later check from the same client reports anonymous.
		req = httptest.NewRequest("GET", "/session", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		resp, err = app.Test(req)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		var decoded map[string]any
		require.NoError(t, json.Unmarshal(raw, &decoded))
		data := decoded["data"].(map[string]any)
		assert.Equal(t, string(StatusAnonymous), data["status"])
	})
}

func TestAdminMiddleware(t *testing.T) {
	e := newTestEnv(t)
	app := fiber.New()
	app.Get("/admin", Middleware(e.signer), AdminMiddleware("root"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	adminResp, err := e.svc.SignIn(context.Background(), "root", "hunter2", "console")
	require.NoError(t, err)
	adminToken, err := e.signer.Sign(*adminResp.Record, "console")
	require.NoError(t, err)

	e.signUp(t, "alice", "pw")
	userResp, err := e.svc.SignIn(context.Background(), "alice", "pw", "fp-1")
	require.NoError(t, err)
	userToken, err := e.signer.Sign(*userResp.Record, "fp-1")
	require.NoError(t, err)

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+adminToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("regular user rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+userToken)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	})
}
