package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/backend/backendtest"
	"genstudio-dashboard/internal/handler"
	"genstudio-dashboard/internal/hub"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/session"
	"genstudio-dashboard/internal/watch"
)

func newTestRouter(t *testing.T, fake *backendtest.Fake) (*gin.Engine, Deps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	deps := Deps{
		Sessions:    session.NewStore(fake.URL()),
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		Watch:       watch.NewRegistry(10 * time.Millisecond),
		Hub:         hub.New(),
		Media:       handler.NewMediaHandler(time.Minute),
	}
	return NewRouter(deps), deps
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			return c
		}
	}
	t.Fatalf("no session cookie in response: %s", w.Body.String())
	return nil
}

func envelopeOf(t *testing.T, w *httptest.ResponseRecorder) (int, json.RawMessage) {
	t.Helper()
	var env struct {
		Code int             `json:"code"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal envelope: %v: %s", err, w.Body.String())
	}
	return env.Code, env.Data
}

func login(t *testing.T, r *gin.Engine, username, password string) *http.Cookie {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{"username": username, "password": password}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	return sessionCookie(t, w)
}

func TestLoginProjectGenerateFlow(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")

	r, _ := newTestRouter(t, fake)
	cookie := login(t, r, "alice", "pw")

	// identity resolves through the dashboard session
	w := doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	code, data := envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("me: expected code 200, got %d", code)
	}
	var me struct {
		State string `json:"state"`
		User  struct {
			Username string `json:"username"`
		} `json:"user"`
	}
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.State != "authenticated" || me.User.Username != "alice" {
		t.Fatalf("unexpected identity: %s", string(data))
	}

	// create a project (exercises the CSRF path end to end)
	w = doJSON(t, r, http.MethodPost, "/api/projects", map[string]string{"title": "sunsets"}, cookie)
	code, data = envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("create project: expected code 200, got %d: %s", code, w.Body.String())
	}
	var project struct {
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(data, &project); err != nil {
		t.Fatalf("unmarshal project: %v", err)
	}

	// kick off a generation
	genBody := map[string]any{"prompt": "a sunset", "model": "nano-banana", "project_id": project.ID}
	w = doJSON(t, r, http.MethodPost, "/api/generate/image", genBody, cookie)
	code, _ = envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("generate: expected code 200, got %d: %s", code, w.Body.String())
	}

	// the task shows up in the project listing
	w = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/projects/%d/tasks", project.ID), nil, cookie)
	code, data = envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("tasks: expected code 200, got %d", code)
	}
	var snapshot struct {
		Tasks []struct {
			Status string `json:"status"`
			Prompt string `json:"prompt"`
		} `json:"tasks"`
	}
	if err := json.Unmarshal(data, &snapshot); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(snapshot.Tasks) != 1 || snapshot.Tasks[0].Status != "running" || snapshot.Tasks[0].Prompt != "a sunset" {
		t.Fatalf("unexpected snapshot: %s", string(data))
	}
}

func TestLoginFailureLeavesNoSession(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")

	r, deps := newTestRouter(t, fake)

	w := doJSON(t, r, http.MethodPost, "/api/auth/login", map[string]string{"username": "alice", "password": "wrong"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	code, data := envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("expected envelope code 200, got %d", code)
	}
	var result struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if result.Success {
		t.Fatalf("expected failed login")
	}
	if result.Message == "" {
		t.Fatalf("expected a failure message for the browser to display")
	}
	if deps.Sessions.Len() != 0 {
		t.Fatalf("expected no session after failed login, got %d", deps.Sessions.Len())
	}
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			t.Fatalf("failed login must not set a session cookie")
		}
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, _ := newTestRouter(t, fake)

	for _, path := range []string{"/api/auth/me", "/api/projects"} {
		w := doJSON(t, r, http.MethodGet, path, nil, nil)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d: %s", path, w.Code, w.Body.String())
		}
	}
}

func TestLogoutTearsDownSession(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")

	r, deps := newTestRouter(t, fake)
	cookie := login(t, r, "alice", "pw")

	w := doJSON(t, r, http.MethodPost, "/api/auth/logout", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if deps.Sessions.Len() != 0 {
		t.Fatalf("expected session store to be empty, got %d", deps.Sessions.Len())
	}

	// the old cookie is now dead
	w = doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", w.Code)
	}
}

func TestIdleSessionsAreEvicted(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")

	gin.SetMode(gin.TestMode)
	now := time.Unix(1000, 0)
	deps := Deps{
		Sessions:    session.NewStoreWithNow(fake.URL(), func() time.Time { return now }),
		TokenConfig: auth.TokenConfig{Secret: "secret", Expiry: time.Hour, Issuer: "test"},
		Watch:       watch.NewRegistry(10 * time.Millisecond),
		Hub:         hub.New(),
		Media:       handler.NewMediaHandler(time.Minute),
	}
	r := NewRouter(deps)
	cookie := login(t, r, "alice", "pw")

	// the session survives while it is being used
	now = now.Add(time.Hour)
	if n := handler.EvictIdleSessions(deps.Sessions, deps.Watch, deps.Media, 7*24*time.Hour); n != 0 {
		t.Fatalf("expected no evictions, got %d", n)
	}
	w := doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", w.Code)
	}

	// past the idle deadline the session is torn down without a logout
	now = now.Add(8 * 24 * time.Hour)
	if n := handler.EvictIdleSessions(deps.Sessions, deps.Watch, deps.Media, 7*24*time.Hour); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if deps.Sessions.Len() != 0 {
		t.Fatalf("expected empty session store, got %d", deps.Sessions.Len())
	}
	w = doJSON(t, r, http.MethodGet, "/api/auth/me", nil, cookie)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after eviction, got %d", w.Code)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, deps := newTestRouter(t, fake)

	w := doJSON(t, r, http.MethodPost, "/api/auth/register", map[string]string{"username": "bob", "password": "pw"}, nil)
	code, data := envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("register: expected code 200, got %d", code)
	}
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("unmarshal result: %v", err)
	}
	if !result.Success {
		t.Fatalf("register failed: %s", string(data))
	}
	if deps.Sessions.Len() != 0 {
		t.Fatalf("register must not leave a session behind")
	}

	login(t, r, "bob", "pw")
}

func TestMediaHandleLifecycleOverHTTP(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")
	fake.SeedFile("results/cat.png", []byte("cat-bytes"))

	r, _ := newTestRouter(t, fake)
	cookie := login(t, r, "alice", "pw")

	// direct stream
	w := doJSON(t, r, http.MethodGet, "/api/media?f=results%2Fcat.png", nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("stream: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !bytes.Equal(w.Body.Bytes(), []byte("cat-bytes")) {
		t.Fatalf("stream: unexpected body %q", w.Body.String())
	}

	// handle create and resolve
	w = doJSON(t, r, http.MethodPost, "/api/media/handles", map[string]string{"filepath": "results/cat.png"}, cookie)
	code, data := envelopeOf(t, w)
	if code != 200 {
		t.Fatalf("create handle: expected code 200, got %d: %s", code, w.Body.String())
	}
	var created struct {
		HandleID string `json:"handleId"`
	}
	if err := json.Unmarshal(data, &created); err != nil {
		t.Fatalf("unmarshal handle: %v", err)
	}
	if created.HandleID == "" {
		t.Fatalf("expected a handle id")
	}

	w = doJSON(t, r, http.MethodGet, "/api/media/handles/"+created.HandleID, nil, cookie)
	if w.Code != http.StatusOK || !bytes.Equal(w.Body.Bytes(), []byte("cat-bytes")) {
		t.Fatalf("resolve handle: got %d %q", w.Code, w.Body.String())
	}

	// release, then the handle is gone
	w = doJSON(t, r, http.MethodDelete, "/api/media/handles/"+created.HandleID, nil, cookie)
	if w.Code != http.StatusOK {
		t.Fatalf("release handle: expected 200, got %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/media/handles/"+created.HandleID, nil, cookie)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after release, got %d", w.Code)
	}
}

func TestMissingMediaReturnsNotFound(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()
	fake.AddUser("alice", "pw")

	r, _ := newTestRouter(t, fake)
	cookie := login(t, r, "alice", "pw")

	w := doJSON(t, r, http.MethodGet, "/api/media?f=no-such-file", nil, cookie)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	fake := backendtest.New()
	defer fake.Close()

	r, _ := newTestRouter(t, fake)
	w := doJSON(t, r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
