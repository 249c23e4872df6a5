package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dstarenko/ideascope/internal/discovery"
	"github.com/dstarenko/ideascope/internal/domain"
	"github.com/dstarenko/ideascope/internal/identity"
	"github.com/dstarenko/ideascope/internal/llm"
	"github.com/dstarenko/ideascope/internal/prompts"
	"github.com/dstarenko/ideascope/internal/store"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()

	Error(w, http.StatusNotFound, "nope")

	resp := w.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got["error"] != "nope" {
		t.Errorf("Expected error=nope, got %v", got["error"])
	}
}

type stubModel struct {
	reply string
	err   error
}

func (m *stubModel) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.reply, nil
}

// newTestServer wires a real SQLite store behind the full router so the
// handlers are exercised end to end.
func newTestServer(t *testing.T, model llm.Client) *httptest.Server {
	t.Helper()

	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := discovery.NewService(repo, model, prompts.DefaultLibrary(), nil)
	handler := NewHandler(svc, repo, NewRateLimiter(100, time.Minute))

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	handler.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// testClient keeps the anonymous identity cookie across requests.
func testClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body interface{}) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	var parsed map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&parsed)
	return resp, parsed
}

func startSession(t *testing.T, client *http.Client, baseURL string) string {
	t.Helper()
	resp, body := doJSON(t, client, http.MethodPost, baseURL+"/api/discovery/sessions", map[string]string{
		"seed_idea": "a marketplace for lab equipment",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session returned %d", resp.StatusCode)
	}
	var id string
	if err := json.Unmarshal(body["id"], &id); err != nil || id == "" {
		t.Fatalf("no session id in response: %v", err)
	}
	return id
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, &stubModel{reply: "What problem does this solve for labs?"})
	client := testClient(t)

	id := startSession(t, client, srv.URL)

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/messages", map[string]string{
		"message": "they waste money on idle equipment",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send message returned %d", resp.StatusCode)
	}
	var phase string
	if err := json.Unmarshal(body["phase"], &phase); err != nil || phase != string(domain.PhaseVision) {
		t.Fatalf("phase = %q, want vision", phase)
	}

	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/discovery/sessions/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get session returned %d", resp.StatusCode)
	}

	// Summary is gated until the session completes.
	resp, _ = doJSON(t, client, http.MethodGet, srv.URL+"/api/discovery/sessions/"+id+"/summary", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("summary before completion returned %d, want 404", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/skip", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("skip returned %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/messages", map[string]string{
		"message": "one more thought",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("message to skipped session returned %d, want 409", resp.StatusCode)
	}
}

func TestAdvanceAndResetOverHTTP(t *testing.T) {
	srv := newTestServer(t, &stubModel{reply: "ok"})
	client := testClient(t)

	id := startSession(t, client, srv.URL)

	resp, body := doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/advance", map[string]string{
		"phase": "founder_fit",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("advance returned %d", resp.StatusCode)
	}
	var phase string
	if err := json.Unmarshal(body["current_phase"], &phase); err != nil || phase != string(domain.PhaseFounderFit) {
		t.Fatalf("phase = %q, want founder_fit", phase)
	}

	resp, _ = doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/advance", map[string]string{
		"phase": "warp_speed",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad phase returned %d, want 400", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/reset", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reset returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body["current_phase"], &phase); err != nil || phase != string(domain.PhaseVision) {
		t.Fatalf("phase after reset = %q, want vision", phase)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	srv := newTestServer(t, &stubModel{reply: "ok"})
	client := testClient(t)

	resp, _ := doJSON(t, client, http.MethodGet, srv.URL+"/api/discovery/sessions/no-such-id", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown session returned %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubModel{reply: "ok"})
	client := testClient(t)

	resp, body := doJSON(t, client, http.MethodGet, srv.URL+"/api/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health returned %d", resp.StatusCode)
	}
	var status string
	if err := json.Unmarshal(body["status"], &status); err != nil || status != "ok" {
		t.Fatalf("status = %q, want ok", status)
	}
}

func TestRateLimitOnMessages(t *testing.T) {
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	svc := discovery.NewService(repo, &stubModel{reply: "ok"}, prompts.DefaultLibrary(), nil)
	handler := NewHandler(svc, repo, NewRateLimiter(2, time.Minute))

	r := chi.NewRouter()
	r.Use(identity.Middleware(repo, true))
	handler.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	client := testClient(t)
	id := startSession(t, client, srv.URL)

	var lastStatus int
	for i := 0; i < 3; i++ {
		resp, _ := doJSON(t, client, http.MethodPost, srv.URL+"/api/discovery/sessions/"+id+"/messages", map[string]string{
			"message": fmt.Sprintf("turn %d", i),
		})
		lastStatus = resp.StatusCode
	}
	if lastStatus != http.StatusTooManyRequests {
		t.Fatalf("third turn returned %d, want 429", lastStatus)
	}
}
