package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dstarenko/ideascope/internal/domain"
)

func newTestClient(url string) *OpenAIClient {
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = url
	cfg.MinRequestGap = 0
	cfg.Timeout = 2 * time.Second
	return NewOpenAIClient(cfg)
}

func TestCompleteSendsTranscriptAndReturnsText(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	text, err := c.Complete(context.Background(), CompletionRequest{
		System: "be helpful",
		Messages: []domain.Message{
			{Role: domain.RoleAssistant, Content: "welcome"},
			{Role: domain.RoleUser, Content: "hi"},
		},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "hello there" {
		t.Errorf("expected %q, got %q", "hello there", text)
	}

	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(gotReq.Messages))
	}
	if gotReq.Messages[0].Role != "system" {
		t.Errorf("expected first message role system, got %q", gotReq.Messages[0].Role)
	}
	if gotReq.Messages[1].Role != "assistant" || gotReq.Messages[2].Role != "user" {
		t.Errorf("transcript roles not preserved: %+v", gotReq.Messages[1:])
	}
	if gotReq.ResponseFormat != nil {
		t.Error("did not expect response_format without WantStructured")
	}
}

func TestCompleteRequestsStructuredOutput(t *testing.T) {
	t.Parallel()

	var gotReq chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{}"}}]}`))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	if _, err := c.Complete(context.Background(), CompletionRequest{WantStructured: true}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if gotReq.ResponseFormat == nil || gotReq.ResponseFormat.Type != "json_object" {
		t.Errorf("expected json_object response_format, got %+v", gotReq.ResponseFormat)
	}
}

func TestCompleteMapsProviderFailures(t *testing.T) {
	t.Parallel()

	cases := map[string]http.HandlerFunc{
		"http error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":{"message":"overloaded"}}`, http.StatusServiceUnavailable)
		},
		"provider error body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":{"message":"bad model","type":"invalid_request"}}`))
		},
		"empty choices": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
	}
	for name, handler := range cases {
		srv := httptest.NewServer(handler)
		c := newTestClient(srv.URL)
		_, err := c.Complete(context.Background(), CompletionRequest{})
		srv.Close()
		if !errors.Is(err, ErrRequestFailed) {
			t.Errorf("%s: expected ErrRequestFailed, got %v", name, err)
		}
	}
}

func TestCompleteFailsWithoutAPIKey(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig("")
	cfg.MinRequestGap = 0
	c := NewOpenAIClient(cfg)
	if _, err := c.Complete(context.Background(), CompletionRequest{}); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("expected ErrRequestFailed without API key, got %v", err)
	}
}
