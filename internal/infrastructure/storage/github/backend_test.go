package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Backend {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{
		Token:   "tok",
		Owner:   "clan",
		Repo:    "data",
		Branch:  "main",
		BaseURL: srv.URL,
	})
}

func TestGitHubBackend_Get(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Path != "/repos/clan/data/contents/clan_data.json" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("ref") != "main" {
			t.Errorf("ref = %s", r.URL.Query().Get("ref"))
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("auth header = %q", r.Header.Get("Authorization"))
		}
		// GitHub wraps base64 payloads in newlines
		json.NewEncoder(w).Encode(map[string]string{
			"content":  "eyJh\nIjox\nfQ==\n",
			"encoding": "base64",
			"sha":      "abc123",
		})
	})

	content, version, err := b.Get(context.Background(), "clan_data.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(content) != `{"a":1}` {
		t.Errorf("content = %q", content)
	}
	if version != "abc123" {
		t.Errorf("version = %q", version)
	}
}

func TestGitHubBackend_GetNotFound(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, _, err := b.Get(context.Background(), "missing.json")
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestGitHubBackend_PutSendsSHAAndReturnsNewOne(t *testing.T) {
	var got putRequest
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "def456"},
		})
	})

	version, err := b.Put(context.Background(), "clan_data.json", []byte(`{"a":2}`), "abc123")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if version != "def456" {
		t.Errorf("version = %q", version)
	}
	if got.SHA != "abc123" {
		t.Errorf("request SHA = %q", got.SHA)
	}
	if got.Branch != "main" {
		t.Errorf("request branch = %q", got.Branch)
	}
	decoded, err := base64.StdEncoding.DecodeString(got.Content)
	if err != nil || string(decoded) != `{"a":2}` {
		t.Errorf("request content = %q (%v)", got.Content, err)
	}
}

func TestGitHubBackend_PutCreateOmitsSHA(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		json.NewDecoder(r.Body).Decode(&raw)
		if _, ok := raw["sha"]; ok {
			t.Error("create must not carry a sha field")
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{
			"content": map[string]string{"sha": "new1"},
		})
	})

	version, err := b.Put(context.Background(), "clan_data.json", []byte("{}"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if version != "new1" {
		t.Errorf("version = %q", version)
	}
}

func TestGitHubBackend_PutConflictStatuses(t *testing.T) {
	for _, status := range []int{http.StatusConflict, http.StatusUnprocessableEntity} {
		b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		})
		_, err := b.Put(context.Background(), "clan_data.json", []byte("{}"), "stale")
		if !errors.Is(err, domain.ErrVersionConflict) {
			t.Errorf("status %d: expected ErrVersionConflict, got %v", status, err)
		}
	}
}

func TestGitHubBackend_UnexpectedStatusIsError(t *testing.T) {
	b := newTestBackend(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, _, err := b.Get(context.Background(), "doc.json"); err == nil {
		t.Error("expected error for 500 on Get")
	}
	if _, err := b.Put(context.Background(), "doc.json", []byte("{}"), ""); err == nil {
		t.Error("expected error for 500 on Put")
	}
}
