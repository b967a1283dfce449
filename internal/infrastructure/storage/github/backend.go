// Package github implements the versioned document backend on top of the
// GitHub Contents API: documents are JSON blobs in a repository, the version
// token is the blob SHA, and a Put carrying a stale SHA is rejected by GitHub
// as a conflict. This matches the bot's zero-infrastructure deployment: the
// data lives next to the code.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/clanforge/clan-registry/internal/core/domain"
)

const (
	defaultBaseURL = "https://api.github.com"
	requestTimeout = 15 * time.Second
)

// Config captures the settings for the repository holding the documents.
type Config struct {
	Token  string
	Owner  string
	Repo   string
	Branch string
	// BaseURL overrides the API host, used by tests.
	BaseURL string
}

// Backend talks to the GitHub Contents API.
type Backend struct {
	client  *http.Client
	baseURL string
	token   string
	owner   string
	repo    string
	branch  string
}

func New(cfg Config) *Backend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	return &Backend{
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: baseURL,
		token:   cfg.Token,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		branch:  branch,
	}
}

type contentsResponse struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
}

type putRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type putResponse struct {
	Content struct {
		SHA string `json:"sha"`
	} `json:"content"`
}

func (b *Backend) Get(ctx context.Context, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		b.contentsURL(path)+"?ref="+url.QueryEscape(b.branch), nil)
	if err != nil {
		return nil, "", fmt.Errorf("github backend: build request: %w", err)
	}
	b.setHeaders(req)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("github backend: get %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, "", domain.ErrDocumentNotFound
	default:
		return nil, "", fmt.Errorf("github backend: get %s: unexpected status %d", path, resp.StatusCode)
	}

	var cr contentsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, "", fmt.Errorf("github backend: decode %s: %w", path, err)
	}
	content, err := base64.StdEncoding.DecodeString(stripNewlines(cr.Content))
	if err != nil {
		return nil, "", fmt.Errorf("github backend: decode content of %s: %w", path, err)
	}
	return content, cr.SHA, nil
}

func (b *Backend) Put(ctx context.Context, path string, content []byte, version string) (string, error) {
	body, err := json.Marshal(putRequest{
		Message: fmt.Sprintf("update %s", path),
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  b.branch,
		SHA:     version,
	})
	if err != nil {
		return "", fmt.Errorf("github backend: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.contentsURL(path), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("github backend: build request: %w", err)
	}
	b.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("github backend: put %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict, http.StatusUnprocessableEntity:
		// stale or missing sha: someone committed since our Get
		io.Copy(io.Discard, resp.Body)
		return "", domain.ErrVersionConflict
	default:
		return "", fmt.Errorf("github backend: put %s: unexpected status %d", path, resp.StatusCode)
	}

	var pr putResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("github backend: decode response for %s: %w", path, err)
	}
	return pr.Content.SHA, nil
}

func (b *Backend) contentsURL(path string) string {
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.baseURL, b.owner, b.repo, url.PathEscape(path))
}

func (b *Backend) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}
}

// stripNewlines removes the line breaks GitHub inserts into base64 payloads.
func stripNewlines(s string) string {
	buf := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\n' && s[i] != '\r' {
			buf = append(buf, s[i])
		}
	}
	return string(buf)
}
