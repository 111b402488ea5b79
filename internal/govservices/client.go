// Package govservices is the client for the document and schemes
// microservice consumed directly by portal clients: document listing and
// download, government-scheme discovery, document-aware (RAG) queries and
// document sharing.
package govservices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 60 * time.Second

var ErrInvalidClientConfig = errors.New("govservices: invalid client config")

// Document describes a stored document available for download.
type Document struct {
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// Scheme is one government scheme entry.
type Scheme struct {
	Title       string `json:"title"`
	Description string `json:"desc"`
}

// ClientConfig bundles configuration for the microservice client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the document/RAG microservice over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a client with validated configuration.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url required", ErrInvalidClientConfig)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}, nil
}

// ListFiles returns the caller's stored documents.
func (c *Client) ListFiles(ctx context.Context) ([]Document, error) {
	var documents []Document
	if err := c.getJSON(ctx, "/list-files", &documents); err != nil {
		return nil, err
	}
	return documents, nil
}

// Download fetches one stored document by name.
func (c *Client) Download(ctx context.Context, filename string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/download/"+url.PathEscape(filename), http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("govservices: download %s: status %d", filename, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Schemes lists current government schemes.
func (c *Client) Schemes(ctx context.Context) ([]Scheme, error) {
	var decoded struct {
		Result []Scheme `json:"result"`
	}
	if err := c.getJSON(ctx, "/government-schemes", &decoded); err != nil {
		return nil, err
	}
	return decoded.Result, nil
}

// Query performs one blocking document-aware query and returns the result
// text. An absent result field yields an empty string; the caller decides
// the fallback copy.
func (c *Client) Query(ctx context.Context, query string) (string, error) {
	return c.postQuery(ctx, "/myai", map[string]string{"query": query})
}

// ShareQuery runs a sharing request against the caller's document collection.
func (c *Client) ShareQuery(ctx context.Context, query, userID string) (string, error) {
	return c.postQuery(ctx, "/mycollections", map[string]string{"query": query, "user_id": userID})
}

func (c *Client) postQuery(ctx context.Context, path string, payload map[string]string) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("govservices: query %s: status %d", path, resp.StatusCode)
	}

	var decoded struct {
		Result string `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("govservices: decode response: %w", err)
	}
	return decoded.Result, nil
}

func (c *Client) getJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("govservices: get %s: status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("govservices: decode response: %w", err)
	}
	return nil
}
