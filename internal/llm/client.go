// Package llm wraps the hosted generative model collaborator behind the
// relay.Source contract.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sevasetu/portal/internal/relay"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// ClientConfig bundles configuration for the generative model client.
type ClientConfig struct {
	APIKey string
	Model  string
}

// Client issues streaming text-generation calls against the hosted model.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient constructs the collaborator client. Close releases the
// underlying connection.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("llm: api key required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("llm: model name required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("llm: create client: %w", err)
	}
	return &Client{client: client, model: cfg.Model}, nil
}

// Close releases the underlying model connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// StreamGenerate opens a token stream for the prompt. Failures, including a
// call that never starts, surface on the first Next of the returned source.
func (c *Client) StreamGenerate(ctx context.Context, prompt string) relay.Source {
	model := c.client.GenerativeModel(c.model)
	iter := model.GenerateContentStream(ctx, genai.Text(prompt))
	return &stream{iter: iter}
}

type stream struct {
	iter *genai.GenerateContentResponseIterator
}

// Next pulls the next response chunk and flattens its text parts.
func (s *stream) Next() (string, error) {
	for {
		resp, err := s.iter.Next()
		if errors.Is(err, iterator.Done) {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("llm: stream pull: %w", err)
		}

		text := flatten(resp)
		if text == "" {
			// Safety or metadata-only chunks carry no text; keep pulling.
			continue
		}
		return text, nil
	}
}

func flatten(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var builder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			builder.WriteString(string(text))
		}
	}
	return builder.String()
}
