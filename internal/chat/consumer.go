package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sevasetu/portal/internal/govservices"
)

// Mode selects how a send is answered.
type Mode int

const (
	// ModeDirect streams the model's answer token by token from the portal
	// server.
	ModeDirect Mode = iota
	// ModeDocuments performs one blocking document-aware query against the
	// document microservice.
	ModeDocuments
)

const (
	// Fixed user-visible failure strings; a failed stream never leaves
	// partial output in the transcript.
	assistantFailureMessage = "Error: Failed to get response from AI"
	audioFailureMessage     = "Error: Failed to process audio message"
	emptyResultFallback     = "No response received"
	audioPlaceholderMessage = "[Audio Message]"

	defaultSendTimeout = 5 * time.Minute
)

var errMissingServerURL = errors.New("chat: server url required")

// ConsumerConfig bundles the collaborators a Consumer talks to.
type ConsumerConfig struct {
	ServerURL  string
	Documents  *govservices.Client
	HTTPClient *http.Client
	UserID     string
}

// Consumer drives the chat transcript against the portal server. At most one
// send is in flight per transcript: submissions while busy are silent no-ops,
// as are empty inputs. Once a stream starts there is no mechanism to abort
// it before completion.
type Consumer struct {
	serverURL  string
	documents  *govservices.Client
	httpClient *http.Client
	userID     string
	transcript *Transcript

	mu   sync.Mutex
	mode Mode
	busy bool
}

// NewConsumer constructs a consumer with an empty transcript.
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	serverURL := strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	if serverURL == "" {
		return nil, errMissingServerURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultSendTimeout}
	}
	return &Consumer{
		serverURL:  serverURL,
		documents:  cfg.Documents,
		httpClient: httpClient,
		userID:     cfg.UserID,
		transcript: NewTranscript(),
	}, nil
}

// Transcript exposes the session transcript.
func (c *Consumer) Transcript() *Transcript {
	return c.transcript
}

// Mode reports the active answering mode.
func (c *Consumer) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SwitchMode changes the answering mode and resets the transcript, mirroring
// the view change in the portal client.
func (c *Consumer) SwitchMode(mode Mode) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
	c.transcript.Reset()
}

// Busy reports whether a send is in flight.
func (c *Consumer) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// Send submits one chat turn. Empty or whitespace-only input is a no-op, as
// is any submission while a previous send is still streaming.
func (c *Consumer) Send(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	mode := c.mode
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.transcript.Append(Message{Sender: SenderUser, Content: input})

	if mode == ModeDocuments {
		return c.sendDocumentQuery(ctx, input)
	}
	return c.streamDirect(ctx, input)
}

// streamDirect drives the idle → sending → streaming → idle path: one
// assistant entry is appended when the response turns out successful, and
// its content is replaced with the growing accumulation on every chunk.
func (c *Consumer) streamDirect(ctx context.Context, input string) error {
	payload, err := json.Marshal(map[string]string{"body": input})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/ai/stream", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return fmt.Errorf("chat: stream request failed with status %d", resp.StatusCode)
	}

	entry := c.transcript.Append(Message{Sender: SenderAssistant, Content: ""})
	var accumulated strings.Builder
	buffer := make([]byte, 512)
	for {
		n, readErr := resp.Body.Read(buffer)
		if n > 0 {
			accumulated.Write(buffer[:n])
			c.transcript.Replace(entry, accumulated.String())
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			c.transcript.Replace(entry, assistantFailureMessage)
			return readErr
		}
	}
}

// sendDocumentQuery bypasses streaming entirely: one blocking round trip,
// one assistant entry.
func (c *Consumer) sendDocumentQuery(ctx context.Context, input string) error {
	if c.documents == nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return errors.New("chat: document service not configured")
	}
	result, err := c.documents.Query(ctx, input)
	if err != nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return err
	}
	if result == "" {
		result = emptyResultFallback
	}
	c.transcript.Append(Message{Sender: SenderAssistant, Content: result})
	return nil
}

// Share runs a document-sharing query through the microservice.
func (c *Consumer) Share(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return nil
	}

	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil
	}
	c.busy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	}()

	c.transcript.Append(Message{Sender: SenderUser, Content: input})

	if c.documents == nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return errors.New("chat: document service not configured")
	}
	result, err := c.documents.ShareQuery(ctx, input, c.userID)
	if err != nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: assistantFailureMessage})
		return err
	}
	if result == "" {
		result = emptyResultFallback
	}
	c.transcript.Append(Message{Sender: SenderAssistant, Content: result})
	return nil
}

// SendAudio uploads a recorded audio file for transcription and returns the
// transcribed text, which becomes the pending input rather than a sent turn.
func (c *Consumer) SendAudio(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("chat: open audio file: %w", err)
	}
	defer file.Close()

	c.transcript.Append(Message{Sender: SenderUser, Content: audioPlaceholderMessage})

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/ai/audio-transcribe", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: audioFailureMessage})
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: audioFailureMessage})
		return "", fmt.Errorf("chat: transcription request failed with status %d", resp.StatusCode)
	}

	var decoded struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		c.transcript.Append(Message{Sender: SenderAssistant, Content: audioFailureMessage})
		return "", err
	}
	if decoded.Text == "" {
		return "Could not transcribe audio", nil
	}
	return decoded.Text, nil
}
