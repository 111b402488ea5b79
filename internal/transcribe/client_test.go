package transcribe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTempAudio(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.wav")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write audio fixture: %v", err)
	}
	return path
}

func TestTranscribeUploadsFileAndReturnsText(t *testing.T) {
	audioContent := []byte("fake-wav-bytes")

	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-api-key" {
			t.Fatalf("expected api key header, got %q", got)
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file field: %v", err)
		}
		defer file.Close()
		if header.Filename != "recording.wav" {
			t.Fatalf("unexpected filename %q", header.Filename)
		}
		uploaded, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("read uploaded file: %v", err)
		}
		if string(uploaded) != string(audioContent) {
			t.Fatalf("uploaded bytes do not match fixture")
		}
		if got := r.FormValue("model"); got != "whisper-large-v3" {
			t.Fatalf("unexpected model field %q", got)
		}

		w.Write([]byte(`{"text": "hello from audio"}`))
	}))
	defer testServer.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    testServer.URL,
		APIKey:     "test-api-key",
		Model:      "whisper-large-v3",
		HTTPClient: testServer.Client(),
	})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}

	text, err := client.Transcribe(context.Background(), writeTempAudio(t, audioContent))
	if err != nil {
		t.Fatalf("transcribe failed: %v", err)
	}
	if text != "hello from audio" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestTranscribeSurfacesProviderError(t *testing.T) {
	testServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": "rate limited"}`))
	}))
	defer testServer.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    testServer.URL,
		Model:      "whisper-large-v3",
		HTTPClient: testServer.Client(),
	})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}

	_, err = client.Transcribe(context.Background(), writeTempAudio(t, []byte("bytes")))
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("unexpected status %d", apiErr.Status)
	}
}

func TestTranscribeMissingFileFailsBeforeRequest(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "http://localhost:1", Model: "whisper-large-v3"})
	if err != nil {
		t.Fatalf("failed to construct client: %v", err)
	}
	if _, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "absent.wav")); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	if _, err := NewClient(ClientConfig{Model: "whisper-large-v3"}); !errors.Is(err, ErrInvalidClientConfig) {
		t.Fatalf("expected config error for missing base url, got %v", err)
	}
	if _, err := NewClient(ClientConfig{BaseURL: "http://localhost:1"}); !errors.Is(err, ErrInvalidClientConfig) {
		t.Fatalf("expected config error for missing model, got %v", err)
	}
}
