package server

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func newAudioUploadRequest(t *testing.T, fieldName, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("failed to build multipart body: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("failed to write multipart content: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	request := httptest.NewRequest(http.MethodPost, "/api/ai/audio-transcribe", &body)
	request.Header.Set("Content-Type", writer.FormDataContentType())
	return request
}

func TestStreamRejectsMissingBody(t *testing.T) {
	handler := newTestHandler(t, Dependencies{})

	testCases := []struct {
		name    string
		payload string
	}{
		{name: "empty object", payload: `{}`},
		{name: "whitespace body", payload: `{"body": "   "}`},
		{name: "malformed json", payload: `{"body`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodPost, "/api/ai/stream", strings.NewReader(testCase.payload))
			request.Header.Set("Content-Type", "application/json")
			handler.ServeHTTP(recorder, request)

			if recorder.Code != http.StatusBadRequest {
				t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestStreamWritesChunksInOrder(t *testing.T) {
	handler := newTestHandler(t, Dependencies{
		Generator: stubGenerator{chunks: []string{"He", "llo", "!"}},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/ai/stream", strings.NewReader(`{"body": "greet me"}`))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want %d (body %s)", recorder.Code, http.StatusOK, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); !strings.HasPrefix(got, "text/plain") {
		t.Fatalf("unexpected content type %q", got)
	}
	if recorder.Body.String() != "Hello!" {
		t.Fatalf("unexpected body %q", recorder.Body.String())
	}
}

func TestStreamStartFailureYieldsJSONError(t *testing.T) {
	handler := newTestHandler(t, Dependencies{
		Generator: stubGenerator{startErr: errors.New("model unavailable")},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/ai/stream", strings.NewReader(`{"body": "greet me"}`))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(recorder.Body.String(), "Failed to generate response") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestStreamMidStreamFailureSeversConnection(t *testing.T) {
	handler := newTestHandler(t, Dependencies{
		Generator: stubGenerator{
			chunks:   []string{"partial "},
			chunkErr: errors.New("quota exceeded"),
		},
	})

	// A recorder cannot observe connection teardown; a real client can.
	testServer := httptest.NewServer(handler)
	defer testServer.Close()

	resp, err := http.Post(testServer.URL+"/api/ai/stream", "application/json", strings.NewReader(`{"body": "greet me"}`))
	if err != nil {
		t.Fatalf("stream request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want %d", resp.StatusCode, http.StatusOK)
	}

	payload, readErr := io.ReadAll(resp.Body)
	if string(payload) != "partial " {
		t.Fatalf("unexpected flushed prefix %q", payload)
	}
	if readErr == nil {
		t.Fatal("a truncated stream must not end in a clean EOF")
	}
}

func TestStreamEmptyGenerationCompletesCleanly(t *testing.T) {
	handler := newTestHandler(t, Dependencies{
		Generator: stubGenerator{chunks: nil},
	})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/ai/stream", strings.NewReader(`{"body": "greet me"}`))
	request.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusOK)
	}
	if recorder.Body.String() != "" {
		t.Fatalf("unexpected body %q", recorder.Body.String())
	}
}

func TestAudioTranscribeRequiresUpload(t *testing.T) {
	handler := newTestHandler(t, Dependencies{})

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodPost, "/api/ai/audio-transcribe", http.NoBody)
	handler.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusBadRequest)
	}
	if !strings.Contains(recorder.Body.String(), "No audio file provided") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
}

func TestAudioTranscribeReturnsTextAndRemovesTempFile(t *testing.T) {
	transcriber := &stubTranscriber{text: "show me housing schemes"}
	handler := newTestHandler(t, Dependencies{Transcriber: transcriber})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, newAudioUploadRequest(t, "audio", "voice.webm", []byte("opus-bytes")))

	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d, want %d (body %s)", recorder.Code, http.StatusOK, recorder.Body.String())
	}
	if !strings.Contains(recorder.Body.String(), "show me housing schemes") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}

	if !transcriber.sawUploaded {
		t.Fatal("transcriber was not handed an existing temp file")
	}
	if transcriber.uploadedSize != int64(len("opus-bytes")) {
		t.Fatalf("unexpected uploaded size %d", transcriber.uploadedSize)
	}
	if !strings.HasSuffix(transcriber.requestPath, ".webm") {
		t.Fatalf("upload extension not preserved: %q", transcriber.requestPath)
	}
	if _, err := os.Stat(transcriber.requestPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file %q should be removed after the request, stat err %v", transcriber.requestPath, err)
	}
}

func TestAudioTranscribeFailureStillRemovesTempFile(t *testing.T) {
	transcriber := &stubTranscriber{err: errors.New("provider timeout")}
	handler := newTestHandler(t, Dependencies{Transcriber: transcriber})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, newAudioUploadRequest(t, "audio", "voice.webm", []byte("opus-bytes")))

	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(recorder.Body.String(), "Failed to transcribe audio") {
		t.Fatalf("unexpected body: %s", recorder.Body.String())
	}
	if _, err := os.Stat(transcriber.requestPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("temp file %q should be removed after a failed request, stat err %v", transcriber.requestPath, err)
	}
}

func TestAudioTranscribeWrongFieldNameIsRejected(t *testing.T) {
	handler := newTestHandler(t, Dependencies{})

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, newAudioUploadRequest(t, "file", "voice.webm", []byte("opus-bytes")))

	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusBadRequest)
	}
}
