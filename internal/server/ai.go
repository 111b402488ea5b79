package server

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sevasetu/portal/internal/relay"
	"go.uber.org/zap"
)

type streamPayload struct {
	Body string `json:"body" binding:"required"`
}

// handleStream relays the LLM collaborator's token stream onto the response
// body as a chunked transfer. The first chunk is pulled before headers are
// committed so a collaborator call that fails to start yields a single JSON
// error instead of a truncated stream.
func (h *httpHandler) handleStream(c *gin.Context) {
	var request streamPayload
	if err := c.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.Body) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	ctx := c.Request.Context()
	source := h.generator.StreamGenerate(ctx, request.Body)

	first, err := source.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		h.logger.Error("text generation failed to start", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate response"})
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	writer := c.Writer
	writeChunk := func(chunk string) error {
		if _, writeErr := writer.WriteString(chunk); writeErr != nil {
			return writeErr
		}
		writer.Flush()
		return nil
	}

	if relayErr := relay.Run(ctx, relay.Prepend(first, source), writeChunk); relayErr != nil {
		// Headers are committed. Returning normally would close the chunked
		// body cleanly and the peer could not tell the truncated answer from
		// a complete one, so the connection is torn down instead and the
		// peer's read fails.
		h.logger.Error("stream relay aborted", zap.Error(relayErr))
		if conn, _, hijackErr := c.Writer.Hijack(); hijackErr == nil {
			conn.Close() //nolint:errcheck
		}
	}
}

// handleAudioTranscribe bridges an uploaded audio blob to the synchronous
// transcription collaborator. The upload lands in a uniquely named temporary
// file because the collaborator API consumes a file; the file is removed on
// every exit path.
func (h *httpHandler) handleAudioTranscribe(c *gin.Context) {
	fileHeader, err := c.FormFile("audio")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No audio file provided"})
		return
	}

	tempPath := filepath.Join(os.TempDir(), "portal-audio-"+uuid.NewString()+filepath.Ext(fileHeader.Filename))
	defer os.Remove(tempPath) //nolint:errcheck

	if err := c.SaveUploadedFile(fileHeader, tempPath); err != nil {
		h.logger.Error("failed to persist audio upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process audio"})
		return
	}

	text, err := h.transcriber.Transcribe(c.Request.Context(), tempPath)
	if err != nil {
		h.logger.Error("transcription failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transcribe audio"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"text": text})
}
