// Package streaming serves media files with range support.
package streaming

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"mediashare/internal/media"
	"mediashare/internal/metrics"
)

type Handler struct {
	logger zerolog.Logger
}

func NewHandler(logger zerolog.Logger) *Handler {
	return &Handler{logger: logger}
}

// ServeFile writes filePath honouring Range and conditional headers.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) {
	file, err := os.Open(filePath)
	if err != nil {
		h.logger.Debug().Err(err).Str("path", filePath).Msg("open media file")
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		http.Error(w, "Cannot read file", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", media.GetContentType(filePath))
	w.Header().Set("Accept-Ranges", "bytes")

	cw := &countingWriter{ResponseWriter: w}
	http.ServeContent(cw, r, filepath.Base(filePath), stat.ModTime(), file)
	metrics.BytesStreamed.Add(float64(cw.n))
}

type countingWriter struct {
	http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.ResponseWriter.Write(p)
	c.n += int64(n)
	return n, err
}
