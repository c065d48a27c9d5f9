package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/inbox"
)

const maxUploadBytes = 5 << 20 // 5 MB

// UploadHandler accepts Markdown notes and imports them as study records.
type UploadHandler struct {
	importer *inbox.Importer
	logger   *slog.Logger
}

// NewUploadHandler creates a handler importing through im.
func NewUploadHandler(im *inbox.Importer, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{importer: im, logger: logger}
}

// safeName validates that the filename is a plain .md name (no path
// separators, no traversal).
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: filename is required", apperr.ErrInvalidInput)
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(cleaned, `/\`) {
		return "", fmt.Errorf("%w: invalid filename: %s", apperr.ErrInvalidInput, name)
	}
	if !strings.EqualFold(filepath.Ext(cleaned), ".md") {
		return "", fmt.Errorf("%w: only .md notes are accepted", apperr.ErrInvalidInput)
	}
	return cleaned, nil
}

// Upload handles POST /api/inbox (multipart/form-data, field "file").
//
//	@Summary	Import a Markdown note as a study record
//	@Tags		inbox
//	@Accept		multipart/form-data
//	@Param		file	formData	file	true	"Markdown note"
//	@Success	201		{object}	UploadResponse
//	@Failure	400		{object}	errResponse
//	@Router		/inbox [post]
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeError(w, h.logger, "upload note", err)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	rec, err := h.importer.ImportBytes(r.Context(), name, data)
	if err != nil {
		writeError(w, h.logger, "upload note", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{Filename: name, Record: rec})
}
