// Package inbox imports Markdown study notes dropped into a directory as
// study records.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/starford/studytrack/internal/apperr"
	"github.com/starford/studytrack/internal/models"
	"github.com/starford/studytrack/internal/parser"
	"github.com/starford/studytrack/internal/storage"
	"github.com/starford/studytrack/internal/store"
)

// Subdirectories of the inbox root that imported and rejected notes are moved to.
const (
	ImportedDir = "imported"
	FailedDir   = "failed"
)

// Importer turns inbox files into study records.
type Importer struct {
	files   storage.Provider
	records *store.StudyRecords
	types   *store.LearningTypes
	logger  *slog.Logger

	mu sync.Mutex
}

// NewImporter returns an importer reading from fs and writing through the stores.
func NewImporter(files storage.Provider, records *store.StudyRecords, types *store.LearningTypes, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{files: files, records: records, types: types, logger: logger.With(slog.String("component", "inbox"))}
}

// ImportFile imports the note at rel and moves it under ImportedDir. A note
// that cannot be parsed or is rejected by the backend is moved under
// FailedDir. A successful import removes an earlier failed copy of the same
// name. A file that no longer exists yields fs.ErrNotExist.
func (im *Importer) ImportFile(ctx context.Context, rel string) (models.StudyRecord, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := im.files.Read(rel)
	if err != nil {
		return models.StudyRecord{}, err
	}
	rec, err := im.create(ctx, data)
	if err != nil {
		im.park(rel, FailedDir)
		return rec, fmt.Errorf("inbox: import %s: %w", rel, err)
	}
	im.park(rel, ImportedDir)
	im.clearFailed(path.Base(rel))
	im.logger.Info("note imported", slog.String("path", rel), slog.Int64("record_id", rec.ID))
	return rec, nil
}

// ImportBytes imports an uploaded note and files it directly under ImportedDir as name.
func (im *Importer) ImportBytes(ctx context.Context, name string, data []byte) (models.StudyRecord, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	rec, err := im.create(ctx, data)
	if err != nil {
		return rec, err
	}
	if err := im.files.Write(path.Join(ImportedDir, fmt.Sprintf("%d-%s", rec.ID, name)), data); err != nil {
		im.logger.Warn("keep uploaded note", slog.String("name", name), slog.String("error", err.Error()))
	}
	im.clearFailed(name)
	im.logger.Info("note uploaded", slog.String("name", name), slog.Int64("record_id", rec.ID))
	return rec, nil
}

// Sync imports every note currently waiting in the inbox root and returns how
// many were imported. Individual failures are logged.
func (im *Importer) Sync(ctx context.Context) (int, error) {
	waiting, err := im.files.List("")
	if err != nil {
		return 0, err
	}
	n := 0
	for _, f := range waiting {
		if ctx.Err() != nil {
			return n, ctx.Err()
		}
		if _, err := im.ImportFile(ctx, f.Path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				im.logger.Warn("import failed", slog.String("path", f.Path), slog.String("error", err.Error()))
			}
			continue
		}
		n++
	}
	return n, nil
}

func (im *Importer) create(ctx context.Context, data []byte) (models.StudyRecord, error) {
	note, err := parser.Parse(data)
	if err != nil {
		return models.StudyRecord{}, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err)
	}
	if note.Title == "" {
		return models.StudyRecord{}, fmt.Errorf("%w: note has no title", apperr.ErrInvalidInput)
	}

	in := models.StudyRecordInput{
		Title:          note.Title,
		Description:    note.Description,
		Link:           note.Link,
		LearningTypeID: note.LearningTypeID,
		ReviewStatus:   note.ReviewStatus,
	}
	if in.LearningTypeID == nil && note.LearningType != "" {
		id, err := im.resolveType(ctx, note.LearningType)
		if err != nil {
			return models.StudyRecord{}, err
		}
		in.LearningTypeID = &id
	}
	return im.records.Create(ctx, in)
}

// resolveType finds the learning type named name, case-insensitively,
// creating it when absent.
func (im *Importer) resolveType(ctx context.Context, name string) (int64, error) {
	find := func() (int64, bool) {
		for _, t := range im.types.Items() {
			if strings.EqualFold(t.Name, name) {
				return t.ID, true
			}
		}
		return 0, false
	}
	if id, ok := find(); ok {
		return id, nil
	}
	if err := im.types.FetchAll(ctx); err != nil {
		return 0, err
	}
	if id, ok := find(); ok {
		return id, nil
	}
	t, err := im.types.Create(ctx, models.LearningTypeInput{Name: name})
	if err != nil {
		return 0, err
	}
	im.logger.Info("learning type created from note", slog.String("name", name), slog.Int64("id", t.ID))
	return t.ID, nil
}

func (im *Importer) park(rel, dir string) {
	dst, err := im.files.Move(rel, path.Join(dir, path.Base(rel)))
	if err != nil {
		im.logger.Warn("move note", slog.String("path", rel), slog.String("to", dir), slog.String("error", err.Error()))
		return
	}
	im.logger.Debug("note moved", slog.String("path", rel), slog.String("to", dst))
}

// clearFailed removes FailedDir/name once a note of that name was imported.
func (im *Importer) clearFailed(name string) {
	err := im.files.Delete(path.Join(FailedDir, name))
	switch {
	case err == nil:
		im.logger.Debug("stale failed note removed", slog.String("name", name))
	case !errors.Is(err, fs.ErrNotExist):
		im.logger.Warn("remove failed note", slog.String("name", name), slog.String("error", err.Error()))
	}
}
