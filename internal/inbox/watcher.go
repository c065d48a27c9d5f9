package inbox

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/studytrack/internal/models"
)

// settleDelay lets editors finish writing before a note is imported.
const settleDelay = 200 * time.Millisecond

// EventCallback is called after a watcher-driven import.
type EventCallback func(path string, rec models.StudyRecord)

// Watch imports the notes already waiting in root, then watches root for new
// or rewritten .md files until ctx is cancelled. Subdirectories, including
// the imported and failed folders, are not watched.
func Watch(ctx context.Context, im *Importer, logger *slog.Logger, cb EventCallback) error {
	root := im.files.Root()
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(root); err != nil {
		return err
	}
	logger.Info("inbox: watching", slog.String("root", root))

	if n, err := im.Sync(ctx); err != nil {
		logger.Warn("inbox: initial sync failed", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("inbox: imported waiting notes", slog.Int("count", n))
	}

	// pending collects paths until the settle timer fires.
	pending := make(map[string]struct{})
	var settleTimer *time.Timer
	var settleCh <-chan time.Time

	scheduleSettle := func() {
		if settleTimer == nil {
			settleTimer = time.NewTimer(settleDelay)
			settleCh = settleTimer.C
		} else {
			settleTimer.Reset(settleDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if settleTimer != nil {
				settleTimer.Stop()
			}
			logger.Info("inbox: stopped")
			return nil

		case <-settleCh:
			for rel := range pending {
				rec, err := im.ImportFile(ctx, rel)
				switch {
				case errors.Is(err, fs.ErrNotExist):
					logger.Debug("inbox: note vanished", slog.String("path", rel))
				case err != nil:
					logger.Warn("inbox: import failed", slog.String("path", rel), slog.String("error", err.Error()))
				case cb != nil:
					cb(rel, rec)
				}
			}
			clear(pending)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil || strings.ContainsRune(rel, filepath.Separator) {
				continue
			}
			pending[rel] = struct{}{}
			scheduleSettle()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("inbox: watcher error", slog.String("error", watchErr.Error()))
		}
	}
}
