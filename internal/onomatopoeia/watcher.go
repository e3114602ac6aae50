package onomatopoeia

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the lexicon whenever the YAML file at path changes. A reload
// that fails validation is logged and skipped so a half-edited file never
// replaces a working lexicon. Watch blocks until ctx is done; run it in its
// own goroutine.
func (e *Engine) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors typically replace files via rename, which
	// drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			lx, err := LoadLexicon(path)
			if err != nil {
				slog.Warn("lexicon reload failed, keeping previous", "path", path, "err", err)
				continue
			}
			if err := e.SetLexicon(lx); err != nil {
				slog.Warn("lexicon rejected, keeping previous", "path", path, "err", err)
				continue
			}
			slog.Info("lexicon reloaded", "path", path, "entries", len(lx))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("lexicon watcher error", "err", err)
		}
	}
}
