// Implements change notification for file-backed slots.

package slot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch reports slot names modified by external writers of a DirStore.
//
// The returned channel receives the name of each slot that is created,
// rewritten, or removed under the store's root, and is closed when ctx is
// cancelled. Temp files from in-flight writes are ignored. slotdb itself
// does not consume these events; every table operation re-reads its slot.
func Watch(ctx context.Context, store *DirStore, logger *slog.Logger) (<-chan string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(store.Root()); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", store.Root(), err)
	}

	changes := make(chan string)
	go func() {
		defer close(changes)
		defer func() { _ = w.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				name, ok := slotNameFromPath(event.Name)
				if !ok {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					select {
					case changes <- name:
					case <-ctx.Done():
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.WarnContext(ctx, "Error watching slot directory", "err", err)
			}
		}
	}()
	return changes, nil
}

// slotNameFromPath maps a file path back to a slot name.
// Returns false for temp files and anything that is not a slot file.
func slotNameFromPath(path string) (string, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, slotExt) {
		return "", false
	}
	name := strings.TrimSuffix(base, slotExt)
	if ValidateName(name) != nil {
		return "", false
	}
	return name, true
}
