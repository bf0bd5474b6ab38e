package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
)

// Source is recorded on the notifications the watcher publishes.
const Source = "watch"

// WorkspaceWatcher publishes a change notification whenever a workspace data
// file is edited, whoever edits it.
type WorkspaceWatcher struct {
	watcher   *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	filter    *PatternFilter
	publisher events.EventPublisher
	logger    *slog.Logger
}

// NewWorkspaceWatcher watches dir, which must exist. The directory itself is
// watched rather than the files so that atomic replace-by-rename is seen.
func NewWorkspaceWatcher(dir string, debounce time.Duration, publisher events.EventPublisher, logger *slog.Logger) (*WorkspaceWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceWatcher{
		watcher:   w,
		dir:       dir,
		debounce:  debounce,
		filter:    DefaultFilter(),
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Run starts the event loop. It blocks until the context is cancelled.
func (w *WorkspaceWatcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	debouncer := NewDebouncer(w.debounce, func(key string) {
		w.notify(Kind(key))
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(event.Op) {
				continue
			}
			kind, ok := w.filter.Classify(event.Name)
			if !ok {
				continue
			}
			w.logger.Debug("workspace file changed", "path", event.Name, "op", event.Op.String())
			debouncer.Trigger(string(kind))

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (w *WorkspaceWatcher) notify(kind Kind) {
	var e *events.BaseEvent
	switch kind {
	case KindRecords:
		e = events.NewRecordChangedEvent("", Source)
	case KindMetadata:
		e = events.NewMetadataChangedEvent(Source)
	default:
		return
	}
	if err := w.publisher.Publish(e); err != nil {
		w.logger.Warn("failed to publish change", "kind", string(kind), "error", err)
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Create) || op.Has(fsnotify.Write) || op.Has(fsnotify.Rename) || op.Has(fsnotify.Remove)
}
