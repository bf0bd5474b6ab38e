package wiring

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/domain/events"
	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

// BuildOptions customises service construction.
type BuildOptions struct {
	Actor     string
	Logger    *slog.Logger
	OnFailure func(board.PendingMove, error)
}

// AppServices exposes the application layer services wired together with a
// workspace.
type AppServices struct {
	Workspace  *Workspace
	Dispatcher *events.EventDispatcher
	Init       *application.InitService
	Board      *application.BoardService
	History    *application.HistoryService
	Webhooks   *webhook.Notifier
	DeadLetter *webhook.DeadLetterStore

	unsubscribe func()
}

// BuildAppServices wires the board pipeline for root: move events are
// audited to the event log and published, and change notifications from the
// publisher trigger refetches. The board is not loaded.
func BuildAppServices(root string, opts BuildOptions) (*AppServices, error) {
	workspace, err := NewWorkspace(root, opts.Logger)
	if err != nil {
		return nil, err
	}
	cfg := workspace.Config
	field, err := cfg.Field()
	if err != nil {
		return nil, err
	}

	dispatcher := events.NewEventDispatcher()
	dispatcher.ContinueOnError = true
	events.NewAuditHandler(workspace.Events, workspace.Logger).Register(dispatcher)
	events.NewPublishHandler(workspace.Publisher, workspace.Logger).Register(dispatcher)

	deadLetter := webhook.NewDeadLetterStore(filepath.Join(workspace.Repo.Dir(), storage.DeadLettersFile))
	var notifier *webhook.Notifier
	if len(cfg.Webhooks) > 0 {
		notifier = webhook.NewNotifier(cfg.Webhooks, deadLetter, workspace.Logger)
		notifier.Register(dispatcher)
	}

	store := application.NewStore(board.NewState(field, nil))
	boardSvc, err := application.NewBoardService(store, workspace.Repo, workspace.Repo, workspace.Repo, dispatcher, application.Options{
		Query:            board.Query{PageSize: cfg.PageSize},
		GatewayTimeout:   cfg.GatewayTimeout,
		ReconcileTimeout: cfg.ReconcileTimeout,
		Actor:            opts.Actor,
		Logger:           workspace.Logger,
		OnFailure:        opts.OnFailure,
	})
	if err != nil {
		return nil, fmt.Errorf("build board service: %w", err)
	}

	history, err := application.NewHistoryService(workspace.Events, workspace.Publisher)
	if err != nil {
		return nil, fmt.Errorf("build history service: %w", err)
	}

	return &AppServices{
		Workspace:   workspace,
		Dispatcher:  dispatcher,
		Init:        application.NewInitService(workspace.Repo),
		Board:       boardSvc,
		History:     history,
		Webhooks:    notifier,
		DeadLetter:  deadLetter,
		unsubscribe: workspace.Publisher.Subscribe(boardSvc.HandleChange),
	}, nil
}

// Close stops following changes and waits for in-flight moves and webhook
// deliveries.
func (s *AppServices) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.Board.Close()
	s.History.Close()
	if s.Webhooks != nil {
		s.Webhooks.Wait()
	}
}
