// Package wiring assembles a workspace's storage, event plumbing and
// services.
package wiring

import (
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/config"
	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

// Workspace bundles core infrastructure dependencies.
type Workspace struct {
	Root      string
	Config    config.BoardConfig
	Repo      *storage.FilesystemRepository
	Publisher *storage.InMemoryEventPublisher
	Events    *storage.FileEventStore
	Logger    *slog.Logger
}

// NewWorkspace opens the workspace under root. The repository notifies the
// shared publisher of every write it makes.
func NewWorkspace(root string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := config.LoadBoardConfig(root)
	if err != nil {
		return nil, err
	}

	publisher := storage.NewInMemoryEventPublisher(logger)
	repo := storage.NewFilesystemRepository(root, storage.WithPublisher(publisher), storage.WithLogger(logger))
	store, err := storage.NewFileEventStore(repo.Dir())
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	return &Workspace{
		Root:      root,
		Config:    cfg,
		Repo:      repo,
		Publisher: publisher,
		Events:    store,
		Logger:    logger,
	}, nil
}
