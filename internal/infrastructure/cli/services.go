package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/wiring"
)

// loadServices wires the workspace under root and loads the board. The
// caller must Close the result.
func loadServices(ctx context.Context, root string, opts wiring.BuildOptions) (*wiring.AppServices, error) {
	services, err := wiring.BuildAppServices(root, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	if !services.Workspace.Repo.IsInitialized() {
		services.Close()
		return nil, ErrNotInitialized
	}
	if err := services.Board.Load(ctx); err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to load board: %w", err)
	}
	return services, nil
}

func getProjectRoot() (string, error) {
	if projectPath != "" {
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			return "", fmt.Errorf("invalid project path %q: %w", projectPath, err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("project path %q: %w", abs, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("project path %q is not a directory", abs)
		}
		return abs, nil
	}
	return os.Getwd()
}

func loadServicesForCurrentDir(ctx context.Context, opts wiring.BuildOptions) (*wiring.AppServices, error) {
	root, err := getProjectRoot()
	if err != nil {
		return nil, err
	}
	return loadServices(ctx, root, opts)
}
