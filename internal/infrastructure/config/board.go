// Package config loads the board configuration of a workspace.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/swimlane/pkg/domain/board"
	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

const (
	DefaultPageSize         = 50
	DefaultGatewayTimeout   = 5 * time.Second
	DefaultReconcileTimeout = 10 * time.Second
	DefaultWatchDebounce    = 250 * time.Millisecond
	DefaultAddr             = ":8080"
)

// BoardConfig holds the tunables of a board workspace.
type BoardConfig struct {
	GroupBy          string        `yaml:"group_by"`
	PageSize         int           `yaml:"page_size"`
	GatewayTimeout   time.Duration `yaml:"gateway_timeout"`
	ReconcileTimeout time.Duration `yaml:"reconcile_timeout"`
	WatchDebounce    time.Duration `yaml:"watch_debounce"`
	Addr             string        `yaml:"addr"`

	Webhooks []webhook.Endpoint `yaml:"webhooks,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() BoardConfig {
	return BoardConfig{
		GroupBy:          string(board.FieldStatus),
		PageSize:         DefaultPageSize,
		GatewayTimeout:   DefaultGatewayTimeout,
		ReconcileTimeout: DefaultReconcileTimeout,
		WatchDebounce:    DefaultWatchDebounce,
		Addr:             DefaultAddr,
	}
}

// Field returns the parsed grouping field.
func (c BoardConfig) Field() (board.Field, error) {
	return board.ParseField(c.GroupBy)
}

// Validate rejects unknown fields and negative sizes or durations.
func (c BoardConfig) Validate() error {
	if _, err := c.Field(); err != nil {
		return fmt.Errorf("group_by: %w", err)
	}
	if c.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative, got %d", c.PageSize)
	}
	for name, d := range map[string]time.Duration{
		"gateway_timeout":   c.GatewayTimeout,
		"reconcile_timeout": c.ReconcileTimeout,
		"watch_debounce":    c.WatchDebounce,
	} {
		if d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, d)
		}
	}
	for i, ep := range c.Webhooks {
		if ep.URL == "" {
			return fmt.Errorf("webhooks[%d]: url is required", i)
		}
	}
	return nil
}

// withDefaults fills zero values.
func (c BoardConfig) withDefaults() BoardConfig {
	def := Default()
	if c.GroupBy == "" {
		c.GroupBy = def.GroupBy
	}
	if c.PageSize == 0 {
		c.PageSize = def.PageSize
	}
	if c.GatewayTimeout == 0 {
		c.GatewayTimeout = def.GatewayTimeout
	}
	if c.ReconcileTimeout == 0 {
		c.ReconcileTimeout = def.ReconcileTimeout
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = def.WatchDebounce
	}
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	return c
}

// LoadBoardConfig reads .swimlane/config.yaml under root. A missing file
// yields the defaults.
func LoadBoardConfig(root string) (BoardConfig, error) {
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return BoardConfig{}, err
	}

	// #nosec G304 -- Path is resolved and validated via ResolvePath
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return BoardConfig{}, fmt.Errorf("failed to read board config: %w", err)
	}

	var cfg BoardConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return BoardConfig{}, fmt.Errorf("failed to unmarshal board config: %w", err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return BoardConfig{}, fmt.Errorf("invalid board config: %w", err)
	}
	return cfg, nil
}

// SaveBoardConfig writes cfg to .swimlane/config.yaml under root.
func SaveBoardConfig(root string, cfg BoardConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	repo := storage.NewFilesystemRepository(root)
	path, err := repo.ResolvePath(storage.ConfigFile)
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal board config: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
