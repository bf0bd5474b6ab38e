package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/swimlane/internal/infrastructure/config"
	"github.com/felixgeelhaar/swimlane/pkg/application"
	"github.com/felixgeelhaar/swimlane/pkg/storage"
)

var (
	initSample  bool
	initGroupBy string
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new swimlane workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := getProjectRoot()
		if err != nil {
			return err
		}

		cfg := config.Default()
		if initGroupBy != "" {
			cfg.GroupBy = initGroupBy
		}
		if _, err := cfg.Field(); err != nil {
			return MapError(err)
		}

		repo := storage.NewFilesystemRepository(root)
		if err := application.NewInitService(repo).Initialize(initSample); err != nil {
			return MapError(fmt.Errorf("failed to initialize workspace: %w", err))
		}
		if err := config.SaveBoardConfig(root, cfg); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}

		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Initialized swimlane workspace in %s\n", repo.Dir())
		if initSample {
			_, _ = fmt.Fprintf(out, "Added %d sample records grouped by %s\n", len(application.SampleRecords()), cfg.GroupBy)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initSample, "sample", false, "Seed the workspace with sample records and metadata")
	initCmd.Flags().StringVar(&initGroupBy, "group-by", "", "Initial grouping field (status, assignee, project, delivery_date, due_date)")
	RootCmd.AddCommand(initCmd)
}
