package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var (
	projectPath string
	logLevel    string
	logFormat   string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:     "swimlane",
	Version: Version,
	Short:   "A task board that groups work into columns and moves cards optimistically",
	Long: `Swimlane keeps a board of tasks grouped by status, assignee, project or date.
Moving a card shows the result at once, writes only the underlying field,
and lets the stored data have the final word.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger(logLevel, logFormat)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() error {
	err := RootCmd.Execute()
	if err != nil {
		reportError(RootCmd.ErrOrStderr(), err)
	}
	return err
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&projectPath, "project", "C", "", "Workspace directory (defaults to the current directory)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	RootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	RootCmd.SilenceErrors = true
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, NewCLIError(fmt.Sprintf("invalid log level %q", level), "Use debug, info, warn or error", err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, NewCLIError(fmt.Sprintf("invalid log format %q", format), "Use text or json", nil)
	}
}
