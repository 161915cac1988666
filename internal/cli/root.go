// Package cli provides the command-line interface for textscope.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognicore/textscope/pkg/textscope/config"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// appKey is used to store the wired application in the command context.
type appKey struct{}

var cfgFile string

// NewRootCmd creates the textscope root command.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "textscope",
		Short: "textscope - text analysis and reporting",
		Long: `textscope sends text to an external analyzer, keeps the tokens it
produces in a SQLite corpus and renders frequency charts, length
distributions and word clouds for any stored text.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			return prepare(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	addCommonFlags(rootCmd)

	rootCmd.AddCommand(NewAnalyzeCommand())
	rootCmd.AddCommand(NewVisualizeCommand())
	rootCmd.AddCommand(NewStatusCommand())

	return rootCmd
}

// prepare loads the configuration and stores the wired application in the
// command context.
func prepare(cmd *cobra.Command) error {
	cfg, used, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	logger := NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	if used != "" {
		logger.Debug("using config file", "path", used)
	}

	a, err := newApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
	return nil
}

// addCommonFlags registers the persistent flags shared by every entry point.
func addCommonFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./textscope.yaml)")
	cmd.PersistentFlags().String("database", "", "path to the SQLite corpus (default: analysis.db)")
	cmd.PersistentFlags().String("analyzer", "", "analyzer executable (default: textscope-analyzer)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
}

// addReportFlags registers the flags that shape report generation.
func addReportFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "", "chart format (png|svg)")
	cmd.Flags().Bool("summary", false, "also write an HTML summary page")
	cmd.Flags().Bool("wordcloud", true, "render the word cloud")
	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"png", "svg"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// appFrom returns the application wired by PersistentPreRunE.
func appFrom(cmd *cobra.Command) (*app, error) {
	if cmd.Context() != nil {
		if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
			return a, nil
		}
	}
	return nil, errors.New("application not initialized")
}

// NewLogger returns a text logger on w; verbose enables debug records.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// PrintError writes err to stderr in red.
func PrintError(w io.Writer, err error) {
	red := color.New(color.FgRed)
	red.Fprintf(w, "Error: %v\n", err)
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	rootCmd := NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		PrintError(os.Stderr, err)
		return err
	}
	return nil
}

// errUsage marks command-line misuse.
var errUsage = errors.New("usage")

func usageError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}
