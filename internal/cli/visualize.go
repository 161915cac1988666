package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/orchestrator"
)

// NewVisualizeCommand creates the visualize command.
func NewVisualizeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visualize <textId> [outputDir]",
		Short: "Generate reports for a stored text",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runVisualize,
	}
	cmd.Flags().String("output-dir", "", "directory for report files (default: .)")
	addReportFlags(cmd)
	return cmd
}

// NewVisCommand creates the standalone reporting command used by
// textscope-vis. Misuse is reported as a usage error; see ExitCode.
func NewVisCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "textscope-vis <textId> [outputDir]",
		Short: "Generate reports for a stored text",
		Long: `Generate the word frequency chart, the token length distribution and the
word cloud for a text in the corpus. Reports are written to outputDir, or to
the configured output directory.`,
		Version: Version,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return usageError("expected <textId> [outputDir], got %d argument(s)", len(args))
			}
			if _, err := orchestrator.ParseTextID(args[0]); err != nil {
				return usageError("%v", err)
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return prepare(cmd)
		},
		RunE:          runVisualize,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})
	addCommonFlags(cmd)
	cmd.Flags().String("output-dir", "", "directory for report files (default: .)")
	addReportFlags(cmd)
	return cmd
}

func runVisualize(cmd *cobra.Command, args []string) error {
	a, err := appFrom(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	dir := a.cfg.OutputDir
	if len(args) == 2 {
		dir = args[1]
	}

	outcome, err := a.session.Visualize(cmd.Context(), args[0], dir)
	if err != nil {
		return err
	}
	printVisualizeOutcome(cmd.OutOrStdout(), outcome)
	return nil
}

func printVisualizeOutcome(w io.Writer, outcome orchestrator.Outcome) {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	for _, art := range outcome.Artifacts {
		green.Fprint(w, "  ✓ ")
		fmt.Fprintf(w, "%-20s %s\n", art.Kind, art.Path)
	}
	for _, warn := range outcome.Warnings {
		yellow.Fprint(w, "  ! ")
		fmt.Fprintf(w, "%-20s %v\n", warn.Kind, warn.Err)
	}
	fmt.Fprintf(w, "Reports for text %d: %d written, %d skipped\n", outcome.TextID, len(outcome.Artifacts), len(outcome.Warnings))
}

// ExitCode maps a textscope-vis error to its process exit status: 0 on
// success (including partial success), 2 on usage errors, 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage), errors.Is(err, internalerr.ErrInvalidIdentifier):
		return 2
	default:
		return 1
	}
}
