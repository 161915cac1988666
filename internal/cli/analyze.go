package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

// NewAnalyzeCommand creates the analyze command.
func NewAnalyzeCommand() *cobra.Command {
	var visualize bool

	cmd := &cobra.Command{
		Use:   "analyze [file]",
		Short: "Analyze text from a file or stdin",
		Long: `Send text to the analyzer and store its tokens.

The text is read from the given file (.html and .jsonl files are reduced to
their text) or from stdin when no file is given. The analyzer assigns a text
ID, which is printed on success.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 1 {
				if err := a.session.LoadFile(args[0]); err != nil {
					return err
				}
			} else {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				if !utf8.Valid(data) {
					return fmt.Errorf("%w: stdin is not valid UTF-8", internalerr.ErrInvalidInput)
				}
				if _, err := a.session.Analyze(cmd.Context(), string(data)); err != nil {
					printAnalyzeFailure(cmd.OutOrStdout(), a.session.Status().LastReport)
					return err
				}
				return finishAnalyze(cmd, a, visualize)
			}

			if _, err := a.session.AnalyzeInput(cmd.Context()); err != nil {
				printAnalyzeFailure(cmd.OutOrStdout(), a.session.Status().LastReport)
				return err
			}
			return finishAnalyze(cmd, a, visualize)
		},
	}

	cmd.Flags().BoolVar(&visualize, "visualize", false, "generate reports for the new text")
	cmd.Flags().String("output-dir", "", "directory for report files (default: .)")
	addReportFlags(cmd)

	return cmd
}

func printAnalyzeFailure(w io.Writer, report string) {
	if report == "" {
		return
	}
	fmt.Fprintln(w, "Analyzer output:")
	fmt.Fprint(w, report)
}

func finishAnalyze(cmd *cobra.Command, a *app, visualize bool) error {
	out := cmd.OutOrStdout()
	view := a.session.Status()

	fmt.Fprint(out, view.LastReport)
	if lastLine(view.LastReport) != view.Status {
		green := color.New(color.FgGreen)
		green.Fprintln(out, view.Status)
	}

	if !visualize {
		return nil
	}
	outcome, err := a.session.VisualizeID(cmd.Context(), view.CurrentTextID, a.cfg.OutputDir)
	if err != nil {
		return err
	}
	printVisualizeOutcome(out, outcome)
	return nil
}

// lastLine returns the last non-blank line of s, trimmed.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, " \t\r\n"), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
