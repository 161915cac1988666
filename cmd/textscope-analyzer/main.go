// Command textscope-analyzer tokenizes the text on stdin, stores it in the
// corpus and prints the assigned text ID.
//
// Stdout carries the report read by textscope; its last line is
// "Analysis complete! Text ID: <n>". All rows are committed before that line
// is printed. Diagnostics go to stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/pflag"

	"github.com/cognicore/textscope/internal/cli"
	"github.com/cognicore/textscope/pkg/textscope/config"
	"github.com/cognicore/textscope/pkg/textscope/ingest"
	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("textscope-analyzer", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	cfgFile := flags.String("config", "", "config file (default: ./textscope.yaml)")
	flags.String("database", "", "path to the SQLite corpus (default: analysis.db)")
	flags.String("stoplist", "", "YAML stoplist (terms: [...])")
	flags.Bool("lowercase", false, "lowercase tokens")
	flags.BoolP("verbose", "v", false, "verbose output")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, _, err := config.Load(*cfgFile, flags)
	if err != nil {
		cli.PrintError(stderr, err)
		return 1
	}
	logger := cli.NewLogger(stderr, cfg.Verbose)

	if err := analyze(ctx, cfg, stdin, stdout); err != nil {
		logger.Debug("analysis failed", "error", err)
		cli.PrintError(stderr, err)
		return 1
	}
	return 0
}

func analyze(ctx context.Context, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	data, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if !utf8.Valid(data) {
		return fmt.Errorf("%w: input is not valid UTF-8", internalerr.ErrInvalidInput)
	}
	content := string(data)

	stopwords, err := cfg.Stopwords()
	if err != nil {
		return err
	}
	tokenizer := ingest.NewTokenizerWithOptions(ingest.Options{
		Stopwords:   stopwords,
		Lowercase:   cfg.Tokenizer.Lowercase,
		MaxTokens:   cfg.Tokenizer.MaxTokens,
		MaxTokenLen: cfg.Tokenizer.MaxTokenLen,
	})
	tokens := tokenizer.Tokenize(content)

	st, err := sqlite.OpenSQLite(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.InsertAnalysis(ctx, content, tokens, ingest.ComputeStats(tokens))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Found %d tokens:\n", len(tokens))
	for i, tok := range tokens {
		fmt.Fprintf(stdout, "%d: %s\n", i+1, tok)
	}
	fmt.Fprintf(stdout, "Analysis complete! Text ID: %d\n", id)
	return nil
}
