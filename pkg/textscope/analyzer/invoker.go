// Package analyzer runs the external text analyzer and reads the identifier
// it assigns out of its report.
//
// The analyzer process owns all writes to the corpus. The contract with it
// is that every row of the analyzed text is committed before the process
// prints its "Text ID:" line and exits, so reads issued after Analyze
// returns see the complete text.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

// DefaultCommand is the analyzer executable looked up on PATH when none is
// configured.
const DefaultCommand = "textscope-analyzer"

// Invoker spawns one analyzer process per Analyze call.
type Invoker struct {
	Command string
	Args    []string
	Dir     string   // working directory; empty means the caller's
	Env     []string // nil inherits the caller's environment

	// WaitDelay bounds how long Analyze waits for the process's output pipes
	// to close after ctx ends and the process is killed.
	WaitDelay time.Duration

	Logger *slog.Logger
}

// Result is what one analyzer run produced. Report is the full stdout.
type Result struct {
	TextID   int64
	Report   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// NewInvoker returns an invoker for the given command.
func NewInvoker(command string, args ...string) *Invoker {
	if command == "" {
		command = DefaultCommand
	}
	return &Invoker{
		Command:   command,
		Args:      args,
		WaitDelay: 2 * time.Second,
	}
}

// Analyze feeds rawText to the analyzer on stdin, waits for it to exit and
// extracts the assigned text id from its report.
//
// Blank input fails with internalerr.ErrEmptyInput before anything is
// spawned. On *ExtractionError the returned Result still carries the report.
// There is no built-in timeout; ctx cancellation kills the process and is
// reported as internalerr.ErrProcessLaunch. Nothing is retried.
func (inv *Invoker) Analyze(ctx context.Context, rawText string) (Result, error) {
	if strings.TrimSpace(rawText) == "" {
		return Result{}, internalerr.ErrEmptyInput
	}
	logger := inv.logger()

	cmd := exec.CommandContext(ctx, inv.Command, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env
	cmd.WaitDelay = inv.WaitDelay
	cmd.Stdin = strings.NewReader(rawText)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("starting analyzer", "command", inv.Command, "bytes", len(rawText))
	start := time.Now()
	err := cmd.Run()

	res := Result{
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("%w: %s: %w", internalerr.ErrProcessLaunch, inv.Command, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return res, fmt.Errorf("%w: %s: %w", internalerr.ErrProcessLaunch, inv.Command, err)
		}
		// exit status is not part of the protocol
		logger.Debug("analyzer exited with non-zero status", "exit_code", res.ExitCode)
	}

	out := stdout.Bytes()
	if !utf8.Valid(out) {
		res.Report = strings.ToValidUTF8(string(out), "�")
		return res, internalerr.ErrEncoding
	}
	res.Report = string(out)

	id, err := ExtractTextID(res.Report)
	if err != nil {
		logger.Warn("analyzer report has no text id", "exit_code", res.ExitCode)
		return res, err
	}
	res.TextID = id

	logger.Info("analysis complete", "text_id", id, "duration", res.Duration)
	return res, nil
}

func (inv *Invoker) logger() *slog.Logger {
	if inv.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return inv.Logger.With("component", "analyzer")
}
