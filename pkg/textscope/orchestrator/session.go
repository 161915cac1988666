// Package orchestrator drives analysis and visualization for one operator
// session.
//
// A Session owns the current text identifier and the last analyzer report.
// Intents are synchronous; while one is running the session is busy and
// rejects new intents with internalerr.ErrBusy instead of queueing them.
// The session lock is never held across the analyzer process or report
// generation, so Status and RefreshStatus stay responsive.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/textscope/internal/source"
	"github.com/cognicore/textscope/pkg/textscope/analyzer"
	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/report"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateAnalyzing
	StateAnalysisReady
	StateAnalysisFailed
	StateVisualizing
	StateVisualizeReady
	StateVisualizeFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnalyzing:
		return "analyzing"
	case StateAnalysisReady:
		return "analysis-ready"
	case StateAnalysisFailed:
		return "analysis-failed"
	case StateVisualizing:
		return "visualizing"
	case StateVisualizeReady:
		return "visualize-ready"
	case StateVisualizeFailed:
		return "visualize-failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Busy reports whether an intent is in flight.
func (s State) Busy() bool {
	return s == StateAnalyzing || s == StateVisualizing
}

// Analyzer runs one analysis of raw text.
type Analyzer interface {
	Analyze(ctx context.Context, rawText string) (analyzer.Result, error)
}

// ReportGenerator writes the report artifacts of a text.
type ReportGenerator interface {
	GenerateReports(ctx context.Context, textID int64, outputDir string) (report.Result, error)
}

// Options configures a Session.
type Options struct {
	Analyzer    Analyzer
	Store       store.Store
	Reports     ReportGenerator
	LatestLimit int
	RecentLimit int
	Logger      *slog.Logger
}

// View is a copy of the session fields shown to the operator.
type View struct {
	SessionID     string
	State         State
	CurrentTextID int64
	HasTextID     bool
	RawInput      string
	LastReport    string
	Status        string
}

// Outcome describes the result of one intent.
type Outcome struct {
	State     State
	TextID    int64
	Status    string
	Report    string
	Artifacts []report.Artifact
	Warnings  []report.Warning
}

// Snapshot is the corpus overview computed by RefreshStatus.
type Snapshot struct {
	TextCount  int64
	TokenCount int64
	Latest     []store.TextSummary
	Recent     []int64
	Dangling   []int64
	Stats      map[int64]store.TextStats
}

// Session serializes analysis and visualization intents.
type Session struct {
	id          string
	analyzer    Analyzer
	store       store.Store
	reports     ReportGenerator
	latestLimit int
	recentLimit int
	logger      *slog.Logger

	mu         sync.Mutex
	state      State
	currentID  int64
	hasID      bool
	rawInput   string
	lastReport string
	status     string
}

// NewSession creates an idle session.
func NewSession(opts Options) (*Session, error) {
	if opts.Analyzer == nil || opts.Store == nil || opts.Reports == nil {
		return nil, fmt.Errorf("%w: session needs an analyzer, a store and a report generator", internalerr.ErrInvalidInput)
	}
	if opts.LatestLimit <= 0 {
		opts.LatestLimit = store.DefaultLatestTexts
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = store.DefaultRecentIDs
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	id := ulid.Make().String()
	return &Session{
		id:          id,
		analyzer:    opts.Analyzer,
		store:       opts.Store,
		reports:     opts.Reports,
		latestLimit: opts.LatestLimit,
		recentLimit: opts.RecentLimit,
		logger:      logger.With("component", "orchestrator", "session", id),
		state:       StateIdle,
		status:      "Ready",
	}, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Status returns a copy of the session view.
func (s *Session) Status() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{
		SessionID:     s.id,
		State:         s.state,
		CurrentTextID: s.currentID,
		HasTextID:     s.hasID,
		RawInput:      s.rawInput,
		LastReport:    s.lastReport,
		Status:        s.status,
	}
}

// begin moves the session into a busy state.
func (s *Session) begin(next State, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return fmt.Errorf("%w: %s in progress", internalerr.ErrBusy, s.state)
	}
	s.state = next
	s.status = status
	return nil
}

// Analyze runs the analyzer on rawText. On success the extracted text id
// becomes the session's current id.
func (s *Session) Analyze(ctx context.Context, rawText string) (Outcome, error) {
	if strings.TrimSpace(rawText) == "" {
		return Outcome{State: s.Status().State}, internalerr.ErrEmptyInput
	}
	if err := s.begin(StateAnalyzing, "Analyzing..."); err != nil {
		return Outcome{State: s.Status().State}, err
	}
	s.mu.Lock()
	s.rawInput = rawText
	s.mu.Unlock()

	res, err := s.analyzer.Analyze(ctx, rawText)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = res.Report

	var extErr *analyzer.ExtractionError
	switch {
	case err == nil:
		s.state = StateAnalysisReady
		s.currentID = res.TextID
		s.hasID = true
		s.status = fmt.Sprintf("Analysis complete! Text ID: %d", res.TextID)
		s.logger.Info("analysis ready", "text_id", res.TextID)
	case errors.As(err, &extErr):
		s.state = StateAnalysisFailed
		s.status = "Analysis finished without a text ID. Analyzer output:\n" + extErr.Report
		s.logger.Warn("analysis produced no text id")
	default:
		s.state = StateAnalysisFailed
		s.status = "Analysis failed: " + err.Error()
		s.logger.Error("analysis failed", "error", err)
	}

	return Outcome{
		State:  s.state,
		TextID: res.TextID,
		Status: s.status,
		Report: res.Report,
	}, err
}

// AnalyzeInput analyzes the raw input previously loaded with LoadFile.
func (s *Session) AnalyzeInput(ctx context.Context) (Outcome, error) {
	return s.Analyze(ctx, s.Status().RawInput)
}

// ParseTextID parses an operator-supplied text identifier.
func ParseTextID(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty", internalerr.ErrInvalidIdentifier)
	}
	id, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", internalerr.ErrInvalidIdentifier, trimmed)
	}
	if id < 0 {
		return 0, fmt.Errorf("%w: %d is negative", internalerr.ErrInvalidIdentifier, id)
	}
	return id, nil
}

// Visualize parses textIDInput and generates the reports for that text.
// Invalid input fails before the store is consulted.
func (s *Session) Visualize(ctx context.Context, textIDInput, outputDir string) (Outcome, error) {
	id, err := ParseTextID(textIDInput)
	if err != nil {
		return Outcome{State: s.Status().State}, err
	}
	return s.VisualizeID(ctx, id, outputDir)
}

// VisualizeID generates the reports for id. A missing text fails with
// internalerr.ErrNotFound and nothing is written.
func (s *Session) VisualizeID(ctx context.Context, id int64, outputDir string) (Outcome, error) {
	if id < 0 {
		return Outcome{State: s.Status().State}, fmt.Errorf("%w: %d is negative", internalerr.ErrInvalidIdentifier, id)
	}
	if err := s.begin(StateVisualizing, fmt.Sprintf("Generating reports for text %d...", id)); err != nil {
		return Outcome{State: s.Status().State}, err
	}

	exists, err := s.store.TextExists(ctx, id)
	if err != nil {
		return s.finishVisualize(id, report.Result{}, err)
	}
	if !exists {
		return s.finishVisualize(id, report.Result{}, fmt.Errorf("%w: text %d", internalerr.ErrNotFound, id))
	}

	res, err := s.reports.GenerateReports(ctx, id, outputDir)
	return s.finishVisualize(id, res, err)
}

func (s *Session) finishVisualize(id int64, res report.Result, err error) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateVisualizeFailed
		s.status = "Visualization failed: " + err.Error()
		s.logger.Error("visualization failed", "text_id", id, "error", err)
		return Outcome{State: s.state, TextID: id, Status: s.status}, err
	}

	s.state = StateVisualizeReady
	s.status = summarize(id, res)
	s.logger.Info("visualization ready", "text_id", id, "artifacts", len(res.Artifacts), "warnings", len(res.Warnings))
	return Outcome{
		State:     s.state,
		TextID:    id,
		Status:    s.status,
		Artifacts: res.Artifacts,
		Warnings:  res.Warnings,
	}, nil
}

func summarize(id int64, res report.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reports for text %d: %d artifact(s), %d warning(s)", id, len(res.Artifacts), len(res.Warnings))
	for _, a := range res.Artifacts {
		fmt.Fprintf(&b, "\n  %s: %s", a.Kind, a.Path)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(&b, "\n  warning: %s", w.Error())
	}
	return b.String()
}

// RefreshStatus recomputes the corpus overview. It is allowed in any state
// and never changes it.
func (s *Session) RefreshStatus(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	var err error

	if snap.TextCount, err = s.store.CountTexts(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.TokenCount, err = s.store.CountTokens(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Latest, err = s.store.LatestTexts(ctx, s.latestLimit); err != nil {
		return Snapshot{}, err
	}
	if snap.Recent, err = s.store.RecentIDs(ctx, s.recentLimit); err != nil {
		return Snapshot{}, err
	}
	if snap.Dangling, err = s.store.DanglingTextIDs(ctx); err != nil {
		return Snapshot{}, err
	}

	snap.Stats = make(map[int64]store.TextStats, len(snap.Latest))
	for _, t := range snap.Latest {
		st, ok, err := s.store.TextStats(ctx, t.ID)
		if err != nil {
			return Snapshot{}, err
		}
		if ok {
			snap.Stats[t.ID] = st
		}
	}

	if len(snap.Dangling) > 0 {
		s.logger.Warn("tokens reference missing texts", "text_ids", snap.Dangling)
	}
	return snap, nil
}

// LoadFile replaces the raw input with the text of path.
func (s *Session) LoadFile(path string) error {
	s.mu.Lock()
	busy := s.state.Busy()
	s.mu.Unlock()
	if busy {
		return fmt.Errorf("%w: cannot load while busy", internalerr.ErrBusy)
	}

	text, err := source.LoadText(path, s.logger)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return fmt.Errorf("%w: cannot load while busy", internalerr.ErrBusy)
	}
	s.rawInput = text
	s.status = fmt.Sprintf("Loaded %s", path)
	return nil
}

// Clear drops the raw input and last report and returns to Idle. The
// current text id is kept.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Busy() {
		return fmt.Errorf("%w: cannot clear while busy", internalerr.ErrBusy)
	}
	s.rawInput = ""
	s.lastReport = ""
	s.state = StateIdle
	s.status = "Ready"
	return nil
}
