// Package report derives chart artifacts for a stored text.
//
// Each report step runs independently: a failing step is recorded as a
// Warning and never prevents the others from producing their artifact.
// Only failure to create the output directory aborts generation.
package report

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
	"github.com/cognicore/textscope/pkg/textscope/store"
)

// ErrCloudUnavailable is reported when no word-cloud engine is configured.
var ErrCloudUnavailable = errors.New("report: word cloud engine unavailable")

// Kind identifies a report artifact.
type Kind int

const (
	KindWordFrequency Kind = iota
	KindLengthDistribution
	KindWordCloud
	KindSummary
)

func (k Kind) String() string {
	switch k {
	case KindWordFrequency:
		return "word-frequency"
	case KindLengthDistribution:
		return "length-distribution"
	case KindWordCloud:
		return "word-cloud"
	case KindSummary:
		return "summary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Artifact is a file written by a report step.
type Artifact struct {
	Kind   Kind
	TextID int64
	Path   string
}

// Warning records a step that produced no artifact.
type Warning struct {
	Kind Kind
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("%s: %v", w.Kind, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Result lists the artifacts in kind order and the per-step warnings.
type Result struct {
	RunID     string
	TextID    int64
	OutputDir string
	Artifacts []Artifact
	Warnings  []Warning
}

// Renderer draws the frequency and length charts.
type Renderer interface {
	Extension() string
	BarChart(w io.Writer, title string, bars []store.TokenCount) error
	LineChart(w io.Writer, title string, buckets []store.LengthBucket) error
}

// CloudEngine lays out a word cloud from token frequencies.
type CloudEngine interface {
	Extension() string
	Render(w io.Writer, freqs map[string]int64) error
}

// Options configures a Generator.
type Options struct {
	Renderer  Renderer
	Cloud     CloudEngine // nil reports ErrCloudUnavailable
	TopTokens int
	Summary   bool
	Logger    *slog.Logger
}

// Generator produces report artifacts from a store.
type Generator struct {
	store     store.Store
	renderer  Renderer
	cloud     CloudEngine
	topTokens int
	summary   bool
	logger    *slog.Logger

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewGenerator creates a generator reading from st.
func NewGenerator(st store.Store, opts Options) (*Generator, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", internalerr.ErrInvalidInput)
	}
	if opts.Renderer == nil {
		return nil, fmt.Errorf("%w: nil renderer", internalerr.ErrInvalidInput)
	}
	if opts.TopTokens <= 0 {
		opts.TopTokens = store.DefaultTopTokens
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Generator{
		store:     st,
		renderer:  opts.Renderer,
		cloud:     opts.Cloud,
		topTokens: opts.TopTokens,
		summary:   opts.Summary,
		logger:    logger.With("component", "report"),
		entropy:   ulid.Monotonic(rand.Reader, 0),
	}, nil
}

// ArtifactName returns the file name used for kind and textID.
func ArtifactName(kind Kind, textID int64, ext string) string {
	switch kind {
	case KindWordFrequency:
		return fmt.Sprintf("word_frequency_%d.%s", textID, ext)
	case KindLengthDistribution:
		return fmt.Sprintf("token_length_distribution_%d.%s", textID, ext)
	case KindWordCloud:
		return fmt.Sprintf("word_cloud_%d.%s", textID, ext)
	case KindSummary:
		return fmt.Sprintf("report_%d.html", textID)
	default:
		return fmt.Sprintf("artifact_%d.%s", textID, ext)
	}
}

type stepResult struct {
	artifact *Artifact
	err      error
}

// GenerateReports writes the artifacts for textID into outputDir, which is
// created if missing. The caller checks that the text exists.
func (g *Generator) GenerateReports(ctx context.Context, textID int64, outputDir string) (Result, error) {
	if outputDir == "" {
		outputDir = "."
	}
	res := Result{RunID: g.newRunID(), TextID: textID, OutputDir: outputDir}
	log := g.logger.With("run", res.RunID, "text_id", textID)

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return res, fmt.Errorf("%w: %s: %w", internalerr.ErrOutputDirectory, outputDir, err)
	}

	steps := []struct {
		kind Kind
		run  func(context.Context) (string, error)
	}{
		{KindWordFrequency, func(ctx context.Context) (string, error) { return g.wordFrequency(ctx, textID, outputDir) }},
		{KindLengthDistribution, func(ctx context.Context) (string, error) { return g.lengthDistribution(ctx, textID, outputDir) }},
		{KindWordCloud, func(ctx context.Context) (string, error) { return g.wordCloud(ctx, textID, outputDir) }},
	}

	results := make([]stepResult, len(steps))
	var eg errgroup.Group
	for i, step := range steps {
		eg.Go(func() error {
			path, err := step.run(ctx)
			if err != nil {
				results[i] = stepResult{err: err}
				return nil
			}
			results[i] = stepResult{artifact: &Artifact{Kind: step.kind, TextID: textID, Path: path}}
			return nil
		})
	}
	_ = eg.Wait()

	for i, r := range results {
		if r.err != nil {
			log.Warn("report step failed", "kind", steps[i].kind.String(), "error", r.err)
			res.Warnings = append(res.Warnings, Warning{Kind: steps[i].kind, Err: r.err})
			continue
		}
		res.Artifacts = append(res.Artifacts, *r.artifact)
	}

	if g.summary {
		path, err := g.writeSummary(ctx, textID, outputDir, res.Artifacts)
		if err != nil {
			log.Warn("report step failed", "kind", KindSummary.String(), "error", err)
			res.Warnings = append(res.Warnings, Warning{Kind: KindSummary, Err: err})
		} else {
			res.Artifacts = append(res.Artifacts, Artifact{Kind: KindSummary, TextID: textID, Path: path})
		}
	}

	log.Info("reports generated", "artifacts", len(res.Artifacts), "warnings", len(res.Warnings))
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (g *Generator) newRunID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Now(), g.entropy).String()
}

func (g *Generator) wordFrequency(ctx context.Context, textID int64, dir string) (string, error) {
	freqs, err := g.store.TokenFrequencies(ctx, textID, g.topTokens)
	if err != nil {
		return "", err
	}
	if len(freqs) == 0 {
		return "", internalerr.ErrNoData
	}
	title := fmt.Sprintf("Top %d tokens in text %d", len(freqs), textID)
	name := ArtifactName(KindWordFrequency, textID, g.renderer.Extension())
	return writeArtifact(dir, name, func(w io.Writer) error {
		return g.renderer.BarChart(w, title, freqs)
	})
}

func (g *Generator) lengthDistribution(ctx context.Context, textID int64, dir string) (string, error) {
	buckets, err := g.store.TokenLengthHistogram(ctx, textID)
	if err != nil {
		return "", err
	}
	if len(buckets) == 0 {
		return "", internalerr.ErrNoData
	}
	title := fmt.Sprintf("Token length distribution in text %d", textID)
	name := ArtifactName(KindLengthDistribution, textID, g.renderer.Extension())
	return writeArtifact(dir, name, func(w io.Writer) error {
		return g.renderer.LineChart(w, title, buckets)
	})
}

func (g *Generator) wordCloud(ctx context.Context, textID int64, dir string) (string, error) {
	freqs, err := g.store.AllTokenFrequencies(ctx, textID)
	if err != nil {
		return "", err
	}
	if len(freqs) == 0 {
		return "", internalerr.ErrNoData
	}
	if g.cloud == nil {
		return "", ErrCloudUnavailable
	}
	name := ArtifactName(KindWordCloud, textID, g.cloud.Extension())
	return writeArtifact(dir, name, func(w io.Writer) error {
		return g.cloud.Render(w, freqs)
	})
}

// writeArtifact renders into a temporary file next to the target and
// renames it into place; on failure no file is left behind.
func writeArtifact(dir, name string, render func(io.Writer) error) (string, error) {
	target := filepath.Join(dir, name)
	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := render(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename artifact: %w", err)
	}
	return target, nil
}
