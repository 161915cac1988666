package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cognicore/textscope/pkg/textscope/analyzer"
	"github.com/cognicore/textscope/pkg/textscope/config"
	"github.com/cognicore/textscope/pkg/textscope/orchestrator"
	"github.com/cognicore/textscope/pkg/textscope/render"
	"github.com/cognicore/textscope/pkg/textscope/report"
	"github.com/cognicore/textscope/pkg/textscope/store/sqlite"
	"github.com/cognicore/textscope/pkg/textscope/wordcloud"
)

// app holds the components wired from one configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *sqlite.SQLiteStore
	session *orchestrator.Session
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	st, err := sqlite.OpenSQLite(ctx, cfg.Database, sqlite.Options{Logger: logger})
	if err != nil {
		return nil, err
	}

	session, err := newSession(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, store: st, session: session}, nil
}

func newSession(cfg *config.Config, st *sqlite.SQLiteStore, logger *slog.Logger) (*orchestrator.Session, error) {
	env, err := analyzerEnv(cfg)
	if err != nil {
		return nil, err
	}
	inv := analyzer.NewInvoker(cfg.Analyzer.Command, cfg.Analyzer.Args...)
	inv.Env = env
	inv.Logger = logger

	renderer, err := render.NewChartRenderer(cfg.Format)
	if err != nil {
		return nil, err
	}

	opts := report.Options{
		Renderer:  renderer,
		TopTokens: cfg.TopTokens,
		Summary:   cfg.Summary,
		Logger:    logger,
	}
	if cfg.WordCloud.Enabled {
		opts.Cloud = wordcloud.New(wordcloud.Options{
			Width:    cfg.WordCloud.Width,
			Height:   cfg.WordCloud.Height,
			MaxWords: cfg.WordCloud.MaxWords,
			Logger:   logger,
		})
	}
	gen, err := report.NewGenerator(st, opts)
	if err != nil {
		return nil, err
	}

	return orchestrator.NewSession(orchestrator.Options{
		Analyzer:    inv,
		Store:       st,
		Reports:     gen,
		LatestLimit: cfg.LatestLimit,
		RecentLimit: cfg.RecentLimit,
		Logger:      logger,
	})
}

// analyzerEnv points the analyzer at the database the host reads. The
// analyzer takes no arguments, so the location travels in its environment.
func analyzerEnv(cfg *config.Config) ([]string, error) {
	db, err := filepath.Abs(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	return append(os.Environ(), config.EnvPrefix+"DATABASE="+db), nil
}

func (a *app) Close() error {
	return a.store.Close()
}
