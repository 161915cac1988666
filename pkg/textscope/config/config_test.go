package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/textscope/pkg/textscope/analyzer"
	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Empty(t, used)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, analyzer.DefaultCommand, cfg.Analyzer.Command)
	assert.Equal(t, "png", cfg.Format)
	assert.Equal(t, 15, cfg.TopTokens)
	assert.Equal(t, 5, cfg.LatestLimit)
	assert.Equal(t, 10, cfg.RecentLimit)
	assert.True(t, cfg.WordCloud.Enabled)
	assert.Equal(t, DefaultCloudWords, cfg.WordCloud.MaxWords)
	assert.False(t, cfg.Summary)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "textscope.yaml", `
database: corpus.db
format: svg
top_tokens: 20
wordcloud:
  enabled: false
analyzer:
  command: /opt/bin/analyze
  args: ["--lowercase"]
`)

	cfg, used, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "textscope.yaml", used)
	assert.Equal(t, "corpus.db", cfg.Database)
	assert.Equal(t, "svg", cfg.Format)
	assert.Equal(t, 20, cfg.TopTokens)
	assert.False(t, cfg.WordCloud.Enabled)
	assert.Equal(t, "/opt/bin/analyze", cfg.Analyzer.Command)
	assert.Equal(t, []string{"--lowercase"}, cfg.Analyzer.Args)
	// untouched keys keep defaults
	assert.Equal(t, 5, cfg.LatestLimit)
}

func TestLoadTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "settings.toml", `
database = "from-toml.db"
summary = true

[wordcloud]
width = 400
`)

	cfg, used, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, path, used)
	assert.Equal(t, "from-toml.db", cfg.Database)
	assert.True(t, cfg.Summary)
	assert.Equal(t, 400, cfg.WordCloud.Width)
	assert.Equal(t, DefaultCloudHeight, cfg.WordCloud.Height)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, dir, "textscope.yml", "database: file.db\noutput_dir: from-file\ntop_tokens: 7\n")
	t.Setenv("TEXTSCOPE_DATABASE", "env.db")
	t.Setenv("TEXTSCOPE_TOP_TOKENS", "9")
	t.Setenv("TEXTSCOPE_WORDCLOUD__MAX_WORDS", "42")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("db", "", "")
	flags.String("output-dir", "", "")
	flags.String("format", "png", "")
	require.NoError(t, flags.Parse([]string{"--db", "flag.db"}))

	cfg, _, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "flag.db", cfg.Database)
	assert.Equal(t, 9, cfg.TopTokens)
	assert.Equal(t, 42, cfg.WordCloud.MaxWords)
	assert.Equal(t, "from-file", cfg.OutputDir)
	// unchanged flag does not override
	assert.Equal(t, "png", cfg.Format)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TEXTSCOPE_FORMAT", "gif")

	_, _, err := Load("", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database:    "a.db",
			Format:      "png",
			TopTokens:   15,
			LatestLimit: 5,
			RecentLimit: 10,
			WordCloud:   WordCloudConfig{Enabled: true, Width: 10, Height: 10, MaxWords: 5},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"empty database", func(c *Config) { c.Database = "" }, false},
		{"bad format", func(c *Config) { c.Format = "jpg" }, false},
		{"zero top tokens", func(c *Config) { c.TopTokens = 0 }, false},
		{"cloud zero width", func(c *Config) { c.WordCloud.Width = 0 }, false},
		{"disabled cloud ignores size", func(c *Config) { c.WordCloud = WordCloudConfig{} }, true},
		{"negative tokenizer limit", func(c *Config) { c.Tokenizer.MaxTokens = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
			}
		})
	}
}

func TestStopwords(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stop.yaml", "terms:\n  - the\n  - of\n")

	cfg := Config{Tokenizer: TokenizerConfig{Stoplist: path}}
	words, err := cfg.Stopwords()
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "of"}, words)

	none, err := (&Config{}).Stopwords()
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = (&Config{Tokenizer: TokenizerConfig{Stoplist: filepath.Join(dir, "nope.yaml")}}).Stopwords()
	assert.Error(t, err)
}
