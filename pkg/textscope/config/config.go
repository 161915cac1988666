package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/textscope/pkg/textscope/internalerr"
)

// Defaults
const (
	DefaultDatabase    = "analysis.db"
	DefaultOutputDir   = "."
	DefaultFormat      = "png"
	DefaultTopTokens   = 15
	DefaultLatestLimit = 5
	DefaultRecentLimit = 10
	DefaultCloudWidth  = 800
	DefaultCloudHeight = 600
	DefaultCloudWords  = 150
)

// Config holds all textscope settings.
type Config struct {
	Database    string          `koanf:"database"`
	Analyzer    AnalyzerConfig  `koanf:"analyzer"`
	OutputDir   string          `koanf:"output_dir"`
	Format      string          `koanf:"format"`
	TopTokens   int             `koanf:"top_tokens"`
	LatestLimit int             `koanf:"latest_limit"`
	RecentLimit int             `koanf:"recent_limit"`
	WordCloud   WordCloudConfig `koanf:"wordcloud"`
	Summary     bool            `koanf:"summary"`
	Tokenizer   TokenizerConfig `koanf:"tokenizer"`
	Verbose     bool            `koanf:"verbose"`
}

// AnalyzerConfig locates the external analyzer executable.
type AnalyzerConfig struct {
	Command string   `koanf:"command"`
	Args    []string `koanf:"args"`
}

// WordCloudConfig configures the word-cloud layout engine.
type WordCloudConfig struct {
	Enabled  bool `koanf:"enabled"`
	Width    int  `koanf:"width"`
	Height   int  `koanf:"height"`
	MaxWords int  `koanf:"max_words"`
}

// TokenizerConfig is read by the analyzer executable.
type TokenizerConfig struct {
	Stoplist    string `koanf:"stoplist"`
	Lowercase   bool   `koanf:"lowercase"`
	MaxTokens   int    `koanf:"max_tokens"`
	MaxTokenLen int    `koanf:"max_token_len"`
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Database == "" {
		return fmt.Errorf("%w: database path is empty", internalerr.ErrInvalidConfig)
	}
	if c.Format != "png" && c.Format != "svg" {
		return fmt.Errorf("%w: format must be png or svg, got %q", internalerr.ErrInvalidConfig, c.Format)
	}
	if c.TopTokens <= 0 || c.LatestLimit <= 0 || c.RecentLimit <= 0 {
		return fmt.Errorf("%w: top_tokens, latest_limit and recent_limit must be positive", internalerr.ErrInvalidConfig)
	}
	if c.WordCloud.Enabled && (c.WordCloud.Width <= 0 || c.WordCloud.Height <= 0 || c.WordCloud.MaxWords <= 0) {
		return fmt.Errorf("%w: wordcloud width, height and max_words must be positive", internalerr.ErrInvalidConfig)
	}
	if c.Tokenizer.MaxTokens < 0 || c.Tokenizer.MaxTokenLen < 0 {
		return fmt.Errorf("%w: tokenizer limits must not be negative", internalerr.ErrInvalidConfig)
	}
	return nil
}

// Stopwords loads the configured stoplist; no stoplist means no stopwords.
func (c *Config) Stopwords() ([]string, error) {
	if c.Tokenizer.Stoplist == "" {
		return nil, nil
	}
	sl, err := LoadStoplist(c.Tokenizer.Stoplist)
	if err != nil {
		return nil, fmt.Errorf("load stoplist: %w", err)
	}
	return sl.Terms, nil
}

// Stoplist represents the stopword list configuration
type Stoplist struct {
	Terms []string `yaml:"terms"`
}

// LoadStoplist loads stopwords from a YAML file
func LoadStoplist(path string) (*Stoplist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sl Stoplist
	if err := yaml.Unmarshal(data, &sl); err != nil {
		return nil, err
	}

	return &sl, nil
}
