package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/cognicore/textscope/pkg/textscope/analyzer"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: TEXTSCOPE_WORDCLOUD__ENABLED -> wordcloud.enabled.
const EnvPrefix = "TEXTSCOPE_"

var configNames = []string{"textscope.yaml", "textscope.yml", "textscope.toml"}

// flagKeys maps CLI flag names onto config keys where they differ.
var flagKeys = map[string]string{
	"analyzer":  "analyzer.command",
	"db":        "database",
	"wordcloud": "wordcloud.enabled",
	"stoplist":  "tokenizer.stoplist",
	"lowercase": "tokenizer.lowercase",
}

// findConfigFile returns the explicit path or the first default config file
// present in the working directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range configNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database":                DefaultDatabase,
		"analyzer.command":        analyzer.DefaultCommand,
		"analyzer.args":           []string{},
		"output_dir":              DefaultOutputDir,
		"format":                  DefaultFormat,
		"top_tokens":              DefaultTopTokens,
		"latest_limit":            DefaultLatestLimit,
		"recent_limit":            DefaultRecentLimit,
		"wordcloud.enabled":       true,
		"wordcloud.width":         DefaultCloudWidth,
		"wordcloud.height":        DefaultCloudHeight,
		"wordcloud.max_words":     DefaultCloudWords,
		"summary":                 false,
		"tokenizer.stoplist":      "",
		"tokenizer.lowercase":     false,
		"tokenizer.max_tokens":    0,
		"tokenizer.max_token_len": 0,
		"verbose":                 false,
	}
}

// Load builds the configuration.
// Precedence (highest to lowest): changed flags > env vars > config file > defaults.
// It returns the config file used, if any.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, string, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	used := findConfigFile(cfgFile)
	if used != "" {
		if err := loadFile(k, used); err != nil {
			return nil, "", fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags, only those explicitly set
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, used, nil
}

func loadFile(k *koanf.Koanf, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		var m map[string]interface{}
		if _, err := toml.DecodeFile(path, &m); err != nil {
			return err
		}
		return k.Load(confmap.Provider(m, "."), nil)
	default:
		return k.Load(file.Provider(path), yaml.Parser())
	}
}
