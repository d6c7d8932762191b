package core

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ConfigFileName is the vault-level configuration file.
const ConfigFileName = "anchorsync.yaml"

// Cross-file propagation scopes.
const (
	ScopeAll       = "all"       // scan every document on every rename
	ScopeBacklinks = "backlinks" // scan only documents the link index says link to the renamed one
)

const (
	defaultTopK           = 5
	defaultAutoApplyScore = 0.9
)

// Config represents the anchorsync.yaml configuration file.
type Config struct {
	Sync    SyncConfig    `yaml:"sync"`
	Suggest SuggestConfig `yaml:"suggest"`
	Cache   CacheConfig   `yaml:"cache"`
	Exclude ExcludeConfig `yaml:"exclude"`
}

// SyncConfig controls rename propagation.
type SyncConfig struct {
	Scope             string `yaml:"scope"`
	CrossFileMarkdown bool   `yaml:"cross_file_markdown"`
}

// SuggestConfig controls repair suggestions.
type SuggestConfig struct {
	TopK           int     `yaml:"top_k"`
	AutoApplyScore float64 `yaml:"auto_apply_score"`
}

// CacheConfig sizes the heading snapshot cache.
type CacheConfig struct {
	Size int `yaml:"size"`
}

// ExcludeConfig holds exclusion patterns from the config file.
type ExcludeConfig struct {
	Paths []string `yaml:"paths"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Sync:    SyncConfig{Scope: ScopeAll},
		Suggest: SuggestConfig{TopK: defaultTopK, AutoApplyScore: defaultAutoApplyScore},
		Cache:   CacheConfig{Size: DefaultSnapshotSize},
	}
}

// LoadConfig reads anchorsync.yaml from the vault root. Missing fields take
// their defaults; a missing file yields DefaultConfig().
func LoadConfig(vaultPath string) (Config, error) {
	cfg := DefaultConfig()
	p := filepath.Join(vaultPath, ConfigFileName)
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%s: %w", ConfigFileName, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Sync.Scope == "" {
		c.Sync.Scope = ScopeAll
	}
	if c.Suggest.TopK == 0 {
		c.Suggest.TopK = defaultTopK
	}
	if c.Cache.Size <= 0 {
		c.Cache.Size = DefaultSnapshotSize
	}
}

// Validate checks option values.
func (c Config) Validate() error {
	switch c.Sync.Scope {
	case ScopeAll, ScopeBacklinks:
	default:
		return fmt.Errorf("invalid sync.scope: %q (must be %s or %s)", c.Sync.Scope, ScopeAll, ScopeBacklinks)
	}
	if c.Suggest.AutoApplyScore < 0 || c.Suggest.AutoApplyScore > 1 {
		return fmt.Errorf("invalid suggest.auto_apply_score: %v (must be within [0,1])", c.Suggest.AutoApplyScore)
	}
	return validateGlobPatterns(c.Exclude.Paths)
}

// validateGlobPatterns checks that none of the patterns use unsupported character classes.
func validateGlobPatterns(patterns []string) error {
	for _, p := range patterns {
		if strings.Contains(p, "[") {
			return fmt.Errorf("unsupported glob pattern (character class): %s", p)
		}
	}
	return nil
}

// FilterExcludes removes files matching any of the given glob patterns.
func FilterExcludes(files []string, patterns []string) []string {
	if len(patterns) == 0 {
		return files
	}
	result := make([]string, 0, len(files))
	for _, f := range files {
		if !IsExcluded(f, patterns) {
			result = append(result, f)
		}
	}
	return result
}

// IsExcluded reports whether path matches any of the glob patterns.
func IsExcluded(path string, patterns []string) bool {
	for _, p := range patterns {
		if globMatch(p, path) {
			return true
		}
	}
	return false
}

// globMatch implements SQLite GLOB semantics.
// '*' matches any sequence of characters (including '/').
// '?' matches exactly one character.
// '[' is treated as a literal character (character classes not supported).
func globMatch(pattern, s string) bool {
	return globMatchImpl([]rune(pattern), []rune(s))
}

func globMatchImpl(pattern, s []rune) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case '*':
			for len(pattern) > 0 && pattern[0] == '*' {
				pattern = pattern[1:]
			}
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(s); i++ {
				if globMatchImpl(pattern, s[i:]) {
					return true
				}
			}
			return false
		case '?':
			if len(s) == 0 {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		default:
			if len(s) == 0 || pattern[0] != s[0] {
				return false
			}
			pattern = pattern[1:]
			s = s[1:]
		}
	}
	return len(s) == 0
}
