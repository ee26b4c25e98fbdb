package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	sderrors "github.com/standardbeagle/snipdex/internal/errors"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies defaults for
// zero values. Returns a *errors.ConfigError if validation fails.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if cfg.Project.Root == "" {
		return sderrors.NewConfigError("project.root", "", errors.New("project root cannot be empty"))
	}

	if cfg.Catalog.BasePath == "" && cfg.Catalog.CustomPath == "" {
		return sderrors.NewConfigError("catalog", "", errors.New("at least one catalog layer path is required"))
	}
	if cfg.Catalog.BasePath != "" && cfg.Catalog.BasePath == cfg.Catalog.CustomPath {
		return sderrors.NewConfigError("catalog.custom", cfg.Catalog.CustomPath,
			errors.New("custom layer must not share the base layer document"))
	}

	if cfg.Corpus.MaxFileSize < 0 {
		return sderrors.NewConfigError("corpus.max_file_size", fmt.Sprint(cfg.Corpus.MaxFileSize),
			errors.New("must not be negative"))
	}
	if cfg.Corpus.MaxFileSize > 100*1024*1024 {
		return sderrors.NewConfigError("corpus.max_file_size", fmt.Sprint(cfg.Corpus.MaxFileSize),
			errors.New("should not exceed 100MB"))
	}

	if cfg.Performance.ScanWorkers < 0 {
		return sderrors.NewConfigError("performance.scan_workers", fmt.Sprint(cfg.Performance.ScanWorkers),
			errors.New("cannot be negative"))
	}
	if cfg.Performance.AutomatonCacheSize < 0 {
		return sderrors.NewConfigError("performance.automaton_cache", fmt.Sprint(cfg.Performance.AutomatonCacheSize),
			errors.New("cannot be negative"))
	}
	if cfg.Watch.DebounceMs < 0 {
		return sderrors.NewConfigError("watch.debounce_ms", fmt.Sprint(cfg.Watch.DebounceMs),
			errors.New("cannot be negative"))
	}

	for _, p := range append(append([]string{}, cfg.Include...), cfg.Exclude...) {
		if !doublestar.ValidatePattern(p) {
			return sderrors.NewConfigError("include/exclude", p, errors.New("invalid glob pattern"))
		}
	}

	level := strings.ToLower(cfg.Log.Level)
	if level != "" && !validLogLevels[level] {
		return sderrors.NewConfigError("log.level", cfg.Log.Level, errors.New("expected debug, info, warn or error"))
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) setSmartDefaults(cfg *Config) {
	if len(cfg.Include) == 0 {
		cfg.Include = append([]string(nil), DefaultInclude...)
	}
	if cfg.Corpus.MaxFileSize == 0 {
		cfg.Corpus.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Performance.ScanWorkers == 0 {
		cfg.Performance.ScanWorkers = cfg.Performance.EffectiveScanWorkers()
	}
	if cfg.Performance.AutomatonCacheSize == 0 {
		cfg.Performance.AutomatonCacheSize = DefaultAutomatonCache
	}
	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = DefaultDebounceMs
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
