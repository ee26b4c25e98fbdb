// Package testhelpers provides shared utilities for testing snipdex
package testhelpers

import (
	"github.com/standardbeagle/snipdex/internal/config"
)

// TestConfigBuilder provides a fluent API for building test configs with safe defaults.
// Watching and gitignore handling are off unless asked for.
// Usage:
//
//	cfg := testhelpers.NewTestConfigBuilder(projectPath).
//		WithExclusions("vendor/**").
//		WithIncludePatterns("**/*.lua").
//		Build()
type TestConfigBuilder struct {
	projectRoot string
	exclusions  []string
	inclusions  []string
	watch       bool
	gitignore   bool
	workers     int
}

// NewTestConfigBuilder creates a config builder with safe defaults for a project path
func NewTestConfigBuilder(projectRoot string) *TestConfigBuilder {
	return &TestConfigBuilder{
		projectRoot: projectRoot,
		exclusions: []string{
			"**/.git/**",
			"**/node_modules/**",
		},
		inclusions: append([]string(nil), config.DefaultInclude...),
		workers:    2,
	}
}

// WithExclusions adds additional exclusion patterns
func (b *TestConfigBuilder) WithExclusions(patterns ...string) *TestConfigBuilder {
	b.exclusions = append(b.exclusions, patterns...)
	return b
}

// WithIncludePatterns sets the include patterns (replaces defaults)
func (b *TestConfigBuilder) WithIncludePatterns(patterns ...string) *TestConfigBuilder {
	b.inclusions = patterns
	return b
}

// WithWatch enables the corpus and catalog watchers with a short debounce.
func (b *TestConfigBuilder) WithWatch() *TestConfigBuilder {
	b.watch = true
	return b
}

// WithGitignore makes the corpus honour .gitignore.
func (b *TestConfigBuilder) WithGitignore() *TestConfigBuilder {
	b.gitignore = true
	return b
}

// Build creates the final test config with all settings
func (b *TestConfigBuilder) Build() *config.Config {
	cfg := config.Default(b.projectRoot)
	cfg.Project.Name = "test-project"
	cfg.Catalog.WatchFiles = b.watch
	cfg.Corpus.RespectGitignore = b.gitignore
	cfg.Performance.ScanWorkers = b.workers
	cfg.Watch = config.Watch{
		Enabled:    b.watch,
		DebounceMs: 20, // fast debounce for tests
	}
	cfg.Include = b.inclusions
	cfg.Exclude = b.exclusions
	return cfg
}
