package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sort"
)

// ConfigFileName is the per-project (and per-user, in $HOME) configuration file.
const ConfigFileName = ".snipdex.kdl"

const (
	DefaultBaseCatalog    = "config/snippets.json"
	DefaultCustomCatalog  = "config/customsnippets.json"
	DefaultMaxFileSize    = 10 * 1024 * 1024
	DefaultDebounceMs     = 300
	DefaultAutomatonCache = 8
	DefaultLogLevel       = "info"
)

// DefaultInclude is the corpus glob used when nothing else is configured.
var DefaultInclude = []string{"**/*.lua"}

type Config struct {
	Version     int
	Project     Project
	Catalog     Catalog
	Corpus      Corpus
	Performance Performance
	Watch       Watch
	Server      Server
	Log         Log
	Include     []string
	Exclude     []string
}

type Project struct {
	Root string
	Name string
}

// Catalog locates the two persisted catalog layers. Relative paths resolve
// against Project.Root.
type Catalog struct {
	BasePath   string
	CustomPath string
	WatchFiles bool // reload layers when the documents change on disk
}

type Corpus struct {
	MaxFileSize      int64
	FollowSymlinks   bool
	RespectGitignore bool
}

type Performance struct {
	ScanWorkers        int // 0 = auto-detect (NumCPU-1, min 1)
	AutomatonCacheSize int // number of built automata kept for reuse
}

type Watch struct {
	Enabled    bool
	DebounceMs int
}

type Server struct {
	SocketPath string // empty = derived from project root
}

type Log struct {
	Level string
	File  string
}

// BasePath returns the absolute path of the base catalog document.
func (c *Config) BasePath() string {
	return c.resolve(c.Catalog.BasePath)
}

// CustomPath returns the absolute path of the custom catalog document.
func (c *Config) CustomPath() string {
	return c.resolve(c.Catalog.CustomPath)
}

func (c *Config) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Root, p)
}

// Default returns the built-in configuration rooted at root.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Catalog: Catalog{
			BasePath:   DefaultBaseCatalog,
			CustomPath: DefaultCustomCatalog,
			WatchFiles: true,
		},
		Corpus: Corpus{
			MaxFileSize:      DefaultMaxFileSize,
			FollowSymlinks:   false,
			RespectGitignore: true,
		},
		Performance: Performance{
			ScanWorkers:        0,
			AutomatonCacheSize: DefaultAutomatonCache,
		},
		Watch: Watch{
			Enabled:    true,
			DebounceMs: DefaultDebounceMs,
		},
		Log: Log{
			Level: DefaultLogLevel,
		},
		Include: append([]string(nil), DefaultInclude...),
		Exclude: []string{
			"**/.git/**",
			"**/.*/**",
			"**/node_modules/**",
			"**/vendor/**",
			"**/dist/**",
			"**/build/**",
			"**/out/**",
			"**/*.min.lua",
			"**/*~",
			"**/*.swp",
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadWithRoot(path, "")
}

// LoadWithRoot loads ~/.snipdex.kdl and the project's .snipdex.kdl and merges
// them. path, when set, names an explicit project config file.
func LoadWithRoot(path string, rootDir string) (*Config, error) {
	searchDir := "."
	if rootDir != "" {
		searchDir = rootDir
	}
	if abs, err := filepath.Abs(searchDir); err == nil {
		searchDir = abs
	}

	var baseConfig *Config
	if homeDir, err := os.UserHomeDir(); err == nil && homeDir != searchDir {
		if globalCfg, err := LoadKDL(homeDir); err == nil && globalCfg != nil {
			baseConfig = globalCfg
		}
	}

	var projectConfig *Config
	var err error
	if path != "" && filepath.Base(path) != ConfigFileName {
		projectConfig, err = LoadKDLFile(path, searchDir)
	} else {
		projectConfig, err = LoadKDL(searchDir)
	}
	if err != nil {
		return nil, err
	}

	switch {
	case baseConfig != nil && projectConfig != nil:
		return mergeConfigs(baseConfig, projectConfig), nil
	case projectConfig != nil:
		return projectConfig, nil
	case baseConfig != nil:
		baseConfig.Project.Root = searchDir
		baseConfig.Project.Name = filepath.Base(searchDir)
		return baseConfig, nil
	}

	return Default(searchDir), nil
}

// mergeConfigs merges a base config with a project config.
// Project config takes precedence, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(append([]string{}, base.Exclude...), project.Exclude...))
	}

	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// DeduplicatePatterns removes duplicate glob patterns and sorts the result.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if _, ok := seen[p]; ok || p == "" {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// EffectiveScanWorkers resolves the auto-detect value of ScanWorkers.
func (p Performance) EffectiveScanWorkers() int {
	if p.ScanWorkers > 0 {
		return p.ScanWorkers
	}
	return max(1, runtime.NumCPU()-1)
}
