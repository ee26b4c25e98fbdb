package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeConfigs_ExclusionsMerge(t *testing.T) {
	base := &Config{Exclude: []string{"**/node_modules/**", "**/vendor/**"}}
	project := &Config{Exclude: []string{"**/dist/**", "**/node_modules/**"}}

	merged := mergeConfigs(base, project)

	assert.ElementsMatch(t, []string{"**/node_modules/**", "**/vendor/**", "**/dist/**"}, merged.Exclude)
}

func TestMergeConfigs_InclusionsProjectOverride(t *testing.T) {
	base := &Config{Include: []string{"**/*.lua"}}
	project := &Config{Include: []string{"src/**/*.lua"}}

	merged := mergeConfigs(base, project)
	assert.Equal(t, []string{"src/**/*.lua"}, merged.Include)
}

func TestMergeConfigs_InclusionsUseBaseIfProjectEmpty(t *testing.T) {
	base := &Config{Include: []string{"**/*.luau"}}
	project := &Config{}

	merged := mergeConfigs(base, project)
	assert.Equal(t, []string{"**/*.luau"}, merged.Include)
}

func TestMergeConfigs_ProjectSettingsTakePrecedence(t *testing.T) {
	base := &Config{Performance: Performance{ScanWorkers: 2}, Log: Log{Level: "debug"}}
	project := &Config{Performance: Performance{ScanWorkers: 6}, Log: Log{Level: "warn"}}

	merged := mergeConfigs(base, project)
	assert.Equal(t, 6, merged.Performance.ScanWorkers)
	assert.Equal(t, "warn", merged.Log.Level)
}

func TestLoadWithRoot_MergesGlobalAndProjectConfigs(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()

	globalConfig := `
exclude {
    "**/node_modules/**"
    "**/vendor/**"
}
corpus {
    max_file_size "5MB"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, ConfigFileName), []byte(globalConfig), 0o644))

	projectConfig := `
project {
    root "."
    name "test-project"
}
exclude {
    "**/dist/**"
}
corpus {
    max_file_size "1MB"
}
`
	require.NoError(t, os.WriteFile(filepath.Join(tmpProject, ConfigFileName), []byte(projectConfig), 0o644))

	t.Setenv("HOME", tmpHome)

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Contains(t, cfg.Exclude, "**/node_modules/**")
	assert.Contains(t, cfg.Exclude, "**/vendor/**")
	assert.Contains(t, cfg.Exclude, "**/dist/**")
	assert.Equal(t, int64(1024*1024), cfg.Corpus.MaxFileSize)
	assert.Equal(t, "test-project", cfg.Project.Name)
	assert.Equal(t, tmpProject, cfg.Project.Root)
}

func TestLoadWithRoot_GlobalConfigOnly(t *testing.T) {
	tmpHome := t.TempDir()
	tmpProject := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpHome, ConfigFileName), []byte(`log { level "debug"; }`), 0o644))
	t.Setenv("HOME", tmpHome)

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	assert.Equal(t, tmpProject, cfg.Project.Root)
	assert.Equal(t, filepath.Base(tmpProject), cfg.Project.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadWithRoot_DefaultConfigFallback(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()

	cfg, err := LoadWithRoot("", tmpProject)
	require.NoError(t, err)
	assert.Equal(t, tmpProject, cfg.Project.Root)
	assert.Equal(t, DefaultInclude, cfg.Include)
	assert.Equal(t, filepath.Join(tmpProject, DefaultCustomCatalog), cfg.CustomPath())
}

func TestLoadWithRoot_ExplicitFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	tmpProject := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "alt.kdl")
	require.NoError(t, os.WriteFile(explicit, []byte(`catalog { custom "mine.json"; }`), 0o644))

	cfg, err := LoadWithRoot(explicit, tmpProject)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpProject, "mine.json"), cfg.CustomPath())
}

func TestDeduplicatePatterns(t *testing.T) {
	got := DeduplicatePatterns([]string{"b", "a", "b", "", "c", "a"})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}
