package testhelpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/config"
)

// TestProject is a throwaway project directory with a corpus and catalog
// documents laid out the way the default configuration expects.
type TestProject struct {
	t    *testing.T
	Root string
}

// NewTestProject creates an empty project under t.TempDir().
func NewTestProject(t *testing.T) *TestProject {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return &TestProject{t: t, Root: root}
}

// Path returns the absolute path of a slash-separated project path.
func (p *TestProject) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// AddFile writes a corpus file, creating parent directories.
func (p *TestProject) AddFile(rel, content string) *TestProject {
	p.t.Helper()
	path := p.Path(rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
	return p
}

// AddFiles writes several corpus files.
func (p *TestProject) AddFiles(files map[string]string) *TestProject {
	p.t.Helper()
	for rel, content := range files {
		p.AddFile(rel, content)
	}
	return p
}

// RemoveFile deletes a corpus file.
func (p *TestProject) RemoveFile(rel string) *TestProject {
	p.t.Helper()
	require.NoError(p.t, os.Remove(p.Path(rel)))
	return p
}

// WithBase writes the base catalog document.
func (p *TestProject) WithBase(layer catalog.Layer) *TestProject {
	p.t.Helper()
	return p.writeLayer(catalog.LayerBase, config.DefaultBaseCatalog, layer)
}

// WithCustom writes the custom catalog document.
func (p *TestProject) WithCustom(layer catalog.Layer) *TestProject {
	p.t.Helper()
	return p.writeLayer(catalog.LayerCustom, config.DefaultCustomCatalog, layer)
}

func (p *TestProject) writeLayer(kind catalog.LayerKind, rel string, layer catalog.Layer) *TestProject {
	p.t.Helper()
	path := p.Path(rel)
	require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
	_, err := catalog.SaveLayerFile(kind, path, layer)
	require.NoError(p.t, err)
	return p
}

// Config returns a test configuration rooted at the project.
func (p *TestProject) Config() *config.Config {
	return NewTestConfigBuilder(p.Root).Build()
}

// Builder returns a config builder rooted at the project.
func (p *TestProject) Builder() *TestConfigBuilder {
	return NewTestConfigBuilder(p.Root)
}

// SampleCatalog is a small base layer used across package tests.
func SampleCatalog() catalog.Layer {
	return catalog.Layer{
		"getHP":      {Module: "actor", Description: "read hit points", Body: []string{"local hp = getHP(id)"}},
		"setHP":      {Module: "actor", Description: "write hit points"},
		"Item.Use":   {Module: "item", Description: "use an item"},
		"unusedCall": {Module: "misc"},
	}
}
