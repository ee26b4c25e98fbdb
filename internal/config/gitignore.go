package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreParser handles parsing and matching .gitignore files.
// Patterns are translated to doublestar globs once, at load time.
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool

	self     string // glob matching the entry itself
	contents string // glob matching everything below a matched directory
}

// NewGitignoreParser creates a new gitignore parser
func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gp.Parse(file)
}

// Parse reads gitignore lines from r.
func (gp *GitignoreParser) Parse(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		gp.AddPattern(scanner.Text())
	}
	return scanner.Err()
}

// AddPattern adds a single gitignore line. Blank lines and comments are ignored.
func (gp *GitignoreParser) AddPattern(line string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return
	}
	gp.patterns = append(gp.patterns, parsePattern(line))
}

// Len reports the number of active patterns.
func (gp *GitignoreParser) Len() int {
	return len(gp.patterns)
}

func parsePattern(line string) GitignorePattern {
	p := GitignorePattern{}

	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = line[1:]
	}
	p.Pattern = line

	// A slash anywhere but the end anchors the pattern to the root.
	base := line
	if !p.Absolute && !strings.Contains(line, "/") {
		base = "**/" + line
	}
	p.self = base
	p.contents = base + "/**"
	return p
}

// ShouldIgnore checks whether a slash-separated path relative to the root is
// ignored. Later patterns override earlier ones, so negations re-include.
func (gp *GitignoreParser) ShouldIgnore(path string, isDir bool) bool {
	path = filepath.ToSlash(path)

	ignored := false
	for i := range gp.patterns {
		if gp.patterns[i].matches(path, isDir) {
			ignored = !gp.patterns[i].Negate
		}
	}
	return ignored
}

func (p *GitignorePattern) matches(path string, isDir bool) bool {
	if (!p.Directory || isDir) && globMatch(p.self, path) {
		return true
	}
	return globMatch(p.contents, path)
}

func globMatch(pattern, path string) bool {
	ok, err := doublestar.Match(pattern, path)
	return err == nil && ok
}

// GetExclusionPatterns returns the non-negated patterns as corpus exclusion globs.
func (gp *GitignoreParser) GetExclusionPatterns() []string {
	var exclusions []string
	for _, p := range gp.patterns {
		if p.Negate {
			continue
		}
		if p.Directory {
			exclusions = append(exclusions, p.contents)
			continue
		}
		exclusions = append(exclusions, p.self, p.contents)
	}
	return DeduplicatePatterns(exclusions)
}
