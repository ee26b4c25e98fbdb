// Package pathutil converts between the absolute paths used on disk and the
// root-relative, slash-separated paths that identify corpus files.
//
// Corpus paths are what users see in reports, find-usages output and protocol
// responses. They stay stable when the project is moved and look the same on
// every platform.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or the path lies outside root.
//
// Examples:
//   - ToRelative("/home/user/game/scripts/main.lua", "/home/user/game") → "scripts/main.lua"
//   - ToRelative("/other/location/file.lua", "/home/user/game") → "/other/location/file.lua" (outside root)
//   - ToRelative("scripts/main.lua", "/home/user/game") → "scripts/main.lua" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}
	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToCorpusPath returns the slash-separated path of p relative to rootDir.
// ok is false when p lies outside rootDir.
func ToCorpusPath(p, rootDir string) (string, bool) {
	if p == "" {
		return "", false
	}
	if filepath.IsAbs(p) {
		rel := ToRelative(p, rootDir)
		if filepath.IsAbs(rel) {
			return "", false
		}
		p = rel
	}
	p = filepath.ToSlash(filepath.Clean(p))
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return "", false
	}
	return p, true
}

// ToAbsolute joins a corpus path onto rootDir. Absolute inputs are returned cleaned.
func ToAbsolute(corpusPath, rootDir string) string {
	if filepath.IsAbs(corpusPath) {
		return filepath.Clean(corpusPath)
	}
	return filepath.Join(rootDir, filepath.FromSlash(corpusPath))
}
