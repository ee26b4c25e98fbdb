package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix path fixtures")
	}
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{
			name:     "simple relative path",
			absPath:  "/home/user/game/scripts/main.lua",
			rootDir:  "/home/user/game",
			expected: "scripts/main.lua",
		},
		{
			name:     "root level file",
			absPath:  "/home/user/game/init.lua",
			rootDir:  "/home/user/game",
			expected: "init.lua",
		},
		{
			name:     "same directory",
			absPath:  "/home/user/game",
			rootDir:  "/home/user/game",
			expected: ".",
		},
		{
			name:     "already relative path",
			absPath:  "scripts/main.lua",
			rootDir:  "/home/user/game",
			expected: "scripts/main.lua",
		},
		{
			name:     "path outside root - fallback to absolute",
			absPath:  "/other/location/file.lua",
			rootDir:  "/home/user/game",
			expected: "/other/location/file.lua",
		},
		{
			name:     "sibling with dotted name stays relative",
			absPath:  "/home/user/game/..hidden/a.lua",
			rootDir:  "/home/user/game",
			expected: "..hidden/a.lua",
		},
		{
			name:     "empty root directory",
			absPath:  "/home/user/game/file.lua",
			rootDir:  "",
			expected: "/home/user/game/file.lua",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ToRelative(tt.absPath, tt.rootDir); got != tt.expected {
				t.Errorf("ToRelative(%q, %q) = %q, want %q", tt.absPath, tt.rootDir, got, tt.expected)
			}
		})
	}
}

func TestToCorpusPath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name   string
		in     string
		want   string
		wantOK bool
	}{
		{"absolute inside root", filepath.Join(root, "scripts", "a.lua"), "scripts/a.lua", true},
		{"relative is cleaned", "scripts/./b.lua", "scripts/b.lua", true},
		{"outside root", filepath.Join(filepath.Dir(root), "x.lua"), "", false},
		{"escaping relative", "../x.lua", "", false},
		{"root itself", root, "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ToCorpusPath(tt.in, root)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ToCorpusPath(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToAbsolute(t *testing.T) {
	root := t.TempDir()
	want := filepath.Join(root, "scripts", "a.lua")
	if got := ToAbsolute("scripts/a.lua", root); got != want {
		t.Errorf("ToAbsolute = %q, want %q", got, want)
	}
	if got := ToAbsolute(want, "/elsewhere"); got != want {
		t.Errorf("ToAbsolute(abs) = %q, want %q", got, want)
	}
}
