package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/standardbeagle/snipdex/internal/config"
	sderrors "github.com/standardbeagle/snipdex/internal/errors"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/security"
	"github.com/standardbeagle/snipdex/pkg/pathutil"
)

// ErrOutsideRoot is returned for paths that do not resolve below the corpus root.
var ErrOutsideRoot = errors.New("path outside corpus root")

// ErrNotInCorpus is returned by ReadText for paths below the root that the
// include and exclude patterns leave out. It matches fs.ErrNotExist.
var ErrNotInCorpus = fmt.Errorf("path not in corpus: %w", fs.ErrNotExist)

// Options configures an FSIndex.
type Options struct {
	Root             string
	Include          []string
	Exclude          []string
	MaxFileSize      int64 // 0 = unlimited
	RespectGitignore bool
	FollowSymlinks   bool          // follow symlinked files (directories are never followed)
	Debounce         time.Duration // watcher batching window
}

// OptionsFromConfig maps the corpus-related configuration onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Root:             cfg.Project.Root,
		Include:          cfg.Include,
		Exclude:          cfg.Exclude,
		MaxFileSize:      cfg.Corpus.MaxFileSize,
		RespectGitignore: cfg.Corpus.RespectGitignore,
		FollowSymlinks:   cfg.Corpus.FollowSymlinks,
		Debounce:         time.Duration(cfg.Watch.DebounceMs) * time.Millisecond,
	}
}

// FSIndex is a corpus rooted at a directory. Unsaved editor buffers are held
// as overlays that take precedence over disk content until saved or discarded.
type FSIndex struct {
	opts      Options
	root      string
	gitignore *config.GitignoreParser
	hub       *hub
	logger    *log.Logger
	validator *security.FileValidator

	mu       sync.RWMutex
	overlays map[string]string
	active   string

	statsMu sync.Mutex
	stats   WatchStats
}

// NewFSIndex validates opts and loads .gitignore when requested.
func NewFSIndex(opts Options) (*FSIndex, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve corpus root %q: %w", opts.Root, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, sderrors.NewFileError("stat", root, err)
	}
	if !info.IsDir() {
		return nil, sderrors.NewConfigError("project.root", root, errors.New("not a directory"))
	}

	if len(opts.Include) == 0 {
		opts.Include = append([]string(nil), config.DefaultInclude...)
	}
	for _, p := range opts.Include {
		if !doublestar.ValidatePattern(p) {
			return nil, sderrors.NewConfigError("include", p, doublestar.ErrBadPattern)
		}
	}
	for _, p := range opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, sderrors.NewConfigError("exclude", p, doublestar.ErrBadPattern)
		}
	}

	gi := config.NewGitignoreParser()
	if opts.RespectGitignore {
		if err := gi.LoadGitignore(root); err != nil {
			return nil, sderrors.NewFileError("read", filepath.Join(root, ".gitignore"), err)
		}
	}

	opts.Root = root
	return &FSIndex{
		opts:      opts,
		root:      root,
		gitignore: gi,
		hub:       newHub(),
		logger:    logging.For("corpus"),
		validator: security.NewFileValidator(),
		overlays:  make(map[string]string),
	}, nil
}

// Root returns the absolute corpus root.
func (x *FSIndex) Root() string { return x.root }

// Resolve maps an absolute or root-relative path to its corpus path.
func (x *FSIndex) Resolve(path string) (string, error) {
	rel, ok := pathutil.ToCorpusPath(path, x.root)
	if !ok {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}
	return rel, nil
}

// Matches reports whether the corpus path rel belongs to the corpus.
func (x *FSIndex) Matches(rel string) bool {
	if x.excluded(rel, false) {
		return false
	}
	for _, pattern := range x.opts.Include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (x *FSIndex) excluded(rel string, isDir bool) bool {
	for _, pattern := range x.opts.Exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// A "dir/**" exclusion prunes dir itself.
		if isDir && strings.HasSuffix(pattern, "/**") {
			if ok, _ := doublestar.Match(strings.TrimSuffix(pattern, "/**"), rel); ok {
				return true
			}
		}
	}
	return x.gitignore.ShouldIgnore(rel, isDir)
}

// ListFiles walks the root and returns every matching corpus path, plus
// overlay-only buffers that match.
func (x *FSIndex) ListFiles(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := filepath.WalkDir(x.root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			x.logger.Debug("skipping unreadable entry", "path", path, "err", err)
			if d != nil && d.IsDir() && path != x.root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == x.root {
			return nil
		}
		rel, ok := pathutil.ToCorpusPath(path, x.root)
		if !ok {
			return nil
		}

		if d.IsDir() {
			if x.excluded(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			if !x.opts.FollowSymlinks {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || !target.Mode().IsRegular() {
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}
		if x.Matches(rel) {
			seen[rel] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	x.mu.RLock()
	for rel := range x.overlays {
		if x.Matches(rel) {
			seen[rel] = struct{}{}
		}
	}
	x.mu.RUnlock()

	files := make([]string, 0, len(seen))
	for rel := range seen {
		files = append(files, rel)
	}
	sort.Strings(files)
	return files, nil
}

// ReadText returns the overlay for path if one exists, otherwise the file on disk.
// Files above MaxFileSize fail with an ErrorTypeFileTooLarge *errors.FileError,
// and binary or precompiled files with ErrorTypeUnsupported. Overlays are
// taken as they are. Paths the patterns leave out fail with ErrNotInCorpus.
func (x *FSIndex) ReadText(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, err := x.Resolve(path)
	if err != nil {
		return "", err
	}
	if !x.Matches(rel) {
		return "", fmt.Errorf("%s: %w", rel, ErrNotInCorpus)
	}

	x.mu.RLock()
	text, ok := x.overlays[rel]
	x.mu.RUnlock()
	if ok {
		return text, nil
	}

	abs := pathutil.ToAbsolute(rel, x.root)
	info, err := os.Stat(abs)
	if err != nil {
		return "", sderrors.NewFileError("stat", rel, err)
	}
	if x.opts.MaxFileSize > 0 && info.Size() > x.opts.MaxFileSize {
		return "", sderrors.NewFileTooLargeError(rel, info.Size(), x.opts.MaxFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", sderrors.NewFileError("read", rel, err)
	}
	if err := x.validator.Validate(rel, data); err != nil {
		return "", sderrors.NewUnsupportedContentError(rel, err)
	}
	return string(data), nil
}

func (x *FSIndex) Subscribe() (<-chan Event, func()) {
	return x.hub.subscribe()
}

// publish announces ev for corpus paths only. Overlays and focus are still
// tracked for other paths, but nothing counts them.
func (x *FSIndex) publish(ev Event) {
	if x.Matches(ev.Path) {
		x.hub.publish(ev)
	}
}

// Edit records unsaved text for path and publishes FileChanged.
func (x *FSIndex) Edit(path, text string) error {
	rel, err := x.Resolve(path)
	if err != nil {
		return err
	}
	x.mu.Lock()
	x.overlays[rel] = text
	x.mu.Unlock()
	x.publish(Event{Kind: FileChanged, Path: rel})
	return nil
}

// Save drops the overlay for path, making disk authoritative, and publishes FileSaved.
func (x *FSIndex) Save(path string) error {
	rel, err := x.Resolve(path)
	if err != nil {
		return err
	}
	x.mu.Lock()
	delete(x.overlays, rel)
	x.mu.Unlock()
	x.publish(Event{Kind: FileSaved, Path: rel})
	return nil
}

// Discard drops unsaved text for path and publishes FileChanged.
func (x *FSIndex) Discard(path string) error {
	rel, err := x.Resolve(path)
	if err != nil {
		return err
	}
	x.mu.Lock()
	_, had := x.overlays[rel]
	delete(x.overlays, rel)
	x.mu.Unlock()
	if had {
		x.publish(Event{Kind: FileChanged, Path: rel})
	}
	return nil
}

// Activate marks path as the focused file and publishes ActiveFileChanged.
func (x *FSIndex) Activate(path string) error {
	rel, err := x.Resolve(path)
	if err != nil {
		return err
	}
	x.mu.Lock()
	x.active = rel
	x.mu.Unlock()
	x.publish(Event{Kind: ActiveFileChanged, Path: rel})
	return nil
}

// Active returns the focused corpus path, or "".
func (x *FSIndex) Active() string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.active
}

// Overlay returns the unsaved text for path, if any.
func (x *FSIndex) Overlay(path string) (string, bool) {
	rel, err := x.Resolve(path)
	if err != nil {
		return "", false
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	text, ok := x.overlays[rel]
	return text, ok
}

// Close cancels all subscriptions.
func (x *FSIndex) Close() {
	x.hub.closeAll()
}
