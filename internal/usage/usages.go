package usage

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/standardbeagle/snipdex/internal/corpus"
	sderrors "github.com/standardbeagle/snipdex/internal/errors"
	"github.com/standardbeagle/snipdex/internal/logging"
	"github.com/standardbeagle/snipdex/internal/matcher"
)

// Location is one whole-word occurrence of an identifier. Line and Column
// are 1-based; Column counts runes.
type Location struct {
	Path     string `json:"path"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	LineText string `json:"line_text"`
}

// FindUsages lists every occurrence of key across the corpus, ordered by
// path, then position. Unreadable files are skipped.
func FindUsages(ctx context.Context, idx corpus.Index, key string) ([]Location, error) {
	if key == "" {
		return nil, nil
	}
	aut := matcher.Build([]string{key})
	files, err := idx.ListFiles(ctx)
	if err != nil {
		return nil, err
	}

	logger := logging.For("usage")
	var out []Location
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := idx.ReadText(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("skipping unreadable file", "err", sderrors.NewScanError(path, 0, err))
			continue
		}
		out = append(out, Locate(aut, path, text)...)
	}
	return out, nil
}

// Locate converts the matches of aut in text into locations.
func Locate(aut *matcher.Automaton, path, text string) []Location {
	matches := aut.Matches(text)
	if len(matches) == 0 {
		return nil
	}

	out := make([]Location, 0, len(matches))
	line, lineStart := 1, 0
	pos := 0
	for _, m := range matches {
		// Matches are ordered by end offset. A match starting before pos
		// overlaps the previous one, so it is on the current line.
		for pos < m.Start {
			if text[pos] == '\n' {
				line++
				lineStart = pos + 1
			}
			pos++
		}
		lineEnd := strings.IndexByte(text[lineStart:], '\n')
		if lineEnd < 0 {
			lineEnd = len(text)
		} else {
			lineEnd += lineStart
		}
		out = append(out, Location{
			Path:     path,
			Line:     line,
			Column:   utf8.RuneCountInString(text[lineStart:m.Start]) + 1,
			LineText: strings.TrimRight(text[lineStart:lineEnd], "\r"),
		})
	}
	return out
}
