package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hbollon/go-edlib"
	"github.com/surgebase/porter2"
)

// Layer weights, strongest first.
const (
	scoreExact       = 1.0
	scoreExactFold   = 0.97
	scorePrefix      = 0.93
	scoreSubstring   = 0.9
	scoreFuzzy       = 0.7
	scoreDescription = 0.55
	scoreModule      = 0.5

	fuzzyThreshold = 0.8
	minStemLength  = 3
)

// SearchResult is one ranked catalog hit.
type SearchResult struct {
	Snippet Snippet `json:"snippet"`
	Score   float64 `json:"score"`
	Reason  string  `json:"reason"`
}

// Search ranks merged entries against query: key matches first, then typo
// tolerant key similarity, then stemmed description terms and module names.
// limit <= 0 returns every hit.
func Search(snap *Snapshot, query string, limit int) []SearchResult {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	q := strings.ToLower(query)
	qStems := stems(query)

	var results []SearchResult
	for _, sn := range snap.Enumerate() {
		score, reason := scoreSnippet(sn, query, q, qStems)
		if score > 0 {
			results = append(results, SearchResult{Snippet: sn, Score: score, Reason: reason})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Snippet.Key < results[j].Snippet.Key
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func scoreSnippet(sn Snippet, query, q string, qStems []string) (float64, string) {
	key := strings.ToLower(sn.Key)
	switch {
	case sn.Key == query:
		return scoreExact, "exact"
	case key == q:
		return scoreExactFold, "exact"
	case strings.HasPrefix(key, q):
		return scorePrefix, "prefix"
	case strings.Contains(key, q):
		return scoreSubstring, "substring"
	}

	best, reason := 0.0, ""
	if sim, err := edlib.StringsSimilarity(q, key, edlib.JaroWinkler); err == nil && float64(sim) >= fuzzyThreshold {
		best, reason = scoreFuzzy*float64(sim), "fuzzy"
	}

	if len(qStems) > 0 {
		docStems := make(map[string]struct{})
		for _, s := range stems(sn.Description + " " + sn.ParamsDoc + " " + sn.ReturnDoc) {
			docStems[s] = struct{}{}
		}
		hit := 0
		for _, s := range qStems {
			if _, ok := docStems[s]; ok {
				hit++
			}
		}
		if hit > 0 {
			if s := scoreDescription * float64(hit) / float64(len(qStems)); s > best {
				best, reason = s, "description"
			}
		}
	}

	if best < scoreModule && sn.Module != "" && strings.EqualFold(sn.Module, query) {
		best, reason = scoreModule, "module"
	}
	return best, reason
}

// stems lowercases and splits text into words, stemming ASCII words.
func stems(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !(r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
	})
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(w)
		if isASCII(w) {
			if len(w) < minStemLength {
				continue
			}
			w = porter2.Stem(w)
		}
		out = append(out, w)
	}
	return out
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
