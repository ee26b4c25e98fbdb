// Package matcher counts whole-word occurrences of a fixed identifier set in
// one linear pass over a text, using an Aho–Corasick automaton.
package matcher

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
)

// Counts maps an identifier to its number of whole-word occurrences.
// Identifiers that did not occur are absent.
type Counts map[string]int

// Total returns the sum of all counts.
func (c Counts) Total() int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

// Match is one whole-word occurrence. Start and End are byte offsets, End exclusive.
type Match struct {
	Key   string
	Start int
	End   int
}

type node struct {
	edges map[byte]int32
	fail  int32
	out   int32 // index into keys when a key ends here, else -1
	dict  int32 // nearest node on the fail chain with out >= 0, else -1
}

// Automaton is immutable after Build and safe for concurrent use.
type Automaton struct {
	nodes       []node
	keys        []string
	fingerprint uint64
}

// IsWordRune reports whether r is a word character: a Unicode letter, a
// Unicode digit or underscore.
func IsWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// NormalizeKeys drops empty keys, removes duplicates and sorts.
func NormalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Fingerprint hashes a normalized key set. Equal sets hash equally regardless
// of input order.
func Fingerprint(keys []string) uint64 {
	return fingerprintSorted(NormalizeKeys(keys))
}

func fingerprintSorted(sorted []string) uint64 {
	d := xxhash.New()
	for _, k := range sorted {
		_, _ = d.WriteString(k)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Build constructs the automaton for keys. Empty keys are ignored.
func Build(keys []string) *Automaton {
	sorted := NormalizeKeys(keys)
	a := &Automaton{
		keys:        sorted,
		nodes:       make([]node, 1, 1+len(sorted)*4),
		fingerprint: fingerprintSorted(sorted),
	}
	a.nodes[0] = node{out: -1, dict: -1}

	for i, k := range sorted {
		cur := int32(0)
		for j := 0; j < len(k); j++ {
			b := k[j]
			nxt, ok := a.nodes[cur].edges[b]
			if !ok {
				nxt = int32(len(a.nodes))
				a.nodes = append(a.nodes, node{out: -1, dict: -1})
				if a.nodes[cur].edges == nil {
					a.nodes[cur].edges = make(map[byte]int32, 2)
				}
				a.nodes[cur].edges[b] = nxt
			}
			cur = nxt
		}
		a.nodes[cur].out = int32(i)
	}

	a.link()
	return a
}

// link computes failure and dictionary links breadth-first.
func (a *Automaton) link() {
	queue := make([]int32, 0, len(a.nodes))
	for _, child := range a.nodes[0].edges {
		a.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]

		for b, v := range a.nodes[u].edges {
			f := a.nodes[u].fail
			for {
				if t, ok := a.nodes[f].edges[b]; ok {
					a.nodes[v].fail = t
					break
				}
				if f == 0 {
					a.nodes[v].fail = 0
					break
				}
				f = a.nodes[f].fail
			}

			fv := a.nodes[v].fail
			if a.nodes[fv].out >= 0 {
				a.nodes[v].dict = fv
			} else {
				a.nodes[v].dict = a.nodes[fv].dict
			}
			queue = append(queue, v)
		}
	}
}

// Keys returns the identifier set, sorted.
func (a *Automaton) Keys() []string {
	return append([]string(nil), a.keys...)
}

// Len returns the number of identifiers.
func (a *Automaton) Len() int {
	return len(a.keys)
}

// Fingerprint returns the xxhash of the identifier set.
func (a *Automaton) Fingerprint() uint64 {
	return a.fingerprint
}

// Scan counts whole-word occurrences of every identifier in text.
func (a *Automaton) Scan(text string) Counts {
	if len(a.keys) == 0 {
		return Counts{}
	}
	hits := make([]int, len(a.keys))
	a.walk(text, func(idx, _, _ int) {
		hits[idx]++
	})

	counts := make(Counts)
	for i, n := range hits {
		if n > 0 {
			counts[a.keys[i]] = n
		}
	}
	return counts
}

// Matches returns every whole-word occurrence in text, ordered by end offset
// and, for equal ends, longest first.
func (a *Automaton) Matches(text string) []Match {
	var out []Match
	a.walk(text, func(idx, start, end int) {
		out = append(out, Match{Key: a.keys[idx], Start: start, End: end})
	})
	return out
}

func (a *Automaton) walk(text string, emit func(idx, start, end int)) {
	if len(a.keys) == 0 {
		return
	}
	state := int32(0)
	for i := 0; i < len(text); i++ {
		b := text[i]
		for state != 0 {
			if _, ok := a.nodes[state].edges[b]; ok {
				break
			}
			state = a.nodes[state].fail
		}
		if nxt, ok := a.nodes[state].edges[b]; ok {
			state = nxt
		}

		o := state
		if a.nodes[o].out < 0 {
			o = a.nodes[o].dict
		}
		for o >= 0 {
			idx := int(a.nodes[o].out)
			end := i + 1
			start := end - len(a.keys[idx])
			if isBoundary(text, start, end) {
				emit(idx, start, end)
			}
			o = a.nodes[o].dict
		}
	}
}

func isBoundary(text string, start, end int) bool {
	if start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(text[:start]); IsWordRune(r) {
			return false
		}
	}
	if end < len(text) {
		if r, _ := utf8.DecodeRuneInString(text[end:]); IsWordRune(r) {
			return false
		}
	}
	return true
}
