// Package catalog holds the layered snippet catalog: a base layer replaced
// wholesale by imports and a custom layer edited entry by entry. Custom
// entries shadow base entries with the same key.
package catalog

import (
	"strings"
)

// Snippet is one catalog entry.
type Snippet struct {
	Key         string   `json:"key"`
	Module      string   `json:"module"`
	Description string   `json:"description"`
	ParamsDoc   string   `json:"paramsDoc"`
	ReturnDoc   string   `json:"returnDoc"`
	Body        []string `json:"body"`
}

// BodyText returns the body lines joined with newlines.
func (s Snippet) BodyText() string {
	return strings.Join(s.Body, "\n")
}

func (s Snippet) clone() Snippet {
	s.Body = append([]string(nil), s.Body...)
	return s
}

// LayerKind identifies which layer an entry comes from.
type LayerKind int

const (
	LayerBase LayerKind = iota
	LayerCustom
)

func (k LayerKind) String() string {
	switch k {
	case LayerBase:
		return "base"
	case LayerCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Layer maps key to snippet for one layer.
type Layer map[string]Snippet

func (l Layer) clone() Layer {
	out := make(Layer, len(l))
	for k, s := range l {
		s = s.clone()
		s.Key = k
		out[k] = s
	}
	return out
}
