package mcp

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Tool parameter types. Unknown fields are tolerated and reported back as
// warnings rather than rejected.

type ViewParams struct {
	Format       string `json:"format,omitempty"` // text (default), compact, json
	MaxEntries   int    `json:"max_entries,omitempty"`
	Descriptions bool   `json:"descriptions,omitempty"`
}

type ListSnippetsParams struct {
	Module string `json:"module,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type SearchSnippetsParams struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

type FindUsagesParams struct {
	Key        string `json:"key"`
	MaxResults int    `json:"max_results,omitempty"`
}

type PutSnippetParams struct {
	Key         string   `json:"key"`
	Module      string   `json:"module,omitempty"`
	Description string   `json:"description,omitempty"`
	ParamsDoc   string   `json:"params_doc,omitempty"`
	ReturnDoc   string   `json:"return_doc,omitempty"`
	Body        []string `json:"body,omitempty"`
}

type DeleteSnippetParams struct {
	Key string `json:"key"`
}

type RunCommandParams struct {
	Command string `json:"command"`
	Key     string `json:"key,omitempty"`
}

// UnknownField is an argument the tool does not understand.
type UnknownField struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// decodeParams unmarshals tool arguments into v and lists the argument names
// that v has no field for. Empty arguments leave v at its zero value.
func decodeParams(data json.RawMessage, v any) ([]UnknownField, error) {
	if len(strings.TrimSpace(string(data))) == 0 || string(data) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	_, unknown, err := collectUnknownFields(data, knownFields(v))
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}
	return unknown, nil
}

// knownFields returns the JSON names of the struct v points to.
func knownFields(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	known := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		known[name] = struct{}{}
	}
	return known
}

// collectUnknownFields parses raw JSON into a map, capturing any fields
// that aren't part of the known field set, ordered by name.
func collectUnknownFields(data []byte, known map[string]struct{}) (map[string]json.RawMessage, []UnknownField, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, nil, err
	}

	var unknown []UnknownField
	for key, value := range raw {
		if _, ok := known[key]; !ok {
			unknown = append(unknown, decodeUnknownField(key, value))
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i].Name < unknown[j].Name })
	return raw, unknown, nil
}

func decodeUnknownField(name string, data json.RawMessage) UnknownField {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		value = string(data)
	}
	return UnknownField{Name: name, Value: value}
}

func unknownWarnings(fields []UnknownField) []string {
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, fmt.Sprintf("ignored unknown parameter %q", f.Name))
	}
	return out
}
