package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sderrors "github.com/standardbeagle/snipdex/internal/errors"
)

// Field names accepted on read. The first of each list is the one written.
// The localized names are the ones written by the editor extension.
var fieldAliases = struct {
	module, params, description, returns, example []string
}{
	module:      []string{"module", "模块"},
	params:      []string{"paramsDoc", "参数说明"},
	description: []string{"description", "接口功能详述"},
	returns:     []string{"returnDoc", "返回参数", "返回值说明"},
	example:     []string{"example", "body", "示例"},
}

type documentEntry struct {
	Module      string   `json:"module,omitempty"`
	ParamsDoc   string   `json:"paramsDoc,omitempty"`
	Description string   `json:"description,omitempty"`
	ReturnDoc   string   `json:"returnDoc,omitempty"`
	Example     []string `json:"example,omitempty"`
}

// LoadLayerFile reads one layer document. A missing or empty file is an empty
// layer. An unreadable or malformed file is also an empty layer, returned
// together with a *errors.CatalogError for the caller to report.
func LoadLayerFile(kind LayerKind, path string) (Layer, error) {
	data, err := os.ReadFile(path)
	return decodeLayerFile(kind, path, data, err)
}

func decodeLayerFile(kind LayerKind, path string, data []byte, readErr error) (Layer, error) {
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return Layer{}, nil
		}
		return Layer{}, sderrors.NewCatalogError(kind.String(), "read", readErr).WithPath(path)
	}

	layer, err := DecodeLayer(data)
	if err != nil {
		return Layer{}, sderrors.NewCatalogError(kind.String(), "decode", err).WithPath(path)
	}
	return layer, nil
}

// DecodeLayer parses a layer document: a JSON object mapping key to entry.
func DecodeLayer(data []byte) (Layer, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Layer{}, nil
	}

	var raw map[string]map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	layer := make(Layer, len(raw))
	for key, fields := range raw {
		sn, err := decodeEntry(key, fields)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", key, err)
		}
		layer[key] = sn
	}
	return layer, nil
}

func decodeEntry(key string, fields map[string]json.RawMessage) (Snippet, error) {
	sn := Snippet{Key: key}
	var err error
	if sn.Module, err = stringField(fields, fieldAliases.module); err != nil {
		return sn, err
	}
	if sn.ParamsDoc, err = stringField(fields, fieldAliases.params); err != nil {
		return sn, err
	}
	if sn.Description, err = stringField(fields, fieldAliases.description); err != nil {
		return sn, err
	}
	if sn.ReturnDoc, err = stringField(fields, fieldAliases.returns); err != nil {
		return sn, err
	}
	if sn.Body, err = linesField(fields, fieldAliases.example); err != nil {
		return sn, err
	}
	return sn, nil
}

func lookup(fields map[string]json.RawMessage, names []string) (json.RawMessage, string, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok {
			return v, n, true
		}
	}
	return nil, "", false
}

func stringField(fields map[string]json.RawMessage, names []string) (string, error) {
	raw, name, ok := lookup(fields, names)
	if !ok || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %s: expected string", name)
	}
	return s, nil
}

// linesField accepts a string (split on newlines) or a list of strings.
func linesField(fields map[string]json.RawMessage, names []string) ([]string, error) {
	raw, name, ok := lookup(fields, names)
	if !ok || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return nil, nil
		}
		return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n"), nil
	}

	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, fmt.Errorf("field %s: expected string or list of strings", name)
	}
	return lines, nil
}

// EncodeLayer renders a layer document with 2-space indentation and sorted keys.
func EncodeLayer(layer Layer) ([]byte, error) {
	doc := make(map[string]documentEntry, len(layer))
	for key, sn := range layer {
		doc[key] = documentEntry{
			Module:      sn.Module,
			ParamsDoc:   sn.ParamsDoc,
			Description: sn.Description,
			ReturnDoc:   sn.ReturnDoc,
			Example:     sn.Body,
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SaveLayerFile writes the layer document atomically (temp file, then rename)
// and returns the bytes written.
func SaveLayerFile(kind LayerKind, path string, layer Layer) ([]byte, error) {
	data, err := EncodeLayer(layer)
	if err != nil {
		return nil, sderrors.NewCatalogError(kind.String(), "encode", err).WithPath(path)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return nil, sderrors.NewCatalogError(kind.String(), "save", err).WithPath(path)
	}
	return data, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
