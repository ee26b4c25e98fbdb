package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	sderrors "github.com/standardbeagle/snipdex/internal/errors"
)

var keyAliases = []string{"key", "name", "接口名"}

// ImportFile reads a bulk document destined to replace the base layer.
// Supported: .json (object keyed by snippet key, or a list of entries with a
// "key" field) and .toml (one table per key). Unlike LoadLayerFile, any
// problem is an error: a failed import must not wipe the base layer.
func ImportFile(path string) (Layer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, importError(path, err)
	}

	var layer Layer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		layer, err = decodeImportJSON(data)
	case ".toml":
		layer, err = decodeImportTOML(data)
	default:
		err = fmt.Errorf("unsupported import format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, importError(path, err)
	}
	return layer, nil
}

func importError(path string, err error) *sderrors.CatalogError {
	e := sderrors.NewCatalogError(LayerBase.String(), "import", err).WithPath(path)
	e.Type = sderrors.ErrorTypeImport
	return e
}

func decodeImportJSON(data []byte) (Layer, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return DecodeLayer(data)
	}

	var rows []map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, err
	}
	layer := make(Layer, len(rows))
	for i, row := range rows {
		key, err := stringField(row, keyAliases)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if key == "" {
			return nil, fmt.Errorf("row %d: missing key", i)
		}
		sn, err := decodeEntry(key, row)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i, key, err)
		}
		layer[key] = sn
	}
	return layer, nil
}

// decodeImportTOML normalizes TOML tables through JSON so both formats share
// the field alias handling.
func decodeImportTOML(data []byte) (Layer, error) {
	var tables map[string]map[string]any
	if err := toml.Unmarshal(data, &tables); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("toml %d:%d: %w", row, col, err)
		}
		return nil, err
	}
	asJSON, err := json.Marshal(tables)
	if err != nil {
		return nil, err
	}
	return DecodeLayer(asJSON)
}
