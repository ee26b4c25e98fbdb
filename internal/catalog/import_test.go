package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sderrors "github.com/standardbeagle/snipdex/internal/errors"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFile_JSONObject(t *testing.T) {
	path := writeTemp(t, "snippets.json", `{"A.b": {"module": "a", "example": "A.b()"}}`)

	layer, err := ImportFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.b()"}, layer["A.b"].Body)
}

func TestImportFile_JSONRows(t *testing.T) {
	path := writeTemp(t, "rows.json", `[
  {"key": "A.b", "module": "a"},
  {"接口名": "C.d", "模块": "c", "示例": ["C.d()"]}
]`)

	layer, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, layer, 2)
	assert.Equal(t, "c", layer["C.d"].Module)
	assert.Equal(t, []string{"C.d()"}, layer["C.d"].Body)
}

func TestImportFile_JSONRowMissingKey(t *testing.T) {
	path := writeTemp(t, "rows.json", `[{"module": "a"}]`)

	_, err := ImportFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing key")
}

func TestImportFile_TOML(t *testing.T) {
	path := writeTemp(t, "snippets.toml", `
["Player.GetHp"]
module = "player"
description = "current hp"
example = ["local hp = Player.GetHp(id)"]

["Item.Use"]
module = "item"
example = "Item.Use(id)"
`)

	layer, err := ImportFile(path)
	require.NoError(t, err)
	require.Len(t, layer, 2)
	assert.Equal(t, "current hp", layer["Player.GetHp"].Description)
	assert.Equal(t, []string{"local hp = Player.GetHp(id)"}, layer["Player.GetHp"].Body)
	assert.Equal(t, []string{"Item.Use(id)"}, layer["Item.Use"].Body)
}

func TestImportFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unsupported extension", "snippets.xlsx", "binary"},
		{"malformed json", "snippets.json", "{"},
		{"malformed toml", "snippets.toml", "[unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ImportFile(writeTemp(t, tt.file, tt.content))
			require.Error(t, err)

			var catErr *sderrors.CatalogError
			require.True(t, errors.As(err, &catErr))
			assert.Equal(t, sderrors.ErrorTypeImport, catErr.Type)
			assert.Equal(t, "import", catErr.Operation)
		})
	}
}

func TestImportFile_Missing(t *testing.T) {
	_, err := ImportFile(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
