package security

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileValidator(t *testing.T) {
	validator := NewFileValidator()

	t.Run("LuaSource", func(t *testing.T) {
		content := "local hp = getHP(1)\n\tsetHP(1, hp - 1)\r\n-- done\n"
		assert.NoError(t, validator.Validate("a.lua", []byte(content)))
	})

	t.Run("Empty", func(t *testing.T) {
		assert.NoError(t, validator.Validate("empty.lua", nil))
	})

	t.Run("UTF8WithBOM", func(t *testing.T) {
		content := append([]byte{0xEF, 0xBB, 0xBF}, []byte("print('héllo')")...)
		assert.NoError(t, validator.Validate("bom.lua", content))
	})

	t.Run("PrecompiledChunk", func(t *testing.T) {
		content := append([]byte("\x1bLua\x54\x00"), bytes.Repeat([]byte("x"), 32)...)
		err := validator.Validate("compiled.lua", content)
		assert.ErrorIs(t, err, ErrPrecompiledChunk)
		assert.Contains(t, err.Error(), "compiled.lua")
	})

	t.Run("PNGDisguisedAsLua", func(t *testing.T) {
		content := append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, []byte("IHDR")...)
		err := validator.Validate("image.lua", content)
		assert.ErrorIs(t, err, ErrDisguisedFile)
		assert.Contains(t, err.Error(), "png")
	})

	t.Run("TextStartingWithMZ", func(t *testing.T) {
		assert.NoError(t, validator.Validate("mz.lua", []byte("MZ = require('mz')\n")))
	})

	t.Run("NULByte", func(t *testing.T) {
		err := validator.Validate("nul.lua", []byte("local a = 1\x00\n"))
		assert.ErrorIs(t, err, ErrBinaryContent)
	})

	t.Run("ControlHeavy", func(t *testing.T) {
		content := strings.Repeat("\x01\x02\x03a", 100)
		assert.ErrorIs(t, validator.Validate("ctl.lua", []byte(content)), ErrBinaryContent)
	})

	t.Run("OnlyHeaderInspected", func(t *testing.T) {
		v := &FileValidator{HeaderSize: 16, BinaryRatio: 0.3}
		content := append([]byte(strings.Repeat("a", 16)), 0x00, 0x00)
		assert.NoError(t, v.Validate("tail.lua", content))
	})
}
