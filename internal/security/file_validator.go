// Package security screens corpus files before their text is scanned for
// snippet keys.
package security

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrBinaryContent marks a file whose header is mostly control bytes.
	ErrBinaryContent = errors.New("file appears to be binary")
	// ErrPrecompiledChunk marks luac output saved under a source extension.
	ErrPrecompiledChunk = errors.New("precompiled Lua chunk")
	// ErrDisguisedFile marks a known binary format behind a text extension.
	ErrDisguisedFile = errors.New("file signature does not match a text file")
)

const (
	defaultHeaderSize  = 64 * 1024
	defaultBinaryRatio = 0.3
)

var luaSignature = []byte("\x1bLua")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// File signatures (magic bytes) of formats that are never corpus text.
var magicBytes = []struct {
	format string
	magic  []byte
}{
	{"png", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{"jpeg", []byte{0xFF, 0xD8, 0xFF}},
	{"gif", []byte("GIF8")},
	{"pdf", []byte("%PDF-")},
	{"zip", []byte{0x50, 0x4B, 0x03, 0x04}},
	{"gzip", []byte{0x1F, 0x8B}},
	{"elf", []byte{0x7F, 'E', 'L', 'F'}},
	{"pe", []byte{0x4D, 0x5A}},
}

// FileValidator rejects corpus files that are not source text: precompiled
// chunks, known binary formats, and data dominated by control bytes. Only
// the first HeaderSize bytes are inspected.
type FileValidator struct {
	HeaderSize  int
	BinaryRatio float64 // share of control bytes above which a header is binary
}

func NewFileValidator() *FileValidator {
	return &FileValidator{
		HeaderSize:  defaultHeaderSize,
		BinaryRatio: defaultBinaryRatio,
	}
}

// Validate checks data read from path. The returned error wraps one of the
// package sentinels.
func (fv *FileValidator) Validate(path string, data []byte) error {
	header := data
	if fv.HeaderSize > 0 && len(header) > fv.HeaderSize {
		header = header[:fv.HeaderSize]
	}
	header = bytes.TrimPrefix(header, utf8BOM)

	if bytes.HasPrefix(header, luaSignature) {
		return fmt.Errorf("%s: %w", path, ErrPrecompiledChunk)
	}
	if err := fv.checkMagicBytes(path, header); err != nil {
		return err
	}
	if fv.isBinaryData(header) {
		return fmt.Errorf("%s: %w", path, ErrBinaryContent)
	}
	return nil
}

// checkMagicBytes rejects headers carrying a binary format signature. The
// short PE signature only counts when the header is not valid UTF-8, since
// "MZ" can open a text file.
func (fv *FileValidator) checkMagicBytes(path string, header []byte) error {
	for _, m := range magicBytes {
		if !bytes.HasPrefix(header, m.magic) {
			continue
		}
		if len(m.magic) < 3 && utf8.Valid(header) {
			continue
		}
		ext := strings.ToLower(filepath.Ext(path))
		return fmt.Errorf("%s: %s signature under %q: %w", path, m.format, ext, ErrDisguisedFile)
	}
	return nil
}

// isBinaryData checks if the header contains binary data. A NUL byte is
// decisive; otherwise the share of control characters decides.
func (fv *FileValidator) isBinaryData(data []byte) bool {
	if len(data) == 0 {
		return false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}

	nonPrintable := 0
	for _, b := range data {
		// Control characters other than tab, LF, VT, FF and CR, plus DEL.
		if b < 9 || (b > 13 && b < 32) || b == 127 {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(data)) > fv.BinaryRatio
}
