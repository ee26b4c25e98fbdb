package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
)

// Error types for the snippet usage engine
type ErrorType string

const (
	// Catalog errors
	ErrorTypeCatalog ErrorType = "catalog"
	ErrorTypeImport  ErrorType = "import"

	// Corpus scan errors
	ErrorTypeScan ErrorType = "scan"

	// File errors
	ErrorTypeFileNotFound ErrorType = "file_not_found"
	ErrorTypeFileTooLarge ErrorType = "file_too_large"
	ErrorTypePermission   ErrorType = "permission"
	ErrorTypeFileIO       ErrorType = "file_io"
	ErrorTypeUnsupported  ErrorType = "unsupported_content"

	// Configuration errors
	ErrorTypeConfig ErrorType = "config"

	// Internal errors
	ErrorTypeInternal ErrorType = "internal"
)

// CatalogError reports a problem reading, decoding or writing one catalog layer.
type CatalogError struct {
	Type       ErrorType
	Layer      string
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewCatalogError creates a catalog error for the given layer.
func NewCatalogError(layer, op string, err error) *CatalogError {
	return &CatalogError{
		Type:       ErrorTypeCatalog,
		Layer:      layer,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// WithPath adds the backing document path to the error
func (e *CatalogError) WithPath(path string) *CatalogError {
	e.Path = path
	return e
}

// Error implements the error interface
func (e *CatalogError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s layer %s failed for %s: %v", e.Type, e.Layer, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s %s layer %s failed: %v", e.Type, e.Layer, e.Operation, e.Underlying)
}

// Unwrap returns the underlying error for errors.Is/As
func (e *CatalogError) Unwrap() error {
	return e.Underlying
}

// ScanError represents a corpus file that could not be scanned
type ScanError struct {
	Type        ErrorType
	Path        string
	Generation  uint64
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// NewScanError creates a new scan error
func NewScanError(path string, generation uint64, err error) *ScanError {
	return &ScanError{
		Type:        ErrorTypeScan,
		Path:        path,
		Generation:  generation,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: true,
	}
}

// WithRecoverable marks the error as recoverable
func (e *ScanError) WithRecoverable(recoverable bool) *ScanError {
	e.Recoverable = recoverable
	return e
}

// Error implements the error interface
func (e *ScanError) Error() string {
	return fmt.Sprintf("scan of %s failed at generation %d: %v", e.Path, e.Generation, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ScanError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable checks if the scan can be retried later
func (e *ScanError) IsRecoverable() bool {
	return e.Recoverable
}

// FileError represents a file-related error
type FileError struct {
	Type       ErrorType
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewFileError creates a new file error
func NewFileError(op, path string, err error) *FileError {
	return &FileError{
		Type:       classifyFileError(err),
		Path:       path,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func classifyFileError(err error) ErrorType {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return ErrorTypePermission
	case errors.Is(err, fs.ErrNotExist):
		return ErrorTypeFileNotFound
	default:
		return ErrorTypeFileIO
	}
}

// NewFileTooLargeError reports a corpus file skipped because of its size
func NewFileTooLargeError(path string, size, limit int64) *FileError {
	return &FileError{
		Type:       ErrorTypeFileTooLarge,
		Path:       path,
		Operation:  "read",
		Underlying: fmt.Errorf("size %d exceeds limit %d", size, limit),
		Timestamp:  time.Now(),
	}
}

// NewUnsupportedContentError reports a corpus file that is not source text
func NewUnsupportedContentError(path string, err error) *FileError {
	return &FileError{
		Type:       ErrorTypeUnsupported,
		Path:       path,
		Operation:  "validate",
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

// Unwrap returns the underlying error
func (e *FileError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a new config error
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

// Unwrap returns the underlying error
func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// MultiError represents multiple errors
type MultiError struct {
	Errors []error
}

// NewMultiError creates a new multi-error, dropping nil entries
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

// ErrorOrNil returns nil when no errors were collected.
func (e *MultiError) ErrorOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Error implements the error interface
func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

// Unwrap returns all errors
func (e *MultiError) Unwrap() []error {
	return e.Errors
}
