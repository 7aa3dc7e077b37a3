// Package jsonfile reads and atomically rewrites whole JSON documents.
package jsonfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Error represents a failure accessing a JSON document on disk.
type Error struct {
	Path string
	Op   string // "read", "parse", "encode", "write", "rename"
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("json file %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Read returns the raw document. A missing file yields (nil, nil): absence is
// treated as an empty document by every caller.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &Error{Path: path, Op: "read", Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	return data, nil
}

// Decode reads path into v. It reports whether the file existed with content.
func Decode(path string, v any) (bool, error) {
	data, err := Read(path)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, &Error{Path: path, Op: "parse", Err: err}
	}
	return true, nil
}

// Encode marshals v with two-space indentation, leaving non-ASCII text unescaped.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteAtomic marshals v and replaces path with the result.
func WriteAtomic(path string, v any) error {
	data, err := Encode(v)
	if err != nil {
		return &Error{Path: path, Op: "encode", Err: err}
	}
	return WriteBytesAtomic(path, data)
}

// WriteBytesAtomic writes data to a temp file in the target directory, syncs
// it, then renames it over path. Readers see either the old or the new
// document, never a truncated one.
func WriteBytesAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &Error{Path: path, Op: "write", Err: err}
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &Error{Path: path, Op: "write", Err: err}
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return &Error{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return &Error{Path: path, Op: "write", Err: err}
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return &Error{Path: path, Op: "write", Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return &Error{Path: path, Op: "write", Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return &Error{Path: path, Op: "rename", Err: err}
	}
	return nil
}
