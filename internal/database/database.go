// Package database defines the contract storage backends implement to
// persist a document, and the error conditions they share.
package database

import (
	"errors"

	"github.com/retroenv/disasmdb/internal/document"
)

// Backend stores and restores a document.
type Backend interface {
	// Name returns the backend name, e.g. "Text".
	Name() string
	// Extension returns the file extension including the dot.
	Extension() string
	// IsCompatible reports whether the file at path was written by this
	// backend.
	IsCompatible(path string) bool
	// Open parses the file at path and binds the path for later
	// flushes. Opening is refused while a path is bound.
	Open(path string) error
	// Create binds a fresh database file. An existing file is refused
	// unless force is set.
	Create(path string, force bool) error
	// Flush rewrites the whole database file.
	Flush() error
	// Close flushes and unbinds the path.
	Close() error
	// Document returns the document the backend operates on.
	Document() *document.Document
	// SetDocument replaces the document the backend operates on.
	SetDocument(doc *document.Document)
}

// Shared backend error conditions, checked with errors.Is.
var (
	ErrAlreadyBound = errors.New("database path already bound")
	ErrNotBound     = errors.New("no database path bound")
	ErrFileExists   = errors.New("database file already exists")
	ErrIncompatible = errors.New("incompatible database file")
	ErrMalformed    = errors.New("malformed database file")
)
