// Package textdb implements the line oriented text storage backend.
// A database is a single UTF-8 file of sections introduced by "## "
// headers; opaque byte payloads are base64 encoded. The format round
// trips a document built from flat addresses; address kinds are not
// stored (parsed addresses are flat) and neither is the default
// architecture of a memory area.
package textdb

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"sync"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/database"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/label"
	"github.com/retroenv/disasmdb/internal/memory"
	"github.com/retroenv/retrogolib/log"
)

// Backend identification.
const (
	Name      = "Text"
	Extension = ".mdt"

	magic = "# Medusa Text Database"
)

// ArchitectureResolver answers whether an architecture plug-in is
// available for a tag. Tags without a plug-in are skipped with a
// warning when a database is opened.
type ArchitectureResolver interface {
	HasArchitecture(tag cell.Tag) bool
}

// Database is the text backend bound to one document.
type Database struct {
	logger   *log.Logger
	resolver ArchitectureResolver

	mu   sync.Mutex
	path string
	doc  *document.Document
}

// New creates a text backend over a fresh document. The resolver may be
// nil, all architecture tags are then accepted on open.
func New(logger *log.Logger, resolver ArchitectureResolver) *Database {
	return &Database{
		logger:   logger,
		resolver: resolver,
		doc:      document.New(),
	}
}

// compile time interface check
var _ database.Backend = (*Database)(nil)

// Name returns the backend name.
func (d *Database) Name() string {
	return Name
}

// Extension returns the database file extension.
func (d *Database) Extension() string {
	return Extension
}

// Document returns the document the backend operates on.
func (d *Database) Document() *document.Document {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc
}

// SetDocument replaces the document the backend operates on.
func (d *Database) SetDocument(doc *document.Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.doc = doc
}

// IsCompatible reports whether the first line of the file matches the
// magic banner.
func (d *Database) IsCompatible(path string) bool {
	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		return false
	}
	return scanner.Text() == magic
}

// Open parses the database file at path and binds the path for later
// flushes. A parse failure discards all partially ingested state.
func (d *Database) Open(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path != "" {
		return database.ErrAlreadyBound
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	doc, err := d.parse(file)
	if err != nil {
		return fmt.Errorf("parsing database %s: %w", path, err)
	}

	d.doc = doc
	d.path = path
	return nil
}

// Create binds a fresh database file, truncating an existing one only
// when force is set.
func (d *Database) Create(path string, force bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path != "" {
		return database.ErrAlreadyBound
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s", database.ErrFileExists, path)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("creating database: %w", err)
	}

	d.path = path
	return nil
}

// Flush rewrites the whole database file from the document state.
func (d *Database) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flush()
}

// Close flushes and unbinds the path.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	err := d.flush()
	d.path = ""
	return err
}

func (d *Database) flush() error {
	if d.path == "" {
		return database.ErrNotBound
	}

	file, err := os.Create(d.path)
	if err != nil {
		return fmt.Errorf("creating database file: %w", err)
	}

	w := bufio.NewWriter(file)
	d.write(w)

	if err := w.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("writing database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing database file: %w", err)
	}
	return nil
}

// write serialises the document section by section. Map backed state is
// emitted in address order so that flushing is deterministic.
func (d *Database) write(w *bufio.Writer) {
	doc := d.doc

	fmt.Fprintln(w, magic)

	fmt.Fprintln(w, "## BinaryStream")
	var raw []byte
	if binary := doc.BinaryStream(); binary != nil {
		raw = binary.Bytes()
	}
	fmt.Fprintln(w, base64.StdEncoding.EncodeToString(raw))

	fmt.Fprintln(w, "## Architecture")
	separator := ""
	for _, tag := range doc.ArchitectureTags() {
		fmt.Fprintf(w, "%s%#x", separator, uint32(tag))
		separator = " "
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## MemoryArea")
	doc.ForEachMemoryArea(func(area memory.Area) {
		fmt.Fprintln(w, area.Dump())
		area.ForEachCellData(func(offset uint64, data cell.Data) {
			fmt.Fprintf(w, "|%#x %s\n", offset, data.Dump())
		})
	})

	fmt.Fprintln(w, "## Label")
	doc.ForEachLabel(func(addr address.Address, lbl label.Label) {
		fmt.Fprintf(w, "%s %s\n", addr.Dump(), lbl.Dump())
	})

	fmt.Fprintln(w, "## CrossReference")
	doc.ForEachCrossReference(func(to address.Address, from []address.Address) {
		fmt.Fprint(w, to.Dump())
		for _, addr := range from {
			fmt.Fprintf(w, " %s", addr.Dump())
		}
		fmt.Fprintln(w)
	})

	fmt.Fprintln(w, "## MultiCell")
	doc.ForEachMultiCell(func(addr address.Address, mc document.MultiCell) {
		fmt.Fprintf(w, "%s %s\n", addr.Dump(), mc.Dump())
	})

	fmt.Fprintln(w, "## Comment")
	doc.ForEachComment(func(addr address.Address, comment string) {
		fmt.Fprintf(w, "%s %s\n", addr.Dump(),
			base64.StdEncoding.EncodeToString([]byte(comment)))
	})
}
