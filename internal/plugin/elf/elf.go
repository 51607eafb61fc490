// Package elf provides the ELF loader module: it maps the allocatable
// sections of an ELF image into memory areas and turns its symbols into
// initial labels.
package elf

import (
	"bytes"
	stdelf "debug/elf"
	"errors"
	"fmt"
	"strings"

	"github.com/ianlancetaylor/demangle"
	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/label"
	"github.com/retroenv/disasmdb/internal/memory"
	"github.com/retroenv/disasmdb/internal/plugin"
	"github.com/retroenv/disasmdb/internal/stream"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/retrogolib/set"
)

var elfMagic = []byte{0x7f, 'E', 'L', 'F'}

// Loader maps ELF images.
type Loader struct {
	logger *log.Logger
}

// New creates the ELF loader.
func New(logger *log.Logger) *Loader {
	return &Loader{logger: logger}
}

// compile time interface check
var _ plugin.Loader = (*Loader)(nil)

// Name returns the loader name.
func (l *Loader) Name() string {
	return "ELF"
}

// Supports reports whether the stream starts with the ELF magic.
func (l *Loader) Supports(strm *stream.Stream) bool {
	head, ok := strm.Read(0, len(elfMagic))
	return ok && bytes.Equal(head, elfMagic)
}

// Load maps the allocatable sections into memory areas and adds labels
// for the defined symbols.
func (l *Loader) Load(doc *document.Document, strm *stream.Stream) error {
	file, err := stdelf.NewFile(bytes.NewReader(strm.Bytes()))
	if err != nil {
		return fmt.Errorf("parsing ELF image: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	doc.SetBinaryStream(strm)

	for _, section := range file.Sections {
		if section.Flags&stdelf.SHF_ALLOC == 0 || section.Size == 0 {
			continue
		}

		area := l.areaForSection(section)
		if !doc.AddMemoryArea(area) {
			l.logger.Warn("Skipping overlapping ELF section",
				log.String("section", section.Name))
		}
	}

	if err := l.addSymbolLabels(doc, file); err != nil {
		return err
	}
	return nil
}

// areaForSection maps a section header to a memory area. Sections
// without file content (.bss style) become virtual areas.
func (l *Loader) areaForSection(section *stdelf.Section) memory.Area {
	access := memory.Read
	if section.Flags&stdelf.SHF_WRITE != 0 {
		access |= memory.Write
	}
	if section.Flags&stdelf.SHF_EXECINSTR != 0 {
		access |= memory.Execute
	}

	base := address.New(section.Addr)
	if section.Type == stdelf.SHT_NOBITS {
		return memory.NewVirtual(section.Name, base, section.Size, access)
	}
	return memory.NewMapped(section.Name, section.Offset, section.FileSize,
		base, section.Size, access)
}

// addSymbolLabels adds one label per defined symbol. C++ names are
// demangled for display; whitespace of demangled names is folded since
// the database format is whitespace delimited.
func (l *Loader) addSymbolLabels(doc *document.Document, file *stdelf.File) error {
	symbols, err := file.Symbols()
	if err != nil {
		if errors.Is(err, stdelf.ErrNoSymbols) {
			return nil
		}
		return fmt.Errorf("reading ELF symbols: %w", err)
	}

	seen := set.New[uint64]()
	for _, symbol := range symbols {
		if symbol.Name == "" || symbol.Section == stdelf.SHN_UNDEF {
			continue
		}
		if seen.Contains(symbol.Value) {
			continue
		}

		name := labelName(symbol.Name)
		typ := labelType(symbol)
		if !doc.AddLabel(address.New(symbol.Value), label.New(name, typ, 1)) {
			l.logger.Debug("Skipping duplicate symbol label",
				log.String("name", name))
			continue
		}
		seen.Add(symbol.Value)
	}
	return nil
}

func labelName(name string) string {
	demangled := demangle.Filter(name)
	return strings.Join(strings.Fields(demangled), "_")
}

func labelType(symbol stdelf.Symbol) label.Type {
	var typ label.Type

	switch stdelf.ST_TYPE(symbol.Info) {
	case stdelf.STT_FUNC:
		typ |= label.Code
	case stdelf.STT_OBJECT:
		typ |= label.Data
	default:
		typ |= label.Data
	}

	switch stdelf.ST_BIND(symbol.Info) {
	case stdelf.STB_GLOBAL, stdelf.STB_WEAK:
		typ |= label.Global
	default:
		typ |= label.Local
	}
	return typ
}
