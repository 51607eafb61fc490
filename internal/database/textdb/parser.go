package textdb

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/database"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/label"
	"github.com/retroenv/disasmdb/internal/memory"
	"github.com/retroenv/disasmdb/internal/stream"
	"github.com/retroenv/retrogolib/log"
)

// parser states, selected by the section headers.
type parserState uint8

const (
	unknownState parserState = iota
	binaryStreamState
	architectureState
	memoryAreaState
	labelState
	crossReferenceState
	multiCellState
	commentState
)

var sectionStates = map[string]parserState{
	"## BinaryStream":   binaryStreamState,
	"## Architecture":   architectureState,
	"## MemoryArea":     memoryAreaState,
	"## Label":          labelState,
	"## CrossReference": crossReferenceState,
	"## MultiCell":      multiCellState,
	"## Comment":        commentState,
}

// maximum length of a single line, the base64 binary stream line can
// get large.
const maxLineLength = 64 * 1024 * 1024

// parse reads a whole database file into a fresh document. The caller
// installs the document only on success, a failed parse leaves no
// partial state behind.
func (d *Database) parse(r io.Reader) (*document.Document, error) {
	doc := document.New()
	state := unknownState
	var area memory.Area

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

	for scanner.Scan() {
		line := scanner.Text()

		if line == magic {
			continue
		}
		if strings.HasPrefix(line, "## ") {
			next, ok := sectionStates[line]
			if !ok {
				d.logger.Error("Malformed database section", log.String("header", line))
				return nil, fmt.Errorf("%w: unknown section %q", database.ErrMalformed, line)
			}
			state = next
			continue
		}
		if line == "" && state != binaryStreamState {
			continue
		}

		var err error
		switch state {
		case binaryStreamState:
			err = d.parseBinaryStream(doc, line)
		case architectureState:
			d.parseArchitectures(doc, line)
		case memoryAreaState:
			area, err = d.parseMemoryArea(doc, area, line)
		case labelState:
			d.parseLabel(doc, line)
		case crossReferenceState:
			err = d.parseCrossReference(doc, line)
		case multiCellState:
			err = d.parseMultiCell(doc, line)
		case commentState:
			d.parseComment(doc, line)
		default:
			d.logger.Error("Database content before any section header")
			return nil, fmt.Errorf("%w: content outside of a section", database.ErrMalformed)
		}
		if err != nil {
			d.logger.Error("Malformed database line", log.Err(err))
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading database: %w", err)
	}

	return doc, nil
}

func (d *Database) parseBinaryStream(doc *document.Document, line string) error {
	if line == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(line)
	if err != nil {
		return fmt.Errorf("%w: binary stream: %v", database.ErrMalformed, err)
	}
	doc.SetBinaryStream(stream.New(raw))
	return nil
}

// parseArchitectures reads the space separated hex tags. Tags without a
// registered architecture plug-in are skipped with a warning.
func (d *Database) parseArchitectures(doc *document.Document, line string) {
	for _, field := range strings.Fields(line) {
		value, err := parseHex(field, 32)
		if err != nil {
			d.logger.Warn("Skipping invalid architecture tag", log.String("tag", field))
			continue
		}
		tag := cell.Tag(value)
		if d.resolver != nil && !d.resolver.HasArchitecture(tag) {
			d.logger.Warn("Unable to load architecture", log.Hex("tag", uint32(tag)))
			continue
		}
		doc.RegisterArchitectureTag(tag)
	}
}

// parseMemoryArea handles both the ma(…) area lines and the |offset
// dna(…) cell lines populating the area introduced last.
func (d *Database) parseMemoryArea(doc *document.Document, area memory.Area,
	line string) (memory.Area, error) {

	switch {
	case strings.HasPrefix(line, "ma("):
		next, err := d.parseAreaLine(line)
		if err != nil {
			return nil, err
		}
		doc.AddMemoryArea(next)
		return next, nil

	case strings.HasPrefix(line, "|"):
		if area == nil {
			return nil, fmt.Errorf("%w: cell line before memory area", database.ErrMalformed)
		}
		return area, d.parseCellLine(area, line)
	}
	return nil, fmt.Errorf("%w: unexpected memory area line %q", database.ErrMalformed, line)
}

func (d *Database) parseAreaLine(line string) (memory.Area, error) {
	body, ok := strings.CutSuffix(strings.TrimPrefix(line, "ma("), ")")
	if !ok {
		return nil, fmt.Errorf("%w: unterminated memory area line", database.ErrMalformed)
	}
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: empty memory area line", database.ErrMalformed)
	}

	switch fields[0] {
	case "m":
		if len(fields) != 7 {
			return nil, fmt.Errorf("%w: mapped memory area needs 6 fields", database.ErrMalformed)
		}
		fileOffset, err := parseHex(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: file offset: %v", database.ErrMalformed, err)
		}
		fileSize, err := parseHex(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: file size: %v", database.ErrMalformed, err)
		}
		base, err := address.Parse(fields[4])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrMalformed, err)
		}
		size, err := parseHex(fields[5], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: virtual size: %v", database.ErrMalformed, err)
		}
		return memory.NewMapped(fields[1], fileOffset, fileSize, base, size,
			memory.ParseAccess(fields[6])), nil

	case "v":
		if len(fields) != 5 {
			return nil, fmt.Errorf("%w: virtual memory area needs 4 fields", database.ErrMalformed)
		}
		base, err := address.Parse(fields[2])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", database.ErrMalformed, err)
		}
		size, err := parseHex(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: virtual size: %v", database.ErrMalformed, err)
		}
		return memory.NewVirtual(fields[1], base, size,
			memory.ParseAccess(fields[4])), nil
	}
	return nil, fmt.Errorf("%w: unknown memory area type %q", database.ErrMalformed, fields[0])
}

// parseCellLine reads "|offset dna(type sub size fmt flags mode arch)".
func (d *Database) parseCellLine(area memory.Area, line string) error {
	fields := strings.Fields(line[1:])
	if len(fields) != 8 || !strings.HasPrefix(fields[1], "dna(") ||
		!strings.HasSuffix(fields[7], ")") {
		return fmt.Errorf("%w: invalid cell line %q", database.ErrMalformed, line)
	}

	offset, err := parseHex(fields[0], 64)
	if err != nil {
		return fmt.Errorf("%w: cell offset: %v", database.ErrMalformed, err)
	}

	numbers := []string{
		strings.TrimPrefix(fields[1], "dna("),
		fields[2], fields[3], fields[4], fields[5], fields[6],
		strings.TrimSuffix(fields[7], ")"),
	}
	values := make([]uint64, len(numbers))
	for i, number := range numbers {
		if values[i], err = parseHex(number, 64); err != nil {
			return fmt.Errorf("%w: cell data: %v", database.ErrMalformed, err)
		}
	}

	data := cell.Data{
		Type:        cell.Type(values[0]),
		SubType:     uint8(values[1]),
		Length:      uint16(values[2]),
		FormatStyle: uint16(values[3]),
		Flags:       uint8(values[4]),
		Mode:        uint8(values[5]),
		Arch:        cell.Tag(values[6]),
	}

	var deleted []address.Address
	area.SetCellData(area.BaseAddress().Offset+offset, data, &deleted, true)
	return nil
}

// parseLabel reads "addr lbl(name namelen type version)". Unparseable
// labels are skipped with a warning.
func (d *Database) parseLabel(doc *document.Document, line string) {
	fields := strings.Fields(line)
	if len(fields) != 5 || !strings.HasPrefix(fields[1], "lbl(") ||
		!strings.HasSuffix(fields[4], ")") {
		d.logger.Warn("Skipping invalid label line", log.String("line", line))
		return
	}

	addr, err := address.Parse(fields[0])
	if err != nil {
		d.logger.Warn("Skipping label with invalid address", log.Err(err))
		return
	}

	typ, ok := label.ParseTriplet(fields[3])
	if !ok {
		d.logger.Warn("Unknown type for label", log.String("address", addr.String()))
		return
	}
	version, err := parseHex(strings.TrimSuffix(fields[4], ")"), 32)
	if err != nil {
		d.logger.Warn("Skipping label with invalid version", log.Err(err))
		return
	}

	name := strings.TrimPrefix(fields[1], "lbl(")
	if !doc.AddLabel(addr, label.New(name, typ, uint32(version))) {
		d.logger.Warn("Unable to add label", log.String("name", name))
	}
}

// parseCrossReference reads "to from from …".
func (d *Database) parseCrossReference(doc *document.Document, line string) error {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return fmt.Errorf("%w: cross reference needs a source", database.ErrMalformed)
	}

	to, err := address.Parse(fields[0])
	if err != nil {
		return fmt.Errorf("%w: %v", database.ErrMalformed, err)
	}
	for _, field := range fields[1:] {
		from, err := address.Parse(field)
		if err != nil {
			return fmt.Errorf("%w: %v", database.ErrMalformed, err)
		}
		if !doc.AddCrossReference(to, from) {
			d.logger.Warn("Unable to add cross reference",
				log.String("to", to.String()), log.String("from", from.String()))
		}
	}
	return nil
}

// parseMultiCell reads "addr mc(kind size)".
func (d *Database) parseMultiCell(doc *document.Document, line string) error {
	fields := strings.Fields(line)
	if len(fields) != 3 || !strings.HasPrefix(fields[1], "mc(") ||
		len(fields[1]) != 4 || !strings.HasSuffix(fields[2], ")") {
		return fmt.Errorf("%w: invalid multi cell line %q", database.ErrMalformed, line)
	}

	addr, err := address.Parse(fields[0])
	if err != nil {
		return fmt.Errorf("%w: %v", database.ErrMalformed, err)
	}
	size, err := parseHex(strings.TrimSuffix(fields[2], ")"), 16)
	if err != nil {
		return fmt.Errorf("%w: multi cell size: %v", database.ErrMalformed, err)
	}

	doc.AddMultiCell(addr, document.MultiCell{
		Kind: document.ParseMultiCellKind(fields[1][3]),
		Size: uint16(size),
	})
	return nil
}

// parseComment reads "addr base64". Undecodable comments are skipped
// with a warning.
func (d *Database) parseComment(doc *document.Document, line string) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		d.logger.Warn("Skipping invalid comment line", log.String("line", line))
		return
	}

	addr, err := address.Parse(fields[0])
	if err != nil {
		d.logger.Warn("Skipping comment with invalid address", log.Err(err))
		return
	}
	comment, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		d.logger.Warn("Unable to decode comment", log.String("address", addr.String()))
		return
	}
	doc.SetComment(addr, string(comment))
}

// parseHex accepts 0x prefixed and bare hex numbers up to the given bit
// width.
func parseHex(s string, bits int) (uint64, error) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return strconv.ParseUint(rest, 16, bits)
	}
	return strconv.ParseUint(s, 16, bits)
}
