package memory

import (
	"fmt"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
)

// Mapped is a memory area backed by a slice of the binary stream.
// The file image may be smaller than the virtual size, the tail is then
// zero filled virtually (BSS style).
//
// Cells are stored in a dense slice of optional cell data indexed by the
// in-area offset. Finding the cell covering an offset is a linear scan
// backwards over that slice.
// OPTIMIZEME: an ordered map with predecessor queries would make the
// covering-cell lookup O(log n).
type Mapped struct {
	name   string
	access Access

	fileOffset uint64
	fileSize   uint64
	base       address.Address
	size       uint64

	cells []*cell.Data

	defaultTag  cell.Tag
	defaultMode uint8
}

// NewMapped creates a file backed memory area.
func NewMapped(name string, fileOffset, fileSize uint64, base address.Address,
	size uint64, access Access) *Mapped {

	return &Mapped{
		name:       name,
		access:     access,
		fileOffset: fileOffset,
		fileSize:   fileSize,
		base:       base,
		size:       size,
	}
}

// SetDefaultArchitecture sets the architecture tag and mode stamped on
// synthesised default cells.
func (m *Mapped) SetDefaultArchitecture(tag cell.Tag, mode uint8) {
	m.defaultTag = tag
	m.defaultMode = mode
}

// Name returns the area name.
func (m *Mapped) Name() string {
	return m.name
}

// Access returns the RWX permissions.
func (m *Mapped) Access() Access {
	return m.access
}

// Size returns the virtual size.
func (m *Mapped) Size() uint64 {
	return m.size
}

// BaseAddress returns the virtual base address.
func (m *Mapped) BaseAddress() address.Address {
	return m.base
}

// MakeAddress builds an address inside this area.
func (m *Mapped) MakeAddress(offset uint64) address.Address {
	addr := m.base
	addr.Offset = offset
	return addr
}

// FileOffset returns the offset of the backing file image.
func (m *Mapped) FileOffset() uint64 {
	return m.fileOffset
}

// FileSize returns the size of the backing file image.
func (m *Mapped) FileSize() uint64 {
	return m.fileSize
}

// IsCellPresent reports whether offset lies inside the area.
func (m *Mapped) IsCellPresent(offset uint64) bool {
	return m.base.IsBetween(m.size, offset)
}

// CellData returns the cell starting at the absolute offset.
func (m *Mapped) CellData(offset uint64) (cell.Data, bool) {
	if !m.IsCellPresent(offset) {
		return cell.Data{}, false
	}

	idx := offset - m.base.Offset
	if idx >= uint64(len(m.cells)) {
		return m.defaultCell(), true
	}

	if data := m.cells[idx]; data != nil {
		return *data, true
	}

	if prev, ok := m.previousCellIndex(idx); ok {
		if idx < prev+uint64(m.cells[prev].Length) {
			return cell.Data{}, false // covered by the previous cell
		}
	}
	return m.defaultCell(), true
}

// SetCellData places a cell at the absolute offset.
func (m *Mapped) SetCellData(offset uint64, data cell.Data,
	deleted *[]address.Address, force bool) bool {

	if !m.IsCellPresent(offset) || data.Length == 0 {
		return false
	}

	idx := offset - m.base.Offset
	end := idx + uint64(data.Length)

	// collect overlapping prior cell starts: a cell covering the new
	// start and cell starts inside the new cell's span
	var overlaps []uint64
	if prev, ok := m.previousCellIndex(idx); ok {
		if idx < prev+uint64(m.cells[prev].Length) {
			overlaps = append(overlaps, prev)
		}
	}
	for i := idx + 1; i < end && i < uint64(len(m.cells)); i++ {
		if m.cells[i] != nil {
			overlaps = append(overlaps, i)
		}
	}

	if len(overlaps) > 0 && !force {
		return false
	}

	if grow := end; grow > uint64(len(m.cells)) {
		m.cells = append(m.cells, make([]*cell.Data, grow-uint64(len(m.cells)))...)
	}

	for _, overlap := range overlaps {
		m.cells[overlap] = nil
		if deleted != nil {
			*deleted = append(*deleted, m.MakeAddress(m.base.Offset+overlap))
		}
	}

	m.cells[idx] = &data
	for i := idx + 1; i < end; i++ {
		m.cells[i] = nil
	}
	return true
}

// ForEachCellData calls pred for every recorded cell start, offsets
// relative to the area base.
func (m *Mapped) ForEachCellData(pred func(offset uint64, data cell.Data)) {
	for i, data := range m.cells {
		if data != nil {
			pred(uint64(i), *data)
		}
	}
}

// NextAddress returns the first cell start after addr.
func (m *Mapped) NextAddress(addr address.Address) (address.Address, bool) {
	limit := m.base.Offset + m.size
	for offset := addr.Offset + 1; offset < limit; offset++ {
		if _, ok := m.CellData(offset); ok {
			return m.MakeAddress(offset), true
		}
	}
	return address.Address{}, false
}

// NearestAddress snaps addr to the cell start at or before it. An
// address before the area collapses to the base.
func (m *Mapped) NearestAddress(addr address.Address) (address.Address, bool) {
	offset := addr.Offset
	if offset < m.base.Offset {
		return m.base, true
	}
	if last := m.base.Offset + m.size - 1; offset > last {
		offset = last
	}

	for {
		if _, ok := m.CellData(offset); ok {
			return m.MakeAddress(offset), true
		}
		if offset == m.base.Offset {
			return address.Address{}, false
		}
		offset--
	}
}

// MoveAddress moves addr by n cell steps inside the area.
func (m *Mapped) MoveAddress(addr address.Address, n int64) (address.Address, bool) {
	switch {
	case n < 0:
		return m.moveBackward(addr, -n)
	case n > 0:
		return m.moveForward(addr, n)
	}
	return addr, true
}

// moveForward advances one cell length per step, holes count one byte.
func (m *Mapped) moveForward(addr address.Address, n int64) (address.Address, bool) {
	offset := addr.Offset
	for ; n > 0; n-- {
		if data, ok := m.CellData(offset); ok {
			offset += uint64(data.Length)
		} else {
			offset++
		}
		if !m.IsCellPresent(offset) {
			return address.Address{}, false
		}
	}
	return m.MakeAddress(offset), true
}

// moveBackward steps to the previous cell start n times. It fails when
// the area base would be passed with steps left.
func (m *Mapped) moveBackward(addr address.Address, n int64) (address.Address, bool) {
	offset := addr.Offset
	for ; n > 0; n-- {
		if offset <= m.base.Offset {
			return address.Address{}, false
		}
		offset--
		for offset > m.base.Offset {
			if _, ok := m.CellData(offset); ok {
				break
			}
			offset--
		}
	}
	return m.MakeAddress(offset), true
}

// CellCount returns the number of cell starts in the area.
func (m *Mapped) CellCount() uint64 {
	var count, idx uint64
	for idx < m.size {
		idx += m.strideAt(idx)
		count++
	}
	return count
}

// ConvertOffsetToPosition returns the ordinal of the cell start owning
// the absolute offset.
func (m *Mapped) ConvertOffsetToPosition(offset uint64) (uint64, bool) {
	if !m.IsCellPresent(offset) {
		return 0, false
	}

	owner := offset - m.base.Offset
	if _, ok := m.CellData(offset); !ok {
		prev, ok := m.previousCellIndex(owner)
		if !ok {
			return 0, false
		}
		owner = prev
	}

	var position, idx uint64
	for idx < owner {
		idx += m.strideAt(idx)
		position++
	}
	return position, true
}

// ConvertPositionToOffset returns the absolute offset of the position-th
// cell start.
func (m *Mapped) ConvertPositionToOffset(position uint64) (uint64, bool) {
	var idx uint64
	for ; position > 0; position-- {
		idx += m.strideAt(idx)
		if idx >= m.size {
			return 0, false
		}
	}
	return m.base.Offset + idx, true
}

// ConvertOffsetToFileOffset maps a virtual offset into the backing file.
// It fails for the zero filled tail beyond the file image.
func (m *Mapped) ConvertOffsetToFileOffset(offset uint64) (uint64, bool) {
	if !m.base.IsBetween(m.fileSize, offset) {
		return 0, false
	}
	return offset - m.base.Offset + m.fileOffset, true
}

// Dump returns the stable text form consumed by the database parser.
func (m *Mapped) Dump() string {
	return fmt.Sprintf("ma(m %s %#x %#x %s %#x %s)", m.name, m.fileOffset,
		m.fileSize, m.base.Dump(), m.size, m.access)
}

// String returns the human readable description.
func (m *Mapped) String() string {
	return fmt.Sprintf("; mapped memory area %s %s %#06x %s", m.name,
		m.base, m.size, m.access)
}

// defaultCell synthesises the one byte value cell reported for
// uncovered offsets without a recorded cell, stamped with the area's
// default architecture.
func (m *Mapped) defaultCell() cell.Data {
	data := cell.NewValue()
	data.Arch = m.defaultTag
	data.Mode = m.defaultMode
	return data
}

// strideAt returns the length of the cell start at the in-area index,
// 1 for holes.
func (m *Mapped) strideAt(idx uint64) uint64 {
	if idx < uint64(len(m.cells)) && m.cells[idx] != nil {
		if length := uint64(m.cells[idx].Length); length > 0 {
			return length
		}
	}
	return 1
}

// previousCellIndex returns the index of the last recorded cell start
// before idx.
func (m *Mapped) previousCellIndex(idx uint64) (uint64, bool) {
	if idx > uint64(len(m.cells)) {
		idx = uint64(len(m.cells))
	}
	for idx > 0 {
		idx--
		if m.cells[idx] != nil {
			return idx, true
		}
	}
	return 0, false
}
