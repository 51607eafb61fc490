// Package memory models the contiguous spans of the virtual address
// space a document is composed of. A mapped area is backed by a slice of
// the binary stream and records typed cells, a virtual area is purely
// synthetic and records none. Both provide the navigation primitives the
// document builds on.
package memory

import (
	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
)

// Access is the RWX permission bit set of an area.
type Access uint8

// Access permissions.
const (
	Read Access = 1 << iota
	Write
	Execute
)

// String returns the three character form used on disk, e.g. "R-X".
func (a Access) String() string {
	b := [3]byte{'-', '-', '-'}
	if a&Read != 0 {
		b[0] = 'R'
	}
	if a&Write != 0 {
		b[1] = 'W'
	}
	if a&Execute != 0 {
		b[2] = 'X'
	}
	return string(b[:])
}

// ParseAccess decodes the three character permission form.
func ParseAccess(s string) Access {
	var a Access
	if len(s) != 3 {
		return a
	}
	if s[0] == 'R' {
		a |= Read
	}
	if s[1] == 'W' {
		a |= Write
	}
	if s[2] == 'X' {
		a |= Execute
	}
	return a
}

// Area is the common contract of mapped and virtual memory areas.
//
// All offsets are absolute virtual addresses except for ForEachCellData,
// which reports offsets relative to the area base, matching the cell
// lines of the database format.
//
// CellData distinguishes three cases: an offset hosting a cell start
// returns that cell, an offset covered by a preceding cell's length
// returns absent, and an uncovered offset without a recorded cell
// returns a synthesised default one byte value cell.
type Area interface {
	// Name returns the area name, e.g. ".text".
	Name() string
	// Access returns the RWX permissions.
	Access() Access
	// Size returns the virtual size in bytes.
	Size() uint64
	// BaseAddress returns the virtual base address.
	BaseAddress() address.Address
	// MakeAddress builds an address inside this area for the given
	// absolute offset.
	MakeAddress(offset uint64) address.Address
	// IsCellPresent reports whether offset lies inside the area.
	IsCellPresent(offset uint64) bool
	// CellData returns the cell starting at offset, see the interface
	// comment for the absent and default cases.
	CellData(offset uint64) (cell.Data, bool)
	// SetCellData places a cell at offset. Offsets covered by the new
	// cell are nilled out. Overlapping prior cells refuse the write
	// unless force is set, in which case their start addresses are
	// appended to deleted.
	SetCellData(offset uint64, data cell.Data, deleted *[]address.Address, force bool) bool
	// ForEachCellData calls pred for every recorded cell start in
	// ascending order, with the offset relative to the area base.
	ForEachCellData(pred func(offset uint64, data cell.Data))

	// NextAddress returns the first cell start after addr.
	NextAddress(addr address.Address) (address.Address, bool)
	// NearestAddress snaps addr to the cell start at or before it.
	NearestAddress(addr address.Address) (address.Address, bool)
	// MoveAddress moves addr by n cell steps, negative n moves
	// backwards.
	MoveAddress(addr address.Address, n int64) (address.Address, bool)

	// CellCount returns the number of cell starts in the area.
	CellCount() uint64
	// ConvertOffsetToPosition returns the ordinal of the cell start
	// owning offset, counting starts from the area base.
	ConvertOffsetToPosition(offset uint64) (uint64, bool)
	// ConvertPositionToOffset is the inverse of ConvertOffsetToPosition
	// for cell start offsets.
	ConvertPositionToOffset(position uint64) (uint64, bool)

	// FileOffset returns the backing file offset, 0 for virtual areas.
	FileOffset() uint64
	// FileSize returns the backing file size, 0 for virtual areas.
	FileSize() uint64
	// ConvertOffsetToFileOffset maps a virtual offset to its backing
	// file offset. It fails for virtual areas and for the zero filled
	// tail of mapped areas.
	ConvertOffsetToFileOffset(offset uint64) (uint64, bool)

	// Dump returns the stable ma(…) line consumed by the database.
	Dump() string
	// String returns the human readable description.
	String() string
}
