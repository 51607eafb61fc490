package memory

import (
	"fmt"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
)

// Virtual is a synthetic memory area without file backing. Every offset
// inside it reads as an unknown-architecture one byte value cell, cell
// writes are refused and navigation is plain byte stepping.
type Virtual struct {
	name   string
	access Access
	base   address.Address
	size   uint64
}

// NewVirtual creates a synthetic memory area.
func NewVirtual(name string, base address.Address, size uint64, access Access) *Virtual {
	return &Virtual{
		name:   name,
		access: access,
		base:   base,
		size:   size,
	}
}

// Name returns the area name.
func (v *Virtual) Name() string {
	return v.name
}

// Access returns the RWX permissions.
func (v *Virtual) Access() Access {
	return v.access
}

// Size returns the virtual size.
func (v *Virtual) Size() uint64 {
	return v.size
}

// BaseAddress returns the virtual base address.
func (v *Virtual) BaseAddress() address.Address {
	return v.base
}

// MakeAddress builds an address inside this area.
func (v *Virtual) MakeAddress(offset uint64) address.Address {
	addr := v.base
	addr.Offset = offset
	return addr
}

// FileOffset returns 0, virtual areas have no file backing.
func (v *Virtual) FileOffset() uint64 {
	return 0
}

// FileSize returns 0, virtual areas have no file backing.
func (v *Virtual) FileSize() uint64 {
	return 0
}

// IsCellPresent reports whether offset lies inside the area.
func (v *Virtual) IsCellPresent(offset uint64) bool {
	return v.base.IsBetween(v.size, offset)
}

// CellData returns the synthetic unknown-architecture byte cell for
// every offset inside the area.
func (v *Virtual) CellData(offset uint64) (cell.Data, bool) {
	if !v.IsCellPresent(offset) {
		return cell.Data{}, false
	}
	data := cell.NewValue()
	data.Arch = cell.UnknownTag
	return data, true
}

// SetCellData always fails, virtual areas hold no real cells.
func (v *Virtual) SetCellData(uint64, cell.Data, *[]address.Address, bool) bool {
	return false
}

// ForEachCellData is a no-op, there are no recorded cells.
func (v *Virtual) ForEachCellData(func(offset uint64, data cell.Data)) {}

// NextAddress returns the following byte address.
func (v *Virtual) NextAddress(addr address.Address) (address.Address, bool) {
	offset := addr.Offset + 1
	if !v.IsCellPresent(offset) {
		return address.Address{}, false
	}
	return v.MakeAddress(offset), true
}

// NearestAddress returns addr itself if it lies inside the area.
func (v *Virtual) NearestAddress(addr address.Address) (address.Address, bool) {
	if !v.IsCellPresent(addr.Offset) {
		return address.Address{}, false
	}
	return v.MakeAddress(addr.Offset), true
}

// MoveAddress steps bytewise. Moving by 0 fails if addr lies outside
// the area.
func (v *Virtual) MoveAddress(addr address.Address, n int64) (address.Address, bool) {
	var offset uint64
	switch {
	case n >= 0:
		offset = addr.Offset + uint64(n)
	default:
		dec := uint64(-n)
		if dec > addr.Offset {
			return address.Address{}, false
		}
		offset = addr.Offset - dec
	}
	if !v.IsCellPresent(offset) {
		return address.Address{}, false
	}
	return v.MakeAddress(offset), true
}

// CellCount returns the size, every byte is its own cell.
func (v *Virtual) CellCount() uint64 {
	return v.size
}

// ConvertOffsetToPosition returns the in-area byte index.
func (v *Virtual) ConvertOffsetToPosition(offset uint64) (uint64, bool) {
	if !v.IsCellPresent(offset) {
		return 0, false
	}
	return offset - v.base.Offset, true
}

// ConvertPositionToOffset returns the absolute offset of the position-th
// byte.
func (v *Virtual) ConvertPositionToOffset(position uint64) (uint64, bool) {
	if position >= v.size {
		return 0, false
	}
	return v.base.Offset + position, true
}

// ConvertOffsetToFileOffset always fails, there is no file image.
func (v *Virtual) ConvertOffsetToFileOffset(uint64) (uint64, bool) {
	return 0, false
}

// Dump returns the stable text form consumed by the database parser.
func (v *Virtual) Dump() string {
	return fmt.Sprintf("ma(v %s %s %#x %s)", v.name, v.base.Dump(), v.size,
		v.access)
}

// String returns the human readable description.
func (v *Virtual) String() string {
	return fmt.Sprintf("; virtual memory area %s %s %#06x %s", v.name,
		v.base, v.size, v.access)
}
