// Package address provides the canonical location value used across the
// document: a (kind, base, offset) tuple with ordering, arithmetic and the
// two textual renderings consumed by the database layer.
package address

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind describes the addressing scheme an address belongs to.
// Addresses are only meaningfully comparable within the same kind.
type Kind uint8

// Address kinds.
const (
	UnknownKind Kind = iota
	Physical
	Flat
	Segmented
	Banked
	Virtual
)

// Default rendering widths in bits.
const (
	DefaultBaseSize   = 32
	DefaultOffsetSize = 32
)

// Address is a location in one of the coordinate systems of a document.
// Base is the segment/bank selector, Offset the location inside it.
// BaseSize and OffsetSize are rendering widths in bits.
type Address struct {
	Kind       Kind
	Base       uint64
	Offset     uint64
	BaseSize   uint8
	OffsetSize uint8
}

// New returns a flat address with default rendering widths.
func New(offset uint64) Address {
	return Address{
		Kind:       Flat,
		Offset:     offset,
		BaseSize:   DefaultBaseSize,
		OffsetSize: DefaultOffsetSize,
	}
}

// NewBased returns an address of the given kind with an explicit base.
func NewBased(kind Kind, base, offset uint64) Address {
	return Address{
		Kind:       kind,
		Base:       base,
		Offset:     offset,
		BaseSize:   DefaultBaseSize,
		OffsetSize: DefaultOffsetSize,
	}
}

// Equal reports whether both addresses point at the same location.
// Rendering widths do not participate in the comparison.
func (a Address) Equal(other Address) bool {
	return a.Kind == other.Kind && a.Base == other.Base && a.Offset == other.Offset
}

// Compare orders addresses lexicographically over (kind, base, offset).
// It returns -1, 0 or 1.
func (a Address) Compare(other Address) int {
	switch {
	case a.Kind != other.Kind:
		if a.Kind < other.Kind {
			return -1
		}
		return 1
	case a.Base != other.Base:
		if a.Base < other.Base {
			return -1
		}
		return 1
	case a.Offset != other.Offset:
		if a.Offset < other.Offset {
			return -1
		}
		return 1
	}
	return 0
}

// Less reports whether a orders before other.
func (a Address) Less(other Address) bool {
	return a.Compare(other) < 0
}

// Add returns the address moved by the signed delta.
// The second return value is false if the offset would wrap around
// its width.
func (a Address) Add(delta int64) (Address, bool) {
	mask := a.offsetMask()
	if delta >= 0 {
		moved := (a.Offset + uint64(delta)) & mask
		if moved < a.Offset {
			return Address{}, false
		}
		a.Offset = moved
		return a, true
	}

	dec := uint64(-delta)
	if dec > a.Offset {
		return Address{}, false
	}
	a.Offset -= dec
	return a, true
}

// IsBetween reports whether offset lies inside [a.Offset, a.Offset+size).
func (a Address) IsBetween(size uint64, offset uint64) bool {
	return offset >= a.Offset && offset < a.Offset+size
}

// Dump returns the canonical, parseable rendering base:offset in hex,
// zero padded to the widths implied by BaseSize and OffsetSize.
func (a Address) Dump() string {
	return fmt.Sprintf("%0*x:%0*x", a.hexDigits(a.BaseSize), a.Base,
		a.hexDigits(a.OffsetSize), a.Offset)
}

// String returns the human readable form.
func (a Address) String() string {
	if a.Base == 0 {
		return fmt.Sprintf("%#x", a.Offset)
	}
	return fmt.Sprintf("%#x:%#x", a.Base, a.Offset)
}

// Parse reads an address back from its Dump form. The rendering widths
// are recovered from the number of hex digits of each part.
func Parse(s string) (Address, error) {
	base, offset, ok := strings.Cut(s, ":")
	if !ok {
		return Address{}, fmt.Errorf("invalid address %q", s)
	}

	baseValue, err := strconv.ParseUint(base, 16, 64)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address base %q: %w", base, err)
	}
	offsetValue, err := strconv.ParseUint(offset, 16, 64)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address offset %q: %w", offset, err)
	}

	return Address{
		Kind:       Flat,
		Base:       baseValue,
		Offset:     offsetValue,
		BaseSize:   sizeFromDigits(len(base)),
		OffsetSize: sizeFromDigits(len(offset)),
	}, nil
}

func (a Address) hexDigits(bits uint8) int {
	if bits == 0 {
		bits = DefaultOffsetSize
	}
	return int(bits) / 4
}

func (a Address) offsetMask() uint64 {
	if a.OffsetSize == 0 || a.OffsetSize >= 64 {
		return ^uint64(0)
	}
	return 1<<a.OffsetSize - 1
}

func sizeFromDigits(digits int) uint8 {
	bits := digits * 4
	if bits == 0 || bits > 64 {
		return 64
	}
	return uint8(bits)
}
