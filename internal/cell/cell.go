// Package cell defines the typed unit placed at an offset of a memory
// area and the architecture tag that selects the plug-in responsible
// for it.
package cell

import "fmt"

// Type classifies the content of a cell.
type Type uint8

// Cell types.
const (
	UnknownType Type = iota
	InstructionType
	ValueType
	CharacterType
	StringType
)

// Value sub types, selecting the display base of a value cell.
const (
	BinarySubType uint8 = iota
	DecimalSubType
	HexadecimalSubType
)

// Tag identifies an architecture plug-in. The zero value means no or an
// unknown architecture.
type Tag uint32

// UnknownTag marks a cell that no architecture claims.
const UnknownTag Tag = 0

// MakeTag builds a tag from a four character code.
func MakeTag(a, b, c, d byte) Tag {
	return Tag(a)<<24 | Tag(b)<<16 | Tag(c)<<8 | Tag(d)
}

// Data describes one cell: its type, display style and the number of raw
// bytes it consumes at its starting offset.
type Data struct {
	Type        Type
	SubType     uint8
	Length      uint16
	FormatStyle uint16
	Flags       uint8
	Mode        uint8
	Arch        Tag
}

// NewValue returns the default one byte hexadecimal value cell.
func NewValue() Data {
	return Data{
		Type:    ValueType,
		SubType: HexadecimalSubType,
		Length:  1,
	}
}

// NewInstruction returns an instruction cell of the given length for the
// given architecture.
func NewInstruction(length uint16, arch Tag, mode uint8) Data {
	return Data{
		Type:   InstructionType,
		Length: length,
		Arch:   arch,
		Mode:   mode,
	}
}

// Dump returns the single line form consumed by the database:
// dna(type sub size fmt flags mode arch), all numbers in hex.
func (d Data) Dump() string {
	return fmt.Sprintf("dna(%#x %#x %#x %#x %#x %#x %#x)",
		uint8(d.Type), d.SubType, d.Length, d.FormatStyle, d.Flags, d.Mode,
		uint32(d.Arch))
}
