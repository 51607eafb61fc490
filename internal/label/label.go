// Package label defines the symbolic names attached to addresses and the
// three character type triplet codec used by the text database.
package label

import (
	"fmt"
	"strings"
)

// Type is a bit set describing what a label names and where it came from.
type Type uint16

// Label type flags. The first group classifies the labelled location, the
// second its scope. AutoGenerated marks names invented by analysis passes.
const (
	Data Type = 1 << iota
	Code
	Function
	String
	Imported
	Exported
	Global
	Local
	AutoGenerated
)

// Label is a user visible symbolic name for an address.
type Label struct {
	Name    string
	Type    Type
	Version uint32
}

// New creates a label.
func New(name string, typ Type, version uint32) Label {
	return Label{Name: name, Type: typ, Version: version}
}

// Valid reports whether the label can be stored. The text database is
// whitespace delimited, so names must be non empty and free of spaces.
func (l Label) Valid() bool {
	return l.Name != "" && !strings.ContainsAny(l.Name, " \t\n\r")
}

// Dump returns the database form: lbl(name namelen type version) with
// numbers in hex.
func (l Label) Dump() string {
	return fmt.Sprintf("lbl(%s %#x %s %#x)", l.Name, len(l.Name),
		l.Type.Triplet(), l.Version)
}

// Triplet encodes the type as the three character form used on disk:
// location class, scope, auto-generated marker.
func (t Type) Triplet() string {
	var b [3]byte

	switch {
	case t&Data != 0:
		b[0] = 'd'
	case t&Code != 0:
		b[0] = 'c'
	case t&Function != 0:
		b[0] = 'f'
	case t&String != 0:
		b[0] = 's'
	default:
		b[0] = '-'
	}

	switch {
	case t&Imported != 0:
		b[1] = 'i'
	case t&Exported != 0:
		b[1] = 'e'
	case t&Global != 0:
		b[1] = 'g'
	case t&Local != 0:
		b[1] = 'l'
	default:
		b[1] = '-'
	}

	b[2] = '-'
	if t&AutoGenerated != 0 {
		b[2] = 'a'
	}

	return string(b[:])
}

// ParseTriplet decodes the three character type form. It returns false
// if the input is not exactly three characters long.
func ParseTriplet(s string) (Type, bool) {
	if len(s) != 3 {
		return 0, false
	}

	var t Type
	switch s[0] {
	case 'd':
		t |= Data
	case 'c':
		t |= Code
	case 'f':
		t |= Function
	case 's':
		t |= String
	}
	switch s[1] {
	case 'i':
		t |= Imported
	case 'e':
		t |= Exported
	case 'g':
		t |= Global
	case 'l':
		t |= Local
	}
	if s[2] == 'a' {
		t |= AutoGenerated
	}
	return t, true
}
