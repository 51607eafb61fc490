// Package arm provides the ARM architecture module: condition and S
// suffix formatting of decoded instructions plus a decode helper built
// on golang.org/x/arch.
package arm

import (
	"strings"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/plugin"
	"github.com/retroenv/disasmdb/internal/stream"
	"golang.org/x/arch/arm/armasm"
)

// Tag identifies ARM cells.
var Tag = cell.MakeTag('a', 'r', 'm', ' ')

// Instruction prefix bits. The low four bits hold the condition code.
const (
	PrefixCondMask uint32 = 0xf
	PrefixS        uint32 = 1 << 4
)

// condition suffixes indexed by the condition code, AL and NV render
// empty.
var conditionSuffixes = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "",
}

// Arch is the ARM architecture module.
type Arch struct{}

// New creates the ARM architecture module.
func New() *Arch {
	return &Arch{}
}

// compile time interface check
var _ plugin.Architecture = (*Arch)(nil)

// Name returns the architecture name.
func (a *Arch) Name() string {
	return "ARM"
}

// Tag returns the tag identifying ARM cells.
func (a *Arch) Tag() cell.Tag {
	return Tag
}

// FormatInstruction appends the condition suffix and the S flag marker
// to the mnemonic.
func (a *Arch) FormatInstruction(_ *document.Document, _ *stream.Stream,
	_ address.Address, insn *plugin.Instruction) {

	var b strings.Builder
	b.WriteString(insn.Name)
	b.WriteString(conditionSuffixes[insn.Prefix&PrefixCondMask])
	if insn.Prefix&PrefixS != 0 {
		b.WriteString("s")
	}
	insn.Text = b.String()
}

// Decode reads the 32 bit instruction word at the given stream offset
// and returns it as an instruction ready for formatting: the bare
// mnemonic plus condition and S prefix bits extracted from the
// encoding.
func (a *Arch) Decode(strm *stream.Stream, offset uint64) (*plugin.Instruction, bool) {
	word, ok := strm.ReadUint32LE(offset)
	if !ok {
		return nil, false
	}
	raw, _ := strm.Read(offset, 4)

	inst, err := armasm.Decode(raw, armasm.ModeARM)
	if err != nil {
		return nil, false
	}

	// Op strings carry the condition as a ".NE" style suffix, the
	// prefix bits carry it for formatting instead.
	name, _, _ := strings.Cut(inst.Op.String(), ".")

	prefix := word >> 28 & PrefixCondMask
	if word>>20&1 != 0 {
		prefix |= PrefixS
	}

	return &plugin.Instruction{
		Name:   strings.ToLower(name),
		Prefix: prefix,
		Length: 4,
	}, true
}
