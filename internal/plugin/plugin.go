// Package plugin defines the contracts the core exposes to architecture,
// loader and operating system modules, and a registry acting as the
// module manager for them. It acts as a bridge between the document core
// and the plug-in specific code.
package plugin

import (
	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/stream"
)

// Instruction is one already decoded instruction handed to an
// architecture for display formatting.
type Instruction struct {
	Name   string // bare mnemonic
	Prefix uint32 // architecture specific prefix bits
	Length uint8  // encoded length in bytes
	Text   string // formatted display string, set by FormatInstruction
}

// Architecture formats decoded instructions of one instruction set.
type Architecture interface {
	// Name returns the architecture name.
	Name() string
	// Tag returns the tag identifying this architecture on cells.
	Tag() cell.Tag
	// FormatInstruction renders insn into its display string, updating
	// insn.Text. The document and stream provide context for operand
	// rendering.
	FormatInstruction(doc *document.Document, strm *stream.Stream,
		addr address.Address, insn *Instruction)
}

// Loader identifies a binary and populates a document with memory areas
// and initial labels.
type Loader interface {
	// Name returns the loader name, e.g. "ELF64".
	Name() string
	// Supports reports whether the stream looks like a binary this
	// loader can map.
	Supports(strm *stream.Stream) bool
	// Load populates the document from the stream.
	Load(doc *document.Document, strm *stream.Stream) error
}

// CpuContext is the initial CPU state an operating system personality
// may prepare.
type CpuContext struct {
	Registers map[string]uint64
}

// MemoryContext is the initial memory layout an operating system
// personality may prepare.
type MemoryContext struct {
	StackBase uint64
	StackSize uint64
}

// OperatingSystem is a personality module layered over a loader and an
// architecture.
type OperatingSystem interface {
	// Name returns the personality name, e.g. "UNIX".
	Name() string
	// InitializeCpuContext prepares the initial CPU state.
	InitializeCpuContext(doc *document.Document, ctx *CpuContext) bool
	// InitializeMemoryContext prepares the initial memory layout.
	InitializeMemoryContext(doc *document.Document, ctx *MemoryContext) bool
	// IsSupported reports whether the personality applies to the given
	// loader and architecture combination.
	IsSupported(ldr Loader, arch Architecture) bool
}
