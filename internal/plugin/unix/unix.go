// Package unix provides the UNIX operating system personality.
package unix

import (
	"strings"

	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/plugin"
)

// OS is the UNIX personality.
// TODO: report more detail like linux/*BSD once loaders expose it.
type OS struct{}

// New creates the UNIX personality.
func New() *OS {
	return &OS{}
}

// compile time interface check
var _ plugin.OperatingSystem = (*OS)(nil)

// Name returns the personality name.
func (o *OS) Name() string {
	return "UNIX"
}

// InitializeCpuContext prepares the initial CPU state.
func (o *OS) InitializeCpuContext(*document.Document, *plugin.CpuContext) bool {
	return true
}

// InitializeMemoryContext prepares the initial memory layout.
func (o *OS) InitializeMemoryContext(*document.Document, *plugin.MemoryContext) bool {
	return true
}

// IsSupported accepts any ELF family loader.
func (o *OS) IsSupported(ldr plugin.Loader, _ plugin.Architecture) bool {
	return strings.HasPrefix(ldr.Name(), "ELF")
}
