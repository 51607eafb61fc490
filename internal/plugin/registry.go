package plugin

import (
	"sync"

	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/stream"
)

// Registry holds the loaded architecture, loader and operating system
// modules. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	archs   map[cell.Tag]Architecture
	loaders []Loader
	oses    []OperatingSystem
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		archs: map[cell.Tag]Architecture{},
	}
}

// RegisterArchitecture adds an architecture module. Registering a
// second module for the same tag fails.
func (r *Registry) RegisterArchitecture(arch Architecture) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.archs[arch.Tag()]; ok {
		return false
	}
	r.archs[arch.Tag()] = arch
	return true
}

// Architecture returns the module registered for tag.
func (r *Registry) Architecture(tag cell.Tag) (Architecture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	arch, ok := r.archs[tag]
	return arch, ok
}

// HasArchitecture reports whether a module is registered for tag.
func (r *Registry) HasArchitecture(tag cell.Tag) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.archs[tag]
	return ok
}

// RegisterLoader adds a loader module.
func (r *Registry) RegisterLoader(ldr Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders = append(r.loaders, ldr)
}

// FindLoader returns the first registered loader supporting the stream.
func (r *Registry) FindLoader(strm *stream.Stream) (Loader, bool) {
	r.mu.Lock()
	loaders := make([]Loader, len(r.loaders))
	copy(loaders, r.loaders)
	r.mu.Unlock()

	for _, ldr := range loaders {
		if ldr.Supports(strm) {
			return ldr, true
		}
	}
	return nil, false
}

// RegisterOperatingSystem adds an operating system personality.
func (r *Registry) RegisterOperatingSystem(os OperatingSystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.oses = append(r.oses, os)
}

// FindOperatingSystem returns the first personality accepting the
// loader and architecture combination.
func (r *Registry) FindOperatingSystem(ldr Loader, arch Architecture) (OperatingSystem, bool) {
	r.mu.Lock()
	oses := make([]OperatingSystem, len(r.oses))
	copy(oses, r.oses)
	r.mu.Unlock()

	for _, os := range oses {
		if os.IsSupported(ldr, arch) {
			return os, true
		}
	}
	return nil, false
}
