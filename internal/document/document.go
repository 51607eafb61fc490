// Package document aggregates the analysis state of one binary: its
// memory areas, labels, cross-references, multi-cells, comments and the
// architecture tags registered for it. It provides global navigation and
// the conversion between addresses and linear list positions.
//
// The document is shared between parallel analysis threads. Each concern
// has its own mutex; lock order is areas < labels < xrefs < architecture
// tags. No state lock is held while a caller supplied predicate runs, the
// affected state is snapshotted first; ForEachLabel holds only its
// enumeration mutex during the predicate calls.
package document

import (
	"slices"
	"sync"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/disasmdb/internal/label"
	"github.com/retroenv/disasmdb/internal/memory"
	"github.com/retroenv/disasmdb/internal/stream"
	"github.com/retroenv/disasmdb/internal/xref"
)

// Document is the address-space and analysis-state model of one binary.
type Document struct {
	mu         sync.Mutex // guards areas, multiCells, comments, binary
	areas      []memory.Area
	multiCells map[address.Address]MultiCell
	comments   map[address.Address]string
	binary     *stream.Stream

	labelMu      sync.Mutex
	enumMu       sync.Mutex // serialises ForEachLabel calls
	labelsByAddr map[address.Address]label.Label
	labelsByName map[string]address.Address

	xrefMu sync.Mutex
	xrefs  *xref.Graph

	archMu   sync.Mutex
	archTags []cell.Tag
}

// New creates an empty document.
func New() *Document {
	return &Document{
		multiCells:   map[address.Address]MultiCell{},
		comments:     map[address.Address]string{},
		labelsByAddr: map[address.Address]label.Label{},
		labelsByName: map[string]address.Address{},
		xrefs:        xref.New(),
	}
}

// SetBinaryStream attaches the raw binary image mapped areas are backed
// by.
func (d *Document) SetBinaryStream(s *stream.Stream) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.binary = s
}

// BinaryStream returns the raw binary image, nil if none is attached.
func (d *Document) BinaryStream() *stream.Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.binary
}

// AddMemoryArea inserts an area. It refuses areas whose range overlaps
// an existing one, area ranges are disjoint.
func (d *Document) AddMemoryArea(area memory.Area) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	base := area.BaseAddress()
	for _, existing := range d.areas {
		existingBase := existing.BaseAddress()
		if base.Kind != existingBase.Kind || base.Base != existingBase.Base {
			continue
		}
		if base.Offset < existingBase.Offset+existing.Size() &&
			existingBase.Offset < base.Offset+area.Size() {
			return false
		}
	}

	idx, _ := slices.BinarySearchFunc(d.areas, area, func(a, b memory.Area) int {
		return a.BaseAddress().Compare(b.BaseAddress())
	})
	d.areas = slices.Insert(d.areas, idx, area)
	return true
}

// ForEachMemoryArea calls pred for every area in base address order.
// The area set is snapshotted first, pred runs without the lock held.
func (d *Document) ForEachMemoryArea(pred func(area memory.Area)) {
	d.mu.Lock()
	areas := slices.Clone(d.areas)
	d.mu.Unlock()

	for _, area := range areas {
		pred(area)
	}
}

// MemoryArea returns the unique area whose range contains addr.
func (d *Document) MemoryArea(addr address.Address) (memory.Area, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.memoryArea(addr)
}

func (d *Document) memoryArea(addr address.Address) (memory.Area, bool) {
	for _, area := range d.areas {
		if area.IsCellPresent(addr.Offset) &&
			area.BaseAddress().Kind == addr.Kind &&
			area.BaseAddress().Base == addr.Base {
			return area, true
		}
	}
	return nil, false
}

// ConvertAddressToPosition returns the linear position of the cell start
// owning addr, counting cell starts across all areas in base order.
func (d *Document) ConvertAddressToPosition(addr address.Address) (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var position uint64
	for _, area := range d.areas {
		base := area.BaseAddress()
		if area.IsCellPresent(addr.Offset) &&
			base.Kind == addr.Kind && base.Base == addr.Base {
			inArea, ok := area.ConvertOffsetToPosition(addr.Offset)
			if !ok {
				return 0, false
			}
			return position + inArea, true
		}
		position += area.CellCount()
	}
	return 0, false
}

// ConvertPositionToAddress is the inverse of ConvertAddressToPosition.
func (d *Document) ConvertPositionToAddress(position uint64) (address.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, area := range d.areas {
		count := area.CellCount()
		if position < count {
			offset, ok := area.ConvertPositionToOffset(position)
			if !ok {
				return address.Address{}, false
			}
			return area.MakeAddress(offset), true
		}
		position -= count
	}
	return address.Address{}, false
}

// MoveAddress moves addr by n cell steps across area boundaries.
// Moving by 0 snaps addr to the nearest cell start, or one step
// backwards if no area contains it. Backward movement past the first
// area collapses to the document base.
func (d *Document) MoveAddress(addr address.Address, n int64) (address.Address, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch {
	case n < 0:
		return d.moveBackward(addr, -n)
	case n > 0:
		return d.moveForward(addr, n)
	}

	area, ok := d.memoryArea(addr)
	if !ok {
		return d.moveBackward(addr, 1)
	}
	return area.NearestAddress(addr)
}

func (d *Document) moveForward(addr address.Address, n int64) (address.Address, bool) {
	idx := d.areaIndex(addr)
	if idx < 0 {
		return address.Address{}, false
	}

	for ; n > 0; n-- {
		moved, ok := d.areas[idx].MoveAddress(addr, 1)
		if ok {
			addr = moved
			continue
		}
		// carry into the next area, its base is the next cell start
		idx++
		if idx >= len(d.areas) {
			return address.Address{}, false
		}
		addr = d.areas[idx].BaseAddress()
	}
	return addr, true
}

func (d *Document) moveBackward(addr address.Address, n int64) (address.Address, bool) {
	if len(d.areas) == 0 {
		return address.Address{}, false
	}

	first := d.areas[0].BaseAddress()
	if addr.Compare(first) <= 0 {
		return first, true
	}

	idx := d.areaIndex(addr)
	if idx < 0 {
		return address.Address{}, false
	}

	for ; n > 0; n-- {
		moved, ok := d.areas[idx].MoveAddress(addr, -1)
		if ok {
			addr = moved
			continue
		}
		// carry into the previous area, its last cell start comes next
		idx--
		if idx < 0 {
			return first, true
		}
		prev := d.areas[idx]
		last := prev.MakeAddress(prev.BaseAddress().Offset + prev.Size() - 1)
		moved, ok = prev.NearestAddress(last)
		if !ok {
			return address.Address{}, false
		}
		addr = moved
	}
	return addr, true
}

func (d *Document) areaIndex(addr address.Address) int {
	for i, area := range d.areas {
		if area.IsCellPresent(addr.Offset) &&
			area.BaseAddress().Kind == addr.Kind &&
			area.BaseAddress().Base == addr.Base {
			return i
		}
	}
	return -1
}

// CellData returns the cell at addr from its owning area.
func (d *Document) CellData(addr address.Address) (cell.Data, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	area, ok := d.memoryArea(addr)
	if !ok {
		return cell.Data{}, false
	}
	return area.CellData(addr.Offset)
}

// SetCellData places a cell at addr in its owning area. Overwritten cell
// start addresses are appended to deleted when force is set.
func (d *Document) SetCellData(addr address.Address, data cell.Data,
	deleted *[]address.Address, force bool) bool {

	d.mu.Lock()
	defer d.mu.Unlock()

	area, ok := d.memoryArea(addr)
	if !ok {
		return false
	}
	return area.SetCellData(addr.Offset, data, deleted, force)
}

// AddLabel attaches a label to addr. The insert fails atomically if the
// label is invalid, the address is already labelled or the name is
// already taken.
func (d *Document) AddLabel(addr address.Address, lbl label.Label) bool {
	if !lbl.Valid() {
		return false
	}

	d.labelMu.Lock()
	defer d.labelMu.Unlock()

	if _, ok := d.labelsByAddr[addr]; ok {
		return false
	}
	if _, ok := d.labelsByName[lbl.Name]; ok {
		return false
	}
	d.labelsByAddr[addr] = lbl
	d.labelsByName[lbl.Name] = addr
	return true
}

// RemoveLabel removes the label attached to addr.
func (d *Document) RemoveLabel(addr address.Address) bool {
	d.labelMu.Lock()
	defer d.labelMu.Unlock()

	lbl, ok := d.labelsByAddr[addr]
	if !ok {
		return false
	}
	delete(d.labelsByAddr, addr)
	delete(d.labelsByName, lbl.Name)
	return true
}

// Label returns the label attached to addr.
func (d *Document) Label(addr address.Address) (label.Label, bool) {
	d.labelMu.Lock()
	defer d.labelMu.Unlock()

	lbl, ok := d.labelsByAddr[addr]
	return lbl, ok
}

// LabelAddress returns the address a label name is attached to.
func (d *Document) LabelAddress(name string) (address.Address, bool) {
	d.labelMu.Lock()
	defer d.labelMu.Unlock()

	addr, ok := d.labelsByName[name]
	return addr, ok
}

// LabelCount returns the number of labels.
func (d *Document) LabelCount() int {
	d.labelMu.Lock()
	defer d.labelMu.Unlock()
	return len(d.labelsByAddr)
}

// ForEachLabel calls pred for every label in address order. The full
// entry set is snapshotted up front so the predicate may add or remove
// labels freely; a dedicated enumeration mutex keeps concurrent
// iterations from interleaving.
func (d *Document) ForEachLabel(pred func(addr address.Address, lbl label.Label)) {
	d.enumMu.Lock()
	defer d.enumMu.Unlock()

	type entry struct {
		addr address.Address
		lbl  label.Label
	}

	d.labelMu.Lock()
	entries := make([]entry, 0, len(d.labelsByAddr))
	for addr, lbl := range d.labelsByAddr {
		entries = append(entries, entry{addr: addr, lbl: lbl})
	}
	d.labelMu.Unlock()

	slices.SortFunc(entries, func(a, b entry) int {
		return a.addr.Compare(b.addr)
	})
	for _, e := range entries {
		pred(e.addr, e.lbl)
	}
}

// AddCrossReference inserts the edge from→to.
func (d *Document) AddCrossReference(to, from address.Address) bool {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.Add(to, from)
}

// RemoveCrossReference removes the unique outgoing edge of from.
func (d *Document) RemoveCrossReference(from address.Address) bool {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.RemoveFrom(from)
}

// RemoveCrossReferences clears the whole graph.
func (d *Document) RemoveCrossReferences() {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	d.xrefs.Clear()
}

// HasCrossReferenceFrom reports whether anything references to.
func (d *Document) HasCrossReferenceFrom(to address.Address) bool {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.HasFrom(to)
}

// CrossReferenceFrom returns the sorted sources referencing to.
func (d *Document) CrossReferenceFrom(to address.Address) ([]address.Address, bool) {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.From(to)
}

// HasCrossReferenceTo reports whether from has an outgoing edge.
func (d *Document) HasCrossReferenceTo(from address.Address) bool {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.HasTo(from)
}

// CrossReferenceTo returns the target of the outgoing edge of from.
func (d *Document) CrossReferenceTo(from address.Address) (address.Address, bool) {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.To(from)
}

// CrossReferenceCount returns the number of edges.
func (d *Document) CrossReferenceCount() int {
	d.xrefMu.Lock()
	defer d.xrefMu.Unlock()
	return d.xrefs.Len()
}

// ForEachCrossReference calls pred for every referenced target in
// address order together with its sorted sources. The graph is
// snapshotted first, pred runs without the lock held.
func (d *Document) ForEachCrossReference(pred func(to address.Address, from []address.Address)) {
	d.xrefMu.Lock()
	tos := d.xrefs.Tos()
	froms := make([][]address.Address, len(tos))
	for i, to := range tos {
		froms[i], _ = d.xrefs.From(to)
	}
	d.xrefMu.Unlock()

	for i, to := range tos {
		pred(to, froms[i])
	}
}

// AddMultiCell records a multi-cell at addr, replacing any previous one.
func (d *Document) AddMultiCell(addr address.Address, mc MultiCell) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.multiCells[addr] = mc
	return true
}

// RemoveMultiCell removes the multi-cell at addr.
func (d *Document) RemoveMultiCell(addr address.Address) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.multiCells[addr]; !ok {
		return false
	}
	delete(d.multiCells, addr)
	return true
}

// MultiCell returns the multi-cell at addr.
func (d *Document) MultiCell(addr address.Address) (MultiCell, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	mc, ok := d.multiCells[addr]
	return mc, ok
}

// MultiCellCount returns the number of multi-cells.
func (d *Document) MultiCellCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.multiCells)
}

// ForEachMultiCell calls pred for every multi-cell in address order.
func (d *Document) ForEachMultiCell(pred func(addr address.Address, mc MultiCell)) {
	d.mu.Lock()
	addrs := sortedKeys(d.multiCells)
	cells := make([]MultiCell, len(addrs))
	for i, addr := range addrs {
		cells[i] = d.multiCells[addr]
	}
	d.mu.Unlock()

	for i, addr := range addrs {
		pred(addr, cells[i])
	}
}

// SetComment attaches a comment to addr. Setting the empty string
// removes the comment.
func (d *Document) SetComment(addr address.Address, comment string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if comment == "" {
		delete(d.comments, addr)
		return true
	}
	d.comments[addr] = comment
	return true
}

// Comment returns the comment attached to addr.
func (d *Document) Comment(addr address.Address) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	comment, ok := d.comments[addr]
	return comment, ok
}

// CommentCount returns the number of comments.
func (d *Document) CommentCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.comments)
}

// ForEachComment calls pred for every comment in address order.
func (d *Document) ForEachComment(pred func(addr address.Address, comment string)) {
	d.mu.Lock()
	addrs := sortedKeys(d.comments)
	comments := make([]string, len(addrs))
	for i, addr := range addrs {
		comments[i] = d.comments[addr]
	}
	d.mu.Unlock()

	for i, addr := range addrs {
		pred(addr, comments[i])
	}
}

// RegisterArchitectureTag adds an architecture tag to the document.
func (d *Document) RegisterArchitectureTag(tag cell.Tag) bool {
	d.archMu.Lock()
	defer d.archMu.Unlock()

	if slices.Contains(d.archTags, tag) {
		return false
	}
	d.archTags = append(d.archTags, tag)
	return true
}

// UnregisterArchitectureTag removes an architecture tag.
func (d *Document) UnregisterArchitectureTag(tag cell.Tag) bool {
	d.archMu.Lock()
	defer d.archMu.Unlock()

	idx := slices.Index(d.archTags, tag)
	if idx < 0 {
		return false
	}
	d.archTags = slices.Delete(d.archTags, idx, idx+1)
	return true
}

// ArchitectureTags returns a copy of the registered tags in
// registration order.
func (d *Document) ArchitectureTags() []cell.Tag {
	d.archMu.Lock()
	defer d.archMu.Unlock()
	return slices.Clone(d.archTags)
}

func sortedKeys[V any](m map[address.Address]V) []address.Address {
	keys := make([]address.Address, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, address.Address.Compare)
	return keys
}
