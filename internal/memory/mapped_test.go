package memory

import (
	"testing"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/cell"
	"github.com/retroenv/retrogolib/assert"
)

func newTestArea() *Mapped {
	return NewMapped(".text", 0, 0x100, address.New(0x1000), 0x100, Read|Execute)
}

func valueCell(length uint16) cell.Data {
	data := cell.NewValue()
	data.Length = length
	return data
}

func TestAccessString(t *testing.T) {
	assert.Equal(t, "RWX", (Read | Write | Execute).String())
	assert.Equal(t, "R--", Read.String())
	assert.Equal(t, "---", Access(0).String())
	assert.Equal(t, Read|Write, ParseAccess("RW-"))
	assert.Equal(t, Access(0), ParseAccess(""))
}

func TestMappedCellData(t *testing.T) {
	t.Run("hole reports default value cell", func(t *testing.T) {
		area := newTestArea()

		data, ok := area.CellData(0x1000)
		assert.True(t, ok)
		assert.Equal(t, cell.ValueType, data.Type)
		assert.Equal(t, cell.HexadecimalSubType, data.SubType)
		assert.Equal(t, uint16(1), data.Length)
	})

	t.Run("out of range is absent", func(t *testing.T) {
		area := newTestArea()

		_, ok := area.CellData(0xfff)
		assert.False(t, ok)
		_, ok = area.CellData(0x1100)
		assert.False(t, ok)
	})

	t.Run("covered offset is absent", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		assert.True(t, area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false))

		for offset := uint64(0x1001); offset < 0x1004; offset++ {
			_, ok := area.CellData(offset)
			assert.False(t, ok)
		}

		data, ok := area.CellData(0x1004)
		assert.True(t, ok)
		assert.Equal(t, cell.ValueType, data.Type)
	})

	t.Run("default cell carries the area architecture", func(t *testing.T) {
		area := newTestArea()
		tag := cell.MakeTag('a', 'r', 'm', ' ')
		area.SetDefaultArchitecture(tag, 1)

		data, ok := area.CellData(0x1010)
		assert.True(t, ok)
		assert.Equal(t, tag, data.Arch)
		assert.Equal(t, uint8(1), data.Mode)
	})
}

func TestMappedSetCellData(t *testing.T) {
	t.Run("overlapping force overwrite reports deleted starts", func(t *testing.T) {
		area := NewMapped(".data", 0, 0x100, address.New(0), 0x100, Read|Write)
		var deleted []address.Address

		assert.True(t, area.SetCellData(0x10, cell.NewInstruction(4, 0, 0), &deleted, false))
		assert.True(t, area.SetCellData(0x12, valueCell(2), &deleted, true))

		assert.Len(t, deleted, 1)
		assert.Equal(t, uint64(0x10), deleted[0].Offset)

		// the instruction start is gone, only the new value remains
		var starts []uint64
		area.ForEachCellData(func(offset uint64, data cell.Data) {
			starts = append(starts, offset)
		})
		assert.Equal(t, []uint64{0x12}, starts)

		data, ok := area.CellData(0x12)
		assert.True(t, ok)
		assert.Equal(t, uint16(2), data.Length)

		// the freed offsets degrade to default value cells
		data, ok = area.CellData(0x10)
		assert.True(t, ok)
		assert.Equal(t, cell.ValueType, data.Type)
		assert.Equal(t, uint16(1), data.Length)
	})

	t.Run("overlap without force is refused", func(t *testing.T) {
		area := NewMapped(".data", 0, 0x100, address.New(0), 0x100, Read|Write)
		var deleted []address.Address

		assert.True(t, area.SetCellData(0x10, cell.NewInstruction(4, 0, 0), &deleted, false))
		assert.False(t, area.SetCellData(0x12, valueCell(2), &deleted, false))
		assert.Len(t, deleted, 0)

		data, ok := area.CellData(0x10)
		assert.True(t, ok)
		assert.Equal(t, cell.InstructionType, data.Type)
	})

	t.Run("cell start inside new span is deleted", func(t *testing.T) {
		area := NewMapped(".data", 0, 0x100, address.New(0), 0x100, Read|Write)
		var deleted []address.Address

		assert.True(t, area.SetCellData(0x12, valueCell(2), &deleted, false))
		assert.True(t, area.SetCellData(0x10, cell.NewInstruction(4, 0, 0), &deleted, true))

		assert.Len(t, deleted, 1)
		assert.Equal(t, uint64(0x12), deleted[0].Offset)

		data, ok := area.CellData(0x10)
		assert.True(t, ok)
		assert.Equal(t, uint16(4), data.Length)
	})

	t.Run("out of range write is refused", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		assert.False(t, area.SetCellData(0x2000, cell.NewValue(), &deleted, true))
	})

	t.Run("cell intervals stay disjoint", func(t *testing.T) {
		area := NewMapped(".data", 0, 0x100, address.New(0), 0x100, Read|Write)
		var deleted []address.Address

		area.SetCellData(0x00, cell.NewInstruction(3, 0, 0), &deleted, true)
		area.SetCellData(0x02, cell.NewInstruction(4, 0, 0), &deleted, true)
		area.SetCellData(0x04, valueCell(2), &deleted, true)
		area.SetCellData(0x04, cell.NewInstruction(2, 0, 0), &deleted, true)

		type interval struct{ start, end uint64 }
		var intervals []interval
		area.ForEachCellData(func(offset uint64, data cell.Data) {
			intervals = append(intervals, interval{offset, offset + uint64(data.Length)})
		})
		for i := 1; i < len(intervals); i++ {
			assert.True(t, intervals[i-1].end <= intervals[i].start)
		}
	})
}

func TestMappedNavigation(t *testing.T) {
	t.Run("next address skips the cell length", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false)

		next, ok := area.NextAddress(area.MakeAddress(0x1000))
		assert.True(t, ok)
		assert.Equal(t, uint64(0x1004), next.Offset)
	})

	t.Run("next address at the end fails", func(t *testing.T) {
		area := newTestArea()
		_, ok := area.NextAddress(area.MakeAddress(0x10ff))
		assert.False(t, ok)
	})

	t.Run("nearest address snaps to the covering cell", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1010, cell.NewInstruction(4, 0, 0), &deleted, false)

		nearest, ok := area.NearestAddress(area.MakeAddress(0x1012))
		assert.True(t, ok)
		assert.Equal(t, uint64(0x1010), nearest.Offset)
	})

	t.Run("nearest address before the area is the base", func(t *testing.T) {
		area := newTestArea()
		nearest, ok := area.NearestAddress(address.New(0x10))
		assert.True(t, ok)
		assert.Equal(t, uint64(0x1000), nearest.Offset)
	})

	t.Run("forward and backward moves are inverse", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false)
		area.SetCellData(0x1004, valueCell(2), &deleted, false)

		start := area.MakeAddress(0x1000)
		forward, ok := area.MoveAddress(start, 3)
		assert.True(t, ok)
		assert.Equal(t, uint64(0x1007), forward.Offset)

		back, ok := area.MoveAddress(forward, -3)
		assert.True(t, ok)
		assert.True(t, start.Equal(back))
	})

	t.Run("move by zero returns the input", func(t *testing.T) {
		area := newTestArea()
		addr := area.MakeAddress(0x1005)
		moved, ok := area.MoveAddress(addr, 0)
		assert.True(t, ok)
		assert.True(t, addr.Equal(moved))
	})

	t.Run("move beyond the area fails", func(t *testing.T) {
		area := newTestArea()
		_, ok := area.MoveAddress(area.MakeAddress(0x10ff), 1)
		assert.False(t, ok)
		_, ok = area.MoveAddress(area.MakeAddress(0x1000), -1)
		assert.False(t, ok)
	})
}

func TestMappedPositions(t *testing.T) {
	t.Run("cell count folds cell lengths", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false)

		// one 4 byte cell plus 0xfc holes
		assert.Equal(t, uint64(0xfd), area.CellCount())
	})

	t.Run("offset to position", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false)

		pos, ok := area.ConvertOffsetToPosition(0x1000)
		assert.True(t, ok)
		assert.Equal(t, uint64(0), pos)

		pos, ok = area.ConvertOffsetToPosition(0x1004)
		assert.True(t, ok)
		assert.Equal(t, uint64(1), pos)

		// covered offsets snap to the owning cell start
		pos, ok = area.ConvertOffsetToPosition(0x1002)
		assert.True(t, ok)
		assert.Equal(t, uint64(0), pos)
	})

	t.Run("position to offset round trip", func(t *testing.T) {
		area := newTestArea()
		var deleted []address.Address
		area.SetCellData(0x1000, cell.NewInstruction(4, 0, 0), &deleted, false)
		area.SetCellData(0x1008, valueCell(2), &deleted, false)

		for position := uint64(0); position < area.CellCount(); position++ {
			offset, ok := area.ConvertPositionToOffset(position)
			assert.True(t, ok)
			back, ok := area.ConvertOffsetToPosition(offset)
			assert.True(t, ok)
			assert.Equal(t, position, back)
		}
	})
}

func TestMappedFileOffsets(t *testing.T) {
	t.Run("offsets inside the file image convert linearly", func(t *testing.T) {
		area := NewMapped(".text", 0x40, 0x80, address.New(0x2000), 0x100, Read|Execute)

		for k := uint64(0); k < 0x80; k += 0x10 {
			fileOffset, ok := area.ConvertOffsetToFileOffset(0x2000 + k)
			assert.True(t, ok)
			assert.Equal(t, 0x40+k, fileOffset)
		}
	})

	t.Run("zero filled tail has no file image", func(t *testing.T) {
		area := NewMapped(".text", 0x40, 0x80, address.New(0x2000), 0x100, Read|Execute)

		_, ok := area.ConvertOffsetToFileOffset(0x2080)
		assert.False(t, ok)
		_, ok = area.ConvertOffsetToFileOffset(0x1fff)
		assert.False(t, ok)
	})

	t.Run("bss area fails file conversion but reads default cells", func(t *testing.T) {
		area := NewMapped(".bss", 0, 0, address.New(0x1000), 0x100, Read|Write)

		_, ok := area.ConvertOffsetToFileOffset(0x1000)
		assert.False(t, ok)

		data, ok := area.CellData(0x1000)
		assert.True(t, ok)
		assert.Equal(t, cell.ValueType, data.Type)
		assert.Equal(t, cell.HexadecimalSubType, data.SubType)
		assert.Equal(t, uint16(1), data.Length)
	})
}

func TestMappedDump(t *testing.T) {
	area := NewMapped(".bss", 0, 0, address.New(0x1000), 0x100, Read|Write)
	assert.Equal(t, "ma(m .bss 0x0 0x0 00000000:00001000 0x100 RW-)", area.Dump())
	assert.Equal(t, "; mapped memory area .bss 0x1000 0x000100 RW-", area.String())
}
