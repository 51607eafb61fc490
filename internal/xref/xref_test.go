package xref

import (
	"testing"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/retrogolib/assert"
)

func TestGraphAdd(t *testing.T) {
	t.Run("adds forward and inverse edge", func(t *testing.T) {
		g := New()
		to := address.New(0x2000)
		from := address.New(0x1000)

		assert.True(t, g.Add(to, from))

		got, ok := g.To(from)
		assert.True(t, ok)
		assert.True(t, to.Equal(got))

		sources, ok := g.From(to)
		assert.True(t, ok)
		assert.Len(t, sources, 1)
		assert.True(t, from.Equal(sources[0]))
	})

	t.Run("second outgoing edge refused", func(t *testing.T) {
		g := New()
		from := address.New(0x1000)

		assert.True(t, g.Add(address.New(0x2000), from))
		assert.False(t, g.Add(address.New(0x3000), from))
		assert.Equal(t, 1, g.Len())
	})

	t.Run("sources stay sorted", func(t *testing.T) {
		g := New()
		to := address.New(0x4000)

		g.Add(to, address.New(0x3000))
		g.Add(to, address.New(0x1000))
		g.Add(to, address.New(0x2000))

		sources, ok := g.From(to)
		assert.True(t, ok)
		assert.Len(t, sources, 3)
		assert.Equal(t, uint64(0x1000), sources[0].Offset)
		assert.Equal(t, uint64(0x2000), sources[1].Offset)
		assert.Equal(t, uint64(0x3000), sources[2].Offset)
	})
}

func TestGraphRemove(t *testing.T) {
	t.Run("removes both directions", func(t *testing.T) {
		g := New()
		to := address.New(0x2000)
		from := address.New(0x1000)
		g.Add(to, from)

		assert.True(t, g.RemoveFrom(from))
		assert.False(t, g.HasTo(from))
		assert.False(t, g.HasFrom(to))
		assert.Equal(t, 0, g.Len())
	})

	t.Run("unknown source", func(t *testing.T) {
		g := New()
		assert.False(t, g.RemoveFrom(address.New(0x1000)))
	})

	t.Run("keeps remaining sources", func(t *testing.T) {
		g := New()
		to := address.New(0x3000)
		g.Add(to, address.New(0x1000))
		g.Add(to, address.New(0x2000))

		assert.True(t, g.RemoveFrom(address.New(0x1000)))
		sources, ok := g.From(to)
		assert.True(t, ok)
		assert.Len(t, sources, 1)
		assert.Equal(t, uint64(0x2000), sources[0].Offset)
	})
}

func TestGraphClear(t *testing.T) {
	g := New()
	g.Add(address.New(0x2000), address.New(0x1000))
	g.Add(address.New(0x4000), address.New(0x3000))

	g.Clear()

	assert.Equal(t, 0, g.Len())
	assert.Len(t, g.Tos(), 0)
}

func TestGraphTos(t *testing.T) {
	g := New()
	g.Add(address.New(0x3000), address.New(0x10))
	g.Add(address.New(0x1000), address.New(0x20))
	g.Add(address.New(0x2000), address.New(0x30))

	tos := g.Tos()
	assert.Len(t, tos, 3)
	assert.Equal(t, uint64(0x1000), tos[0].Offset)
	assert.Equal(t, uint64(0x2000), tos[1].Offset)
	assert.Equal(t, uint64(0x3000), tos[2].Offset)
}
