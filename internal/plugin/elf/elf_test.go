package elf

import (
	"encoding/binary"
	"testing"

	"github.com/retroenv/disasmdb/internal/address"
	"github.com/retroenv/disasmdb/internal/document"
	"github.com/retroenv/disasmdb/internal/stream"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func TestSupports(t *testing.T) {
	loader := New(log.NewTestLogger(t))

	assert.True(t, loader.Supports(stream.New([]byte{0x7f, 'E', 'L', 'F', 2, 1})))
	assert.False(t, loader.Supports(stream.New([]byte{'M', 'Z', 0, 0})))
	assert.False(t, loader.Supports(stream.New([]byte{0x7f})))
	assert.False(t, loader.Supports(stream.New(nil)))
}

func TestLoad(t *testing.T) {
	loader := New(log.NewTestLogger(t))

	t.Run("maps allocatable sections", func(t *testing.T) {
		doc := document.New()
		strm := stream.New(minimalELF())

		assert.True(t, loader.Supports(strm))
		assert.NoError(t, loader.Load(doc, strm))

		area, ok := doc.MemoryArea(address.New(0x1000))
		assert.True(t, ok)
		assert.Equal(t, ".text", area.Name())
		assert.Equal(t, uint64(8), area.Size())
		assert.Equal(t, uint64(0x40), area.FileOffset())

		// the string table is not allocatable and must not be mapped
		_, ok = doc.MemoryArea(address.New(0))
		assert.False(t, ok)

		assert.NotNil(t, doc.BinaryStream())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		doc := document.New()
		err := loader.Load(doc, stream.New([]byte("not an elf")))
		assert.Error(t, err)
	})
}

func TestLabelName(t *testing.T) {
	t.Run("plain names pass through", func(t *testing.T) {
		assert.Equal(t, "main", labelName("main"))
	})

	t.Run("demangled names are whitespace free", func(t *testing.T) {
		assert.Equal(t, "add(int,_int)", labelName("_Z3addii"))
	})
}

func TestName(t *testing.T) {
	loader := New(log.NewTestLogger(t))
	assert.Equal(t, "ELF", loader.Name())
}

// minimalELF builds a little endian ELF64 image with a .text section at
// virtual address 0x1000 and a section string table.
func minimalELF() []byte {
	const (
		textOffset   = 0x40
		strtabOffset = 0x48
		shOffset     = 0x60
	)

	image := make([]byte, shOffset+3*64)
	le := binary.LittleEndian

	// ELF header
	copy(image, []byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	le.PutUint16(image[16:], 2)     // e_type: EXEC
	le.PutUint16(image[18:], 0xb7)  // e_machine: AArch64
	le.PutUint32(image[20:], 1)     // e_version
	le.PutUint64(image[24:], 0x1000) // e_entry
	le.PutUint64(image[40:], shOffset)
	le.PutUint16(image[52:], 64) // e_ehsize
	le.PutUint16(image[54:], 56) // e_phentsize
	le.PutUint16(image[58:], 64) // e_shentsize
	le.PutUint16(image[60:], 3)  // e_shnum
	le.PutUint16(image[62:], 2)  // e_shstrndx

	// section contents
	copy(image[textOffset:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	copy(image[strtabOffset:], "\x00.text\x00.shstrtab\x00")

	// section headers: NULL, .text, .shstrtab
	shdr := func(index int, name, typ uint32, flags, addr, offset, size uint64) {
		base := shOffset + index*64
		le.PutUint32(image[base:], name)
		le.PutUint32(image[base+4:], typ)
		le.PutUint64(image[base+8:], flags)
		le.PutUint64(image[base+16:], addr)
		le.PutUint64(image[base+24:], offset)
		le.PutUint64(image[base+32:], size)
		le.PutUint64(image[base+48:], 1) // sh_addralign
	}
	shdr(1, 1, 1, 0x2|0x4, 0x1000, textOffset, 8) // .text: PROGBITS, ALLOC|EXECINSTR
	shdr(2, 7, 3, 0, 0, strtabOffset, 17)         // .shstrtab: STRTAB

	return image
}
