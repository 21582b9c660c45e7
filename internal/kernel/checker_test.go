package kernel_test

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dargueta/mkimg/internal/kernel"
)

const coreAddr = uint64(0xffffffffffe02000)

// buildELF64 assembles a minimal, hand-laid-out ELF64 image: a header, one
// PT_LOAD program header, and, when withSymbols is true, a section table
// exposing .symtab/.strtab with a single "fb" symbol.
func buildELF64(withSymbols bool) []byte {
	buf := make([]byte, 120)
	copy(buf[0:4], "\x7fELF")
	buf[4] = 2 // ELFCLASS64
	buf[5] = 1 // ELFDATA2LSB

	le := binary.LittleEndian
	le.PutUint16(buf[16:], 2)      // e_type: ET_EXEC
	le.PutUint16(buf[18:], 62)     // e_machine: EM_X86_64
	le.PutUint64(buf[24:], coreAddr) // e_entry
	le.PutUint64(buf[32:], 64)     // e_phoff
	le.PutUint16(buf[54:], 56)     // e_phentsize
	le.PutUint16(buf[56:], 1)      // e_phnum

	// program header at offset 64
	le.PutUint32(buf[64:], 1) // p_type: PT_LOAD
	le.PutUint64(buf[64+8:], 0) // p_offset
	le.PutUint64(buf[64+16:], coreAddr) // p_vaddr
	le.PutUint64(buf[64+32:], 0x1000) // p_filesz
	le.PutUint64(buf[64+40:], 0x1000) // p_memsz

	if !withSymbols {
		return buf
	}

	shstrtab := append([]byte{0}, []byte(".shstrtab\x00.symtab\x00.strtab\x00")...)
	symtabOff := len(buf) + len(shstrtab)

	nullSym := make([]byte, 24)
	fbSym := make([]byte, 24)
	le.PutUint32(fbSym[0:], 1) // st_name -> "fb" in strtab
	le.PutUint64(fbSym[8:], 0xfffffffffc000000) // st_value

	strtabOff := symtabOff + len(nullSym) + len(fbSym)
	strtab := []byte{0, 'f', 'b', 0}

	shOff := strtabOff + len(strtab)

	buf = append(buf, shstrtab...)
	buf = append(buf, nullSym...)
	buf = append(buf, fbSym...)
	buf = append(buf, strtab...)

	sh := make([]byte, 64*3)
	// section 0: .shstrtab
	le.PutUint32(sh[0:], 1)
	le.PutUint64(sh[24:], uint64(len(buf)-len(shstrtab)-len(nullSym)-len(fbSym)-len(strtab)))
	le.PutUint64(sh[32:], uint64(len(shstrtab)))
	// section 1: .symtab
	le.PutUint32(sh[64:], 11)
	le.PutUint64(sh[64+24:], uint64(symtabOff))
	le.PutUint64(sh[64+32:], uint64(len(nullSym)+len(fbSym)))
	le.PutUint64(sh[64+56:], 24)
	// section 2: .strtab
	le.PutUint32(sh[128:], 19)
	le.PutUint64(sh[128+24:], uint64(strtabOff))
	le.PutUint64(sh[128+32:], uint64(len(strtab)))

	buf = append(buf, sh...)

	le.PutUint64(buf[40:], uint64(shOff)) // e_shoff
	le.PutUint16(buf[58:], 64)            // e_shentsize
	le.PutUint16(buf[60:], 3)             // e_shnum
	le.PutUint16(buf[62:], 0)             // e_shstrndx

	return buf
}

// buildPE32Plus assembles a minimal MZ+PE32+ image: an MZ stub, a PE32+
// header pointing at a one-entry COFF symbol table, and a string table
// holding "fb" -- the layout resolvePESymbols walks when a symbol's name
// isn't stored inline in the record.
func buildPE32Plus() []byte {
	buf := make([]byte, 140)
	le := binary.LittleEndian

	le.PutUint16(buf[0:], 0x5A4D) // mz magic
	le.PutUint32(buf[60:], 64)    // peaddr

	pe := buf[64:112]
	le.PutUint32(pe[0:], 0x00004550)  // pe magic
	le.PutUint16(pe[4:], 0x8664)      // machine: AMD64
	le.PutUint32(pe[12:], 112)        // sym_table offset
	le.PutUint32(pe[16:], 1)          // numsym
	le.PutUint16(pe[24:], 0x020B)     // file_type: PE32PLUS
	le.PutUint32(pe[28:], 0x1000)     // text_size
	le.PutUint32(pe[40:], 0xffe02000) // entry_point
	le.PutUint32(pe[44:], 0xffe02000) // code_base

	sym := buf[112:130]
	le.PutUint32(sym[0:], 0xFFFFFFFF) // iszero: nonzero, so the name comes
	le.PutUint32(sym[4:], 0)          // from the string table at nameoffs 0
	le.PutUint32(sym[8:], 0xfc000000) // value

	copy(buf[134:137], "fb\x00")

	return buf
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "kernel.elf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestCheck__ELF64NoSymbolsIsLevel1(t *testing.T) {
	path := writeTemp(t, buildELF64(false))

	report, err := kernel.Check(path)
	require.Nil(t, err)

	assert.Equal(t, "ELF64", report.Format)
	assert.Equal(t, "x86_64", report.Architecture)
	assert.Empty(t, report.Failure)
	assert.Equal(t, 1, report.Level)
	assert.Contains(t, report.Summary(), "Level 1, must use valid static addresses")
}

func TestCheck__ELF64WithFBSymbolIsLevel1And2(t *testing.T) {
	path := writeTemp(t, buildELF64(true))

	report, err := kernel.Check(path)
	require.Nil(t, err)

	assert.Empty(t, report.Failure)
	assert.Equal(t, uint64(0xfffffffffc000000), report.FBAddr)
	assert.Equal(t, 2, report.Level)
	assert.True(t, report.Level1Compatible)
	assert.Contains(t, report.Summary(), "Level 1 and 2")
}

func TestCheck__PE32PlusWithFBSymbolIsLevel1And2(t *testing.T) {
	path := writeTemp(t, buildPE32Plus())

	report, err := kernel.Check(path)
	require.Nil(t, err)

	assert.Equal(t, "PE32+", report.Format)
	assert.Equal(t, "x86_64", report.Architecture)
	assert.Empty(t, report.Failure)
	assert.Equal(t, uint64(0xfffffffffc000000), report.FBAddr)
	assert.Equal(t, 2, report.Level)
	assert.True(t, report.Level1Compatible)
}

func TestCheck__TooSmallFileIsInvalid(t *testing.T) {
	path := writeTemp(t, []byte{1, 2, 3})

	report, err := kernel.Check(path)
	require.Nil(t, err)
	assert.Equal(t, "invalid", report.Format)
	assert.NotEmpty(t, report.Failure)
}
