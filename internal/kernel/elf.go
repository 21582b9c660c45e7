package kernel

import (
	"encoding/binary"

	"github.com/go-restruct/restruct"

	log "github.com/dsoprea/go-logging"
)

// elfDefaultEncoding is the byte order every ELF64/PE32+ struct in this
// package is unpacked with.
var elfDefaultEncoding = binary.LittleEndian

const (
	ptLoad     = 1
	emX8664    = 62
	emAArch64  = 183
	elfClass64 = 2
	elfData2LSB = 1
)

// elf64Header mirrors Elf64_Ehdr; field order and widths match the ELF64
// spec exactly, so restruct can unpack it directly from the file header.
type elf64Header struct {
	Ident     [16]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint64
	Phoff     uint64
	Shoff     uint64
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

type elf64ProgramHeader struct {
	Type   uint32
	Flags  uint32
	Offset uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

type elf64SectionHeader struct {
	Name      uint32
	Type      uint32
	Flags     uint64
	Addr      uint64
	Offset    uint64
	Size      uint64
	Link      uint32
	Info      uint32
	Addralign uint64
	Entsize   uint64
}

type elf64Symbol struct {
	Name  uint32
	Info  uint8
	Other uint8
	Shndx uint16
	Value uint64
	Size  uint64
}

func isELF64(data []byte) bool {
	if len(data) < 16 {
		return false
	}
	magic := string(data[0:4])
	if magic != "\x7fELF" && magic != "OS/Z" {
		return false
	}
	return data[4] == elfClass64 && data[5] == elfData2LSB
}

// parseELF64 reproduces checkkernel()'s ELF branch: find the sole PT_LOAD
// segment, then if a section table is present, resolve bootboot/
// environment/mmio/fb from .symtab/.strtab.
func parseELF64(data []byte) (*Report, error) {
	var ehdr elf64Header
	if err := restruct.Unpack(data[:unsafeSizeofElf64Header], elfDefaultEncoding, &ehdr); err != nil {
		return nil, log.Wrap(err)
	}

	r := &Report{Format: "ELF64"}
	switch ehdr.Machine {
	case emAArch64:
		r.Architecture = "AArch64"
	case emX8664:
		r.Architecture = "x86_64"
	default:
		r.Architecture = "invalid"
		r.Failure = "unsupported architecture"
		return r, nil
	}

	var maskMMIOFB, maskFBMMIO uint64
	if ehdr.Machine == emAArch64 {
		maskMMIOFB, maskFBMMIO = 2*1024*1024-1, 4095
	} else {
		maskMMIOFB, maskFBMMIO = 4095, 2*1024*1024-1
	}

	var loadCount int
	var coreAddr, coreSize, bss, entry uint64
	phOff := ehdr.Phoff
	for i := uint16(0); i < ehdr.Phnum; i++ {
		var ph elf64ProgramHeader
		start := phOff
		if err := restruct.Unpack(data[start:start+unsafeSizeofElf64ProgramHeader], elfDefaultEncoding, &ph); err != nil {
			return nil, log.Wrap(err)
		}
		if ph.Type == ptLoad {
			loadCount++
			if loadCount == 1 {
				coreSize = ph.Filesz
				if ehdr.Type == 3 {
					coreSize += 0x4000
				}
				bss = ph.Memsz - coreSize
				coreAddr = ph.Vaddr
				entry = ehdr.Entry
			}
		}
		phOff += uint64(ehdr.Phentsize)
	}

	r.LoadSegments = loadCount
	r.CoreAddr = coreAddr
	r.CoreSize = coreSize
	r.BSS = bss
	r.EntryPoint = entry

	if !validateCore(r, coreAddr, coreSize, bss, entry, coreAddr+coreSize) {
		return r, nil
	}

	if ehdr.Shoff > 0 {
		if err := resolveELFSymbols(data, &ehdr, r); err != nil {
			return nil, err
		}
	} else {
		r.NoSectionTable = true
	}

	classify(r, maskMMIOFB, maskFBMMIO)
	return r, nil
}

func resolveELFSymbols(data []byte, ehdr *elf64Header, r *Report) error {
	shOff := ehdr.Shoff
	var strt elf64SectionHeader
	strtOff := shOff + uint64(ehdr.Shstrndx)*uint64(ehdr.Shentsize)
	if err := restruct.Unpack(data[strtOff:strtOff+unsafeSizeofElf64SectionHeader], elfDefaultEncoding, &strt); err != nil {
		return log.Wrap(err)
	}
	shstrtab := data[strt.Offset:]

	var symSh, strSh *elf64SectionHeader
	off := shOff
	for i := uint16(0); i < ehdr.Shnum; i++ {
		var sh elf64SectionHeader
		if err := restruct.Unpack(data[off:off+unsafeSizeofElf64SectionHeader], elfDefaultEncoding, &sh); err != nil {
			return log.Wrap(err)
		}
		name := cString(shstrtab[sh.Name:])
		switch name {
		case ".symtab":
			shCopy := sh
			symSh = &shCopy
		case ".strtab":
			shCopy := sh
			strSh = &shCopy
		}
		off += uint64(ehdr.Shentsize)
	}

	if symSh == nil || strSh == nil {
		r.NoSymbols = true
		return nil
	}

	strtable := data[strSh.Offset : strSh.Offset+strSh.Size]
	entSize := symSh.Entsize
	if strSh.Offset == 0 || strSh.Size == 0 || symSh.Offset == 0 || entSize == 0 {
		r.NoSymbols = true
		return nil
	}

	count := strSh.Offset - symSh.Offset
	if entSize > 0 {
		count /= entSize
	}
	for i := uint64(0); i < count; i++ {
		symOff := symSh.Offset + i*entSize
		var sym elf64Symbol
		if err := restruct.Unpack(data[symOff:symOff+unsafeSizeofElf64Symbol], elfDefaultEncoding, &sym); err != nil {
			return log.Wrap(err)
		}
		if uint64(sym.Name) >= uint64(strSh.Size) {
			break
		}
		name := cString(strtable[sym.Name:])
		assignSymbol(r, name, sym.Value)
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

const (
	unsafeSizeofElf64Header        = 64
	unsafeSizeofElf64ProgramHeader = 56
	unsafeSizeofElf64SectionHeader = 64
	unsafeSizeofElf64Symbol        = 24
)
