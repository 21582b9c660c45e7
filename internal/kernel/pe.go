package kernel

import (
	"github.com/go-restruct/restruct"

	log "github.com/dsoprea/go-logging"
)

const (
	mzMagic           = 0x5A4D
	peMagic           = 0x00004550
	imageFileAMD64    = 0x8664
	imageFileARM64    = 0xAA64
	peOptMagicPE32Plus = 0x020B
	peSymRecordSize    = 18
)

// mzHeader mirrors mz_hdr: the magic, a 29-word reserved block, and the
// file offset of the PE header.
type mzHeader struct {
	Magic    uint16
	Reserved [29]uint16
	PEAddr   uint32
}

// peHeader mirrors pe_hdr.
type peHeader struct {
	Magic       uint32
	Machine     uint16
	Sections    uint16
	Timestamp   uint32
	SymTable    uint32
	NumSym      uint32
	OptHdrSize  uint16
	Flags       uint16
	FileType    uint16
	LdMajor     uint8
	LdMinor     uint8
	TextSize    uint32
	DataSize    uint32
	BSSSize     uint32
	EntryPoint  int32
	CodeBase    int32
}

// peSymbol mirrors pe_sym: an 18-byte COFF symbol table record. AuxSyms is
// the number of auxiliary records that follow it, which resolvePESymbols
// skips.
type peSymbol struct {
	IsZero   uint32
	NameOffs uint32
	Value    int32
	Section  uint16
	Type     uint16
	StorClass uint8
	AuxSyms   uint8
}

func isPE32Plus(data []byte) (mzHeader, peHeader, bool) {
	var mz mzHeader
	if len(data) < 64 {
		return mz, peHeader{}, false
	}
	if err := restruct.Unpack(data[:64], elfDefaultEncoding, &mz); err != nil {
		return mz, peHeader{}, false
	}
	if mz.Magic != mzMagic || mz.PEAddr >= 65536 {
		return mz, peHeader{}, false
	}
	if int(mz.PEAddr)+48 > len(data) {
		return mz, peHeader{}, false
	}
	var pe peHeader
	if err := restruct.Unpack(data[mz.PEAddr:mz.PEAddr+48], elfDefaultEncoding, &pe); err != nil {
		return mz, peHeader{}, false
	}
	if pe.Magic != peMagic || pe.FileType != peOptMagicPE32Plus {
		return mz, pe, false
	}
	return mz, pe, true
}

// parsePE32Plus reproduces checkkernel()'s PE32+ branch.
func parsePE32Plus(data []byte, pehdr peHeader) (*Report, error) {
	r := &Report{Format: "PE32+"}

	switch pehdr.Machine {
	case imageFileARM64:
		r.Architecture = "AArch64"
	case imageFileAMD64:
		r.Architecture = "x86_64"
	default:
		r.Architecture = "invalid"
		r.Failure = "unsupported architecture"
		return r, nil
	}

	var maskMMIOFB, maskFBMMIO uint64
	if pehdr.Machine == imageFileARM64 {
		maskMMIOFB, maskFBMMIO = 2*1024*1024-1, 4095
	} else {
		maskMMIOFB, maskFBMMIO = 4095, 2*1024*1024-1
	}

	coreAddr := uint64(int64(pehdr.CodeBase))
	entry := uint64(int64(pehdr.EntryPoint))
	coreSize := uint64(int64(pehdr.EntryPoint-pehdr.CodeBase)) + uint64(pehdr.TextSize) + uint64(pehdr.DataSize)
	bss := uint64(pehdr.BSSSize)

	r.LoadSegments = 1
	r.CoreAddr = coreAddr
	r.CoreSize = coreSize
	r.BSS = bss
	r.EntryPoint = entry

	if !validateCore(r, coreAddr, coreSize, bss, entry, coreAddr+uint64(pehdr.TextSize)) {
		return r, nil
	}

	if pehdr.SymTable > 0 && pehdr.NumSym > 0 {
		if err := resolvePESymbols(data, pehdr, r); err != nil {
			return nil, err
		}
	} else {
		r.NoSymbols = true
	}

	classify(r, maskMMIOFB, maskFBMMIO)
	return r, nil
}

func resolvePESymbols(data []byte, pehdr peHeader, r *Report) error {
	symBase := pehdr.SymTable
	strTableOff := symBase + pehdr.NumSym*peSymRecordSize + 4

	for i := uint32(0); i < pehdr.NumSym; {
		recOff := symBase + i*peSymRecordSize
		if int(recOff)+peSymRecordSize > len(data) {
			break
		}
		var sym peSymbol
		if err := restruct.Unpack(data[recOff:recOff+peSymRecordSize], elfDefaultEncoding, &sym); err != nil {
			return log.Wrap(err)
		}

		var name string
		if sym.IsZero == 0 {
			name = cString(data[recOff : recOff+8])
		} else {
			name = cString(data[strTableOff+sym.NameOffs:])
		}

		assignSymbol(r, name, uint64(int64(sym.Value)))
		i += uint32(sym.AuxSyms) + 1
	}
	return nil
}
