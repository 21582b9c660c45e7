package diskimg

import bin "github.com/dargueta/mkimg/internal/binary"

// partition type bytes for the hybrid MBR's first entry.
const (
	mbrTypeFAT16LBA = 0x0E
	mbrTypeFAT32LBA = 0x0C
	mbrTypeGPTGuard  = 0xEE
)

// espStartLBA is where the FAT partition begins: immediately after the MBR,
// the 63-sector GPT area and the 32 KiB (64-sector) ISO9660 region.
const espStartLBA = 128

// buildMBR produces the 512-byte (P)MBR/VBR sector: stage1 bootstrap code
// (or a zeroed stub if absent), the stage2 LBA and disk signature patched
// into the reserved BPB area, and a two-entry partition table -- the FAT
// partition (when present) followed by the protective GPT entry.
func buildMBR(stage1 []byte, partition []byte, isFAT16 bool, espBytes int, stage2LBA uint32, diskSignature uint32) []byte {
	mbr := make([]byte, 512)
	if len(stage1) >= 512 {
		copy(mbr, stage1[:512])
		for i := 0x1B8; i < 0x1FE; i++ {
			mbr[i] = 0
		}
	}

	bin.PutUint32LE(mbr, 0x1B0, stage2LBA)
	bin.PutUint32LE(mbr, 0x1B8, diskSignature)
	mbr[0x1FE] = 0x55
	mbr[0x1FF] = 0xAA

	j := 0x1C0
	if espBytes > 0 {
		mbr[j-2] = 0x80 // bootable
		bin.PutUint32LE(mbr, j, 129) // start CHS (unused by modern firmware)
		if isFAT16 {
			mbr[j+2] = mbrTypeFAT16LBA
		} else {
			mbr[j+2] = mbrTypeFAT32LBA
		}
		bin.PutUint32LE(mbr, j+4, uint32((gptAreaSectors*sectorSize+espBytes)/sectorSize)+2) // end CHS
		bin.PutUint32LE(mbr, j+6, espStartLBA)
		bin.PutUint32LE(mbr, j+10, uint32(espBytes/sectorSize))
		j += 16
	}

	// protective GPT entry
	bin.PutUint32LE(mbr, j, 1)
	mbr[j+2] = mbrTypeGPTGuard
	bin.PutUint32LE(mbr, j+4, uint32(gptAreaSectors)+1)
	bin.PutUint32LE(mbr, j+6, 1)
	bin.PutUint32LE(mbr, j+10, uint32(gptAreaSectors))

	return mbr
}
