package fat

import (
	bin "github.com/dargueta/mkimg/internal/binary"
)

// Variant selects FAT16 or FAT32.
type Variant int

const (
	FAT16 Variant = 16
	FAT32 Variant = 32
)

const bytesPerSector = 512
const numFATs = 2
const mediaDescriptor = 0xF8

// geometry holds every BPB-derived value the builder needs to place the
// FAT tables, root directory, and cluster heap. It is never configured
// directly — ClampSize and newGeometry derive it from (variant, size).
type geometry struct {
	Variant           Variant
	PartitionBytes    int
	ReservedSectors   int
	SectorsPerCluster int
	BytesPerCluster   int
	SectorsPerFAT     int
	RootEntryCount    int // FAT16 only; 0 for FAT32

	FAT1Offset    int // byte offset of the first FAT copy
	FAT2Offset    int // byte offset of the second FAT copy
	RootDirOffset int // FAT16: fixed root dir region; FAT32: cluster 2's sector
	HeapOrigin    int // byte offset such that cluster N lives at HeapOrigin + N*BytesPerCluster
}

// ClampSize applies the minimum/upgrade rules from spec.md §4.4 and returns
// the (possibly adjusted) variant and size in bytes.
func ClampSize(variant Variant, sizeBytes int) (Variant, int) {
	const mib = 1024 * 1024
	if variant == FAT16 && sizeBytes < 16*mib {
		sizeBytes = 16 * mib
	}
	if variant == FAT16 && sizeBytes >= 32*mib {
		variant = FAT32
	}
	if variant == FAT32 && sizeBytes < 33*mib {
		sizeBytes = 33 * mib
	}
	return variant, sizeBytes
}

func newGeometry(variant Variant, partitionBytes int) *geometry {
	g := &geometry{Variant: variant, PartitionBytes: partitionBytes}

	if variant == FAT16 {
		g.ReservedSectors = 4
		g.SectorsPerCluster = 4
		g.RootEntryCount = 512
	} else {
		g.ReservedSectors = 32
		g.SectorsPerCluster = 1
	}
	g.BytesPerCluster = g.SectorsPerCluster * bytesPerSector

	totalClusters := partitionBytes / g.BytesPerCluster
	if variant == FAT16 {
		// sectors needed for a 16-bit-per-cluster table, rounded up.
		g.SectorsPerFAT = ((totalClusters*2 + bytesPerSector - 1) / bytesPerSector)
	} else {
		// Integer division, intentionally not rounded up, and reduced by 8
		// sectors -- this reproduces the original tool's FAT32 sizing
		// exactly rather than a textbook FAT32 layout.
		g.SectorsPerFAT = (totalClusters*4)/bytesPerSector - 8
	}

	g.FAT1Offset = g.ReservedSectors * bytesPerSector
	g.FAT2Offset = (g.ReservedSectors + g.SectorsPerFAT) * bytesPerSector

	if variant == FAT16 {
		g.RootDirOffset = (g.SectorsPerFAT*numFATs + g.ReservedSectors) * bytesPerSector
		rootDirBytes := g.RootEntryCount * 32
		g.HeapOrigin = g.RootDirOffset + ((rootDirBytes - 4096) &^ 2047)
	} else {
		g.RootDirOffset = (g.SectorsPerFAT*numFATs + g.ReservedSectors) * bytesPerSector
		g.HeapOrigin = g.RootDirOffset - 2*g.BytesPerCluster
	}

	return g
}

// ClusterOffset returns the byte offset of cluster n within the partition
// buffer. Valid for n >= 2.
func (g *geometry) ClusterOffset(n uint32) int {
	return g.HeapOrigin + int(n)*g.BytesPerCluster
}

// writeBPB fills in the boot sector / BIOS Parameter Block fields that are
// common to both variants plus the variant-specific extended BPB, byte for
// byte as the original tool's createfat() does.
func writeBPB(buf []byte, g *geometry, totalSectors int) {
	buf[0] = 0xEB
	if g.Variant == FAT16 {
		buf[1] = 0x3C
	} else {
		buf[1] = 0x58
	}
	buf[2] = 0x90
	copy(buf[3:11], "MSWIN4.1 ")

	bin.PutUint16LE(buf, 0x0B, bytesPerSector)
	buf[0x0D] = byte(g.SectorsPerCluster)
	bin.PutUint16LE(buf, 0x0E, uint16(g.ReservedSectors))
	buf[0x10] = numFATs
	buf[0x15] = mediaDescriptor
	bin.PutUint16LE(buf, 0x18, 0x20)
	bin.PutUint16LE(buf, 0x1A, 0x40)
	buf[0x1FE] = 0x55
	buf[0x1FF] = 0xAA

	if g.Variant == FAT16 {
		bin.PutUint16LE(buf, 0x11, uint16(g.RootEntryCount))
		bin.PutUint16LE(buf, 0x13, uint16(totalSectors))
		bin.PutUint16LE(buf, 0x16, uint16(g.SectorsPerFAT))

		buf[0x24] = 0x80 // BS_DrvNum
		buf[0x26] = 0x29 // BS_BootSig
		bin.PutUint32LE(buf, 0x27, 0x07B007B0)
		copy(buf[0x2B:0x2B+19], "EFI System FAT16   ")
	} else {
		bin.PutUint32LE(buf, 0x20, uint32(totalSectors))
		bin.PutUint32LE(buf, 0x24, uint32(g.SectorsPerFAT))
		buf[0x2C] = 2 // BPB_RootClus low byte: root directory is cluster 2
		bin.PutUint16LE(buf, 0x30, 1) // BPB_FSInfo
		bin.PutUint16LE(buf, 0x32, 6) // BPB_BkBootSec

		buf[0x40] = 0x80 // BS_DrvNum
		buf[0x42] = 0x29 // BS_BootSig
		bin.PutUint32LE(buf, 0x43, 0x07B007B0)
		copy(buf[0x47:0x47+19], "EFI System FAT32   ")

		writeFSInfo(buf[512:1024])
		copy(buf[0xC00:0xC00+512], buf[0:512])
	}
}

// writeFSInfo fills the FAT32 FS Information Sector at its fixed position
// (reserved sector 1). Free-count/next-free are set to "unknown" (all
// 0xFF) here and patched by the builder once population finishes.
func writeFSInfo(sector []byte) {
	copy(sector[0:4], "RRaA")
	copy(sector[0x1E4:0x1E4+4], "rrAa")
	for i := 0; i < 8; i++ {
		sector[0x1E8+i] = 0xFF
	}
	sector[0x1FE] = 0x55
	sector[0x1FF] = 0xAA
}

// updateFSInfoFreeCluster patches the FSInfo free-count and next-free
// fields once the final cluster counter is known.
func updateFSInfoFreeCluster(buf []byte, lastFreeCount, nextFreeCluster uint32) {
	sector := buf[512:1024]
	bin.PutUint32LE(sector, 0x1E8, lastFreeCount)
	bin.PutUint32LE(sector, 0x1EC, nextFreeCluster)
	// Only reserved sector 1 is patched; no backup copy of FSInfo is
	// written, and the backup boot sector at reserved sector 6 is left as is.
}
