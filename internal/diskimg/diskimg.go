// Package diskimg assembles the hybrid MBR+GPT+ISO9660+El Torito disk image
// that wraps a FAT boot partition, following the layout of the original
// tool's createdisk(): a protective/hybrid MBR, a 63-sector GPT area, a
// 32KiB ISO9660 descriptor region, the FAT partition itself, then a
// secondary GPT copy at the very end of the disk.
package diskimg

import (
	"time"

	bin "github.com/dargueta/mkimg/internal/binary"
	"github.com/dargueta/mkimg/internal/mkerrors"
)

// gptAreaSectors is the fixed size, in 512-byte sectors, reserved for the
// GPT header and partition entry array at the front of the disk.
const gptAreaSectors = 63

const sectorSize = 512
const isoRegionBytes = 32768
const minDiskBytes = 64 * 1024 * 1024

// Options bundles everything Assemble needs beyond the partition payload
// itself.
type Options struct {
	// Partition is the already-built FAT16/FAT32 partition image
	// (internal/fat.Create's output). May be nil/empty to produce a
	// non-bootable, partition-less disk.
	Partition []byte
	// PartitionIsFAT16 selects the MBR partition type byte: FAT16 (0x0E)
	// when true, FAT32 LBA (0x0C) when false. Ignored if Partition is empty.
	PartitionIsFAT16 bool
	// Stage1 is the VBR/MBR bootstrap code (boot.bin), or nil to fall back
	// to a zeroed, non-bootable sector.
	Stage1 []byte
	// Stage2 is the second-stage loader payload to embed in the GPT
	// padding area when it can't be located inside Partition, or nil.
	Stage2 []byte
	// DiskSizeBytes is the requested total image size; it is raised to
	// minDiskBytes if smaller.
	DiskSizeBytes int
	// Now is used to derive the disk UUID and the ISO9660 timestamps.
	Now time.Time
}

// Assemble builds the complete hybrid disk image described by opts.
func Assemble(opts Options) ([]byte, *mkerrors.Error) {
	diskSize := opts.DiskSizeBytes
	if diskSize < minDiskBytes {
		diskSize = minDiskBytes
	}

	espBytes := len(opts.Partition)
	gptAreaBytes := gptAreaSectors * sectorSize

	uuid := deriveUUID(opts.Now)

	stage2LBA, stage2InPadding := locateStage2(opts.Partition, opts.Stage2)
	if stage2LBA%4 != 0 {
		return nil, mkerrors.Newf(mkerrors.IO, "stage2 at LBA %d is not 2048-byte sector aligned", stage2LBA)
	}

	gpt := make([]byte, gptAreaBytes)
	writeGPT(gpt, diskSize, espBytes, uuid)

	iso := make([]byte, isoRegionBytes)
	writeISO9660(iso, espBytes, opts.Now)

	if stage2InPadding {
		// gpt starts at disk LBA 1, so disk byte 16384 (LBA 32) is gpt[16384-512].
		copy(gpt[16384-sectorSize:], opts.Stage2)
	}

	mbr := buildMBR(opts.Stage1, opts.Partition, opts.PartitionIsFAT16, espBytes, stage2LBA, uuid[1])

	if espBytes > 0 && mbr[0] != 0 {
		// Copy stage1 into the VBR too, preserving the partition's own BPB
		// (bytes 11 through 0x5A) exactly as the original tool does.
		copy(opts.Partition[0:11], mbr[0:11])
		copy(opts.Partition[0x5A:0x1B8], mbr[0x5A:0x1B8])
		opts.Partition[0x1FE] = 0x55
		opts.Partition[0x1FF] = 0xAA
	}

	out := make([]byte, 0, diskSize)
	out = append(out, mbr...)
	out = append(out, gpt[:512]...)
	out = append(out, gpt[512:]...)
	out = append(out, iso...)
	if espBytes > 0 {
		out = append(out, opts.Partition...)
	}

	if len(out) > diskSize-gptAreaBytes {
		return nil, mkerrors.Newf(mkerrors.Config, "disk size %d is too small for the requested partition", diskSize)
	}

	padded := make([]byte, diskSize)
	copy(padded, out)

	writeSecondaryGPT(padded, gpt, diskSize)

	return padded, nil
}

// deriveUUID reproduces the original's "make the UUID unique" step: a fixed
// base pattern XORed in the second word with the current Unix time.
func deriveUUID(now time.Time) [4]uint32 {
	uuid := [4]uint32{0x12345678, 0x12345678, 0x12345678, 0x12345678}
	uuid[1] ^= uint32(now.Unix())
	return uuid
}

func writeSecondaryGPT(disk []byte, gpt []byte, diskSize int) {
	gptAreaBytes := gptAreaSectors * sectorSize
	tailOffset := diskSize - gptAreaBytes

	copy(disk[tailOffset:], gpt[512:gptAreaBytes])

	headerSize := int(bin.GetUint32LE(gpt, 12))
	primaryLBA := bin.GetUint32LE(gpt, 24)
	secondaryLBA := bin.GetUint32LE(gpt, 32)

	secondary := make([]byte, 512)
	copy(secondary, gpt[:512])
	bin.PutUint32LE(secondary, 32, primaryLBA)
	bin.PutUint32LE(secondary, 24, secondaryLBA)
	bin.PutUint32LE(secondary, 72, uint32((int(secondaryLBA)*512-gptAreaBytes)/512+1))
	bin.PutUint32LE(secondary, 16, 0)
	bin.PutUint32LE(secondary, 16, bin.CRC32(secondary[:headerSize]))

	copy(disk[diskSize-512:], secondary)
}
