package diskimg

import bin "github.com/dargueta/mkimg/internal/binary"

// espPartitionGUID is the UEFI EFI System Partition type GUID split
// into its four little-endian-in-field-but-mixed-endian-overall words, the
// same way the original tool's setint() calls lay it out one 32-bit chunk
// at a time.
var espPartitionGUID = [4]uint32{0x0C12A7328, 0x011D2F81F, 0x0A0004BBA, 0x03BC93EC9}

// writeGPT fills a gptAreaSectors*512-byte buffer with the primary GPT
// header at sector 1 and, when espBytes > 0, a single ESP partition entry
// at sector 2.
func writeGPT(gpt []byte, diskSize, espBytes int, uuid [4]uint32) {
	header := gpt[:512]
	copy(header, "EFI PART")
	bin.PutUint32LE(header, 10, 1) // revision
	bin.PutUint32LE(header, 12, 92) // header size
	bin.PutUint32LE(header, 24, 1) // this header's own LBA
	bin.PutUint32LE(header, 32, uint32(diskSize/sectorSize-1)) // secondary header LBA
	bin.PutUint32LE(header, 40, uint32(gptAreaSectors)+1) // first usable LBA
	bin.PutUint32LE(header, 48, uint32(diskSize/sectorSize)-1) // last usable LBA
	bin.PutUint32LE(header, 56, uuid[0])
	bin.PutUint32LE(header, 60, uuid[1])
	bin.PutUint32LE(header, 64, uuid[2])
	bin.PutUint32LE(header, 68, uuid[3])
	bin.PutUint32LE(header, 72, 2) // partition entry array LBA
	entryCount := 0
	if espBytes > 0 {
		entryCount = 1
	}
	bin.PutUint32LE(header, 80, uint32(entryCount))
	bin.PutUint32LE(header, 84, 128) // entry size

	entries := gpt[512:]
	if espBytes > 0 {
		bin.PutUint32LE(entries, 0, espPartitionGUID[0])
		bin.PutUint32LE(entries, 4, espPartitionGUID[1])
		bin.PutUint32LE(entries, 8, espPartitionGUID[2])
		bin.PutUint32LE(entries, 12, espPartitionGUID[3])
		bin.PutUint32LE(entries, 16, uuid[0]+1)
		bin.PutUint32LE(entries, 20, uuid[1])
		bin.PutUint32LE(entries, 24, uuid[2])
		bin.PutUint32LE(entries, 28, uuid[3])
		bin.PutUint32LE(entries, 32, espStartLBA)
		bin.PutUint32LE(entries, 40, uint32(espBytes/sectorSize)+espStartLBA-1)
		copyUTF16LE(entries[64:64+42], "EFI System Partition")
	}

	entryTableBytes := entryCount * 128
	bin.PutUint32LE(header, 88, bin.CRC32(entries[:entryTableBytes]))

	headerSize := int(bin.GetUint32LE(header, 12))
	bin.PutUint32LE(header, 16, 0)
	bin.PutUint32LE(header, 16, bin.CRC32(header[:headerSize]))
}

// copyUTF16LE writes s as little-endian UTF-16 code units into dst,
// matching the wide-character partition name the original tool embeds.
func copyUTF16LE(dst []byte, s string) {
	i := 0
	for _, r := range s {
		if i+2 > len(dst) {
			return
		}
		dst[i] = byte(r)
		dst[i+1] = byte(r >> 8)
		i += 2
	}
}
