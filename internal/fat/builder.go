// Package fat implements FATBuilder: it produces a FAT16 or FAT32 partition
// image of a requested size, populated by recursively walking a host
// directory. Grounded on github.com/dargueta/disko's drivers/fat package
// for the on-disk structure conventions, and on the original mkimg.c's
// createfat()/parsedir() for the exact population algorithm.
package fat

import (
	"time"

	"github.com/boljen/go-bitmap"

	bin "github.com/dargueta/mkimg/internal/binary"
	"github.com/dargueta/mkimg/internal/hostfs"
	"github.com/dargueta/mkimg/internal/mkerrors"
)

// LoaderSignatureLength is how many leading bytes of a file are inspected
// to decide whether it's the stage-2 loader that must be 2048-byte
// aligned within the partition.
const LoaderSignatureLength = 16

// HasLoaderSignature reports whether the first 16 bytes of data match the
// stage-2 loader signature (spec.md §4.4): byte[0]=0x55, byte[1]=0xAA,
// byte[3]=0xE9, byte[8]='B', byte[12]='B'. DiskAssembler uses the same
// test when scanning an already-built partition for the loader.
func HasLoaderSignature(data []byte) bool {
	if len(data) < LoaderSignatureLength {
		return false
	}
	return data[0] == 0x55 && data[1] == 0xAA && data[3] == 0xE9 &&
		data[8] == 'B' && data[12] == 'B'
}

// terminator values for cluster 0/1 and end-of-chain, per variant.
const (
	fat16Media = 0xFFF8
	fat16EOC   = 0xFFFF
	fat32Media = 0x0FFFFFF8
	fat32EOC   = 0x0FFFFFFF
)

// Builder owns the partition buffer, both FAT copies, and the cluster
// allocation bitmap for one image being populated.
type Builder struct {
	geo       *geometry
	buf       []byte
	nextClust uint32
	used      bitmap.Bitmap
	totalClus int
	now       time.Time
}

// Create builds a FAT16 or FAT32 partition image of sizeBytes (clamped per
// spec.md §4.4), populated from sourceDir, and returns the partition
// bytes.
func Create(variant Variant, sizeBytes int, sourceDir string, now time.Time) ([]byte, *mkerrors.Error) {
	if variant != FAT16 && variant != FAT32 {
		return nil, mkerrors.Newf(mkerrors.Config, "unsupported FAT type %d: use 16 or 32", variant)
	}

	variant, sizeBytes = ClampSize(variant, sizeBytes)
	geo := newGeometry(variant, sizeBytes)

	buf := make([]byte, sizeBytes)
	totalSectors := (sizeBytes + bytesPerSector - 1) / bytesPerSector
	writeBPB(buf, geo, totalSectors)

	totalClusters := sizeBytes / geo.BytesPerCluster
	b := &Builder{
		geo:       geo,
		buf:       buf,
		nextClust: 3,
		used:      bitmap.New(totalClusters),
		totalClus: totalClusters,
		now:       now,
	}

	b.writeFATReservedEntries()

	// Volume label in the root directory, as the first entry.
	writeDirent(buf, geo.RootDirOffset, ".", AttrVolume, 0, 0, now)
	copy(buf[geo.RootDirOffset:geo.RootDirOffset+11], "EFI System ")

	rootCursor := geo.RootDirOffset + direntSize
	if err := b.walk(sourceDir, rootCursor, 0); err != nil {
		return nil, err
	}

	if variant == FAT32 {
		totalHeapClusters := (sizeBytes - geo.RootDirOffset) / geo.BytesPerCluster
		nextFree := b.nextClust - 1
		freeCount := uint32(totalHeapClusters) - nextFree
		updateFSInfoFreeCluster(buf, freeCount, nextFree)
	}

	return buf, nil
}

func (b *Builder) writeFATReservedEntries() {
	if b.geo.Variant == FAT16 {
		bin.PutUint16LE(b.buf, b.geo.FAT1Offset+0, fat16Media)
		bin.PutUint16LE(b.buf, b.geo.FAT1Offset+2, fat16EOC)
		bin.PutUint16LE(b.buf, b.geo.FAT2Offset+0, fat16Media)
		bin.PutUint16LE(b.buf, b.geo.FAT2Offset+2, fat16EOC)
	} else {
		bin.PutUint32LE(b.buf, b.geo.FAT1Offset+0, fat32Media)
		bin.PutUint32LE(b.buf, b.geo.FAT1Offset+4, fat32EOC)
		bin.PutUint32LE(b.buf, b.geo.FAT1Offset+8, fat32Media)
		bin.PutUint32LE(b.buf, b.geo.FAT2Offset+0, fat32Media)
		bin.PutUint32LE(b.buf, b.geo.FAT2Offset+4, fat32EOC)
		bin.PutUint32LE(b.buf, b.geo.FAT2Offset+8, fat32Media)
		b.used.Set(2, true)
	}
}

// setFATLink writes the same value into both FAT copies at cluster index c.
func (b *Builder) setFATLink(c uint32, value uint32) {
	if b.geo.Variant == FAT16 {
		bin.PutUint16LE(b.buf, b.geo.FAT1Offset+int(c)*2, uint16(value))
		bin.PutUint16LE(b.buf, b.geo.FAT2Offset+int(c)*2, uint16(value))
	} else {
		bin.PutUint32LE(b.buf, b.geo.FAT1Offset+int(c)*4, value)
		bin.PutUint32LE(b.buf, b.geo.FAT2Offset+int(c)*4, value)
	}
}

func (b *Builder) terminator() uint32 {
	if b.geo.Variant == FAT16 {
		return fat16EOC
	}
	return fat32EOC
}

// allocCluster returns the next free cluster number, marking it used.
func (b *Builder) allocCluster() uint32 {
	c := b.nextClust
	b.nextClust++
	if int(c) < b.totalClus {
		b.used.Set(int(c), true)
	}
	return c
}

// walkFrame is one explicit stack entry for the non-recursive directory
// walk: the entries left to process in one host directory, where the next
// directory entry for that directory should be written, and the cluster
// number children should use for their ".." entry.
type walkFrame struct {
	entries    []hostfs.Entry
	index      int
	hostPath   string
	cursor     int
	selfCluster uint32
}

// walk populates dirents for sourceDir starting at dirCursor (an offset
// into b.buf where the next 32-byte entry for this directory should be
// written), using an explicit stack instead of Go call recursion per the
// module's directory-walk design: this keeps the 2048-alignment side
// effect (see writeFile) centralized and bounds stack depth to the number
// of open directories, not the number of files.
func (b *Builder) walk(sourceDir string, dirCursor int, selfCluster uint32) *mkerrors.Error {
	entries, err := hostfs.IterDir(sourceDir)
	if err != nil {
		return err
	}

	stack := []*walkFrame{{entries: entries, hostPath: sourceDir, cursor: dirCursor, selfCluster: selfCluster}}

	for len(stack) > 0 {
		frame := stack[len(stack)-1]
		if frame.index >= len(frame.entries) {
			stack = stack[:len(stack)-1]
			continue
		}

		entry := frame.entries[frame.index]
		frame.index++
		childPath := frame.hostPath + "/" + entry.Name

		if entry.Kind == hostfs.KindDir {
			newCluster := b.allocCluster()
			writeDirent(b.buf, frame.cursor, entry.Name, AttrDirectory, newCluster, 0, b.now)
			frame.cursor += direntSize
			b.setFATLink(newCluster, b.terminator())

			childOffset := b.geo.ClusterOffset(newCluster)
			writeDirent(b.buf, childOffset, ".", AttrDirectory, newCluster, 0, b.now)
			writeDirent(b.buf, childOffset+direntSize, "..", AttrDirectory, frame.selfCluster, 0, b.now)

			childEntries, err := hostfs.IterDir(childPath)
			if err != nil {
				return err
			}
			stack = append(stack, &walkFrame{
				entries:     childEntries,
				hostPath:    childPath,
				cursor:      childOffset + 2*direntSize,
				selfCluster: newCluster,
			})
			continue
		}

		if err := b.writeFile(childPath, entry.Name, frame); err != nil {
			return err
		}
	}

	return nil
}

// writeFile reads one regular file, applies the 2048-byte loader
// alignment fix-up if it matches the stage-2 loader signature, writes its
// directory entry, copies its content into the cluster heap, and links
// its cluster chain.
func (b *Builder) writeFile(path, name string, frame *walkFrame) *mkerrors.Error {
	content, err := hostfs.ReadAll(path)
	if err != nil {
		return err
	}

	if len(content) == 0 {
		writeDirent(b.buf, frame.cursor, name, AttrRegular, 0, 0, b.now)
		frame.cursor += direntSize
		return nil
	}

	startCluster := b.nextClust
	heapOffset := b.geo.ClusterOffset(startCluster)

	if HasLoaderSignature(content) && (heapOffset&2047) != 0 {
		skip := 2048 - (heapOffset & 2047)
		heapOffset += skip
		b.nextClust += uint32(skip / b.geo.BytesPerCluster)
		startCluster = b.nextClust
	}

	writeDirent(b.buf, frame.cursor, name, AttrRegular, startCluster, uint32(len(content)), b.now)
	frame.cursor += direntSize

	copy(b.buf[heapOffset:heapOffset+len(content)], content)

	clustersNeeded := (len(content) + b.geo.BytesPerCluster - 1) / b.geo.BytesPerCluster
	for i := 0; i < clustersNeeded; i++ {
		c := b.allocCluster()
		if i == clustersNeeded-1 {
			b.setFATLink(c, b.terminator())
		} else {
			b.setFATLink(c, c+1)
		}
	}

	return nil
}
