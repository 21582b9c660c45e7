package fat

import (
	"time"

	bin "github.com/dargueta/mkimg/internal/binary"
)

// Attribute flags, spec.md §3.
const (
	AttrDirectory = 0x10
	AttrRegular   = 0x00
	AttrVolume    = 0x08
)

const direntSize = 32

// mangle83 turns an arbitrary host filename into an 11-byte, space-padded,
// uppercased 8.3 name. "." and ".." are returned unchanged (as 11 bytes,
// space-padded) by the caller via the literal path below; mangle83 itself
// is only used for regular names.
//
// This reproduces adddirent()'s character loop exactly, including its
// one quirk: a second '.' in the name resets the extension cursor instead
// of being rejected.
func mangle83(name string) [11]byte {
	var out [11]byte
	for i := range out {
		out[i] = ' '
	}

	j := 0
	for i := 0; i < len(name) && j < 11; i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			out[j] = c - ('a' - 'A')
			j++
		case c == '.':
			j = 7
			j++
		default:
			out[j] = c
			j++
		}
	}
	return out
}

// packDate encodes a time.Time as a FAT date word.
func packDate(t time.Time) uint16 {
	year := uint16(t.Year() - 1980)
	return (year << 9) | (uint16(t.Month()) << 5) | uint16(t.Day())
}

// packTime encodes a time.Time as a FAT time word (2-second resolution).
func packTime(t time.Time) uint16 {
	return (uint16(t.Hour()) << 11) | (uint16(t.Minute()) << 5) | uint16(t.Second()/2)
}

// writeDirent writes one 32-byte directory entry at buf[off:off+32].
// name is written literally (no mangling, space-padded to 11 bytes) when
// it starts with '.', and through mangle83
// otherwise -- this lets "." and ".." preserve their literal form per
// spec.md §3.
func writeDirent(buf []byte, off int, name string, attr byte, cluster uint32, size uint32, ts time.Time) {
	entry := buf[off : off+direntSize]
	for i := 0; i < 11; i++ {
		entry[i] = ' '
	}

	if len(name) > 0 && name[0] == '.' {
		copy(entry[0:11], name)
	} else {
		packed := mangle83(name)
		copy(entry[0:11], packed[:])
	}

	entry[0x0B] = attr

	timeWord := packTime(ts)
	dateWord := packDate(ts)
	bin.PutUint16LE(entry, 0x0E, timeWord)
	bin.PutUint16LE(entry, 0x10, dateWord)
	bin.PutUint16LE(entry, 0x12, dateWord)
	bin.PutUint16LE(entry, 0x14, uint16(cluster>>16))
	bin.PutUint16LE(entry, 0x16, timeWord)
	bin.PutUint16LE(entry, 0x18, dateWord)
	bin.PutUint16LE(entry, 0x1A, uint16(cluster))
	bin.PutUint32LE(entry, 0x1C, size)
}
