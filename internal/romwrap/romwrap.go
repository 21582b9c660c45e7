// Package romwrap wraps an initrd payload as a legacy PC option ROM:
// header, far-return stub, identifier tag, 8-bit checksum trailer, and
// 512-byte padding. Grounded on mkimg.c's initrdrom().
package romwrap

import (
	"github.com/dargueta/mkimg/internal/binary"
	"github.com/dargueta/mkimg/internal/hostfs"
	"github.com/dargueta/mkimg/internal/mkerrors"
)

const blockSize = 512

// Wrap reads payloadPath and returns the option ROM image.
func Wrap(payloadPath string) ([]byte, *mkerrors.Error) {
	payload, err := hostfs.ReadAll(payloadPath)
	if err != nil {
		return nil, err
	}
	return WrapBytes(payload), nil
}

// WrapBytes wraps an already-loaded payload. Exposed separately so tests
// don't need to round-trip through the filesystem.
func WrapBytes(payload []byte) []byte {
	totalSize := ((len(payload) + 32 + blockSize - 1) / blockSize) * blockSize
	buf := make([]byte, totalSize)

	buf[0] = 0x55
	buf[1] = 0xAA
	buf[2] = byte(totalSize / blockSize)

	// far-return stub: xor ax,ax; retf
	buf[3] = 0x31
	buf[4] = 0xC0
	buf[5] = 0xCB

	copy(buf[8:14], "INITRD")
	binary.PutUint32LE(buf, 16, uint32(len(payload)))
	copy(buf[32:], payload)

	var sum byte
	for _, b := range buf {
		sum += b
	}
	buf[6] = byte((256 - int(sum)) % 256)

	return buf
}
