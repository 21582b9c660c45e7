package binary_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	bin "github.com/dargueta/mkimg/internal/binary"
)

func TestCRC32__KnownVector(t *testing.T) {
	assert.Equal(t, uint32(0xCBF43926), bin.CRC32([]byte("123456789")))
}

func TestCRC32__EmptyInput(t *testing.T) {
	assert.Equal(t, uint32(0), bin.CRC32(nil))
}

func TestPutUint32BothEndian__Basic(t *testing.T) {
	buf := make([]byte, 8)
	bin.PutUint32BothEndian(buf, 0, 0x12345678)

	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, buf[0:4])
	assert.Equal(t, []byte{0x12, 0x34, 0x56, 0x78}, buf[4:8])
}

func TestPutGetUint32LE__RoundTrip(t *testing.T) {
	buf := make([]byte, 4)
	bin.PutUint32LE(buf, 0, 0xDEADBEEF)
	assert.Equal(t, uint32(0xDEADBEEF), bin.GetUint32LE(buf, 0))
}

func TestPutGetUint16LE__RoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	bin.PutUint16LE(buf, 0, 0xCAFE)
	assert.Equal(t, uint16(0xCAFE), bin.GetUint16LE(buf, 0))
}
