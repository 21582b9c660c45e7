package romwrap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dargueta/mkimg/internal/romwrap"
)

func TestWrapBytes__SixteenByteInitrd(t *testing.T) {
	payload := []byte("HELLO-INITRD\x00\x00\x00\x00")
	rom := romwrap.WrapBytes(payload)

	assert.Len(t, rom, 512)
	assert.Equal(t, byte(1), rom[2])
	assert.Equal(t, "INITRD", string(rom[8:14]))

	var sum byte
	for _, b := range rom {
		sum += b
	}
	assert.Equal(t, byte(0), sum)
}

func TestWrapBytes__HeaderBytes(t *testing.T) {
	rom := romwrap.WrapBytes([]byte("x"))
	assert.Equal(t, byte(0x55), rom[0])
	assert.Equal(t, byte(0xAA), rom[1])
	assert.Equal(t, []byte{0x31, 0xC0, 0xCB}, rom[3:6])
}
