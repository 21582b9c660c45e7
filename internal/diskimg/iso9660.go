package diskimg

import (
	"fmt"
	"time"

	bin "github.com/dargueta/mkimg/internal/binary"
)

const readmeText = "BOOTBOOT Live Image\r\n\r\nBootable as\r\n" +
	" - CDROM (El Torito, UEFI)\r\n" +
	" - USB stick (BIOS, Multiboot, UEFI)\r\n" +
	" - SD card (Raspberry Pi 3+)"

// writeISO9660 fills the fixed 32KiB descriptor region: Primary Volume
// Descriptor (sector 16), Boot Record Descriptor (17), Terminator (18),
// El Torito boot catalog (19), root directory (20), and the README.TXT
// contents (21). The region precedes the FAT/ESP partition in the final
// image, so every LBA here is relative to the start of the disk.
func writeISO9660(iso []byte, espBytes int, now time.Time) {
	writePVD(iso[0:2048], espBytes, now)
	writeBootRecordDescriptor(iso[2048:4096])
	iso[4096] = 0xFF
	copy(iso[4097:4102], "CD001")
	iso[4102] = 1
	writeBootCatalog(iso[6144:8192])
	writeRootDirectory(iso[8192:10240], now)
	copy(iso[10240:10240+len(readmeText)], readmeText)
}

func writePVD(s []byte, espBytes int, now time.Time) {
	s[0] = 1
	copy(s[1:6], "CD001")
	s[6] = 1
	for i := 8; i < 72; i++ {
		s[i] = ' '
	}
	copy(s[40:51], "BOOTBOOT_CD")
	bin.PutUint32BothEndian(s, 80, uint32((65536+espBytes+2047)/2048))
	s[120], s[123] = 1, 1
	s[124], s[127] = 1, 1
	s[129], s[130] = 8, 8
	s[156] = 0x22
	bin.PutUint32BothEndian(s, 158, 20)
	bin.PutUint32BothEndian(s, 166, 2048)
	writeISODateShort(s[174:181], now)
	s[180] = 0
	s[181] = 2
	s[184] = 1
	s[188] = 1
	for i := 190; i < 813; i++ {
		s[i] = ' '
	}
	copy(s[318:318+46], "BOOTBOOT <HTTPS://GITLAB.COM/BZTSRC/BOOTBOOT>")
	copy(s[446:446+14], "BOOTBOOT MKIMG")
	copy(s[574:574+11], "BOOTBOOT CD")
	for i := 702; i < 813; i++ {
		s[i] = ' '
	}
	date := isoLongDate(now)
	copy(s[813:813+16], date)
	copy(s[830:830+16], date)
	for i := 847; i < 863; i++ {
		s[i] = '0'
	}
	for i := 864; i < 880; i++ {
		s[i] = '0'
	}
	s[881] = 1
	for i := 883; i < 1395; i++ {
		s[i] = ' '
	}
}

func writeBootRecordDescriptor(s []byte) {
	s[0] = 0
	copy(s[1:6], "CD001")
	s[6] = 1
	copy(s[7:7+23], "EL TORITO SPECIFICATION")
	bin.PutUint32BothEndian(s, 71, 19)
}

func writeBootCatalog(s []byte) {
	// Validation Entry + Initial/Default Entry (BIOS). The BIOS stage-2
	// loader is discovered through the MBR, not this catalog -- the
	// initial/default entry just points at the ESP start, same as the
	// UEFI section entry below.
	s[0] = 1
	s[1] = 0
	s[28] = 0xAA
	s[29] = 0x55
	s[30] = 0x55
	s[31] = 0xAA
	s[32] = 0x88
	s[38] = 4
	bin.PutUint32LE(s, 40, espStartLBA/4)

	// Final Section Header Entry + Section Entry (UEFI).
	s[64] = 0x91
	s[65] = 0xEF
	s[66] = 1
	s[96] = 0x88
	bin.PutUint32LE(s, 104, espStartLBA/4)
}

func writeRootDirectory(s []byte, now time.Time) {
	// "."
	s[0] = 0x22
	bin.PutUint32BothEndian(s, 2, 20)
	bin.PutUint32BothEndian(s, 10, 2048)
	writeISODateShort(s[18:25], now)
	s[24] = 0
	s[25] = 2
	s[28] = 1
	s[32] = 1

	// ".."
	t := s[34:]
	t[0] = 0x22
	bin.PutUint32BothEndian(t, 2, 20)
	bin.PutUint32BothEndian(t, 10, 2048)
	writeISODateShort(t[18:25], now)
	t[24] = 0
	t[25] = 2
	t[28] = 1
	t[32] = 2

	// "README.TXT;1"
	r := s[68:]
	r[0] = 0x22 + 12
	bin.PutUint32BothEndian(r, 2, 21)
	bin.PutUint32BothEndian(r, 10, uint32(len(readmeText)))
	writeISODateShort(r[18:25], now)
	r[24] = 0
	r[25] = 0
	r[28] = 1
	r[32] = 12
	copy(r[33:33+12], "README.TXT;1")
}

// writeISODateShort fills the 7-byte directory-record date: years since
// 1900, month, day, hour, minute, second.
func writeISODateShort(b []byte, t time.Time) {
	b[0] = byte(t.Year() - 1900)
	b[1] = byte(t.Month())
	b[2] = byte(t.Day())
	b[3] = byte(t.Hour())
	b[4] = byte(t.Minute())
	b[5] = byte(t.Second())
}

// isoLongDate formats the 16-character ASCII volume descriptor timestamp:
// YYYYMMDDHHmmsscc with a trailing GMT-offset byte (always 0 here).
func isoLongDate(t time.Time) string {
	return fmt.Sprintf("%04d%02d%02d%02d%02d%02d00",
		t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}
