package diskimg

import "github.com/dargueta/mkimg/internal/fat"

// locateStage2 finds the LBA (in 512-byte sectors, relative to the start of
// the whole disk) where the MBR's saved stage2 pointer should point. If
// partition already contains the stage-2 loader (placed there by
// internal/fat's loader alignment fix-up), its position is reported
// directly. Otherwise, if a standalone stage2 payload was supplied, it
// belongs in the GPT area's padding at disk byte offset 16384 (LBA 32) and
// "inPadding" is true so the caller copies it there.
func locateStage2(partition []byte, stage2 []byte) (lba uint32, inPadding bool) {
	if len(partition) > 0 {
		// Matches the original tool's scan bound exactly: the final sector
		// of the partition is never checked for the loader signature.
		for i := 0; i+512 < len(partition); i += 512 {
			if fat.HasLoaderSignature(partition[i:]) {
				return uint32((i + espStartLBA*sectorSize) / sectorSize), false
			}
		}
	}
	if len(stage2) > 0 {
		return 16384 / sectorSize, true
	}
	return 0, false
}
