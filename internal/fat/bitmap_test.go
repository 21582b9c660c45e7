package fat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/boljen/go-bitmap"
)

// TestWriteFile_SkippedClustersStayFree exercises the loader-alignment
// fix-up's interaction with the allocation bitmap directly: when writeFile
// skips clusters to land the stage-2 loader on a 2048-byte boundary, those
// skipped cluster numbers must never be marked used, since nothing ever
// chains a FAT entry to them.
func TestWriteFile_SkippedClustersStayFree(t *testing.T) {
	variant, sizeBytes := ClampSize(FAT32, 33*1024*1024)
	geo := newGeometry(variant, sizeBytes)
	totalClusters := sizeBytes / geo.BytesPerCluster

	b := &Builder{
		geo:       geo,
		buf:       make([]byte, sizeBytes),
		nextClust: 3,
		used:      bitmap.New(totalClusters),
		totalClus: totalClusters,
		now:       time.Now(),
	}

	// Cluster 3's heap offset is not 2048-aligned for this geometry, so the
	// loader signature below forces writeFile to skip ahead to the next
	// aligned cluster.
	startOffset := geo.ClusterOffset(b.nextClust)
	if startOffset&2047 == 0 {
		t.Fatalf("test fixture assumption violated: cluster %d already aligned", b.nextClust)
	}
	skippedClusters := int(b.nextClust) + (2048-(startOffset&2047))/geo.BytesPerCluster

	content := make([]byte, 700)
	content[0], content[1], content[3] = 0x55, 0xAA, 0xE9
	content[8], content[12] = 'B', 'B'

	path := filepath.Join(t.TempDir(), "LOADER.BIN")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	frame := &walkFrame{cursor: 0}
	if err := b.writeFile(path, "LOADER.BIN", frame); err != nil {
		t.Fatalf("writeFile failed: %s", err.Error())
	}

	for c := int(3); c < skippedClusters; c++ {
		if b.used.Get(c) {
			t.Errorf("skipped cluster %d was marked used", c)
		}
	}

	clustersNeeded := (len(content) + geo.BytesPerCluster - 1) / geo.BytesPerCluster
	for c := skippedClusters; c < skippedClusters+clustersNeeded; c++ {
		if !b.used.Get(c) {
			t.Errorf("allocated cluster %d was not marked used", c)
		}
	}
}
