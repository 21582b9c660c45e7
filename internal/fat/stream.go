package fat

import (
	"io"

	"github.com/xaionaro-go/bytesextra"
)

// Reader returns an io.ReadSeeker over the built partition image, the same
// way github.com/dargueta/disko's blockcache and testing helpers expose a
// raw byte buffer as a stream rather than handing out the slice directly.
func Reader(partition []byte) io.ReadSeeker {
	return bytesextra.NewReadWriteSeeker(partition)
}
