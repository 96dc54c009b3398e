package search

import (
	"github.com/RoaringBitmap/roaring"

	"corvusscan/postings/internal/qexec"
)

// deletedMask adapts a segment's deletion bitmap to qexec.MaskTester.
// postings.DocID is a uint32 alias, the same element type roaring.Bitmap
// stores natively, so no conversion is needed.
type deletedMask struct {
	bm *roaring.Bitmap
}

func (d deletedMask) Test(id qexec.DocID) bool {
	return d.bm.Contains(id)
}
