package docrequests

import (
	"io"

	"github.com/ledongthuc/pdf"
)

// pageCount reports the number of pages in a PDF. Malformed files yield ok=false;
// the parser panics on some inputs, which is treated the same way.
func pageCount(r io.ReaderAt, size int64) (n int, ok bool) {
	if r == nil || size <= 0 {
		return 0, false
	}
	defer func() {
		if rec := recover(); rec != nil {
			n, ok = 0, false
		}
	}()
	doc, err := pdf.NewReader(r, size)
	if err != nil {
		return 0, false
	}
	return doc.NumPage(), true
}
