package ocr

import (
	"bytes"

	"github.com/joseph-ayodele/guard-registry/constants"
)

var pdfMagic = []byte("%PDF")

// Classify sniffs the leading bytes: the PDF signature means PDF, anything else is
// assumed to be a raster image and will fail at decode time if it is not one.
func Classify(b []byte) constants.MediaKind {
	if len(b) == 0 {
		return constants.UNKNOWN
	}
	if bytes.HasPrefix(b, pdfMagic) {
		return constants.PDF
	}
	return constants.IMAGE
}
