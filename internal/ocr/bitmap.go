package ocr

import (
	"bytes"
	"image"
	"image/png"

	"github.com/joseph-ayodele/guard-registry/constants"
)

// Bitmap is a binarized single-channel image ready for OCR. Every pixel is 0 or 255.
type Bitmap struct {
	Image     *image.Gray
	Threshold uint8
	Kind      constants.MediaKind
}

// PNG encodes the bitmap losslessly for engines that read files or byte buffers.
func (b Bitmap) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, b.Image); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// IsBinary reports whether every pixel is 0 or 255.
func (b Bitmap) IsBinary() bool {
	if b.Image == nil {
		return false
	}
	for _, p := range b.Image.Pix {
		if p != 0 && p != 255 {
			return false
		}
	}
	return true
}
