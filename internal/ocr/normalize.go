package ocr

import (
	"bytes"
	"context"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
)

// Normalizer turns raw media into a binarized bitmap: rasterize or decode,
// grayscale, 5x5 gaussian blur, Otsu threshold. Always in that order.
type Normalizer struct {
	raster PageRasterizer
	logger *slog.Logger
}

func NewNormalizer(raster PageRasterizer, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{raster: raster, logger: logger}
}

// Normalize returns the bitmap and the source page count (1 for images).
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, kind constants.MediaKind) (Bitmap, int, error) {
	var (
		img   image.Image
		pages = 1
	)
	switch kind {
	case constants.PDF:
		page, err := n.raster.FirstPage(ctx, raw)
		if err != nil {
			return Bitmap{}, 0, err
		}
		img, pages = page.Image, page.Pages
	case constants.IMAGE:
		decoded, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
		if err != nil {
			return Bitmap{}, 0, common.NewDecodeError("decode image", err)
		}
		img = decoded
	default:
		return Bitmap{}, 0, common.NewDecodeError("unknown media kind", nil)
	}

	if img.Bounds().Empty() {
		return Bitmap{}, 0, common.NewDecodeError("image has no pixels", nil)
	}

	blurred := GaussianBlur5(Grayscale(img))
	t := OtsuThreshold(blurred)
	bm := Bitmap{Image: Binarize(blurred, t), Threshold: t, Kind: kind}

	n.logger.Debug("media normalized",
		"kind", kind,
		"width", bm.Image.Rect.Dx(),
		"height", bm.Image.Rect.Dy(),
		"threshold", t,
	)
	return bm, pages, nil
}
