//go:build !gosseract

package tessapi

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/ocr"
)

// ErrUnavailable is returned when the binary was built without libtesseract.
var ErrUnavailable = errors.New("gosseract engine not compiled in; rebuild with -tags gosseract")

type Engine struct{}

func New(common.OCRConfig, *slog.Logger) (*Engine, error) {
	return nil, ErrUnavailable
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Recognize(context.Context, ocr.Bitmap) (string, error) {
	return "", common.NewOCRError("gosseract unavailable", ErrUnavailable)
}
