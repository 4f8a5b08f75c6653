//go:build gosseract

package tessapi

import (
	"context"
	"log/slog"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/ocr"
)

// Engine runs tesseract in-process through libtesseract.
// A client is created per call; gosseract clients are not safe for concurrent use.
type Engine struct {
	lang        string
	psm         int
	tessdataDir string
	logger      *slog.Logger
}

func New(cfg common.OCRConfig, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lang := cfg.Lang
	if lang == "" {
		lang = "spa"
	}
	return &Engine{lang: lang, psm: cfg.PSM, tessdataDir: cfg.TessdataDir, logger: logger}, nil
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Recognize(ctx context.Context, bm ocr.Bitmap) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", common.NewOCRError("context done", err)
	}
	png, err := bm.PNG()
	if err != nil {
		return "", common.NewOCRError("encode bitmap", err)
	}

	client := gosseract.NewClient()
	defer func() { _ = client.Close() }()

	if e.tessdataDir != "" {
		if err := client.SetTessdataPrefix(e.tessdataDir); err != nil {
			return "", common.NewOCRError("set tessdata prefix", err)
		}
	}
	if err := client.SetLanguage(e.lang); err != nil {
		return "", common.NewOCRError("set language", err)
	}
	if e.psm > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(e.psm)); err != nil {
			return "", common.NewOCRError("set page seg mode", err)
		}
	}
	if err := client.SetImageFromBytes(png); err != nil {
		return "", common.NewOCRError("set image", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", common.NewOCRError("gosseract failed", err)
	}
	out := ocr.NormalizeText(text)
	e.logger.Debug("gosseract done", "lang", e.lang, "chars", len(out))
	return out, nil
}
