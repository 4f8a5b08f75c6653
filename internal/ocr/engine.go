package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

// Engine recognizes text in a binarized bitmap. Empty output is "" with a nil error.
type Engine interface {
	Recognize(ctx context.Context, bm Bitmap) (string, error)
	Name() string
}

// TesseractCLI shells out to the tesseract binary through a Runner.
type TesseractCLI struct {
	Bin         string
	Lang        string
	PSM         int // 0 leaves tesseract's default
	OEM         int // 0 leaves tesseract's default
	TessdataDir string
	Runner      Runner
	Logger      *slog.Logger
}

func (t *TesseractCLI) Name() string { return "tesseract-cli" }

func (t *TesseractCLI) Recognize(ctx context.Context, bm Bitmap) (string, error) {
	logger := t.Logger
	if logger == nil {
		logger = slog.Default()
	}

	png, err := bm.PNG()
	if err != nil {
		return "", common.NewOCRError("encode bitmap", err)
	}
	tmpDir, err := os.MkdirTemp("", "guard-ocr-*")
	if err != nil {
		return "", common.NewOCRError("create temp dir", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "page.png")
	if err := os.WriteFile(in, png, 0o600); err != nil {
		return "", common.NewOCRError("write temp png", err)
	}

	stdout, stderr, err := t.Runner.Run(ctx, t.bin(), t.args(in)...)
	if err != nil {
		logger.Error("tesseract failed", "lang", t.lang(), "error", err)
		return "", common.NewOCRError("tesseract failed", fmt.Errorf("%w: %s", err, truncate(string(stderr), 512)))
	}
	text := NormalizeText(string(stdout))
	logger.Debug("tesseract done", "lang", t.lang(), "chars", len(text))
	return text, nil
}

func (t *TesseractCLI) args(in string) []string {
	args := []string{in, "stdout", "-l", t.lang()}
	if t.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.PSM))
	}
	if t.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.OEM))
	}
	if t.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.TessdataDir)
	}
	return args
}

func (t *TesseractCLI) bin() string {
	if t.Bin == "" {
		return "tesseract"
	}
	return t.Bin
}

func (t *TesseractCLI) lang() string {
	if t.Lang == "" {
		return "spa"
	}
	return t.Lang
}
