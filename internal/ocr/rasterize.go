package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

// Page is the first page of a document rendered to pixels.
type Page struct {
	Image image.Image
	Pages int // total page count, 0 when it could not be read
}

// PageRasterizer renders the first page of a PDF.
type PageRasterizer interface {
	FirstPage(ctx context.Context, pdf []byte) (Page, error)
}

// PdftoppmRasterizer renders through poppler's pdftoppm.
type PdftoppmRasterizer struct {
	Bin    string
	DPI    int
	Runner Runner
	Logger *slog.Logger
}

func (r *PdftoppmRasterizer) FirstPage(ctx context.Context, pdf []byte) (Page, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bin := r.Bin
	if bin == "" {
		bin = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = 300
	}

	pages, err := CountPages(pdf)
	switch {
	case err != nil:
		logger.Warn("pdf page count unavailable", "error", err)
	case pages > 1:
		logger.Warn("pdf has more than one page; only the first is read", "pages", pages)
	}

	tmpDir, err := os.MkdirTemp("", "guard-pdf-*")
	if err != nil {
		return Page{}, common.NewDecodeError("create temp dir", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	in := filepath.Join(tmpDir, "in.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return Page{}, common.NewDecodeError("write temp pdf", err)
	}
	prefix := filepath.Join(tmpDir, "page")
	args := []string{"-r", strconv.Itoa(dpi), "-f", "1", "-l", "1", "-png", "-singlefile", in, prefix}

	if _, stderr, err := r.Runner.Run(ctx, bin, args...); err != nil {
		return Page{}, common.NewDecodeError("pdftoppm failed", fmt.Errorf("%w: %s", err, truncate(string(stderr), 512)))
	}

	out := prefix + ".png"
	raw, err := os.ReadFile(out)
	if errors.Is(err, os.ErrNotExist) {
		return Page{}, common.NewConversionError("pdf rendered no page", nil)
	}
	if err != nil {
		return Page{}, common.NewDecodeError("read rendered page", err)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return Page{}, common.NewDecodeError("decode rendered page", err)
	}
	logger.Debug("pdf page rasterized", "dpi", dpi, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return Page{Image: img, Pages: pages}, nil
}

// CountPages reads the page count with pdfcpu using relaxed validation.
func CountPages(pdf []byte) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(bytes.NewReader(pdf), conf)
	if err != nil {
		return 0, err
	}
	return pctx.PageCount, nil
}
