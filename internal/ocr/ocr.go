package ocr

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/guard-registry/constants"
	"github.com/joseph-ayodele/guard-registry/internal/common"
)

type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract string // binary name or absolute path; if empty -> "tesseract"

	Lang string // default "spa"
	DPI  int    // rasterization DPI for PDFs, default 300

	TessdataDir string

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default
}

// ConfigFrom maps the process configuration onto extractor settings.
func ConfigFrom(c common.OCRConfig) Config {
	return Config{
		Pdftoppm:    c.Pdftoppm,
		Tesseract:   c.Tesseract,
		Lang:        c.Lang,
		DPI:         c.DPI,
		TessdataDir: c.TessdataDir,
		PSM:         c.PSM,
		OEM:         c.OEM,
	}
}

type ExtractionResult struct {
	Text      string
	Pages     int
	Kind      constants.MediaKind
	Method    string // "pdf-ocr" | "image-ocr"
	Engine    string
	Language  string
	Threshold uint8
	Duration  time.Duration
}

// Extractor runs detect -> normalize -> recognize over raw media bytes.
type Extractor struct {
	cfg        Config
	runner     Runner
	engine     Engine
	normalizer *Normalizer
	logger     *slog.Logger
}

type Option func(*Extractor)

// WithRunner replaces the exec runner used for pdftoppm and the tesseract CLI.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithEngine replaces the default tesseract CLI engine.
func WithEngine(engine Engine) Option {
	return func(e *Extractor) { e.engine = engine }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "spa"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}

	e := &Extractor{cfg: cfg, runner: ExecRunner{Logger: logger}, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	if e.engine == nil {
		e.engine = &TesseractCLI{
			Bin:         cfg.Tesseract,
			Lang:        cfg.Lang,
			PSM:         cfg.PSM,
			OEM:         cfg.OEM,
			TessdataDir: cfg.TessdataDir,
			Runner:      e.runner,
			Logger:      logger,
		}
	}
	e.normalizer = NewNormalizer(&PdftoppmRasterizer{
		Bin:    cfg.Pdftoppm,
		DPI:    cfg.DPI,
		Runner: e.runner,
		Logger: logger,
	}, logger)
	return e
}

// Extract classifies raw, normalizes it and runs the engine.
func (e *Extractor) Extract(ctx context.Context, raw []byte) (ExtractionResult, error) {
	start := time.Now()
	kind := Classify(raw)
	e.logger.Debug("starting ocr extraction", "kind", kind, "bytes", len(raw), "engine", e.engine.Name())

	res := ExtractionResult{Kind: kind, Engine: e.engine.Name(), Language: e.cfg.Lang}
	switch kind {
	case constants.PDF:
		res.Method = "pdf-ocr"
	case constants.IMAGE:
		res.Method = "image-ocr"
	default:
		return res, common.NewDecodeError("empty media", nil)
	}

	bm, pages, err := e.normalizer.Normalize(ctx, raw, kind)
	if err != nil {
		e.logger.Error("normalize failed", "kind", kind, "error", err)
		res.Duration = time.Since(start)
		return res, err
	}
	res.Pages = pages
	res.Threshold = bm.Threshold

	text, err := e.engine.Recognize(ctx, bm)
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}
	res.Text = text

	e.logger.Info("ocr extraction complete",
		"kind", kind,
		"method", res.Method,
		"pages", res.Pages,
		"threshold", res.Threshold,
		"chars", len(text),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}
