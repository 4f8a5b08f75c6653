package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/ocr"
)

type MediaFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type TextExtractor interface {
	Extract(ctx context.Context, raw []byte) (ocr.ExtractionResult, error)
}

type FieldParser interface {
	Parse(text string) identity.Record
}

// Result is everything one media run produced.
type Result struct {
	Record     identity.Record
	Extraction ocr.ExtractionResult
	Bytes      int
}

// Processor coordinates fetch -> extract (detect, normalize, OCR) -> parse.
// Each stage either succeeds or returns a typed AppError; absence of text is not an error.
type Processor struct {
	fetcher   MediaFetcher
	extractor TextExtractor
	parser    FieldParser
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
}

func NewProcessor(logger *slog.Logger, fetcher MediaFetcher, extractor TextExtractor, parser FieldParser, m *metrics.Metrics) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		fetcher:   fetcher,
		extractor: extractor,
		parser:    parser,
		metrics:   m,
		tracer:    otel.Tracer("github.com/joseph-ayodele/guard-registry/internal/pipeline"),
		logger:    logger,
	}
}

// ProcessURL downloads the media at url and runs it through the pipeline.
func (p *Processor) ProcessURL(ctx context.Context, url string) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_url")
	defer span.End()
	logger := common.LoggerFrom(ctx, p.logger)

	start := time.Now()
	raw, err := p.fetcher.Fetch(ctx, url)
	p.metrics.ObserveStage("fetch", start)
	if err != nil {
		logger.Error("processor.fetch.failed", "error", err)
		p.metrics.IncrementRun("", common.CodeOf(err))
		fail(span, err)
		return Result{}, err
	}
	logger.Info("processor.fetch.ok", "bytes", len(raw))

	return p.ProcessBytes(ctx, raw)
}

// ProcessBytes runs already-downloaded media through extract and parse.
func (p *Processor) ProcessBytes(ctx context.Context, raw []byte) (Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.process_bytes", trace.WithAttributes(attribute.Int("media.bytes", len(raw))))
	defer span.End()
	logger := common.LoggerFrom(ctx, p.logger)

	start := time.Now()
	res, err := p.extractor.Extract(ctx, raw)
	p.metrics.ObserveStage("extract", start)
	span.SetAttributes(attribute.String("media.kind", string(res.Kind)))
	if err != nil {
		logger.Error("processor.extract.failed", "kind", res.Kind, "error", err)
		p.metrics.IncrementRun(res.Kind, common.CodeOf(err))
		fail(span, err)
		return Result{Extraction: res, Bytes: len(raw)}, err
	}
	if res.Text == "" {
		logger.Warn("processor.extract.empty_text", "kind", res.Kind)
	}

	start = time.Now()
	rec := p.parser.Parse(res.Text)
	p.metrics.ObserveStage("parse", start)
	p.countFields(rec)
	p.metrics.IncrementRun(res.Kind, "OK")

	logger.Info("processor.parse.ok",
		"kind", res.Kind,
		"chars", len(res.Text),
		"name_matched", rec.Name.IsMatched(),
		"surname_matched", rec.Surname.IsMatched(),
		"national_id_matched", rec.NationalID.IsMatched(),
	)
	return Result{Record: rec, Extraction: res, Bytes: len(raw)}, nil
}

func (p *Processor) countFields(rec identity.Record) {
	if rec.Name.IsMatched() {
		p.metrics.IncrementField("name")
	}
	if rec.Surname.IsMatched() {
		p.metrics.IncrementField("surname")
	}
	if rec.NationalID.IsMatched() {
		p.metrics.IncrementField("national_id")
	}
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, common.CodeOf(err))
}
