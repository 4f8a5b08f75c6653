// Package app wires configuration into the concrete services shared by the binaries.
package app

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/identity"
	"github.com/joseph-ayodele/guard-registry/internal/media"
	"github.com/joseph-ayodele/guard-registry/internal/metrics"
	"github.com/joseph-ayodele/guard-registry/internal/ocr"
	"github.com/joseph-ayodele/guard-registry/internal/ocr/tessapi"
	"github.com/joseph-ayodele/guard-registry/internal/pipeline"
	"github.com/joseph-ayodele/guard-registry/internal/session"
)

// NewExtractor builds the OCR extractor for the configured engine.
func NewExtractor(cfg common.OCRConfig, logger *slog.Logger) (*ocr.Extractor, error) {
	var opts []ocr.Option
	if cfg.Engine == "gosseract" {
		engine, err := tessapi.New(cfg, logger)
		if err != nil {
			return nil, common.NewAppError(common.CodeConfig, "ocr engine gosseract", err)
		}
		opts = append(opts, ocr.WithEngine(engine))
	}
	return ocr.NewExtractor(ocr.ConfigFrom(cfg), logger, opts...), nil
}

// NewFetcher builds the media downloader, authenticating with the Twilio credentials when asked.
func NewFetcher(cfg *common.Config, logger *slog.Logger) *media.Fetcher {
	var opts []media.Option
	if cfg.Media.BasicAuth && cfg.Messaging.AccountSID != "" {
		opts = append(opts, media.WithBasicAuth(cfg.Messaging.AccountSID, cfg.Messaging.AuthToken))
	}
	return media.NewFetcher(cfg.Media, logger, opts...)
}

// NewProcessor builds the full fetch -> OCR -> parse pipeline.
func NewProcessor(cfg *common.Config, logger *slog.Logger, m *metrics.Metrics) (*pipeline.Processor, error) {
	extractor, err := NewExtractor(cfg.OCR, logger)
	if err != nil {
		return nil, err
	}
	parser := identity.NewParser(cfg.Parser.LabeledNames, logger)
	return pipeline.NewProcessor(logger, NewFetcher(cfg, logger), extractor, parser, m), nil
}

// NewSessions opens the pending-confirmation store. The closer releases the redis client.
func NewSessions(ctx context.Context, cfg common.SessionConfig, logger *slog.Logger) (session.Store, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Backend != "redis" {
		logger.Info("session.backend", "backend", "memory", "ttl", cfg.TTL)
		return session.NewMemory(cfg.TTL), func() error { return nil }, nil
	}
	rdb, err := session.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("session.backend", "backend", "redis", "ttl", cfg.TTL)
	return session.NewRedis(rdb, cfg.TTL, cfg.KeyPrefix), rdb.Close, nil
}
