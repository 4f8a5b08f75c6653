package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/app"
	"github.com/joseph-ayodele/guard-registry/internal/common"
	"github.com/joseph-ayodele/guard-registry/internal/pipeline"
)

// runocr runs the pipeline once over a local file or an http(s) URL and prints the result.
func main() {
	cfg, err := common.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.File = ""
	logger, _, err := common.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	if len(os.Args) != 2 {
		logger.Error("usage", "cmd", "runocr <file-or-url>")
		os.Exit(2)
	}
	target := os.Args[1]

	processor, err := app.NewProcessor(cfg, logger, nil)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.PipelineTimeout)
	defer cancel()

	start := time.Now()
	var (
		res  pipeline.Result
		perr error
	)
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		res, perr = processor.ProcessURL(ctx, target)
	} else {
		raw, err := os.ReadFile(target)
		if err != nil {
			logger.Error("read file", "path", target, "error", err)
			os.Exit(1)
		}
		res, perr = processor.ProcessBytes(ctx, raw)
	}
	if perr != nil {
		logger.Error("ocr failed", "code", common.CodeOf(perr), "error", perr, "duration_ms", time.Since(start).Milliseconds())
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"record": res.Record,
		"kind":   res.Extraction.Kind,
		"method": res.Extraction.Method,
		"pages":  res.Extraction.Pages,
		"text":   res.Extraction.Text,
	})
	logger.Info("ocr ok", "duration_ms", time.Since(start).Milliseconds())
}
