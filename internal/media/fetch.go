package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/joseph-ayodele/guard-registry/internal/common"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultMaxBytes = 16 << 20
)

// ErrTooLarge is joined into the transport error when a body exceeds the size limit.
var ErrTooLarge = errors.New("media exceeds size limit")

// Fetcher downloads inbound attachments. No retries; one attempt per call.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	username string
	password string
	logger   *slog.Logger
}

type Option func(*Fetcher)

// WithBasicAuth authenticates downloads (Twilio media behind HTTP basic auth).
func WithBasicAuth(username, password string) Option {
	return func(f *Fetcher) {
		f.username = username
		f.password = password
	}
}

// WithHTTPClient replaces the default client; its Timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func NewFetcher(cfg common.MediaConfig, logger *slog.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	f := &Fetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch returns the body of a successful GET of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	logger := common.LoggerFrom(ctx, f.logger)

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, common.NewAppError(common.CodeInvalidInput, fmt.Sprintf("unsupported media url %q", rawURL), common.ErrInvalidInput)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, common.NewTransportError("build request", err)
	}
	if f.username != "" {
		req.SetBasicAuth(f.username, f.password)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		logger.Error("media.fetch.send_error", "host", u.Host, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, common.NewTransportError("media download failed", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("media.fetch.body_close_error", "error", err)
		}
	}(resp.Body)

	if resp.StatusCode/100 != 2 {
		logger.Error("media.fetch.bad_status", "host", u.Host, "status", resp.StatusCode)
		return nil, common.NewTransportError(fmt.Sprintf("media download returned status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, common.NewTransportError("read media body", err)
	}
	if int64(len(raw)) > f.maxBytes {
		return nil, common.NewTransportError(fmt.Sprintf("media larger than %d bytes", f.maxBytes), ErrTooLarge)
	}

	logger.Info("media.fetch.ok",
		"host", u.Host,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"),
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}
