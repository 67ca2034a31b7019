package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"idschooldata/internal/config"
	"idschooldata/internal/infrastructure"
)

var (
	// ErrSourceNotFound means every candidate URL answered 404 or 410
	ErrSourceNotFound = errors.New("source workbook not found")
	// ErrNotWorkbook means a download did not contain an xlsx archive,
	// typically an HTML error page served with status 200
	ErrNotWorkbook = errors.New("downloaded file is not an xlsx workbook")
)

// xlsx files are zip archives
var zipMagic = []byte("PK\x03\x04")

// ClientOptions configures a Client
type ClientOptions struct {
	DownloadsDir      string
	Timeout           time.Duration
	MaxRetries        int
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
	RetryWaitMin      time.Duration
	RetryWaitMax      time.Duration
	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// OptionsFromConfig maps the source configuration onto client options
func OptionsFromConfig(cfg config.SourceConfig, downloadsDir string) ClientOptions {
	return ClientOptions{
		DownloadsDir:      downloadsDir,
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		UserAgent:         cfg.UserAgent,
	}
}

// Client downloads source workbooks with retry, throttling and mirror
// fallback, keeping each file under the downloads directory for reuse.
type Client struct {
	opts    ClientOptions
	http    *retryablehttp.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	metrics *infrastructure.PipelineMetrics
}

// NewClient creates a download client
func NewClient(opts ClientOptions, logger *slog.Logger, metrics *infrastructure.PipelineMetrics) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = config.DefaultHTTPTimeout
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	if opts.RetryWaitMin == 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax == 0 {
		opts.RetryWaitMax = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "source_client"))

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.MaxRetries
	rc.RetryWaitMin = opts.RetryWaitMin
	rc.RetryWaitMax = opts.RetryWaitMax
	rc.HTTPClient.Timeout = opts.Timeout
	if opts.Transport != nil {
		rc.HTTPClient.Transport = opts.Transport
	}
	rc.Logger = logger
	// hand the final response back instead of a generic "giving up" error
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		opts:    opts,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:  logger,
		metrics: metrics,
	}
}

// Download fetches name from the first URL that serves it and returns the
// local path. An existing valid file is reused unless force is set.
func (c *Client) Download(ctx context.Context, name string, urls []string, force bool) (string, error) {
	if len(urls) == 0 {
		return "", fmt.Errorf("no URLs for %s", name)
	}
	if err := os.MkdirAll(c.opts.DownloadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create downloads directory: %w", err)
	}

	dest := filepath.Join(c.opts.DownloadsDir, filepath.Base(name))
	if !force {
		if err := checkWorkbookFile(dest); err == nil {
			c.logger.DebugContext(ctx, "reusing downloaded workbook", slog.String("path", dest))
			return dest, nil
		}
	}

	var lastErr error
	notFound := 0
	for _, u := range urls {
		err := c.fetch(ctx, u, dest)
		if err == nil {
			return dest, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrSourceNotFound) {
			notFound++
		}
		lastErr = err
		c.logger.WarnContext(ctx, "download attempt failed",
			slog.String("url", u),
			slog.String("error", err.Error()))
	}

	if notFound == len(urls) {
		return "", fmt.Errorf("%s: %w", name, ErrSourceNotFound)
	}
	return "", fmt.Errorf("download %s: %w", name, lastErr)
}

func (c *Client) fetch(ctx context.Context, url, dest string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.recordDownload(ctx, "error")
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		c.recordDownload(ctx, "not_found")
		return fmt.Errorf("%s: %w", url, ErrSourceNotFound)
	case resp.StatusCode != http.StatusOK:
		c.recordDownload(ctx, "error")
		return fmt.Errorf("%s: unexpected status %d", url, resp.StatusCode)
	}

	if err := writeWorkbook(resp.Body, dest); err != nil {
		c.recordDownload(ctx, "invalid")
		return fmt.Errorf("%s: %w", url, err)
	}

	c.recordDownload(ctx, "success")
	c.logger.InfoContext(ctx, "downloaded workbook",
		slog.String("url", url),
		slog.String("path", dest),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (c *Client) recordDownload(ctx context.Context, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.SourceDownloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// writeWorkbook streams body into a temp file next to dest, checks the
// archive signature, then renames it into place.
func writeWorkbook(body io.Reader, dest string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close download: %w", err)
	}
	if err := checkWorkbookFile(tmpName); err != nil {
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

// checkWorkbookFile validates that path exists and starts with the zip
// signature
func checkWorkbookFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	head := make([]byte, len(zipMagic))
	if _, err := io.ReadFull(f, head); err != nil {
		return ErrNotWorkbook
	}
	if !bytes.Equal(head, zipMagic) {
		return ErrNotWorkbook
	}
	return nil
}
