package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "lifepilot/internal/log"
)

// Default capture parameters for a rendered plan page.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 1600
	DefaultTimeoutSec = 30

	// ReadySelector matches the element the plan page marks once rendered.
	ReadySelector = `[data-ready="true"]`
)

// CaptureOptions defines parameters for a Chromium-based screenshot capture.
type CaptureOptions struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/" or a file:// URL.
	URL string

	// OutputPath is where the PNG screenshot will be written.
	OutputPath string

	// Width and Height are the viewport dimensions in pixels. If zero,
	// DefaultWidth / DefaultHeight are used.
	Width  int
	Height int

	// Timeout bounds the entire capture operation. If zero,
	// DefaultTimeoutSec is used.
	Timeout time.Duration
}

func (o *CaptureOptions) normalize() error {
	if o.URL == "" {
		return errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}
	return nil
}

// CapturePagePNG launches a headless Chromium via chromedp, navigates to
// opts.URL, waits for ReadySelector to become visible and writes a full-page
// PNG screenshot to opts.OutputPath.
func CapturePagePNG(parentCtx context.Context, opts CaptureOptions) error {
	if err := opts.normalize(); err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(ReadySelector, chromedp.ByQuery),
		// Let thumbnails and fonts settle.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.FullScreenshot(&png, 100),
	}

	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	if err := os.WriteFile(opts.OutputPath, png, 0o644); err != nil {
		return fmt.Errorf("capture: failed to write PNG: %w", err)
	}

	appLog.Info("plan snapshot written", "path", opts.OutputPath, "bytes", len(png))
	return nil
}

// CapturePlanPNG writes page (a complete HTML document) to a temp file and
// screenshots it with CapturePagePNG. opts.URL is ignored.
func CapturePlanPNG(ctx context.Context, page []byte, opts CaptureOptions) error {
	if len(page) == 0 {
		return errors.New("capture: page is empty")
	}

	dir, err := os.MkdirTemp("", "lifepilot-snapshot-*")
	if err != nil {
		return fmt.Errorf("capture: temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	htmlPath := filepath.Join(dir, "plan.html")
	if err := os.WriteFile(htmlPath, page, 0o600); err != nil {
		return fmt.Errorf("capture: write page: %w", err)
	}

	opts.URL = FileURL(htmlPath)
	return CapturePagePNG(ctx, opts)
}

// FileURL converts an absolute filesystem path into a file:// URL.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
