package capture

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/ShayCichocki/replica/internal/runlog"
	"github.com/ShayCichocki/replica/pkg/models"
)

//go:embed capture.js
var captureScript string

// BrowserConfig configures the browser used for captures.
type BrowserConfig struct {
	// RemoteURL is the DevTools WebSocket URL of a running Chrome.
	// Empty launches a local browser.
	RemoteURL string
	// Bin overrides the browser binary for local launches.
	Bin string
	// Headless runs a local browser without a window.
	Headless bool
	// Stealth masks common automation fingerprints on each page.
	Stealth bool
	// SettleTime is how long the DOM must stay unchanged after load before
	// the page is read. Zero skips the wait.
	SettleTime time.Duration
}

// DefaultBrowserConfig returns a headless, stealthy local browser setup.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Headless:   true,
		Stealth:    true,
		SettleTime: 500 * time.Millisecond,
	}
}

// BrowserCapturer captures pages with a Chrome instance driven by rod. The
// browser is started on first use and shared by later captures.
type BrowserCapturer struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewBrowserCapturer creates a BrowserCapturer. Call Close to release the
// browser.
func NewBrowserCapturer(cfg BrowserConfig) *BrowserCapturer {
	return &BrowserCapturer{cfg: cfg}
}

// Capture loads url at the given viewport and reads its element tree.
// Failures are returned as retryable capture errors.
func (c *BrowserCapturer) Capture(ctx context.Context, url string, vp models.Viewport) (*models.Fingerprint, error) {
	b, err := c.connect()
	if err != nil {
		return nil, models.NewCaptureError(err)
	}

	page, err := c.newPage(b)
	if err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("open page: %w", err))
	}
	defer page.Close()

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             vp.Width,
		Height:            vp.Height,
		DeviceScaleFactor: 1,
		Mobile:            vp.Width < models.ViewportTablet.Width,
	})
	if err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("set viewport: %w", err))
	}

	p := page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("navigate %s: %w", url, err))
	}
	if err := p.WaitLoad(); err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("wait load %s: %w", url, err))
	}
	if c.cfg.SettleTime > 0 {
		if err := p.WaitDOMStable(c.cfg.SettleTime, 0); err != nil {
			runlog.Logf("[capture] %s did not settle: %v", url, err)
		}
	}

	res, err := p.Eval(captureScript, Properties)
	if err != nil {
		return nil, models.NewCaptureError(fmt.Errorf("read page: %w", err))
	}
	root, err := decodeTree(res.Value.Str())
	if err != nil {
		return nil, models.NewCaptureError(err)
	}

	return &models.Fingerprint{
		URL:        url,
		Viewport:   vp,
		CapturedAt: time.Now(),
		Root:       root,
	}, nil
}

// decodeTree parses the capture script output.
func decodeTree(data string) (*models.ElementNode, error) {
	var raw rawNode
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("malformed fingerprint: %w", err)
	}
	if raw.Tag == "" {
		return nil, errors.New("malformed fingerprint: missing root element")
	}
	return buildTree(&raw), nil
}

func (c *BrowserCapturer) connect() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		return c.browser, nil
	}

	wsURL := c.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().Headless(c.cfg.Headless)
		if c.cfg.Bin != "" {
			l = l.Bin(c.cfg.Bin)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		wsURL = u
		c.lnch = l
		runlog.Logf("[capture] launched local browser at %s", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		c.cleanupLocked()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		runlog.Logf("[capture] ignore cert errors: %v", err)
	}
	c.browser = b
	return b, nil
}

func (c *BrowserCapturer) newPage(b *rod.Browser) (*rod.Page, error) {
	if c.cfg.Stealth {
		return stealth.Page(b)
	}
	return b.Page(proto.TargetCreateTarget{URL: ""})
}

// Close shuts the browser down.
func (c *BrowserCapturer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleanupLocked()
}

func (c *BrowserCapturer) cleanupLocked() error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Cleanup()
		c.lnch = nil
	}
	return err
}
