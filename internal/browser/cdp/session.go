package cdp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-heal/internal/config"
)

const (
	defaultViewportWidth     = 1366
	defaultViewportHeight    = 768
	defaultNavigationTimeout = 30 * time.Second
)

// Session owns one Chrome process with a single tab.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
	cfg         config.BrowserConfig
	driver      *Driver

	mu       sync.Mutex
	isClosed bool
}

// DefaultAllocatorOptions builds the exec allocator options for cfg on top of
// chromedp's defaults.
func DefaultAllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	for name, value := range allocatorFlags(cfg) {
		opts = append(opts, chromedp.Flag(name, value))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	w, h := viewport(cfg)
	return append(opts, chromedp.WindowSize(w, h))
}

// allocatorFlags is the command-line flag set derived from cfg. Custom args
// are applied last and win over the built-in flags.
func allocatorFlags(cfg config.BrowserConfig) map[string]any {
	flags := map[string]any{
		"headless":                 cfg.Headless,
		"disable-gpu":              true,
		"no-sandbox":               true,
		"disable-dev-shm-usage":    true,
		"hide-scrollbars":          cfg.Headless,
		"mute-audio":               true,
		"no-first-run":             true,
		"no-default-browser-check": true,
	}
	if cfg.IgnoreTLSErrors {
		flags["ignore-certificate-errors"] = true
		flags["allow-insecure-localhost"] = true
	}
	for _, arg := range cfg.Args {
		if name, value, ok := parseArg(arg); ok {
			flags[name] = value
		}
	}
	return flags
}

// parseArg splits "--name=value" or "--name". A bare flag is true.
func parseArg(arg string) (string, any, bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil, false
	}
	name, value, found := strings.Cut(arg, "=")
	if name == "" {
		return "", nil, false
	}
	if !found {
		return name, true, true
	}
	return name, value, true
}

func viewport(cfg config.BrowserConfig) (int, int) {
	w, h := cfg.Viewport["width"], cfg.Viewport["height"]
	if w <= 0 {
		w = defaultViewportWidth
	}
	if h <= 0 {
		h = defaultViewportHeight
	}
	return w, h
}

// NewSession launches Chrome and opens a tab. The browser lives until Close
// or until ctx is cancelled.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger, opts ...Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("browser")

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, DefaultAllocatorOptions(cfg)...)
	sugar := log.Sugar()
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Errorf),
	)

	// The first Run starts the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if cfg.OperationTimeout > 0 {
		opts = append([]Option{WithOperationTimeout(cfg.OperationTimeout)}, opts...)
	}
	log.Debug("Browser session started.", zap.Bool("headless", cfg.Headless))

	return &Session{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      log,
		cfg:         cfg,
		driver:      NewDriver(tabCtx, logger, opts...),
	}, nil
}

// Driver returns the tab's driver.
func (s *Session) Driver() *Driver { return s.driver }

// Navigate loads url and waits for the body to be ready.
func (s *Session) Navigate(ctx context.Context, url string) error {
	timeout := s.cfg.NavigationTimeout
	if timeout <= 0 {
		timeout = defaultNavigationTimeout
	}
	navCtx, cancelNav := context.WithTimeout(ctx, timeout)
	defer cancelNav()
	runCtx, cancelRun := CombineContext(s.ctx, navCtx)
	defer cancelRun()

	s.logger.Debug("Navigating.", zap.String("url", url))
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Close shuts the tab and the browser process. It is safe to call more than
// once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.isClosed {
		s.mu.Unlock()
		return nil
	}
	s.isClosed = true
	s.mu.Unlock()

	s.logger.Debug("Closing browser session.")
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil && s.ctx.Err() == nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
