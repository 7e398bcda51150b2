package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/driftware/pilot/pkg/logging"
	"github.com/driftware/pilot/pkg/mutation"
)

// Launcher owns the Playwright runtime and creates sessions bound to a
// mutation bus.
type Launcher struct {
	mu          sync.Mutex
	playwright  *playwright.Playwright
	initialized bool
	log         *logging.Logger
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window.
	Headless bool

	// Viewport sets the initial viewport size. Zero values use defaults.
	ViewportWidth  int
	ViewportHeight int

	// Timeout is the default timeout for page operations in milliseconds.
	Timeout float64

	// OverlayID is the element id the injected observer ignores.
	OverlayID string

	// DownloadDir is where downloads triggered by clicks are saved.
	DownloadDir string
}

// Default values for session creation.
const (
	DefaultTimeout        = 30000.0
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// NewLauncher creates a launcher. A nil logger is replaced with a
// discarding one.
func NewLauncher(log *logging.Logger) *Launcher {
	if log == nil {
		log = logging.Discard("browser")
	}
	return &Launcher{log: log}
}

// Initialize installs and starts the Playwright driver. Safe to call more
// than once; subsequent calls are no-ops.
func (l *Launcher) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}

	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}

	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	l.playwright = pw
	l.initialized = true
	return nil
}

// NewSession launches a browser and returns a session whose pages report
// DOM mutations to bus.
func (l *Launcher) NewSession(opts SessionOptions, bus *mutation.Bus) (*Session, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return nil, fmt.Errorf("launcher not initialized")
	}

	if opts.ViewportWidth == 0 {
		opts.ViewportWidth = DefaultViewportWidth
	}
	if opts.ViewportHeight == 0 {
		opts.ViewportHeight = DefaultViewportHeight
	}
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}

	b, err := l.playwright.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	context, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		AcceptDownloads: playwright.Bool(true),
	})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	session := &Session{
		browser:     b,
		context:     context,
		bus:         bus,
		overlayID:   opts.OverlayID,
		downloadDir: opts.DownloadDir,
		timeout:     opts.Timeout,
		log:         l.log,
	}

	page, err := session.newPage()
	if err != nil {
		context.Close()
		b.Close()
		return nil, err
	}
	session.pages = append(session.pages, page)
	session.current = 0

	return session, nil
}

// Shutdown stops the Playwright driver.
func (l *Launcher) Shutdown() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized || l.playwright == nil {
		return nil
	}
	if err := l.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	l.initialized = false
	return nil
}
