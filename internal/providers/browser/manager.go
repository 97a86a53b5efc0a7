package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/resilience"
)

var (
	// ErrManagerClosed is returned by Open after Close
	ErrManagerClosed = errors.New("browser manager closed")
	// ErrNoBrowser is returned when no browser binary is available to launch
	ErrNoBrowser = errors.New("no browser binary found")
)

// Config configures the Manager
type Config struct {
	// ControlURL is the DevTools websocket of an external browser. Empty
	// launches a local one.
	ControlURL        string
	Headless          bool
	NavigationTimeout time.Duration
	Logger            *zap.Logger
}

// Manager owns the browser connection and hands out pages
type Manager struct {
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
	closed   bool
}

// NewManager creates a manager. The browser starts on the first Open.
func NewManager(cfg Config) *Manager {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Manager{
		cfg:    cfg,
		logger: logging.OrNop(cfg.Logger),
	}
}

// Open creates a page in a fresh incognito context and navigates it to url.
// An empty url opens a blank page.
func (m *Manager) Open(ctx context.Context, url string) (operation.Page, error) {
	b, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}

	incognito, err := b.Incognito()
	if err != nil {
		return nil, fmt.Errorf("browser: incognito context: %w", err)
	}
	tab, err := incognito.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	page := newPage(tab, incognito, newBreaker(url, m.logger), m.logger)
	if url == "" {
		return page, nil
	}

	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Navigate(navCtx, url); err != nil {
		_ = page.Close()
		return nil, err
	}

	m.logger.Info("Page opened", zap.String("url", url))
	return page, nil
}

func (m *Manager) connect(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if m.browser != nil {
		return m.browser, nil
	}

	controlURL := m.cfg.ControlURL
	if controlURL == "" {
		bin, ok := launcher.LookPath()
		if !ok {
			return nil, ErrNoBrowser
		}
		l := launcher.New().Bin(bin).Headless(m.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		m.launcher = l
		controlURL = u
		m.logger.Info("Launched local browser", zap.String("url", u), zap.Bool("headless", m.cfg.Headless))
	} else {
		m.logger.Info("Connecting to remote browser", zap.String("url", controlURL))
	}

	// the connection outlives the request that triggered it
	b := rod.New().ControlURL(controlURL).Context(context.WithoutCancel(ctx))
	if err := b.Connect(); err != nil {
		m.killLauncher()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Close shuts the browser down. Pages already handed out fail afterwards.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	m.killLauncher()
	return err
}

func (m *Manager) killLauncher() {
	if m.launcher != nil {
		m.launcher.Kill()
		m.launcher.Cleanup()
		m.launcher = nil
	}
}

func newBreaker(name string, logger *zap.Logger) *resilience.Breaker {
	return resilience.New("page:"+name, resilience.Settings{
		Timeout:   15 * time.Second,
		IsFailure: isPageFailure,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn("Page breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// isPageFailure counts only errors that point at a broken tab or connection.
// Missing elements, script errors and deadlines are the caller's problem.
func isPageFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var notFound *rod.ElementNotFoundError
	var evalErr *rod.EvalError
	return !errors.As(err, &notFound) && !errors.As(err, &evalErr)
}
