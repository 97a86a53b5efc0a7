package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/resilience"
)

// ErrPageClosed is returned by calls on a closed page
var ErrPageClosed = errors.New("page closed")

// Page is one browser tab. It implements operation.Page and io.Closer.
type Page struct {
	page    *rod.Page
	context *rod.Browser // incognito context owning the tab
	breaker *resilience.Breaker
	logger  *zap.Logger

	mu     sync.RWMutex
	closed bool
}

var _ operation.Page = (*Page)(nil)

func newPage(page *rod.Page, incognito *rod.Browser, breaker *resilience.Breaker, logger *zap.Logger) *Page {
	return &Page{
		page:    page,
		context: incognito,
		breaker: breaker,
		logger:  logger,
	}
}

// do runs fn on a page bound to ctx through the breaker
func (p *Page) do(ctx context.Context, fn func(page *rod.Page) error) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPageClosed
	}
	return p.breaker.Do(ctx, func(ctx context.Context) error {
		return fn(p.page.Context(ctx))
	})
}

func (p *Page) element(page *rod.Page, selector string) (*rod.Element, error) {
	el, err := page.Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", selector, err)
	}
	return el, nil
}

// URL returns the current document URL
func (p *Page) URL(ctx context.Context) (string, error) {
	var url string
	err := p.do(ctx, func(page *rod.Page) error {
		info, err := page.Info()
		if err != nil {
			return err
		}
		url = info.URL
		return nil
	})
	return url, err
}

// Snapshot captures the document as a dom tree and stamps element paths
func (p *Page) Snapshot(ctx context.Context) (*dom.Node, error) {
	var root *dom.Node
	err := p.do(ctx, func(page *rod.Page) error {
		res, err := page.Evaluate(&rod.EvalOptions{
			JS:      captureScript,
			JSArgs:  []any{maxTextLength},
			ByValue: true,
		})
		if err != nil {
			return fmt.Errorf("capture snapshot: %w", err)
		}
		data, err := res.Value.MarshalJSON()
		if err != nil {
			return err
		}
		root, err = dom.Decode(data)
		return err
	})
	return root, err
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.do(ctx, func(page *rod.Page) error {
		if err := page.Navigate(url); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if err := page.WaitLoad(); err != nil {
			p.logger.Warn("Wait for load failed", zap.String("url", url), zap.Error(err))
		}
		return nil
	})
}

// Click clicks the first element matching selector
func (p *Page) Click(ctx context.Context, selector string) error {
	return p.do(ctx, func(page *rod.Page) error {
		el, err := p.element(page, selector)
		if err != nil {
			return err
		}
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

// ClickAt clicks at viewport coordinates
func (p *Page) ClickAt(ctx context.Context, x, y float64) error {
	return p.do(ctx, func(page *rod.Page) error {
		if err := page.Mouse.MoveTo(proto.Point{X: x, Y: y}); err != nil {
			return err
		}
		return page.Mouse.Click(proto.InputMouseButtonLeft, 1)
	})
}

// MouseMove moves the pointer to viewport coordinates
func (p *Page) MouseMove(ctx context.Context, x, y float64) error {
	return p.do(ctx, func(page *rod.Page) error {
		return page.Mouse.MoveTo(proto.Point{X: x, Y: y})
	})
}

// Type focuses the element and inputs text
func (p *Page) Type(ctx context.Context, selector, text string) error {
	return p.do(ctx, func(page *rod.Page) error {
		el, err := p.element(page, selector)
		if err != nil {
			return err
		}
		return el.Input(text)
	})
}

func (p *Page) Scroll(ctx context.Context, selector string, dx, dy float64) error {
	return p.do(ctx, func(page *rod.Page) error {
		if selector != "" && dx == 0 && dy == 0 {
			el, err := p.element(page, selector)
			if err != nil {
				return err
			}
			return el.ScrollIntoView()
		}
		_, err := page.Evaluate(&rod.EvalOptions{
			JS:      scrollScript,
			JSArgs:  []any{selector, dx, dy},
			ByValue: true,
		})
		return err
	})
}

func (p *Page) Screenshot(ctx context.Context, selector string, opts operation.ScreenshotOptions) ([]byte, error) {
	format, quality := screenshotFormat(opts)
	var data []byte
	err := p.do(ctx, func(page *rod.Page) error {
		if selector != "" {
			el, err := p.element(page, selector)
			if err != nil {
				return err
			}
			data, err = el.Screenshot(format, quality)
			return err
		}
		req := &proto.PageCaptureScreenshot{Format: format}
		if format == proto.PageCaptureScreenshotFormatJpeg {
			req.Quality = &quality
		}
		var err error
		data, err = page.Screenshot(opts.FullPage, req)
		return err
	})
	return data, err
}

func screenshotFormat(opts operation.ScreenshotOptions) (proto.PageCaptureScreenshotFormat, int) {
	switch strings.ToLower(opts.Format) {
	case "jpeg", "jpg":
		q := opts.Quality
		if q <= 0 || q > 100 {
			q = 80
		}
		return proto.PageCaptureScreenshotFormatJpeg, q
	default:
		return proto.PageCaptureScreenshotFormatPng, 0
	}
}

// Evaluate calls script with args and returns its JSON value. Promises are
// awaited.
func (p *Page) Evaluate(ctx context.Context, script string, args ...any) (any, error) {
	var out any
	err := p.do(ctx, func(page *rod.Page) error {
		res, err := page.Evaluate(&rod.EvalOptions{
			JS:           script,
			JSArgs:       args,
			ByValue:      true,
			AwaitPromise: true,
		})
		if err != nil {
			return err
		}
		out = res.Value.Val()
		return nil
	})
	return out, err
}

func (p *Page) HTML(ctx context.Context, selector string) (string, error) {
	var out string
	err := p.do(ctx, func(page *rod.Page) error {
		if selector == "" {
			html, err := page.HTML()
			out = html
			return err
		}
		el, err := p.element(page, selector)
		if err != nil {
			return err
		}
		out, err = el.HTML()
		return err
	})
	return out, err
}

// Close closes the tab and its incognito context. It is idempotent.
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.page.Close()
	if p.context != nil {
		err = errors.Join(err, p.context.Close())
	}
	return err
}
