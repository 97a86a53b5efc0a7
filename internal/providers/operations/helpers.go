package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

var (
	ErrNoPage   = errors.New("no browser page attached")
	ErrNoTarget = errors.New("no target element")
)

// Retry defaults for operations that touch flaky browser state
const (
	DefaultRetries    = 2
	DefaultRetryDelay = 150 * time.Millisecond
)

// page returns the context's page or ErrNoPage
func page(opCtx *operation.Context) (operation.Page, error) {
	if opCtx == nil || opCtx.Page == nil {
		return nil, ErrNoPage
	}
	return opCtx.Page, nil
}

// target picks the element to act on: config "selector" first, then the
// container's first element
func target(opCtx *operation.Context, config map[string]any) (string, error) {
	if sel, ok := operation.GetString(config, "selector"); ok {
		return sel, nil
	}
	if sel := opCtx.Target(); sel != "" {
		return sel, nil
	}
	return "", ErrNoTarget
}

// targets is target for operations that act on every element
func targets(opCtx *operation.Context, config map[string]any) []string {
	if sel, ok := operation.GetString(config, "selector"); ok {
		return []string{sel}
	}
	return opCtx.Selectors()
}

// retry runs fn up to 1+retries times with a fixed delay. It stops early
// when ctx ends.
func retry(ctx context.Context, retries int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-time.After(delay):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("after %d attempts: %w", retries+1, err)
}

// retries reads the "retries" config key
func retries(config map[string]any) int {
	n, ok := operation.GetInt(config, "retries")
	if !ok || n < 0 {
		return DefaultRetries
	}
	return n
}

// retryDelay reads the "retryDelayMs" config key
func retryDelay(config map[string]any) time.Duration {
	ms, ok := operation.GetFloat(config, "retryDelayMs")
	if !ok || ms < 0 {
		return DefaultRetryDelay
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// spec is the common implementation of Operation's identity methods
type spec struct {
	id          string
	description string
}

func (s spec) ID() string          { return s.id }
func (s spec) Description() string { return s.description }
