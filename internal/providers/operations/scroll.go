package operations

import (
	"context"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Scroll brings the container element into view, or scrolls by an offset.
// Config: selector, dx, dy, window (scroll the window even with a target).
type Scroll struct{ spec }

// NewScroll creates the scroll operation
func NewScroll() *Scroll {
	return &Scroll{spec{id: "scroll", description: "Scroll the container into view or by an offset"}}
}

func (s *Scroll) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}

	dx, _ := operation.GetFloat(config, "dx")
	dy, _ := operation.GetFloat(config, "dy")

	sel := ""
	if !operation.GetBool(config, "window", false) {
		sel, _ = target(opCtx, config)
	}
	if sel == "" && dx == 0 && dy == 0 {
		return nil, ErrNoTarget
	}

	if err := retry(ctx, retries(config), retryDelay(config), func() error {
		return p.Scroll(ctx, sel, dx, dy)
	}); err != nil {
		return nil, err
	}
	return map[string]any{"selector": sel, "dx": dx, "dy": dy}, nil
}
