package operations

import (
	"context"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Click clicks an element, or a viewport point when config has x and y.
// Config: selector, x, y, retries, retryDelayMs.
type Click struct{ spec }

// NewClick creates the click operation
func NewClick() *Click {
	return &Click{spec{id: "click", description: "Click the container element or a point"}}
}

func (c *Click) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}

	x, hasX := operation.GetFloat(config, "x")
	y, hasY := operation.GetFloat(config, "y")
	if hasX && hasY {
		move, click := opCtx.Input.MouseMove, opCtx.Input.MouseClick
		if move == nil || click == nil {
			move, click = p.MouseMove, p.ClickAt
		}
		err := retry(ctx, retries(config), retryDelay(config), func() error {
			if err := move(ctx, x, y); err != nil {
				return err
			}
			return click(ctx, x, y)
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"x": x, "y": y}, nil
	}

	sel, err := target(opCtx, config)
	if err != nil {
		return nil, err
	}
	if err := retry(ctx, retries(config), retryDelay(config), func() error {
		return p.Click(ctx, sel)
	}); err != nil {
		return nil, err
	}
	return map[string]any{"selector": sel}, nil
}
