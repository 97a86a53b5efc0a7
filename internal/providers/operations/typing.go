package operations

import (
	"context"
	"errors"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Type enters text into the container's input element.
// Config: text (required), selector, retries, retryDelayMs.
type Type struct{ spec }

// NewType creates the type operation
func NewType() *Type {
	return &Type{spec{id: "type", description: "Type text into the container element"}}
}

func (t *Type) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}
	text, ok := config["text"].(string)
	if !ok {
		return nil, errors.New("text parameter required")
	}
	sel, err := target(opCtx, config)
	if err != nil {
		return nil, err
	}

	if err := retry(ctx, retries(config), retryDelay(config), func() error {
		return p.Type(ctx, sel, text)
	}); err != nil {
		return nil, err
	}
	return map[string]any{"selector": sel, "length": len([]rune(text))}, nil
}
