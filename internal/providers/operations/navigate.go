package operations

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Navigate loads a URL in the session's page. Config: url (required).
type Navigate struct{ spec }

// NewNavigate creates the navigate operation
func NewNavigate() *Navigate {
	return &Navigate{spec{id: "navigate", description: "Load a URL in the page"}}
}

func (n *Navigate) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}
	raw, ok := operation.GetString(config, "url")
	if !ok {
		return nil, errors.New("url parameter required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid url: %s", raw)
	}

	if err := p.Navigate(ctx, u.String()); err != nil {
		return nil, err
	}
	current, err := p.URL(ctx)
	if err != nil {
		current = u.String()
	}
	return map[string]any{"url": current}, nil
}
