package operations

import (
	"context"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Get describes the container's elements. With config html it also reads
// each element's outer HTML from the page.
type Get struct{ spec }

// NewGet creates the get operation
func NewGet() *Get {
	return &Get{spec{id: "get", description: "Describe the container elements"}}
}

func (g *Get) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	elements := make([]map[string]any, 0, len(opCtx.Elements))
	for _, e := range opCtx.Elements {
		elements = append(elements, map[string]any{
			"path":     e.Path,
			"selector": e.CSS(),
		})
	}

	if operation.GetBool(config, "html", false) {
		p, err := page(opCtx)
		if err != nil {
			return nil, err
		}
		for i, e := range opCtx.Elements {
			h, err := p.HTML(ctx, e.CSS())
			if err != nil {
				return nil, err
			}
			elements[i]["html"] = h
		}
	}

	return map[string]any{
		"containerId": opCtx.ContainerID,
		"count":       len(elements),
		"elements":    elements,
	}, nil
}
