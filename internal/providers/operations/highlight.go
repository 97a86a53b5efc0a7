package operations

import (
	"context"
	"fmt"
	"regexp"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// DefaultHighlightColor outlines highlighted elements
const DefaultHighlightColor = "#00C853"

var colorPattern = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]+|rgba?\([0-9., %]+\))$`)

const highlightScript = `(selectors, color, durationMs) => {
	let count = 0;
	for (const sel of selectors) {
		for (const el of document.querySelectorAll(sel)) {
			el.style.outline = "2px solid " + color;
			el.style.outlineOffset = "-2px";
			count++;
			if (durationMs > 0) {
				setTimeout(() => { el.style.outline = ""; el.style.outlineOffset = ""; }, durationMs);
			}
		}
	}
	return count;
}`

// Highlight outlines the container's elements.
// Config: color (default #00C853), durationMs (0 keeps the outline), selector.
type Highlight struct{ spec }

// NewHighlight creates the highlight operation
func NewHighlight() *Highlight {
	return &Highlight{spec{id: "highlight", description: "Outline the container elements"}}
}

func (h *Highlight) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}
	color, ok := operation.GetString(config, "color")
	if !ok {
		color = DefaultHighlightColor
	}
	if !colorPattern.MatchString(color) {
		return nil, fmt.Errorf("invalid color: %q", color)
	}
	duration, _ := operation.GetInt(config, "durationMs")

	sels := targets(opCtx, config)
	if len(sels) == 0 {
		return nil, ErrNoTarget
	}

	v, err := p.Evaluate(ctx, highlightScript, sels, color, duration)
	if err != nil {
		return nil, err
	}
	count, _ := operation.GetInt(map[string]any{"n": v}, "n")
	return map[string]any{"color": color, "highlighted": count}, nil
}
