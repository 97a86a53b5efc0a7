package operations

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gabriel-vasile/mimetype"

	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
)

// Screenshot captures the container element, or the viewport with config
// fullPage. Config: format (png or jpeg), quality, fullPage, selector.
// The image comes back base64 encoded with its sniffed mime type.
type Screenshot struct{ spec }

// NewScreenshot creates the screenshot operation
func NewScreenshot() *Screenshot {
	return &Screenshot{spec{id: "screenshot", description: "Capture the container or the page as an image"}}
}

func (s *Screenshot) Run(ctx context.Context, opCtx *operation.Context, config map[string]any) (any, error) {
	p, err := page(opCtx)
	if err != nil {
		return nil, err
	}

	opts := operation.ScreenshotOptions{Format: "png", FullPage: operation.GetBool(config, "fullPage", false)}
	if f, ok := operation.GetString(config, "format"); ok {
		opts.Format = f
	}
	if opts.Format != "png" && opts.Format != "jpeg" {
		return nil, fmt.Errorf("unsupported format: %s", opts.Format)
	}
	if q, ok := operation.GetInt(config, "quality"); ok {
		opts.Quality = q
	}

	sel := ""
	if !opts.FullPage {
		sel, _ = target(opCtx, config)
	}

	data, err := p.Screenshot(ctx, sel, opts)
	if err != nil {
		return nil, err
	}

	mt := mimetype.Detect(data)
	if !mt.Is("image/png") && !mt.Is("image/jpeg") {
		return nil, fmt.Errorf("screenshot is not an image: %s", mt.String())
	}
	return map[string]any{
		"mime":      mt.String(),
		"extension": mt.Extension(),
		"size":      len(data),
		"selector":  sel,
		"data":      base64.StdEncoding.EncodeToString(data),
	}, nil
}
