package operation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
	"github.com/GriffinCanCode/webharvest/internal/shared/id"
)

// Operation is a named, idempotent browser action. Run must be safe to call
// concurrently from independent sessions.
type Operation interface {
	ID() string
	Description() string
	Run(ctx context.Context, opCtx *Context, config map[string]any) (any, error)
}

// ScreenshotOptions tunes Page.Screenshot
type ScreenshotOptions struct {
	Format   string `json:"format,omitempty"` // png or jpeg
	Quality  int    `json:"quality,omitempty"`
	FullPage bool   `json:"fullPage,omitempty"`
}

// Page is the browser-control capability handed to operations. Every call
// may block on browser I/O and must honor ctx.
type Page interface {
	URL(ctx context.Context) (string, error)
	Snapshot(ctx context.Context) (*dom.Node, error)
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	ClickAt(ctx context.Context, x, y float64) error
	MouseMove(ctx context.Context, x, y float64) error
	Type(ctx context.Context, selector, text string) error
	// Scroll scrolls the window when selector is empty, brings the element
	// into view when dx and dy are zero, and scrolls the element otherwise.
	Scroll(ctx context.Context, selector string, dx, dy float64) error
	// Screenshot captures the element, or the viewport when selector is empty
	Screenshot(ctx context.Context, selector string, opts ScreenshotOptions) ([]byte, error)
	// Evaluate calls the JavaScript function expression script with args
	Evaluate(ctx context.Context, script string, args ...any) (any, error)
	// HTML returns the outer HTML of the element, or of the document when
	// selector is empty
	HTML(ctx context.Context, selector string) (string, error)
}

// SystemInput are raw input primitives synthesized from the page
type SystemInput struct {
	MouseMove  func(ctx context.Context, x, y float64) error
	MouseClick func(ctx context.Context, x, y float64) error
}

// PathAttribute is stamped on live elements by the snapshot capture so an
// element without a generated selector can still be addressed by its path
const PathAttribute = "data-wh-path"

// Element is a container element an operation may act on
type Element struct {
	Path     string `json:"path"`
	Selector string `json:"selector,omitempty"`
}

// CSS returns the element's selector, falling back to its path attribute
func (e Element) CSS() string {
	if e.Selector != "" {
		return e.Selector
	}
	if e.Path != "" {
		return fmt.Sprintf("[%s=%q]", PathAttribute, e.Path)
	}
	return ""
}

// Context is built fresh for every operation call and never kept
type Context struct {
	SessionID   id.SessionID
	ContainerID string
	Elements    []Element
	Page        Page
	Input       SystemInput
}

// Target returns the first generated element selector. Without one it falls
// back to the first element's path selector, and "" when there are no elements.
func (c *Context) Target() string {
	for _, e := range c.Elements {
		if e.Selector != "" {
			return e.Selector
		}
	}
	if len(c.Elements) > 0 {
		return c.Elements[0].CSS()
	}
	return ""
}

// Selectors returns one selector per element
func (c *Context) Selectors() []string {
	out := make([]string, 0, len(c.Elements))
	for _, e := range c.Elements {
		if css := e.CSS(); css != "" {
			out = append(out, css)
		}
	}
	return out
}

// Result is the outcome of one operation call
type Result struct {
	Success    bool   `json:"success"`
	Result     any    `json:"result,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"durationMs,omitempty"`
}

// Failure builds a failed result
func Failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Config accessors shared by operations. Numbers arriving from JSON, YAML
// or TOML decode to different Go types, so they are all accepted.

// GetString extracts a string from config
func GetString(config map[string]any, key string) (string, bool) {
	v, ok := config[key].(string)
	return v, ok && v != ""
}

// GetBool extracts a bool from config with a default
func GetBool(config map[string]any, key string, def bool) bool {
	v, ok := config[key].(bool)
	if !ok {
		return def
	}
	return v
}

// GetFloat extracts a number from config
func GetFloat(config map[string]any, key string) (float64, bool) {
	switch v := config[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// GetInt extracts an integer from config
func GetInt(config map[string]any, key string) (int, bool) {
	f, ok := GetFloat(config, key)
	return int(f), ok
}

// GetStringMap extracts a string to string map from config
func GetStringMap(config map[string]any, key string) (map[string]string, bool) {
	switch v := config[key].(type) {
	case map[string]string:
		return v, true
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, val := range v {
			if s, ok := val.(string); ok {
				out[k] = s
			}
		}
		return out, true
	default:
		return nil, false
	}
}
