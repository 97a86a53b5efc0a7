package container

import (
	"errors"
	"fmt"
	"math"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidCatalog wraps every catalog validation failure
var ErrInvalidCatalog = errors.New("invalid catalog")

// Trigger types accepted in rule specs
const (
	TriggerMessage = "message"
	TriggerEvent   = "event"
)

// Validate checks a catalog and reports every problem it finds. Container
// and rule ids must be unique across all pages of the catalog.
func Validate(c *Catalog) error {
	v := &validator{
		containers: make(map[string]struct{}),
		rules:      make(map[string]struct{}),
		pages:      make(map[string]struct{}),
	}
	v.catalog(c)

	if len(v.errs) == 0 {
		return nil
	}
	src := c.Site
	if c.Source != "" {
		src = c.Source
	}
	return fmt.Errorf("%w %s: %w", ErrInvalidCatalog, src, errors.Join(v.errs...))
}

type validator struct {
	errs       []error
	containers map[string]struct{}
	rules      map[string]struct{}
	pages      map[string]struct{}
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) catalog(c *Catalog) {
	if c.Site == "" {
		v.fail("site is required")
	}
	if CanonicalVersion(c.Version) == "" {
		v.fail("version %q is not semantic", c.Version)
	}
	if len(c.Pages) == 0 {
		v.fail("catalog has no pages")
	}

	for i := range c.Pages {
		v.page(&c.Pages[i])
	}
	// rule targets may point at containers declared on any page
	for _, p := range c.Pages {
		for _, r := range p.Rules {
			if id := r.Target.ContainerID; id != "" {
				if _, ok := v.containers[id]; !ok {
					v.fail("rule %q targets unknown container %q", r.ID, id)
				}
			}
		}
	}
}

func (v *validator) page(p *Page) {
	if p.ID == "" {
		v.fail("page id is required")
	} else if _, dup := v.pages[p.ID]; dup {
		v.fail("duplicate page id %q", p.ID)
	}
	v.pages[p.ID] = struct{}{}

	if len(p.URLPatterns) == 0 {
		v.fail("page %q has no url_patterns", p.ID)
	}
	for _, pattern := range p.URLPatterns {
		if !doublestar.ValidatePattern(pattern) {
			v.fail("page %q: bad url pattern %q", p.ID, pattern)
		}
	}

	Walk(p.Containers, func(def *Definition, _ *Definition) {
		v.definition(def)
	})
	for _, r := range p.Rules {
		v.rule(r)
	}
}

func (v *validator) definition(d *Definition) {
	if d.ID == "" {
		v.fail("container id is required")
		return
	}
	if _, dup := v.containers[d.ID]; dup {
		v.fail("duplicate container id %q", d.ID)
	}
	v.containers[d.ID] = struct{}{}

	if len(d.Selectors) == 0 {
		v.fail("container %q has no selectors", d.ID)
	}
	for i, s := range d.Selectors {
		if err := checkSelector(s); err != nil {
			v.fail("container %q selector %d: %w", d.ID, i, err)
		}
	}
	for _, op := range d.Operations {
		if op.ID == "" {
			v.fail("container %q declares an operation without id", d.ID)
		}
	}
}

func checkSelector(s Selector) error {
	if math.IsNaN(s.Score) || s.Score < 0 {
		return fmt.Errorf("score %v must be non-negative", s.Score)
	}
	switch s.Kind() {
	case KindCSS:
		if _, err := cascadia.Compile(s.CSS); err != nil {
			return fmt.Errorf("css %q: %w", s.CSS, err)
		}
	case KindXPath:
		if _, err := xpath.Compile(s.XPath); err != nil {
			return fmt.Errorf("xpath %q: %w", s.XPath, err)
		}
	case KindID:
	default:
		return errors.New("exactly one of css, xpath or id must be set")
	}
	return nil
}

func (v *validator) rule(r RuleSpec) {
	if r.ID == "" {
		v.fail("rule id is required")
		return
	}
	if _, dup := v.rules[r.ID]; dup {
		v.fail("duplicate rule id %q", r.ID)
	}
	v.rules[r.ID] = struct{}{}

	switch r.Trigger.Type {
	case TriggerMessage, TriggerEvent:
	default:
		v.fail("rule %q: unknown trigger type %q", r.ID, r.Trigger.Type)
	}
	if r.Trigger.Pattern == "" {
		v.fail("rule %q: trigger pattern is required", r.ID)
	}
	if (r.Target.ContainerID == "") == (r.Target.Script == "") {
		v.fail("rule %q: target needs exactly one of containerId or script", r.ID)
	}
	if r.Action.OperationType == "" {
		v.fail("rule %q: action operationType is required", r.ID)
	}
}
