package container

import (
	"strings"

	"github.com/GriffinCanCode/webharvest/internal/domain/dom"
)

// SelectorKind names which expression a Selector carries
type SelectorKind string

const (
	KindCSS   SelectorKind = "css"
	KindXPath SelectorKind = "xpath"
	KindID    SelectorKind = "id"
)

// Selector is one way of locating a container. Exactly one of CSS, XPath
// and ID is set. Score orders competing selectors; higher wins.
type Selector struct {
	CSS     string  `json:"css,omitempty" yaml:"css,omitempty" toml:"css,omitempty"`
	XPath   string  `json:"xpath,omitempty" yaml:"xpath,omitempty" toml:"xpath,omitempty"`
	ID      string  `json:"id,omitempty" yaml:"id,omitempty" toml:"id,omitempty"`
	Variant string  `json:"variant,omitempty" yaml:"variant,omitempty" toml:"variant,omitempty"`
	Score   float64 `json:"score" yaml:"score" toml:"score"`
}

// Kind returns the selector kind, or "" when none or several are set
func (s Selector) Kind() SelectorKind {
	var kinds []SelectorKind
	if strings.TrimSpace(s.CSS) != "" {
		kinds = append(kinds, KindCSS)
	}
	if strings.TrimSpace(s.XPath) != "" {
		kinds = append(kinds, KindXPath)
	}
	if strings.TrimSpace(s.ID) != "" {
		kinds = append(kinds, KindID)
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Expression returns the selector text for its kind
func (s Selector) Expression() string {
	switch s.Kind() {
	case KindCSS:
		return s.CSS
	case KindXPath:
		return s.XPath
	case KindID:
		return s.ID
	}
	return ""
}

// String renders the selector as "kind:expression"
func (s Selector) String() string {
	return string(s.Kind()) + ":" + s.Expression()
}

// Spec converts the selector into a dom predicate. Ambiguous selectors
// produce an empty spec, which never matches.
func (s Selector) Spec() dom.SelectorSpec {
	switch s.Kind() {
	case KindCSS:
		return dom.SelectorSpec{CSS: s.CSS}
	case KindXPath:
		return dom.SelectorSpec{XPath: s.XPath}
	case KindID:
		return dom.SelectorSpec{ID: s.ID}
	}
	return dom.SelectorSpec{}
}

// OperationSpec advertises an operation a container supports
type OperationSpec struct {
	ID          string         `json:"id" yaml:"id" toml:"id"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" toml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty" toml:"config,omitempty"`
}

// Definition describes a named UI region and the nested regions inside it
type Definition struct {
	ID           string          `json:"id" yaml:"id" toml:"id"`
	Name         string          `json:"name,omitempty" yaml:"name,omitempty" toml:"name,omitempty"`
	Selectors    []Selector      `json:"selectors" yaml:"selectors" toml:"selectors"`
	Capabilities []string        `json:"capabilities,omitempty" yaml:"capabilities,omitempty" toml:"capabilities,omitempty"`
	Operations   []OperationSpec `json:"operations,omitempty" yaml:"operations,omitempty" toml:"operations,omitempty"`
	Children     []Definition    `json:"children,omitempty" yaml:"children,omitempty" toml:"children,omitempty"`
}

// HasCapability reports whether the definition declares capability c
func (d *Definition) HasCapability(c string) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Walk visits defs depth first. parent is nil for top level definitions.
func Walk(defs []Definition, fn func(def *Definition, parent *Definition)) {
	walk(defs, nil, fn)
}

func walk(defs []Definition, parent *Definition, fn func(*Definition, *Definition)) {
	for i := range defs {
		fn(&defs[i], parent)
		walk(defs[i].Children, &defs[i], fn)
	}
}

// Find returns the definition with the given id anywhere in defs
func Find(defs []Definition, id string) (*Definition, bool) {
	var found *Definition
	Walk(defs, func(def *Definition, _ *Definition) {
		if found == nil && def.ID == id {
			found = def
		}
	})
	return found, found != nil
}
