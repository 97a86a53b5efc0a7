package container

import (
	"strings"

	"golang.org/x/mod/semver"
)

// Catalog is the container catalog of one site at one version
type Catalog struct {
	Site    string `json:"site" yaml:"site" toml:"site"`
	Version string `json:"version" yaml:"version" toml:"version"`
	Pages   []Page `json:"pages" yaml:"pages" toml:"pages"`

	// Source is the file the catalog was read from
	Source string `json:"source,omitempty" yaml:"-" toml:"-"`
}

// Page groups the containers and rules that apply to a set of URLs
type Page struct {
	ID          string       `json:"id" yaml:"id" toml:"id"`
	URLPatterns []string     `json:"url_patterns" yaml:"url_patterns" toml:"url_patterns"`
	Containers  []Definition `json:"containers" yaml:"containers" toml:"containers"`
	Rules       []RuleSpec   `json:"rules,omitempty" yaml:"rules,omitempty" toml:"rules,omitempty"`
}

// RuleSpec is the declarative form of a binding rule as written in a catalog
type RuleSpec struct {
	ID      string      `json:"id" yaml:"id" toml:"id"`
	Trigger TriggerSpec `json:"trigger" yaml:"trigger" toml:"trigger"`
	Target  TargetSpec  `json:"target" yaml:"target" toml:"target"`
	Action  ActionSpec  `json:"action" yaml:"action" toml:"action"`
}

// TriggerSpec selects the message type or event topic pattern that fires a rule
type TriggerSpec struct {
	Type    string `json:"type" yaml:"type" toml:"type"`
	Pattern string `json:"pattern" yaml:"pattern" toml:"pattern"`
}

// TargetSpec names the container a rule acts on, either directly or through
// a script evaluated against the current graph
type TargetSpec struct {
	ContainerID string `json:"containerId,omitempty" yaml:"containerId,omitempty" toml:"containerId,omitempty"`
	Script      string `json:"script,omitempty" yaml:"script,omitempty" toml:"script,omitempty"`
}

// ActionSpec names the operation a rule runs
type ActionSpec struct {
	OperationType string         `json:"operationType" yaml:"operationType" toml:"operationType"`
	Config        map[string]any `json:"config,omitempty" yaml:"config,omitempty" toml:"config,omitempty"`
}

// Definitions returns every top level definition across pages, in page order
func (c *Catalog) Definitions() []Definition {
	var out []Definition
	for _, p := range c.Pages {
		out = append(out, p.Containers...)
	}
	return out
}

// Rules returns every rule across pages, in page order
func (c *Catalog) Rules() []RuleSpec {
	var out []RuleSpec
	for _, p := range c.Pages {
		out = append(out, p.Rules...)
	}
	return out
}

// Page returns the page with the given id
func (c *Catalog) Page(id string) (*Page, bool) {
	for i := range c.Pages {
		if c.Pages[i].ID == id {
			return &c.Pages[i], true
		}
	}
	return nil, false
}

// CanonicalVersion returns the catalog version in "vMAJOR.MINOR.PATCH" form.
// An empty version is v0.0.0.
func CanonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "v0.0.0"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return semver.Canonical(v)
}
