package binding

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/matcher"
)

// TriggerType says what fires a rule
type TriggerType string

const (
	// TriggerMessage rules fire on HandleMessage with an equal message type
	TriggerMessage TriggerType = container.TriggerMessage
	// TriggerEvent rules fire on bus events matching a topic pattern
	TriggerEvent TriggerType = container.TriggerEvent
)

// Trigger selects the message type or event topic pattern of a rule
type Trigger struct {
	Type    TriggerType `json:"type"`
	Pattern string      `json:"pattern"`
}

// Action names the operation a rule runs and its config
type Action struct {
	OperationType string         `json:"operationType"`
	Config        map[string]any `json:"config,omitempty"`
}

// Scope is what a resolver sees when a rule fires
type Scope struct {
	Graph *matcher.Graph
	// LastDiscoveredID is the payload's containerId when present, else the
	// last container the graph discovered
	LastDiscoveredID string
	Topic            string
	Payload          map[string]any
}

// NewScope builds the scope for a trigger
func NewScope(graph *matcher.Graph, topic string, payload map[string]any) Scope {
	last, _ := payload["containerId"].(string)
	if last == "" {
		last = graph.LastDiscovered()
	}
	return Scope{Graph: graph, LastDiscoveredID: last, Topic: topic, Payload: payload}
}

// Resolver picks a container id from the scope. False means unresolved.
type Resolver func(Scope) (string, bool)

type targetKind uint8

const (
	targetNone targetKind = iota
	targetID
	targetResolver
)

// Target is either a fixed container id or a resolver evaluated lazily
// every time the rule fires
type Target struct {
	kind        targetKind
	containerID string
	resolver    Resolver
	source      string
}

// ByID targets a fixed container
func ByID(containerID string) Target {
	return Target{kind: targetID, containerID: containerID}
}

// ByResolver targets whatever fn returns at dispatch time
func ByResolver(fn Resolver) Target {
	return Target{kind: targetResolver, resolver: fn}
}

// IsZero reports whether the target was never set
func (t Target) IsZero() bool {
	switch t.kind {
	case targetID:
		return t.containerID == ""
	case targetResolver:
		return t.resolver == nil
	default:
		return true
	}
}

// Resolve returns the container id for scope
func (t Target) Resolve(s Scope) (string, bool) {
	switch t.kind {
	case targetID:
		return t.containerID, t.containerID != ""
	case targetResolver:
		if t.resolver == nil {
			return "", false
		}
		id, ok := t.resolver(s)
		return id, ok && id != ""
	default:
		return "", false
	}
}

func (t Target) String() string {
	switch t.kind {
	case targetID:
		return "id:" + t.containerID
	case targetResolver:
		if t.source != "" {
			return "script:" + t.source
		}
		return "resolver"
	default:
		return "none"
	}
}

// MarshalJSON renders the target for listings. Resolver functions show up
// as their script source when they came from one.
func (t Target) MarshalJSON() ([]byte, error) {
	out := map[string]string{}
	switch t.kind {
	case targetID:
		out["containerId"] = t.containerID
	case targetResolver:
		out["resolver"] = "func"
		if t.source != "" {
			out["resolver"] = "script"
			out["script"] = t.source
		}
	}
	return json.Marshal(out)
}

// Rule binds a trigger to an operation on a target container
type Rule struct {
	ID      string  `json:"id"`
	Trigger Trigger `json:"trigger"`
	Target  Target  `json:"target"`
	Action  Action  `json:"action"`
}

// NewRuleID returns a fresh id for rules that were not given one
func NewRuleID() string {
	return uuid.NewString()
}

// FromSpec turns a catalog rule into a Rule. Script targets are compiled
// here, so a broken script fails at load time.
func FromSpec(spec container.RuleSpec, scripts ScriptOptions) (Rule, error) {
	rule := Rule{
		ID:      spec.ID,
		Trigger: Trigger{Type: TriggerType(spec.Trigger.Type), Pattern: spec.Trigger.Pattern},
		Action:  Action{OperationType: spec.Action.OperationType, Config: spec.Action.Config},
	}
	if rule.ID == "" {
		rule.ID = NewRuleID()
	}

	switch {
	case spec.Target.ContainerID != "" && spec.Target.Script != "":
		return Rule{}, fmt.Errorf("%w: rule %s target has both containerId and script", ErrInvalidRule, rule.ID)
	case spec.Target.ContainerID != "":
		rule.Target = ByID(spec.Target.ContainerID)
	case spec.Target.Script != "":
		target, err := ScriptTarget(spec.Target.Script, scripts)
		if err != nil {
			return Rule{}, fmt.Errorf("%w: rule %s: %w", ErrInvalidRule, rule.ID, err)
		}
		rule.Target = target
	}
	return rule, nil
}
