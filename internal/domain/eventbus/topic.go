package eventbus

import "strings"

// Separator splits topic segments
const Separator = ":"

// Wildcard matches exactly one topic segment
const Wildcard = "*"

// Fixed topics published by the runtime
const (
	TopicDOMChanged = "dom:changed"
)

// ContainerDiscovered is published when a container appears in the graph
func ContainerDiscovered(containerID string) string {
	return "container" + Separator + containerID + Separator + "discovered"
}

// ContainerLost is published when a container leaves the graph
func ContainerLost(containerID string) string {
	return "container" + Separator + containerID + Separator + "lost"
}

// OperationExecuted is published after a rule dispatched an operation
func OperationExecuted(operationType string) string {
	return "operation" + Separator + operationType + Separator + "execute"
}

// Match reports whether topic satisfies pattern. Segments are compared one by
// one and a "*" segment matches any single segment, so "a:*:c" matches
// "a:x:c" but not "a:x:y:c".
func Match(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	if !strings.Contains(pattern, Wildcard) {
		return false
	}

	ps := strings.Split(pattern, Separator)
	ts := strings.Split(topic, Separator)
	if len(ps) != len(ts) {
		return false
	}
	for i, seg := range ps {
		if seg != Wildcard && seg != ts[i] {
			return false
		}
	}
	return true
}

// Family returns the first segment of a topic ("container" for
// "container:feed:discovered")
func Family(topic string) string {
	family, _, _ := strings.Cut(topic, Separator)
	return family
}

// Segment returns the i-th segment of topic, or "" when out of range
func Segment(topic string, i int) string {
	segs := strings.Split(topic, Separator)
	if i < 0 || i >= len(segs) {
		return ""
	}
	return segs[i]
}
