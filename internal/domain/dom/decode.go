package dom

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrEmptySnapshot is returned when a payload carries no root node
var ErrEmptySnapshot = errors.New("empty snapshot")

// Decode parses a JSON snapshot as produced by the browser capture script.
// Missing paths are filled positionally.
func Decode(data []byte) (*Node, error) {
	var root *Node
	if err := sonic.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if root == nil {
		return nil, ErrEmptySnapshot
	}
	AssignPaths(root)
	return root, nil
}

// Encode serializes a snapshot
func Encode(root *Node) ([]byte, error) {
	return sonic.Marshal(root)
}
