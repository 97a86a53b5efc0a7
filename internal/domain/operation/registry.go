package operation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateOperation = errors.New("operation already registered")
	ErrInvalidOperation   = errors.New("invalid operation")
)

// Descriptor is the listing form of an operation
type Descriptor struct {
	ID          string `json:"id"`
	Description string `json:"description"`
}

// Registry maps operation ids to implementations. It is filled during
// startup and read concurrently afterwards.
type Registry struct {
	ops sync.Map
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds op. Registering the same id twice is an error.
func (r *Registry) Register(op Operation) error {
	if op == nil || op.ID() == "" {
		return fmt.Errorf("%w: operation ID cannot be empty", ErrInvalidOperation)
	}
	if _, loaded := r.ops.LoadOrStore(op.ID(), op); loaded {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, op.ID())
	}
	return nil
}

// MustRegister registers ops and panics on the first error
func (r *Registry) MustRegister(ops ...Operation) {
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			panic(err)
		}
	}
}

// Get retrieves an operation by id
func (r *Registry) Get(id string) (Operation, bool) {
	val, ok := r.ops.Load(id)
	if !ok {
		return nil, false
	}
	return val.(Operation), true
}

// List returns all registered operations sorted by id
func (r *Registry) List() []Descriptor {
	var out []Descriptor
	r.ops.Range(func(_, value any) bool {
		op := value.(Operation)
		out = append(out, Descriptor{ID: op.ID(), Description: op.Description()})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
