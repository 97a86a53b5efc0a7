package operations

import "github.com/GriffinCanCode/webharvest/internal/domain/operation"

// Builtins returns every built-in operation
func Builtins() []operation.Operation {
	return []operation.Operation{
		NewClick(),
		NewScroll(),
		NewExtract(),
		NewHighlight(),
		NewGet(),
		NewType(),
		NewNavigate(),
		NewScreenshot(),
	}
}

// Register adds the built-in operations to reg
func Register(reg *operation.Registry) error {
	for _, op := range Builtins() {
		if err := reg.Register(op); err != nil {
			return err
		}
	}
	return nil
}
