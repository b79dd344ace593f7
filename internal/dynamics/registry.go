package dynamics

import (
	"fmt"
	"sort"
)

// Registered system names.
const (
	SystemActiveCruiseControl = "active_cruise_control"
	SystemQuadcopterVertical  = "quadcopter_vertical"
)

var registry = map[string]func() ControlAffine{
	SystemActiveCruiseControl: func() ControlAffine { return NewActiveCruiseControl() },
	SystemQuadcopterVertical:  func() ControlAffine { return NewQuadcopterVertical(DefaultQuadcopterParams()) },
}

// Lookup returns a fresh instance of the named system with default parameters.
func Lookup(name string) (ControlAffine, error) {
	build, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownSystem, name, Names())
	}
	return build(), nil
}

// Names lists the registered systems in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
