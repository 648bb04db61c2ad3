// Package selectors wires the built-in allocation strategies into a
// selector registry.
package selectors

import (
	"github.com/kingrea/acta/internal/selector"
	"github.com/kingrea/acta/internal/selector/consensus"
	"github.com/kingrea/acta/internal/selector/planner"
)

// RegisterBuiltins installs all of the built-in selector factories into the
// provided registry.
func RegisterBuiltins(reg *selector.Registry) {
	if reg == nil {
		return
	}
	selector.RegisterNearest(reg)
	planner.Register(reg)
	consensus.Register(reg)
}

// Default returns a registry holding the built-in selectors.
func Default() *selector.Registry {
	reg := selector.NewRegistry()
	RegisterBuiltins(reg)
	return reg
}
