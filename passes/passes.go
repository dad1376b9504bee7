// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package passes implements the optimization pipeline run between
// translation and assembly: control-flow analysis, load/store elimination,
// constant propagation, expression simplification, dead-code elimination
// and register allocation. Passes run in that fixed order, each mutates
// the IR in place, and each preserves the IR structural invariants on
// exit.
package passes

import (
	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/ir"
)

// Pass is one transform over the IR. Passes hold no state between runs;
// the constructor form is retained for pass-private configuration such as
// the register bank.
type Pass interface {
	Name() string
	Run(b *ir.IR) error
}

// Default returns the standard pipeline in its fixed order, with register
// allocation bound to the given host register bank.
func Default(registers []backend.Register) []Pass {
	return []Pass{
		NewControlFlowAnalysis(),
		NewLoadStoreElimination(),
		NewConstantPropagation(),
		NewExpressionSimplification(),
		NewDeadCodeElimination(),
		NewRegisterAllocation(registers),
	}
}

// Run executes the pipeline over b, stopping at the first failing pass.
func Run(b *ir.IR, pipeline []Pass) error {
	for _, p := range pipeline {
		if err := p.Run(b); err != nil {
			return err
		}
	}
	return nil
}
