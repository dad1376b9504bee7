// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"github.com/go-dynarec/drift/ir"
)

type deadCodeElimination struct{}

// NewDeadCodeElimination returns the pass that removes instructions whose
// result has no live uses and no observable side effects.
func NewDeadCodeElimination() Pass { return &deadCodeElimination{} }

func (*deadCodeElimination) Name() string { return "dce" }

// Run sweeps each block backwards. Removing an instruction can strand its
// arguments' definitions, which the same backwards sweep then reaches.
func (*deadCodeElimination) Run(b *ir.IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for changed := true; changed; {
			changed = false
			for i := blk.Tail(); i != nil; {
				prev := i.Prev()
				if i.Result != nil && len(i.Result.Uses) == 0 && !i.Op.HasSideEffects() {
					b.RemoveInstr(i)
					changed = true
				}
				i = prev
			}
		}
	}
	return nil
}
