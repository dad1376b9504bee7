// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

type controlFlowAnalysis struct{}

// NewControlFlowAnalysis returns the pass that derives CFG edges from
// block terminators.
func NewControlFlowAnalysis() Pass { return &controlFlowAnalysis{} }

func (*controlFlowAnalysis) Name() string { return "cfa" }

// Run scans each block's terminator. An unconditional branch whose target
// is a block value yields one edge; a conditional branch yields edges to
// both the target block and the textual-next block, which is the
// fall-through.
func (*controlFlowAnalysis) Run(b *ir.IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		blk.In = blk.In[:0]
		blk.Out = blk.Out[:0]
	}
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		term := blk.Tail()
		if term == nil {
			continue
		}
		switch term.Op {
		case op.Branch:
			if t := blockTarget(term.Args[0]); t != nil {
				ir.AddEdge(blk, t)
			}
		case op.BranchTrue, op.BranchFalse:
			if t := blockTarget(term.Args[1]); t != nil {
				ir.AddEdge(blk, t)
			}
			if next := blk.Next(); next != nil {
				ir.AddEdge(blk, next)
			}
		}
	}
	return nil
}

func blockTarget(v *ir.Value) *ir.Block {
	if v != nil && v.Type == ir.TypeBlock {
		return v.Blk
	}
	return nil
}
