// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package frontend defines the contract between the translator and a guest
// instruction-set frontend: per-block analysis metadata, the compile-unit
// tree built from it, and the Frontend interface itself.
package frontend

import (
	"io"

	"github.com/go-dynarec/drift/ir"
)

// BranchType classifies the terminating branch of an analyzed block.
type BranchType uint8

const (
	// FallThrough ends a block without a branch (e.g. an analysis window
	// boundary or an interrupt-state change).
	FallThrough BranchType = iota
	// Static is an unconditional branch to a statically known target.
	Static
	// StaticTrue branches to a static target when the condition holds.
	StaticTrue
	// StaticFalse branches to a static target when the condition does not
	// hold.
	StaticFalse
	// Dynamic is an unconditional branch to a runtime-computed target.
	Dynamic
	// DynamicTrue branches to a runtime-computed target when the
	// condition holds.
	DynamicTrue
	// DynamicFalse branches to a runtime-computed target when the
	// condition does not hold.
	DynamicFalse
)

var branchTypeNames = [...]string{
	FallThrough:  "fall_through",
	Static:       "static",
	StaticTrue:   "static_true",
	StaticFalse:  "static_false",
	Dynamic:      "dynamic",
	DynamicTrue:  "dynamic_true",
	DynamicFalse: "dynamic_false",
}

func (t BranchType) String() string {
	if int(t) < len(branchTypeNames) {
		return branchTypeNames[t]
	}
	return "unknown"
}

// Conditional reports whether t depends on a branch condition.
func (t BranchType) Conditional() bool {
	switch t {
	case StaticTrue, StaticFalse, DynamicTrue, DynamicFalse:
		return true
	}
	return false
}

// Meta is the cached analysis of the basic block at one guest address.
// Meta outlives compiled code: it is a lookup cache for analysis, freed
// only once no compile unit references it.
type Meta struct {
	GuestAddr  uint32
	BranchType BranchType
	// BranchAddr is the taken-path target; guest.InvalidAddr when the
	// target is not statically known.
	BranchAddr uint32
	// NextAddr is the fall-through address; guest.InvalidAddr when the
	// block cannot fall through.
	NextAddr  uint32
	NumInstrs int
	NumCycles int
	// Size is the byte length of the block, delay slots included.
	Size int

	// Refs lists the compile units currently referencing this meta.
	Refs []*Unit

	// Token is the visit stamp of the analysis walk that last reached
	// this meta.
	Token int
}

// RemoveRef drops u from the meta's ref list.
func (m *Meta) RemoveRef(u *Unit) {
	for i, cand := range m.Refs {
		if cand == u {
			m.Refs[i] = m.Refs[len(m.Refs)-1]
			m.Refs = m.Refs[:len(m.Refs)-1]
			return
		}
	}
}

// Unit is one node of the per-compilation tree: one meta within one
// compilation. The visit-token cutoff guarantees each meta appears at most
// once per tree, so the shape is a tree over a subgraph of the guest CFG.
type Unit struct {
	Meta   *Meta
	Parent *Unit
	// Branch is the taken-path child, Next the fall-through child. Either
	// may be nil when the path was pruned or the target unknown.
	Branch *Unit
	Next   *Unit

	// Translation state, valid between Translate and assembly.
	Block *ir.Block
	// Cond is the branch condition for conditional branch types.
	Cond *ir.Value
	// Dest is the runtime branch target for dynamic branch types.
	Dest *ir.Value
}

// Frontend disassembles and translates one guest instruction set.
type Frontend interface {
	// Analyze reads guest memory from m.GuestAddr and fills in the meta.
	// It returns an error only when analysis cannot be completed, e.g.
	// the opening instruction is unreadable or invalid.
	Analyze(m *Meta) error
	// Translate walks the compile-unit tree rooted at root and emits IR
	// for each unit into b.
	Translate(b *ir.IR, root *Unit, fastmem bool) error
	// Dump writes a disassembly of guest code to w.
	Dump(w io.Writer, addr uint32, size int) error
}
