// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"github.com/go-dynarec/drift/ir/op"
)

// maxArgs is the argument slot count of an instruction.
const maxArgs = 4

// Instr is one IR instruction. Argument slots carry their own embedded use
// records so that linking an argument never allocates.
type Instr struct {
	Op     op.Op
	Args   [maxArgs]*Value
	uses   [maxArgs]Use
	Result *Value

	// Block is the enclosing basic block.
	Block *Block

	// Label is an optional annotation carried through to dumps.
	Label string

	// Tag is scratch space for a single pass.
	Tag int64

	prev, next *Instr
}

// Prev returns the previous instruction in the block, or nil.
func (i *Instr) Prev() *Instr { return i.prev }

// Next returns the next instruction in the block, or nil.
func (i *Instr) Next() *Instr { return i.next }

// NumArgs returns the number of leading non-nil argument slots.
func (i *Instr) NumArgs() int {
	n := 0
	for n < maxArgs && i.Args[n] != nil {
		n++
	}
	return n
}

// setArg links v into slot, unlinking any previous argument. v may be nil.
func (i *Instr) setArg(slot int, v *Value) {
	if old := i.Args[slot]; old != nil {
		old.removeUse(&i.uses[slot])
	}
	i.Args[slot] = v
	if v != nil {
		i.uses[slot] = Use{Instr: i, Slot: slot}
		v.addUse(&i.uses[slot])
	}
}

// use returns the embedded use record for slot. Exposed to the verifier.
func (i *Instr) use(slot int) *Use { return &i.uses[slot] }
