// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
)

// UseDefError reports a broken link between a value and one of its uses.
type UseDefError struct {
	Block string
	Instr *Instr
	Slot  int
	Cause string
}

func (e UseDefError) Error() string {
	return fmt.Sprintf("ir: %s in %s, arg %d: %s", e.Instr.Op, e.Block, e.Slot, e.Cause)
}

// DefError reports a malformed value definition.
type DefError struct {
	Block string
	Instr *Instr
	Cause string
}

func (e DefError) Error() string {
	return fmt.Sprintf("ir: %s in %s: %s", e.Instr.Op, e.Block, e.Cause)
}

// Verify checks the structural invariants of the IR:
//
//   - every instruction argument's use record is present in that value's
//     use list, and points back at the right slot;
//   - every use in an instruction result's use list refers to an
//     instruction slot that holds the result;
//   - an instruction with a result is that result's single definition;
//   - constants have no defining instruction;
//   - every instruction's Block field names its enclosing block.
//
// The first violation found is returned.
func Verify(b *IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for i := blk.Head(); i != nil; i = i.Next() {
			if i.Block != blk {
				return DefError{blk.Label, i, "instruction block link is stale"}
			}
			if err := verifyInstr(blk, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyInstr(blk *Block, i *Instr) error {
	for slot, a := range i.Args {
		if a == nil {
			continue
		}
		u := i.use(slot)
		if u.Instr != i || u.Slot != slot {
			return UseDefError{blk.Label, i, slot, "use record does not name its slot"}
		}
		if !containsUse(a.Uses, u) {
			return UseDefError{blk.Label, i, slot, "use record missing from the value's use list"}
		}
	}
	if r := i.Result; r != nil {
		if r.Def != i {
			return DefError{blk.Label, i, "result value does not name this instruction as its definition"}
		}
		for _, u := range r.Uses {
			if u.Instr.Args[u.Slot] != r {
				return DefError{blk.Label, i, "stale use in the result's use list"}
			}
		}
	}
	for _, a := range i.Args {
		if a != nil && a.IsConst() && len(a.Uses) == 0 {
			return DefError{blk.Label, i, "constant argument lost its use record"}
		}
	}
	return nil
}

func containsUse(uses []*Use, u *Use) bool {
	for _, cand := range uses {
		if cand == u {
			return true
		}
	}
	return false
}
