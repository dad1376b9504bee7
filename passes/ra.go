// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"fmt"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/ir"
)

type registerAllocation struct {
	registers []backend.Register
}

// NewRegisterAllocation returns the linear-scan allocator bound to the
// backend's register bank.
func NewRegisterAllocation(registers []backend.Register) Pass {
	return &registerAllocation{registers: registers}
}

func (*registerAllocation) Name() string { return "ra" }

// interval is the live range of one result value in instruction order.
type interval struct {
	value *ir.Value
	start int
	end   int
}

// Run performs a linear scan over block order. Each result value receives
// either a host register whose type mask admits the value's type, or a
// spill local. Constants are materialized by the backend and take no
// register. When no compatible register is free, the live value with the
// farthest interval end is evicted to a spill local.
func (r *registerAllocation) Run(b *ir.IR) error {
	if len(r.registers) == 0 {
		return fmt.Errorf("passes: register allocation with an empty register bank")
	}

	intervals := collectIntervals(b)

	inReg := make([]*interval, len(r.registers))
	for idx := range intervals {
		cur := &intervals[idx]
		t := cur.value.Type

		// Expire intervals that ended before this definition.
		for ri, occ := range inReg {
			if occ != nil && occ.end < cur.start {
				inReg[ri] = nil
			}
		}

		assigned := -1
		for ri, reg := range r.registers {
			if inReg[ri] == nil && reg.Mask&t.Mask() != 0 {
				assigned = ri
				break
			}
		}
		if assigned >= 0 {
			cur.value.Reg = assigned
			inReg[assigned] = cur
			continue
		}

		// No free register: evict the compatible occupant living longest,
		// unless the current interval outlives them all.
		victim := -1
		for ri, reg := range r.registers {
			if reg.Mask&t.Mask() == 0 || inReg[ri] == nil {
				continue
			}
			if victim < 0 || inReg[ri].end > inReg[victim].end {
				victim = ri
			}
		}
		if victim < 0 {
			return fmt.Errorf("passes: no register can hold a %s value", t)
		}
		if inReg[victim].end > cur.end {
			spill(b, inReg[victim].value)
			cur.value.Reg = victim
			inReg[victim] = cur
		} else {
			spill(b, cur.value)
		}
	}
	return nil
}

// collectIntervals numbers instructions in block order and returns the
// live range of every register-eligible result value, ordered by start.
func collectIntervals(b *ir.IR) []interval {
	var intervals []interval
	pos := 0
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for i := blk.Head(); i != nil; i = i.Next() {
			i.Tag = int64(pos)
			pos++
		}
	}
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for i := blk.Head(); i != nil; i = i.Next() {
			v := i.Result
			if v == nil || !allocatable(v.Type) {
				continue
			}
			iv := interval{value: v, start: int(i.Tag), end: int(i.Tag)}
			for _, u := range v.Uses {
				if use := int(u.Instr.Tag); use > iv.end {
					iv.end = use
				}
			}
			intervals = append(intervals, iv)
		}
	}
	return intervals
}

func allocatable(t ir.Type) bool {
	return t.IsInt() || t.IsFloat() || t == ir.TypeV128
}

func spill(b *ir.IR, v *ir.Value) {
	v.Reg = -1
	v.Local = b.AllocLocal(v.Type)
}
