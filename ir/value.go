// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import "fmt"

// Value is a typed SSA value: either a constant carrying an inline payload
// (Def == nil) or the result of its defining instruction. Every place a
// value is consumed is recorded in its use list, which is what makes
// ReplaceUses an O(uses) splice.
type Value struct {
	Type Type

	// Constant payload. I64 holds all integer widths; Blk holds block
	// references; Str holds string payloads.
	I64 int64
	F32 float32
	F64 float64
	Str string
	Blk *Block

	Def  *Instr
	Uses []*Use

	// Register-allocation results. Reg is an index into the backend's
	// register bank, or -1. A value without a register has a spill Local.
	Reg   int
	Local *Local

	// Tag is scratch space for a single pass.
	Tag int64
}

// Use is the indirection between a value and one argument slot of one
// instruction. Replacing a value rewrites the slot each use points at.
type Use struct {
	Instr *Instr
	Slot  int
}

// Local is a spill slot allocated in the guest-context frame.
type Local struct {
	Type Type
	// Offset is a constant i32 value holding the slot's byte offset.
	Offset *Value
}

// IsConst reports whether v is a constant.
func (v *Value) IsConst() bool { return v.Def == nil }

// I8 returns the constant payload truncated to 8 bits.
func (v *Value) I8() int8 { return int8(v.I64) }

// I16 returns the constant payload truncated to 16 bits.
func (v *Value) I16() int16 { return int16(v.I64) }

// I32 returns the constant payload truncated to 32 bits.
func (v *Value) I32() int32 { return int32(v.I64) }

// U32 returns the constant payload as an unsigned 32-bit integer.
func (v *Value) U32() uint32 { return uint32(v.I64) }

// U64 returns the constant payload as an unsigned 64-bit integer.
func (v *Value) U64() uint64 { return uint64(v.I64) }

func (v *Value) addUse(u *Use) {
	v.Uses = append(v.Uses, u)
}

func (v *Value) removeUse(u *Use) {
	for i, cand := range v.Uses {
		if cand == u {
			v.Uses[i] = v.Uses[len(v.Uses)-1]
			v.Uses = v.Uses[:len(v.Uses)-1]
			return
		}
	}
	panic(fmt.Sprintf("ir: use %v missing from the use list of its value", u))
}

// ReplaceUses rewrites every use of old to refer to new. The use/def
// invariant holds on return: each rewritten slot's use record has moved
// from old's use list to new's.
func ReplaceUses(old, new *Value) {
	if old == new {
		return
	}
	for len(old.Uses) > 0 {
		u := old.Uses[len(old.Uses)-1]
		u.Instr.setArg(u.Slot, new)
	}
}
