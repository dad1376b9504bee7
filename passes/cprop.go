// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"math"

	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

type constantPropagation struct{}

// NewConstantPropagation returns the pass that folds constant-argument
// instructions.
func NewConstantPropagation() Pass { return &constantPropagation{} }

func (*constantPropagation) Name() string { return "cprop" }

// Run folds instructions whose arguments are all constants, splicing the
// computed constant through the IR via ReplaceUses and removing the folded
// instruction. Folding a result may turn its consumers constant, so each
// block is scanned until a fixpoint.
func (*constantPropagation) Run(b *ir.IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for changed := true; changed; {
			changed = false
			for i := blk.Head(); i != nil; {
				next := i.Next()
				if folded := fold(b, i); folded != nil {
					ir.ReplaceUses(i.Result, folded)
					b.RemoveInstr(i)
					changed = true
				}
				i = next
			}
		}
	}
	return nil
}

// fold computes i's result when every argument is constant, or nil.
func fold(b *ir.IR, i *ir.Instr) *ir.Value {
	if i.Result == nil || i.Op.HasSideEffects() {
		return nil
	}
	for slot := 0; slot < i.NumArgs(); slot++ {
		if !i.Args[slot].IsConst() {
			return nil
		}
	}

	t := i.Result.Type
	switch i.Op {
	case op.Add, op.Sub, op.Smul, op.Umul, op.And, op.Or, op.Xor,
		op.Shl, op.LShr, op.AShr, op.Div:
		return foldIntBinary(b, i, t)
	case op.Neg:
		return makeInt(b, t, -i.Args[0].I64)
	case op.Abs:
		v := i.Args[0].I64
		if v < 0 {
			v = -v
		}
		return makeInt(b, t, v)
	case op.Not:
		return makeInt(b, t, ^i.Args[0].I64)
	case op.CmpEQ, op.CmpNE, op.CmpSGE, op.CmpSGT, op.CmpSLE, op.CmpSLT,
		op.CmpUGE, op.CmpUGT, op.CmpULE, op.CmpULT:
		return foldIntCmp(b, i)
	case op.SExt:
		return makeInt(b, t, signExtend(i.Args[0]))
	case op.ZExt:
		return makeInt(b, t, int64(zeroExtend(i.Args[0])))
	case op.Trunc:
		return makeInt(b, t, i.Args[0].I64)
	case op.FExt:
		return b.ConstF64(float64(i.Args[0].F32))
	case op.FTrunc:
		return b.ConstF32(float32(i.Args[0].F64))
	case op.FAdd, op.FSub, op.FMul, op.FDiv:
		return foldFloatBinary(b, i, t)
	case op.Sqrt:
		if t == ir.TypeF32 {
			return b.ConstF32(float32(math.Sqrt(float64(i.Args[0].F32))))
		}
		return b.ConstF64(math.Sqrt(i.Args[0].F64))
	case op.Select:
		if i.Args[0].I64 != 0 {
			return i.Args[1]
		}
		return i.Args[2]
	}
	return nil
}

func foldIntBinary(b *ir.IR, i *ir.Instr, t ir.Type) *ir.Value {
	if !t.IsInt() {
		return nil
	}
	x, y := i.Args[0].I64, i.Args[1].I64
	ux, uy := zeroExtend(i.Args[0]), zeroExtend(i.Args[1])
	var r int64
	switch i.Op {
	case op.Add:
		r = x + y
	case op.Sub:
		r = x - y
	case op.Smul:
		r = x * y
	case op.Umul:
		r = int64(ux * uy)
	case op.Div:
		if y == 0 {
			return nil
		}
		r = x / y
	case op.And:
		r = x & y
	case op.Or:
		r = x | y
	case op.Xor:
		r = x ^ y
	case op.Shl:
		r = int64(ux << (uy & shiftMask(t)))
	case op.LShr:
		r = int64(ux >> (uy & shiftMask(t)))
	case op.AShr:
		r = signExtend(i.Args[0]) >> (uy & shiftMask(t))
	}
	return makeInt(b, t, r)
}

func foldIntCmp(b *ir.IR, i *ir.Instr) *ir.Value {
	if !i.Args[0].Type.IsInt() {
		return nil
	}
	x, y := signExtend(i.Args[0]), signExtend(i.Args[1])
	ux, uy := zeroExtend(i.Args[0]), zeroExtend(i.Args[1])
	var r bool
	switch i.Op {
	case op.CmpEQ:
		r = ux == uy
	case op.CmpNE:
		r = ux != uy
	case op.CmpSGE:
		r = x >= y
	case op.CmpSGT:
		r = x > y
	case op.CmpSLE:
		r = x <= y
	case op.CmpSLT:
		r = x < y
	case op.CmpUGE:
		r = ux >= uy
	case op.CmpUGT:
		r = ux > uy
	case op.CmpULE:
		r = ux <= uy
	case op.CmpULT:
		r = ux < uy
	}
	if r {
		return b.ConstI8(1)
	}
	return b.ConstI8(0)
}

func foldFloatBinary(b *ir.IR, i *ir.Instr, t ir.Type) *ir.Value {
	switch t {
	case ir.TypeF32:
		x, y := i.Args[0].F32, i.Args[1].F32
		switch i.Op {
		case op.FAdd:
			return b.ConstF32(x + y)
		case op.FSub:
			return b.ConstF32(x - y)
		case op.FMul:
			return b.ConstF32(x * y)
		case op.FDiv:
			return b.ConstF32(x / y)
		}
	case ir.TypeF64:
		x, y := i.Args[0].F64, i.Args[1].F64
		switch i.Op {
		case op.FAdd:
			return b.ConstF64(x + y)
		case op.FSub:
			return b.ConstF64(x - y)
		case op.FMul:
			return b.ConstF64(x * y)
		case op.FDiv:
			return b.ConstF64(x / y)
		}
	}
	return nil
}

func makeInt(b *ir.IR, t ir.Type, v int64) *ir.Value {
	switch t {
	case ir.TypeI8:
		return b.ConstI8(int8(v))
	case ir.TypeI16:
		return b.ConstI16(int16(v))
	case ir.TypeI32:
		return b.ConstI32(int32(v))
	case ir.TypeI64:
		return b.ConstI64(v)
	}
	return nil
}

// signExtend reads a constant's payload as a signed value of its width.
func signExtend(v *ir.Value) int64 {
	switch v.Type {
	case ir.TypeI8:
		return int64(int8(v.I64))
	case ir.TypeI16:
		return int64(int16(v.I64))
	case ir.TypeI32:
		return int64(int32(v.I64))
	}
	return v.I64
}

// zeroExtend reads a constant's payload as an unsigned value of its width.
func zeroExtend(v *ir.Value) uint64 {
	switch v.Type {
	case ir.TypeI8:
		return uint64(uint8(v.I64))
	case ir.TypeI16:
		return uint64(uint16(v.I64))
	case ir.TypeI32:
		return uint64(uint32(v.I64))
	}
	return uint64(v.I64)
}

func shiftMask(t ir.Type) uint64 {
	switch t {
	case ir.TypeI8:
		return 7
	case ir.TypeI16:
		return 15
	case ir.TypeI32:
		return 31
	}
	return 63
}
