// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

type expressionSimplification struct{}

// NewExpressionSimplification returns the algebraic-identity pass.
func NewExpressionSimplification() Pass { return &expressionSimplification{} }

func (*expressionSimplification) Name() string { return "esimp" }

// Run rewrites instructions matching algebraic identities: neutral and
// absorbing elements, self-cancelling operand pairs, double negation and
// multiply-by-power-of-two strength reduction.
func (*expressionSimplification) Run(b *ir.IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		for i := blk.Head(); i != nil; {
			next := i.Next()
			if s := simplify(b, i); s != nil {
				ir.ReplaceUses(i.Result, s)
				b.RemoveInstr(i)
			}
			i = next
		}
	}
	return nil
}

func simplify(b *ir.IR, i *ir.Instr) *ir.Value {
	if i.Result == nil || !i.Result.Type.IsInt() {
		return nil
	}
	x, y := i.Args[0], i.Args[1]
	switch i.Op {
	case op.Add:
		if isZero(y) {
			return x
		}
		if isZero(x) {
			return y
		}
	case op.Sub:
		if isZero(y) {
			return x
		}
		if x == y {
			return makeInt(b, i.Result.Type, 0)
		}
	case op.Smul, op.Umul:
		if isOne(y) {
			return x
		}
		if isOne(x) {
			return y
		}
		if isZero(x) || isZero(y) {
			return makeInt(b, i.Result.Type, 0)
		}
		if n, ok := powerOfTwo(y); ok {
			return reduceToShift(b, i, x, n)
		}
		if n, ok := powerOfTwo(x); ok {
			return reduceToShift(b, i, y, n)
		}
	case op.And:
		if x == y {
			return x
		}
		if isZero(x) || isZero(y) {
			return makeInt(b, i.Result.Type, 0)
		}
		if isAllOnes(y) {
			return x
		}
		if isAllOnes(x) {
			return y
		}
	case op.Or:
		if x == y {
			return x
		}
		if isZero(y) {
			return x
		}
		if isZero(x) {
			return y
		}
	case op.Xor:
		if x == y {
			return makeInt(b, i.Result.Type, 0)
		}
		if isZero(y) {
			return x
		}
		if isZero(x) {
			return y
		}
	case op.Not:
		if !x.IsConst() && x.Def.Op == op.Not {
			return x.Def.Args[0]
		}
	case op.Shl, op.LShr, op.AShr:
		if isZero(y) {
			return x
		}
	case op.Select:
		if i.Args[1] == i.Args[2] {
			return i.Args[1]
		}
	}
	return nil
}

// reduceToShift emits a shift-left right after the multiply and returns
// it as the replacement. The dead multiply is removed by the caller.
func reduceToShift(b *ir.IR, i *ir.Instr, x *ir.Value, n int64) *ir.Value {
	pt := b.GetInsertPoint()
	b.SetInsertPoint(ir.InsertPoint{Block: i.Block, After: i})
	shifted := b.Shl(x, makeInt(b, x.Type, n))
	b.SetInsertPoint(pt)
	return shifted
}

func isZero(v *ir.Value) bool { return v != nil && v.IsConst() && v.Type.IsInt() && v.I64 == 0 }

func isOne(v *ir.Value) bool { return v != nil && v.IsConst() && v.Type.IsInt() && v.I64 == 1 }

func isAllOnes(v *ir.Value) bool {
	if v == nil || !v.IsConst() || !v.Type.IsInt() {
		return false
	}
	var max uint64
	switch v.Type {
	case ir.TypeI8:
		max = 0xff
	case ir.TypeI16:
		max = 0xffff
	case ir.TypeI32:
		max = 0xffffffff
	default:
		max = ^uint64(0)
	}
	return zeroExtend(v) == max
}

func powerOfTwo(v *ir.Value) (int64, bool) {
	if v == nil || !v.IsConst() || !v.Type.IsInt() {
		return 0, false
	}
	u := zeroExtend(v)
	if u < 2 || u&(u-1) != 0 {
		return 0, false
	}
	n := int64(0)
	for u > 1 {
		u >>= 1
		n++
	}
	return n, true
}
