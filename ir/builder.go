// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"

	"github.com/go-dynarec/drift/ir/op"
)

// Constants.

// ConstI8 returns an i8 constant.
func (b *IR) ConstI8(v int8) *Value {
	c := b.allocValue(TypeI8)
	c.I64 = int64(v)
	return c
}

// ConstI16 returns an i16 constant.
func (b *IR) ConstI16(v int16) *Value {
	c := b.allocValue(TypeI16)
	c.I64 = int64(v)
	return c
}

// ConstI32 returns an i32 constant.
func (b *IR) ConstI32(v int32) *Value {
	c := b.allocValue(TypeI32)
	c.I64 = int64(v)
	return c
}

// ConstU32 returns an i32 constant from an unsigned payload.
func (b *IR) ConstU32(v uint32) *Value { return b.ConstI32(int32(v)) }

// ConstI64 returns an i64 constant.
func (b *IR) ConstI64(v int64) *Value {
	c := b.allocValue(TypeI64)
	c.I64 = v
	return c
}

// ConstPtr returns an i64 constant holding a host address.
func (b *IR) ConstPtr(v uint64) *Value { return b.ConstI64(int64(v)) }

// ConstF32 returns an f32 constant.
func (b *IR) ConstF32(v float32) *Value {
	c := b.allocValue(TypeF32)
	c.F32 = v
	return c
}

// ConstF64 returns an f64 constant.
func (b *IR) ConstF64(v float64) *Value {
	c := b.allocValue(TypeF64)
	c.F64 = v
	return c
}

// ConstStr returns a string constant built with fmt.Sprintf.
func (b *IR) ConstStr(format string, args ...interface{}) *Value {
	c := b.allocValue(TypeString)
	c.Str = fmt.Sprintf(format, args...)
	return c
}

// ConstBlock returns a block-reference constant.
func (b *IR) ConstBlock(blk *Block) *Value {
	c := b.allocValue(TypeBlock)
	c.Blk = blk
	return c
}

// Locals.

// AllocLocal allocates a fresh spill slot of type t in the context frame.
func (b *IR) AllocLocal(t Type) *Local {
	size := t.Size()
	if size == 0 {
		panic(fmt.Sprintf("ir: cannot spill a %s value", t))
	}
	// Keep slots naturally aligned.
	offset := (b.LocalsSize + size - 1) &^ (size - 1)
	b.LocalsSize = offset + size
	return b.newLocal(t, int32(offset))
}

// ReuseLocal returns a local of type t at an already allocated offset.
func (b *IR) ReuseLocal(offset *Value, t Type) *Local {
	return b.newLocal(t, offset.I32())
}

func (b *IR) newLocal(t Type, offset int32) *Local {
	if len(b.locals) == cap(b.locals) {
		panic(fmt.Sprintf("ir: local arena exhausted (%d entries)", cap(b.locals)))
	}
	b.locals = append(b.locals, Local{Type: t, Offset: b.ConstI32(offset)})
	return &b.locals[len(b.locals)-1]
}

// Loads and stores.

// LoadContext loads a t-typed value from the guest context at offset.
func (b *IR) LoadContext(offset int, t Type) *Value {
	return b.emit(op.LoadContext, t, b.ConstI32(int32(offset))).Result
}

// StoreContext stores v into the guest context at offset.
func (b *IR) StoreContext(offset int, v *Value) {
	b.emit(op.StoreContext, TypeVoid, b.ConstI32(int32(offset)), v)
}

// LoadLocal loads the value of a spill slot.
func (b *IR) LoadLocal(l *Local) *Value {
	return b.emit(op.LoadLocal, l.Type, l.Offset).Result
}

// StoreLocal stores v into a spill slot.
func (b *IR) StoreLocal(l *Local, v *Value) {
	b.emit(op.StoreLocal, TypeVoid, l.Offset, v)
}

// LoadHost loads t bytes from a raw host address.
func (b *IR) LoadHost(addr *Value, t Type) *Value {
	return b.emit(op.LoadHost, t, addr).Result
}

// StoreHost stores v to a raw host address.
func (b *IR) StoreHost(addr, v *Value) {
	b.emit(op.StoreHost, TypeVoid, addr, v)
}

// LoadFast loads through the host-mapped guest address space.
func (b *IR) LoadFast(addr *Value, t Type) *Value {
	return b.emit(op.LoadFast, t, addr).Result
}

// StoreFast stores through the host-mapped guest address space.
func (b *IR) StoreFast(addr, v *Value) {
	b.emit(op.StoreFast, TypeVoid, addr, v)
}

// LoadSlow loads through the guest memory bus.
func (b *IR) LoadSlow(addr *Value, t Type) *Value {
	return b.emit(op.LoadSlow, t, addr).Result
}

// StoreSlow stores through the guest memory bus.
func (b *IR) StoreSlow(addr, v *Value) {
	b.emit(op.StoreSlow, TypeVoid, addr, v)
}

// LoadGuest loads from guest memory, picking the fast path when the
// translation runs with fastmem enabled.
func (b *IR) LoadGuest(addr *Value, t Type, fastmem bool) *Value {
	if fastmem {
		return b.LoadFast(addr, t)
	}
	return b.LoadSlow(addr, t)
}

// StoreGuest stores to guest memory, picking the fast path when the
// translation runs with fastmem enabled.
func (b *IR) StoreGuest(addr, v *Value, fastmem bool) {
	if fastmem {
		b.StoreFast(addr, v)
		return
	}
	b.StoreSlow(addr, v)
}

// Integer and float arithmetic.

func (b *IR) binary(o op.Op, a, c *Value) *Value {
	if a.Type != c.Type {
		panic(fmt.Sprintf("ir: %s operand types differ (%s, %s)", o, a.Type, c.Type))
	}
	return b.emit(o, a.Type, a, c).Result
}

// Add returns a + c.
func (b *IR) Add(a, c *Value) *Value { return b.binary(op.Add, a, c) }

// Sub returns a - c.
func (b *IR) Sub(a, c *Value) *Value { return b.binary(op.Sub, a, c) }

// Smul returns the signed product of a and c.
func (b *IR) Smul(a, c *Value) *Value { return b.binary(op.Smul, a, c) }

// Umul returns the unsigned product of a and c.
func (b *IR) Umul(a, c *Value) *Value { return b.binary(op.Umul, a, c) }

// Div returns a / c.
func (b *IR) Div(a, c *Value) *Value { return b.binary(op.Div, a, c) }

// Neg returns -a.
func (b *IR) Neg(a *Value) *Value { return b.emit(op.Neg, a.Type, a).Result }

// Abs returns |a|.
func (b *IR) Abs(a *Value) *Value { return b.emit(op.Abs, a.Type, a).Result }

// FAdd returns the float sum of a and c.
func (b *IR) FAdd(a, c *Value) *Value { return b.binary(op.FAdd, a, c) }

// FSub returns the float difference of a and c.
func (b *IR) FSub(a, c *Value) *Value { return b.binary(op.FSub, a, c) }

// FMul returns the float product of a and c.
func (b *IR) FMul(a, c *Value) *Value { return b.binary(op.FMul, a, c) }

// FDiv returns the float quotient of a and c.
func (b *IR) FDiv(a, c *Value) *Value { return b.binary(op.FDiv, a, c) }

// FNeg returns the float negation of a.
func (b *IR) FNeg(a *Value) *Value { return b.emit(op.FNeg, a.Type, a).Result }

// FAbs returns the float magnitude of a.
func (b *IR) FAbs(a *Value) *Value { return b.emit(op.FAbs, a.Type, a).Result }

// Sqrt returns the float square root of a.
func (b *IR) Sqrt(a *Value) *Value { return b.emit(op.Sqrt, a.Type, a).Result }

// VBroadcast splats a scalar float into a v128.
func (b *IR) VBroadcast(a *Value) *Value {
	return b.emit(op.VBroadcast, TypeV128, a).Result
}

// VAdd returns the lane-wise sum of two v128 values.
func (b *IR) VAdd(a, c *Value) *Value { return b.binary(op.VAdd, a, c) }

// VMul returns the lane-wise product of two v128 values.
func (b *IR) VMul(a, c *Value) *Value { return b.binary(op.VMul, a, c) }

// VDot returns the f32 dot product of two v128 values.
func (b *IR) VDot(a, c *Value) *Value {
	return b.emit(op.VDot, TypeF32, a, c).Result
}

// Bitwise operations.

// And returns a & c.
func (b *IR) And(a, c *Value) *Value { return b.binary(op.And, a, c) }

// Or returns a | c.
func (b *IR) Or(a, c *Value) *Value { return b.binary(op.Or, a, c) }

// Xor returns a ^ c.
func (b *IR) Xor(a, c *Value) *Value { return b.binary(op.Xor, a, c) }

// Not returns ^a.
func (b *IR) Not(a *Value) *Value { return b.emit(op.Not, a.Type, a).Result }

// Shl returns a shifted left by n bits.
func (b *IR) Shl(a, n *Value) *Value { return b.emit(op.Shl, a.Type, a, n).Result }

// LShr returns a logically shifted right by n bits.
func (b *IR) LShr(a, n *Value) *Value { return b.emit(op.LShr, a.Type, a, n).Result }

// AShr returns a arithmetically shifted right by n bits.
func (b *IR) AShr(a, n *Value) *Value { return b.emit(op.AShr, a.Type, a, n).Result }

// Comparisons. All comparisons produce an i8 boolean.

func (b *IR) cmp(o op.Op, a, c *Value) *Value {
	if a.Type != c.Type {
		panic(fmt.Sprintf("ir: %s operand types differ (%s, %s)", o, a.Type, c.Type))
	}
	return b.emit(o, TypeI8, a, c).Result
}

// CmpEQ returns a == c.
func (b *IR) CmpEQ(a, c *Value) *Value { return b.cmp(op.CmpEQ, a, c) }

// CmpNE returns a != c.
func (b *IR) CmpNE(a, c *Value) *Value { return b.cmp(op.CmpNE, a, c) }

// CmpSGE returns the signed a >= c.
func (b *IR) CmpSGE(a, c *Value) *Value { return b.cmp(op.CmpSGE, a, c) }

// CmpSGT returns the signed a > c.
func (b *IR) CmpSGT(a, c *Value) *Value { return b.cmp(op.CmpSGT, a, c) }

// CmpSLE returns the signed a <= c.
func (b *IR) CmpSLE(a, c *Value) *Value { return b.cmp(op.CmpSLE, a, c) }

// CmpSLT returns the signed a < c.
func (b *IR) CmpSLT(a, c *Value) *Value { return b.cmp(op.CmpSLT, a, c) }

// CmpUGE returns the unsigned a >= c.
func (b *IR) CmpUGE(a, c *Value) *Value { return b.cmp(op.CmpUGE, a, c) }

// CmpUGT returns the unsigned a > c.
func (b *IR) CmpUGT(a, c *Value) *Value { return b.cmp(op.CmpUGT, a, c) }

// CmpULE returns the unsigned a <= c.
func (b *IR) CmpULE(a, c *Value) *Value { return b.cmp(op.CmpULE, a, c) }

// CmpULT returns the unsigned a < c.
func (b *IR) CmpULT(a, c *Value) *Value { return b.cmp(op.CmpULT, a, c) }

// FCmpEQ returns the float a == c.
func (b *IR) FCmpEQ(a, c *Value) *Value { return b.cmp(op.FCmpEQ, a, c) }

// FCmpNE returns the float a != c.
func (b *IR) FCmpNE(a, c *Value) *Value { return b.cmp(op.FCmpNE, a, c) }

// FCmpGE returns the float a >= c.
func (b *IR) FCmpGE(a, c *Value) *Value { return b.cmp(op.FCmpGE, a, c) }

// FCmpGT returns the float a > c.
func (b *IR) FCmpGT(a, c *Value) *Value { return b.cmp(op.FCmpGT, a, c) }

// FCmpLE returns the float a <= c.
func (b *IR) FCmpLE(a, c *Value) *Value { return b.cmp(op.FCmpLE, a, c) }

// FCmpLT returns the float a < c.
func (b *IR) FCmpLT(a, c *Value) *Value { return b.cmp(op.FCmpLT, a, c) }

// Conversions.

// SExt sign-extends a to the wider integer type t.
func (b *IR) SExt(a *Value, t Type) *Value { return b.emit(op.SExt, t, a).Result }

// ZExt zero-extends a to the wider integer type t.
func (b *IR) ZExt(a *Value, t Type) *Value { return b.emit(op.ZExt, t, a).Result }

// Trunc truncates a to the narrower integer type t.
func (b *IR) Trunc(a *Value, t Type) *Value { return b.emit(op.Trunc, t, a).Result }

// FExt widens an f32 to f64.
func (b *IR) FExt(a *Value) *Value { return b.emit(op.FExt, TypeF64, a).Result }

// FTrunc narrows an f64 to f32.
func (b *IR) FTrunc(a *Value) *Value { return b.emit(op.FTrunc, TypeF32, a).Result }

// IToF converts an integer to the float type t.
func (b *IR) IToF(a *Value, t Type) *Value { return b.emit(op.IToF, t, a).Result }

// FToI converts a float to the integer type t.
func (b *IR) FToI(a *Value, t Type) *Value { return b.emit(op.FToI, t, a).Result }

// Bitcast reinterprets a's bits as type t.
func (b *IR) Bitcast(a *Value, t Type) *Value { return b.emit(op.Bitcast, t, a).Result }

// Select returns t when cond is non-zero, f otherwise.
func (b *IR) Select(cond, t, f *Value) *Value {
	if t.Type != f.Type {
		panic(fmt.Sprintf("ir: select operand types differ (%s, %s)", t.Type, f.Type))
	}
	return b.emit(op.Select, t.Type, cond, t, f).Result
}

// Branches.

// Branch jumps to target, either a block reference or a host address.
func (b *IR) Branch(target *Value) {
	b.emit(op.Branch, TypeVoid, target)
}

// BranchTrue jumps to target when cond is non-zero.
func (b *IR) BranchTrue(cond, target *Value) {
	b.emit(op.BranchTrue, TypeVoid, cond, target)
}

// BranchFalse jumps to target when cond is zero.
func (b *IR) BranchFalse(cond, target *Value) {
	b.emit(op.BranchFalse, TypeVoid, cond, target)
}

// EmitLabel emits a named label directive.
func (b *IR) EmitLabel(name string) {
	i := b.emit(op.Label, TypeVoid)
	i.Label = name
}

// Calls. Calls take at most two value arguments after the target.

// Call calls the host function at fn.
func (b *IR) Call(fn *Value, args ...*Value) {
	b.callArgs(op.Call, nil, fn, args)
}

// CallCond calls the host function at fn when cond is non-zero.
func (b *IR) CallCond(cond, fn *Value, args ...*Value) {
	b.callArgs(op.CallCond, cond, fn, args)
}

// CallNoret calls the host function at fn, which never returns. The call
// terminates its block.
func (b *IR) CallNoret(fn *Value, args ...*Value) {
	b.callArgs(op.CallNoret, nil, fn, args)
}

func (b *IR) callArgs(o op.Op, cond, fn *Value, args []*Value) {
	if len(args) > 2 {
		panic(fmt.Sprintf("ir: %s with %d arguments", o, len(args)))
	}
	all := make([]*Value, 0, maxArgs)
	if cond != nil {
		all = append(all, cond)
	}
	all = append(all, fn)
	all = append(all, args...)
	b.emit(o, TypeVoid, all...)
}

// Fallback emits an interpreter-fallback call for the raw guest
// instruction at addr.
func (b *IR) Fallback(handler *Value, addr uint32, raw uint32) {
	b.emit(op.CallFallback, TypeVoid, handler, b.ConstU32(addr), b.ConstU32(raw))
}

// Debug directives.

// DebugInfo emits a formatted annotation carried through to dumps.
func (b *IR) DebugInfo(format string, args ...interface{}) {
	b.emit(op.DebugInfo, TypeVoid, b.ConstStr(format, args...))
}

// DebugBreak emits a host breakpoint.
func (b *IR) DebugBreak() {
	b.emit(op.DebugBreak, TypeVoid)
}

// AssertEQ emits a runtime assertion that a == c.
func (b *IR) AssertEQ(a, c *Value) {
	b.emit(op.AssertEQ, TypeVoid, a, c)
}
