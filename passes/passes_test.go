// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

func newTestIR() *ir.IR {
	return ir.New(1 << 20)
}

func opsOf(blk *ir.Block) []op.Op {
	var out []op.Op
	for i := blk.Head(); i != nil; i = i.Next() {
		out = append(out, i.Op)
	}
	return out
}

func TestControlFlowAnalysis(t *testing.T) {
	b := newTestIR()
	entry := b.NewBlock()
	fall := b.NewBlock()
	taken := b.NewBlock()

	b.SetCurrentBlock(entry)
	cond := b.LoadContext(0x0, ir.TypeI8)
	b.BranchTrue(cond, b.ConstBlock(taken))

	b.SetCurrentBlock(taken)
	b.Branch(b.ConstBlock(fall))

	b.SetCurrentBlock(fall)
	b.Branch(b.ConstPtr(0x1000)) // host target, no CFG edge

	require.NoError(t, NewControlFlowAnalysis().Run(b))
	require.NoError(t, ir.Verify(b))

	assert.ElementsMatch(t, []*ir.Block{taken, fall}, entry.Out)
	assert.Equal(t, []*ir.Block{fall}, taken.Out)
	assert.Empty(t, fall.Out)
	assert.ElementsMatch(t, []*ir.Block{entry, taken}, fall.In)
}

func TestLoadStoreElimination(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, ir.TypeI32)
	y := b.LoadContext(0x10, ir.TypeI32) // redundant
	b.StoreContext(0x20, b.Add(x, y))
	z := b.LoadContext(0x20, ir.TypeI32) // forwarded from the store
	b.StoreContext(0x24, z)

	require.NoError(t, NewLoadStoreElimination().Run(b))
	require.NoError(t, ir.Verify(b))

	assert.Equal(t,
		[]op.Op{op.LoadContext, op.Add, op.StoreContext, op.StoreContext},
		opsOf(blk))
	assert.Empty(t, y.Uses)
}

func TestLoadStoreEliminationCallClobbers(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	b.LoadContext(0x10, ir.TypeI32)
	b.Call(b.ConstPtr(0x1000))
	reload := b.LoadContext(0x10, ir.TypeI32)
	b.StoreContext(0x14, reload)

	require.NoError(t, NewLoadStoreElimination().Run(b))

	// The call may mutate the context, so the reload survives.
	assert.Equal(t,
		[]op.Op{op.LoadContext, op.Call, op.LoadContext, op.StoreContext},
		opsOf(blk))
}

func TestConstantPropagation(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	sum := b.Add(b.ConstI32(3), b.ConstI32(4))
	prod := b.Smul(sum, b.ConstI32(2))
	b.StoreContext(0x10, prod)
	cmp := b.CmpSGT(prod, b.ConstI32(0))
	b.StoreContext(0x14, cmp)

	require.NoError(t, NewConstantPropagation().Run(b))
	require.NoError(t, ir.Verify(b))

	assert.Equal(t, []op.Op{op.StoreContext, op.StoreContext}, opsOf(blk))
	stored := blk.Head().Args[1]
	require.True(t, stored.IsConst())
	assert.Equal(t, int32(14), stored.I32())
	storedCmp := blk.Tail().Args[1]
	require.True(t, storedCmp.IsConst())
	assert.Equal(t, int8(1), storedCmp.I8())
}

func TestExpressionSimplification(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, ir.TypeI32)
	a := b.Add(x, b.ConstI32(0))       // a == x
	m := b.Smul(a, b.ConstI32(8))      // strength-reduced to shl
	z := b.Xor(m, m)                   // == 0
	b.StoreContext(0x20, b.Or(z, m))   // or with zero == m
	b.StoreContext(0x24, b.And(x, x))  // == x

	require.NoError(t, NewExpressionSimplification().Run(b))
	require.NoError(t, NewDeadCodeElimination().Run(b))
	require.NoError(t, ir.Verify(b))

	assert.Equal(t,
		[]op.Op{op.LoadContext, op.Shl, op.StoreContext, op.StoreContext},
		opsOf(blk))
	shl := blk.Head().Next()
	assert.Equal(t, x, shl.Args[0])
	assert.Equal(t, int64(3), shl.Args[1].I64)
	assert.Equal(t, x, blk.Tail().Args[1])
}

func TestDeadCodeElimination(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, ir.TypeI32)
	dead := b.Add(x, b.ConstI32(1)) // never used
	_ = dead
	b.StoreContext(0x14, x)

	require.NoError(t, NewDeadCodeElimination().Run(b))
	require.NoError(t, ir.Verify(b))

	// The add dies; the load survives because the store uses it.
	assert.Equal(t, []op.Op{op.LoadContext, op.StoreContext}, opsOf(blk))
}

func TestDeadCodeEliminationKeepsSideEffects(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	b.LoadSlow(b.ConstU32(0x8c000000), ir.TypeI32) // unused but observable

	require.NoError(t, NewDeadCodeElimination().Run(b))
	assert.Equal(t, []op.Op{op.LoadSlow}, opsOf(blk))
}

var testRegisters = []backend.Register{
	{Name: "r0", Mask: ir.IntMask},
	{Name: "r1", Mask: ir.IntMask},
	{Name: "f0", Mask: ir.FloatMask},
}

func TestRegisterAllocation(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x0, ir.TypeI32)
	y := b.LoadContext(0x4, ir.TypeI32)
	f := b.LoadContext(0x8, ir.TypeF32)
	sum := b.Add(x, y)
	b.StoreContext(0x0, sum)
	b.StoreContext(0x8, b.FAdd(f, f))

	require.NoError(t, NewRegisterAllocation(testRegisters).Run(b))
	require.NoError(t, ir.Verify(b))

	assert.GreaterOrEqual(t, x.Reg, 0)
	assert.GreaterOrEqual(t, y.Reg, 0)
	assert.NotEqual(t, x.Reg, y.Reg)
	assert.Equal(t, 2, f.Reg) // only f0 admits floats
}

func TestRegisterAllocationSpills(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	// Three simultaneously live ints against a two-register bank.
	var vals []*ir.Value
	for off := 0; off < 12; off += 4 {
		vals = append(vals, b.LoadContext(off, ir.TypeI32))
	}
	acc := b.Add(vals[0], vals[1])
	acc = b.Add(acc, vals[2])
	b.StoreContext(0x20, acc)

	require.NoError(t, NewRegisterAllocation(testRegisters).Run(b))

	spilled := 0
	for _, v := range vals {
		if v.Reg < 0 {
			require.NotNil(t, v.Local)
			assert.Equal(t, ir.TypeI32, v.Local.Type)
			spilled++
		}
	}
	assert.Equal(t, 1, spilled)
	assert.Positive(t, b.LocalsSize)
}

func TestDefaultPipeline(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, ir.TypeI32)
	sum := b.Add(x, b.ConstI32(0))
	b.StoreContext(0x10, sum)
	b.Branch(b.ConstPtr(0x1000))

	require.NoError(t, Run(b, Default(testRegisters)))
	require.NoError(t, ir.Verify(b))
	assert.Equal(t, []op.Op{op.LoadContext, op.StoreContext, op.Branch}, opsOf(blk))
}
