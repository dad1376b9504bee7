// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-dynarec/drift/ir/op"
)

func newTestIR() *IR {
	return New(1 << 20)
}

func TestBuilderUseDef(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, TypeI32)
	four := b.ConstI32(4)
	sum := b.Add(x, four)
	b.StoreContext(0x10, sum)

	require.NoError(t, Verify(b))

	require.NotNil(t, x.Def)
	assert.Equal(t, op.LoadContext, x.Def.Op)
	assert.True(t, four.IsConst())
	assert.Len(t, x.Uses, 1)
	assert.Len(t, sum.Uses, 1)
	assert.Equal(t, sum.Def, x.Uses[0].Instr)
	assert.Equal(t, op.StoreContext, sum.Uses[0].Instr.Op)
}

func TestReplaceUses(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, TypeI32)
	sum := b.Add(x, b.ConstI32(0))
	b.StoreContext(0x10, sum)
	b.StoreContext(0x14, sum)

	c := b.ConstI32(42)
	ReplaceUses(sum, c)

	assert.Empty(t, sum.Uses)
	assert.Len(t, c.Uses, 2)
	for _, u := range c.Uses {
		assert.Equal(t, c, u.Instr.Args[u.Slot])
	}
	require.NoError(t, Verify(b))

	// The add is now dead and removable.
	b.RemoveInstr(sum.Def)
	assert.Empty(t, x.Uses)
	require.NoError(t, Verify(b))
}

func TestRemoveLiveDefPanics(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	x := b.LoadContext(0x10, TypeI32)
	b.StoreContext(0x10, x)

	assert.Panics(t, func() { b.RemoveInstr(x.Def) })
}

func TestInsertPoint(t *testing.T) {
	b := newTestIR()
	main := b.NewBlock()
	b.SetCurrentBlock(main)
	b.LoadContext(0x0, TypeI32)

	// Emit into a second block, then come back.
	saved := b.GetInsertPoint()
	stub := b.NewBlock()
	b.SetCurrentBlock(stub)
	b.StoreContext(0x4, b.ConstI32(1))
	b.SetInsertPoint(saved)

	b.StoreContext(0x0, b.ConstI32(2))

	require.Equal(t, 2, b.NumBlocks())
	var mainOps, stubOps []op.Op
	for i := main.Head(); i != nil; i = i.Next() {
		mainOps = append(mainOps, i.Op)
	}
	for i := stub.Head(); i != nil; i = i.Next() {
		stubOps = append(stubOps, i.Op)
	}
	assert.Equal(t, []op.Op{op.LoadContext, op.StoreContext}, mainOps)
	assert.Equal(t, []op.Op{op.StoreContext}, stubOps)
}

func TestArenaReset(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)
	b.StoreContext(0x0, b.ConstI32(1))
	used := b.Used()
	require.NotZero(t, used)

	b.Reset()
	assert.Zero(t, b.Used())
	assert.Zero(t, b.NumBlocks())
	assert.Nil(t, b.Head())

	blk = b.NewBlock()
	b.SetCurrentBlock(blk)
	b.StoreContext(0x0, b.ConstI32(1))
	assert.Equal(t, used, b.Used())
}

func TestLocals(t *testing.T) {
	b := newTestIR()
	blk := b.NewBlock()
	b.SetCurrentBlock(blk)

	a := b.AllocLocal(TypeI32)
	c := b.AllocLocal(TypeI64)
	assert.Equal(t, int32(0), a.Offset.I32())
	assert.Equal(t, int32(8), c.Offset.I32())
	assert.Equal(t, 16, b.LocalsSize)

	reuse := b.ReuseLocal(a.Offset, TypeI32)
	assert.Equal(t, a.Offset.I32(), reuse.Offset.I32())
	assert.Equal(t, 16, b.LocalsSize)

	v := b.LoadLocal(a)
	b.StoreLocal(c, b.ZExt(v, TypeI64))
	require.NoError(t, Verify(b))
}
