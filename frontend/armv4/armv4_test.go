// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package armv4

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/guest"
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

type fakeMemory struct {
	words map[uint32]uint32
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{words: make(map[uint32]uint32)}
}

func (m *fakeMemory) write(addr uint32, words ...uint32) {
	for i, w := range words {
		m.words[addr+uint32(i)*4] = w
	}
}

func (m *fakeMemory) ReadU32(addr uint32) (uint32, error) {
	w, ok := m.words[addr]
	if !ok {
		return 0, fmt.Errorf("unmapped address %#08x", addr)
	}
	return w, nil
}

func (m *fakeMemory) ReadU8(addr uint32) (uint8, error) {
	w, err := m.ReadU32(addr &^ 3)
	return uint8(w >> (8 * (addr & 3))), err
}

func (m *fakeMemory) ReadU16(addr uint32) (uint16, error) {
	w, err := m.ReadU32(addr &^ 3)
	return uint16(w >> (8 * (addr & 2))), err
}

func (m *fakeMemory) ReadU64(addr uint32) (uint64, error) {
	lo, err := m.ReadU32(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadU32(addr + 4)
	return uint64(hi)<<32 | uint64(lo), err
}

var testRuntime = guest.Runtime{
	DispatchStatic:  0x1000,
	DispatchDynamic: 0x2000,
	DispatchLeave:   0x3000,
	InterruptCheck:  0x4000,
	Fallback:        0x5000,
}

func TestAnalyzeUnconditionalBranch(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000,
		0xe3a00001, // mov r0, #1
		0xea000004, // b 0x0020001c
	)

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))

	assert.Equal(t, frontend.Static, m.BranchType)
	assert.Equal(t, uint32(0x0020001c), m.BranchAddr)
	assert.Equal(t, guest.InvalidAddr, m.NextAddr)
	assert.Equal(t, 2, m.NumInstrs)
	assert.Equal(t, 8, m.Size)
}

func TestAnalyzeConditionalBranch(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000, 0x0a000001) // beq 0x0020000c

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))

	assert.Equal(t, frontend.StaticTrue, m.BranchType)
	assert.Equal(t, uint32(0x0020000c), m.BranchAddr)
	assert.Equal(t, uint32(0x00200004), m.NextAddr)
}

func TestAnalyzeBranchExchange(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000, 0xe12fff1e) // bx lr

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))
	assert.Equal(t, frontend.Dynamic, m.BranchType)

	mem.write(0x00200010, 0x112fff1e) // bxne lr
	m = &frontend.Meta{GuestAddr: 0x00200010}
	require.NoError(t, f.Analyze(m))
	assert.Equal(t, frontend.DynamicTrue, m.BranchType)
	assert.Equal(t, uint32(0x00200014), m.NextAddr)
}

func TestAnalyzePCWrite(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000, 0xe1a0f00e) // mov pc, lr

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))
	assert.Equal(t, frontend.Dynamic, m.BranchType)
}

func TestAnalyzeInvalidEntry(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000, 0xf0000000) // never-condition space

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	err := f.Analyze(m)
	require.Error(t, err)
	var ierr InvalidInstructionError
	require.ErrorAs(t, err, &ierr)
}

func blockOps(blk *ir.Block) []op.Op {
	var out []op.Op
	for i := blk.Head(); i != nil; i = i.Next() {
		out = append(out, i.Op)
	}
	return out
}

func TestTranslateDirectLowering(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000,
		0xe3a00001, // mov r0, #1
		0xe2811004, // add r1, r1, #4
		0xe5910000, // ldr r0, [r1]
		0xe12fff1e, // bx lr
	)

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))

	b := ir.New(1 << 20)
	u := &frontend.Unit{Meta: m}
	require.NoError(t, f.Translate(b, u, true))
	require.NoError(t, ir.Verify(b))

	ops := blockOps(u.Block)
	assert.Contains(t, ops, op.LoadFast)
	assert.NotContains(t, ops, op.CallFallback)

	tail := u.Block.Tail()
	require.Equal(t, op.Branch, tail.Op)
	assert.Equal(t, uint64(testRuntime.DispatchDynamic), tail.Args[0].U64())
	require.NotNil(t, u.Dest)
}

func TestTranslateConditionalBX(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000, 0x112fff1e) // bxne lr

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))

	b := ir.New(1 << 20)
	u := &frontend.Unit{Meta: m}
	require.NoError(t, f.Translate(b, u, true))
	require.NoError(t, ir.Verify(b))

	require.NotNil(t, u.Cond)
	require.NotNil(t, u.Dest)

	// pc := select(cond, dest, next); branch dispatch-dynamic.
	tail := u.Block.Tail()
	require.Equal(t, op.Branch, tail.Op)
	store := tail.Prev()
	require.Equal(t, op.StoreContext, store.Op)
	sel := store.Args[1]
	require.NotNil(t, sel.Def)
	assert.Equal(t, op.Select, sel.Def.Op)
	assert.Equal(t, u.Cond, sel.Def.Args[0])
	assert.Equal(t, u.Dest, sel.Def.Args[1])
}

func TestTranslateConditionalBodyFallsBack(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000,
		0x03a00001, // moveq r0, #1: conditional, interpreted
		0xe12fff1e, // bx lr
	)

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x00200000}
	require.NoError(t, f.Analyze(m))

	b := ir.New(1 << 20)
	u := &frontend.Unit{Meta: m}
	require.NoError(t, f.Translate(b, u, true))
	assert.Contains(t, blockOps(u.Block), op.CallFallback)
}

func TestDump(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x00200000,
		0xe3a00001, // mov r0, #1
		0x0a000001, // beq
		0xe12fff1e, // bx lr
	)

	f := New(mem, testRuntime)
	var sb strings.Builder
	require.NoError(t, f.Dump(&sb, 0x00200000, 12))
	out := sb.String()
	assert.Contains(t, out, "mov r0, #1")
	assert.Contains(t, out, "beq 0x00200010")
	assert.Contains(t, out, "bx r14")
}
