// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sh4

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

// fakeMemory backs guest reads with a sparse 16-bit word map.
type fakeMemory struct {
	words map[uint32]uint16
}

func newFakeMemory() *fakeMemory {
	return &fakeMemory{words: make(map[uint32]uint16)}
}

func (m *fakeMemory) write(addr uint32, words ...uint16) {
	for i, w := range words {
		m.words[addr+uint32(i)*2] = w
	}
}

func (m *fakeMemory) ReadU16(addr uint32) (uint16, error) {
	w, ok := m.words[addr]
	if !ok {
		return 0, fmt.Errorf("unmapped address %#08x", addr)
	}
	return w, nil
}

func (m *fakeMemory) ReadU8(addr uint32) (uint8, error) {
	w, err := m.ReadU16(addr &^ 1)
	return uint8(w >> (8 * (addr & 1))), err
}

func (m *fakeMemory) ReadU32(addr uint32) (uint32, error) {
	lo, err := m.ReadU16(addr)
	if err != nil {
		return 0, err
	}
	hi, err := m.ReadU16(addr + 2)
	return uint32(hi)<<16 | uint32(lo), err
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

func analyzeAt(t *testing.T, mem *fakeMemory, addr uint32) *frontend.Meta {
	t.Helper()
	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: addr}
	require.NoError(t, f.Analyze(m))
	return m
}

func TestAnalyzeConditionalBranch(t *testing.T) {
	mem := newFakeMemory()
	// bt +4 at 0x8c010000: branch to 0x8c010008, fall through to
	// 0x8c010002.
	mem.write(0x8c010000, 0x8902)

	m := analyzeAt(t, mem, 0x8c010000)
	assert.Equal(t, frontend.StaticTrue, m.BranchType)
	assert.Equal(t, uint32(0x8c010008), m.BranchAddr)
	assert.Equal(t, uint32(0x8c010002), m.NextAddr)
	assert.Equal(t, 1, m.NumInstrs)
	assert.Equal(t, 2, m.Size)
}

func TestAnalyzeStraightLineThenBranch(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0xe10a, // mov #10,r1
		0x7101, // add #1,r1
		0x8bfc, // bf back to 0x8c010000
	)

	m := analyzeAt(t, mem, 0x8c010000)
	assert.Equal(t, frontend.StaticFalse, m.BranchType)
	assert.Equal(t, uint32(0x8c010000), m.BranchAddr)
	assert.Equal(t, uint32(0x8c010006), m.NextAddr)
	assert.Equal(t, 3, m.NumInstrs)
	assert.Equal(t, 6, m.Size)
	assert.Equal(t, 4, m.NumCycles)
}

func TestAnalyzeDelaySlot(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0xa004, // bra 0x8c01000c
		0x0009, // nop (delay slot)
	)

	m := analyzeAt(t, mem, 0x8c010000)
	assert.Equal(t, frontend.Static, m.BranchType)
	assert.Equal(t, uint32(0x8c01000c), m.BranchAddr)
	assert.Equal(t, guest.InvalidAddr, m.NextAddr)
	assert.Equal(t, 2, m.NumInstrs)
	assert.Equal(t, 4, m.Size)
}

func TestAnalyzeDelaySlotRejectsDelayedBranch(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0xa004, // bra
		0xa000, // bra in the delay slot: illegal
	)

	f := New(mem, testRuntime)
	m := &frontend.Meta{GuestAddr: 0x8c010000}
	err := f.Analyze(m)
	require.Error(t, err)
	var derr DelaySlotError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, uint32(0x8c010002), derr.Addr)
}

func TestAnalyzeUnreadableEntry(t *testing.T) {
	f := New(newFakeMemory(), testRuntime)
	m := &frontend.Meta{GuestAddr: 0x8c010000}
	require.Error(t, f.Analyze(m))
}

func TestAnalyzeDynamicBranch(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0x400b, // jsr @r0
		0x0009, // nop
	)

	m := analyzeAt(t, mem, 0x8c010000)
	assert.Equal(t, frontend.Dynamic, m.BranchType)
	assert.Equal(t, guest.InvalidAddr, m.BranchAddr)
	assert.Equal(t, guest.InvalidAddr, m.NextAddr)
}

func translateSingle(t *testing.T, mem *fakeMemory, m *frontend.Meta) (*ir.IR, *frontend.Unit) {
	t.Helper()
	f := New(mem, testRuntime)
	b := ir.New(1 << 20)
	u := &frontend.Unit{Meta: m}
	require.NoError(t, f.Translate(b, u, true))
	require.NoError(t, ir.Verify(b))
	return b, u
}

func blockOps(blk *ir.Block) []op.Op {
	var out []op.Op
	for i := blk.Head(); i != nil; i = i.Next() {
		out = append(out, i.Op)
	}
	return out
}

func TestTranslatePreambleAndTerminator(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0x400b, // jsr @r0
		0x0009, // nop
	)
	m := analyzeAt(t, mem, 0x8c010000)
	b, u := translateSingle(t, mem, m)

	require.Equal(t, 1, b.NumBlocks())
	ops := blockOps(u.Block)

	// Preamble: yield check, interrupt check, cycle and instruction
	// accounting.
	assert.Equal(t, []op.Op{
		op.LoadContext, op.CmpSLE, op.CallCond,
		op.LoadContext, op.CmpNE, op.CallCond,
		op.Sub, op.StoreContext,
		op.LoadContext, op.Add, op.StoreContext,
	}, ops[:11])

	// Terminator: pc := dest, then the dynamic dispatch thunk.
	tail := u.Block.Tail()
	require.Equal(t, op.Branch, tail.Op)
	assert.Equal(t, uint64(testRuntime.DispatchDynamic), tail.Args[0].U64())
	storePC := tail.Prev()
	require.Equal(t, op.StoreContext, storePC.Op)
	assert.Equal(t, u.Dest, storePC.Args[1])
	require.NotNil(t, u.Dest)
}

func TestTranslateConditionalWithChildren(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000, 0x8902) // bt 0x8c010008
	mem.write(0x8c010002, 0x000b, 0x0009)
	mem.write(0x8c010008, 0x000b, 0x0009)

	f := New(mem, testRuntime)
	root := &frontend.Meta{GuestAddr: 0x8c010000}
	require.NoError(t, f.Analyze(root))
	taken := &frontend.Meta{GuestAddr: 0x8c010008}
	require.NoError(t, f.Analyze(taken))
	fall := &frontend.Meta{GuestAddr: 0x8c010002}
	require.NoError(t, f.Analyze(fall))

	u := &frontend.Unit{Meta: root}
	u.Branch = &frontend.Unit{Meta: taken, Parent: u}
	u.Next = &frontend.Unit{Meta: fall, Parent: u}

	b := ir.New(1 << 20)
	require.NoError(t, f.Translate(b, u, true))
	require.NoError(t, ir.Verify(b))

	require.Equal(t, 3, b.NumBlocks())
	require.NotNil(t, u.Cond)

	tail := u.Block.Tail()
	require.Equal(t, op.Branch, tail.Op)
	assert.Equal(t, u.Next.Block, tail.Args[0].Blk)
	cond := tail.Prev()
	require.Equal(t, op.BranchTrue, cond.Op)
	assert.Equal(t, u.Cond, cond.Args[0])
	assert.Equal(t, u.Branch.Block, cond.Args[1].Blk)
}

func TestTranslateConditionalWithoutChildUsesStub(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000, 0x8902) // bt 0x8c010008, no children compiled

	m := analyzeAt(t, mem, 0x8c010000)
	b, u := translateSingle(t, mem, m)

	// The main block plus the out-of-line static-dispatch stub.
	require.Equal(t, 2, b.NumBlocks())
	stub := u.Block.Next()
	sops := blockOps(stub)
	require.Equal(t, []op.Op{op.StoreContext, op.CallNoret}, sops)
	assert.Equal(t, uint32(0x8c010008), stub.Head().Args[1].U32())
}

func TestTranslateFastmemSelectsFastLoads(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000,
		0x6512, // mov.l @r1,r5
		0x000b, // rts
		0x0009, // nop
	)
	m := analyzeAt(t, mem, 0x8c010000)

	f := New(mem, testRuntime)
	for _, tc := range []struct {
		fastmem bool
		want    op.Op
	}{
		{true, op.LoadFast},
		{false, op.LoadSlow},
	} {
		b := ir.New(1 << 20)
		u := &frontend.Unit{Meta: m}
		require.NoError(t, f.Translate(b, u, tc.fastmem))
		assert.Contains(t, blockOps(u.Block), tc.want)
	}
}

func TestDump(t *testing.T) {
	mem := newFakeMemory()
	mem.write(0x8c010000, 0xe10a, 0x8902, 0x0009)

	f := New(mem, testRuntime)
	var sb strings.Builder
	require.NoError(t, f.Dump(&sb, 0x8c010000, 6))
	out := sb.String()
	assert.Contains(t, out, "mov #10,r1")
	assert.Contains(t, out, "bt 0x8c01000a")
	assert.Contains(t, out, "nop")
}
