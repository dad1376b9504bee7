// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/exc"
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/passes"
)

func TestCodeBufferAccounting(t *testing.T) {
	buf, err := newCodeBuffer(minBufferSize)
	require.NoError(t, err)
	defer buf.close()

	a1, err := buf.alloc([]byte{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, buf.addr(0), a1)
	assert.Equal(t, 4, buf.consumed)
	assert.Equal(t, []byte{1, 2, 3, 4}, []byte(buf.mem[:4]))

	a2, err := buf.alloc([]byte{5, 6})
	require.NoError(t, err)
	// The second artifact starts at the next aligned offset.
	assert.Equal(t, buf.addr(allocationAlignment), a2)
	assert.Equal(t, allocationAlignment+2, buf.consumed)

	assert.True(t, buf.contains(a2))
	assert.True(t, buf.contains(a2+1))
	assert.False(t, buf.contains(buf.addr(0)+uint64(len(buf.mem))))

	buf.reset()
	assert.Zero(t, buf.consumed)
	assert.Equal(t, len(buf.mem), buf.remaining())
}

func TestCodeBufferOverflow(t *testing.T) {
	buf, err := newCodeBuffer(minBufferSize)
	require.NoError(t, err)
	defer buf.close()

	big := make([]byte, minBufferSize+1)
	_, err = buf.alloc(big)
	assert.Equal(t, backend.ErrBufferFull, err)
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(Config{
		CodeBytes:    minBufferSize,
		LocalsOffset: 0x200,
		SlowLoad:     0x7000,
		SlowStore:    0x7100,
	})
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

// buildBody emits a small allocated body with a fastmem load so assembly
// produces a patchable site.
func buildBody(t *testing.T, b *Backend, irb *ir.IR) {
	t.Helper()
	blk := irb.NewBlock()
	irb.SetCurrentBlock(blk)
	addr := irb.LoadContext(0x0, ir.TypeI32)
	v := irb.LoadFast(addr, ir.TypeI32)
	irb.StoreContext(0x4, v)
	irb.Branch(irb.ConstPtr(0x2000))
	require.NoError(t, passes.NewRegisterAllocation(b.Registers()).Run(irb))
}

func TestAssembleRegistersAndSites(t *testing.T) {
	b := newTestBackend(t)

	irb := ir.New(1 << 20)
	buildBody(t, b, irb)

	asmOut, err := b.Assemble(irb, 0x8c010000, true)
	require.NoError(t, err)
	assert.NotZero(t, asmOut.Addr)
	assert.Positive(t, asmOut.Size)
	assert.True(t, b.buf.contains(asmOut.Addr))

	// The fastmem load produced exactly one patchable site inside the
	// artifact.
	require.Len(t, b.sites, 1)
	for pc, s := range b.sites {
		assert.True(t, pc >= asmOut.Addr && pc < asmOut.Addr+uint64(asmOut.Size))
		assert.True(t, s.pad > pc)
		assert.GreaterOrEqual(t, s.length, 5)
	}
}

func TestHandleExceptionPatchesSite(t *testing.T) {
	b := newTestBackend(t)

	irb := ir.New(1 << 20)
	buildBody(t, b, irb)
	_, err := b.Assemble(irb, 0x8c010000, true)
	require.NoError(t, err)

	var pc uint64
	var s site
	for k, v := range b.sites {
		pc, s = k, v
	}

	require.True(t, b.HandleException(&exc.Exception{PC: pc}))
	// The site now starts with a jmp rel32 to the pad.
	code := b.buf.bytesAt(pc, s.length)
	assert.Equal(t, byte(0xe9), code[0])
	rel := int32(uint32(code[1]) | uint32(code[2])<<8 | uint32(code[3])<<16 | uint32(code[4])<<24)
	assert.Equal(t, s.pad, uint64(int64(pc)+5+int64(rel)))

	// A second fault at the same PC is no longer a known site.
	assert.False(t, b.HandleException(&exc.Exception{PC: pc}))
	// Unknown PCs are declined.
	assert.False(t, b.HandleException(&exc.Exception{PC: 0xdead}))
}

func TestAssembleOverflowReportsBufferFull(t *testing.T) {
	b := newTestBackend(t)
	b.buf.consumed = len(b.buf.mem) - 8

	irb := ir.New(1 << 20)
	buildBody(t, b, irb)
	_, err := b.Assemble(irb, 0x8c010000, true)
	assert.Equal(t, backend.ErrBufferFull, err)

	b.Reset()
	assert.Zero(t, b.buf.consumed)
	assert.Empty(t, b.sites)
}

func TestRegistersBank(t *testing.T) {
	b := newTestBackend(t)
	regs := b.Registers()
	require.Len(t, regs, len(intBank)+len(fpBank))
	assert.Equal(t, "rdx", regs[0].Name)
	assert.NotZero(t, regs[0].Mask&ir.TypeI32.Mask())
	assert.Zero(t, regs[0].Mask&ir.TypeF32.Mask())
	last := regs[len(regs)-1]
	assert.NotZero(t, last.Mask&ir.TypeF64.Mask())
}

func TestDumpCode(t *testing.T) {
	b := newTestBackend(t)

	irb := ir.New(1 << 20)
	buildBody(t, b, irb)
	out, err := b.Assemble(irb, 0x8c010000, false)
	require.NoError(t, err)

	var sb strings.Builder
	require.NoError(t, b.DumpCode(&sb, out.Addr, out.Size))
	assert.NotEmpty(t, sb.String())
}
