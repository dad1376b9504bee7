// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sh4

import (
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/ir"
)

// Translate walks the compile-unit tree rooted at root and emits one IR
// block per unit. Children are translated before the parent's terminator
// so conditional and static branches can target their blocks directly.
func (f *Frontend) Translate(b *ir.IR, root *frontend.Unit, fastmem bool) error {
	return f.translateUnit(b, root, fastmem)
}

func (f *Frontend) translateUnit(b *ir.IR, u *frontend.Unit, fastmem bool) error {
	m := u.Meta
	u.Block = b.NewBlock()
	b.SetCurrentBlock(u.Block)

	f.emitPreamble(b, m)
	if err := f.emitBody(b, u, fastmem); err != nil {
		return err
	}

	// Translate the children out of line, then come back for the
	// terminator.
	saved := b.GetInsertPoint()
	if u.Branch != nil {
		if err := f.translateUnit(b, u.Branch, fastmem); err != nil {
			return err
		}
	}
	if u.Next != nil {
		if err := f.translateUnit(b, u.Next, fastmem); err != nil {
			return err
		}
	}
	b.SetInsertPoint(saved)

	f.emitTerminator(b, u)
	return nil
}

// emitPreamble emits the per-block entry sequence: the yield check, the
// pending-interrupt check and the cycle/instruction accounting.
func (f *Frontend) emitPreamble(b *ir.IR, m *frontend.Meta) {
	cycles := b.LoadContext(offCycles, ir.TypeI32)
	b.CallCond(b.CmpSLE(cycles, b.ConstI32(0)), b.ConstPtr(f.rt.DispatchLeave))

	irq := b.LoadContext(offIRQ, ir.TypeI64)
	b.CallCond(b.CmpNE(irq, b.ConstI64(0)), b.ConstPtr(f.rt.InterruptCheck))

	b.StoreContext(offCycles, b.Sub(cycles, b.ConstI32(int32(m.NumCycles))))
	ran := b.LoadContext(offInstrs, ir.TypeI64)
	b.StoreContext(offInstrs, b.Add(ran, b.ConstI64(int64(m.NumInstrs))))
}

// emitBody lowers the block's instructions up to and including the
// terminator's side effects, leaving u.Cond and u.Dest populated for the
// terminator emission.
func (f *Frontend) emitBody(b *ir.IR, u *frontend.Unit, fastmem bool) error {
	m := u.Meta
	addr := m.GuestAddr
	end := m.GuestAddr + uint32(m.Size)
	for addr < end {
		raw, err := f.mem.ReadU16(addr)
		if err != nil {
			return errors.Wrapf(err, "sh4: translate %#08x", addr)
		}
		if !decodable(raw) {
			// Undecodable terminator: the fallback raises the
			// illegal-instruction trap and leaves the continuation PC in
			// the context.
			b.StoreContext(offPC, b.ConstU32(addr))
			b.Fallback(b.ConstPtr(f.rt.Fallback), addr, uint32(raw))
			u.Dest = b.LoadContext(offPC, ir.TypeI32)
			return nil
		}
		br := classify(raw, addr)
		if !br.terminator {
			f.emitInstr(b, addr, raw, fastmem)
			addr += 2
			continue
		}
		return f.emitBranchBody(b, u, addr, raw, br, fastmem)
	}
	return nil
}

// emitBranchBody lowers the terminating branch: the condition and the
// dynamic destination are evaluated before the delay slot runs, matching
// the guest's branch semantics.
func (f *Frontend) emitBranchBody(b *ir.IR, u *frontend.Unit, addr uint32, raw uint16, br branchInfo, fastmem bool) error {
	m := u.Meta
	n := int(raw>>8) & 0xf

	if m.BranchType.Conditional() {
		u.Cond = b.CmpNE(b.LoadContext(offT, ir.TypeI32), b.ConstI32(0))
	}

	switch {
	case raw&0xf0ff == 0x402b: // jmp @rn
		u.Dest = b.LoadContext(offR(n), ir.TypeI32)
	case raw&0xf0ff == 0x400b: // jsr @rn
		u.Dest = b.LoadContext(offR(n), ir.TypeI32)
		b.StoreContext(offPR, b.ConstU32(addr+4))
	case raw&0xf0ff == 0x0023: // braf rn
		u.Dest = b.Add(b.LoadContext(offR(n), ir.TypeI32), b.ConstU32(addr+4))
	case raw&0xf0ff == 0x0003: // bsrf rn
		u.Dest = b.Add(b.LoadContext(offR(n), ir.TypeI32), b.ConstU32(addr+4))
		b.StoreContext(offPR, b.ConstU32(addr+4))
	case raw == 0x000b: // rts
		u.Dest = b.LoadContext(offPR, ir.TypeI32)
	case raw == 0x002b: // rte
		u.Dest = b.LoadContext(offSPC, ir.TypeI32)
		b.StoreContext(offSR, b.LoadContext(offSSR, ir.TypeI32))
	case raw&0xf000 == 0xb000: // bsr
		b.StoreContext(offPR, b.ConstU32(addr+4))
	case m.BranchType == frontend.FallThrough:
		// Interrupt-state changers (ldc sr) execute through the fallback
		// and then leave the block.
		b.Fallback(b.ConstPtr(f.rt.Fallback), addr, uint32(raw))
	case m.BranchType == frontend.Dynamic && !br.delay:
		// trapa, sleep and undecodable encodings run through the
		// fallback, which leaves the continuation PC in the context.
		b.StoreContext(offPC, b.ConstU32(addr))
		b.Fallback(b.ConstPtr(f.rt.Fallback), addr, uint32(raw))
		u.Dest = b.LoadContext(offPC, ir.TypeI32)
		return nil
	}

	if br.delay {
		slot, err := f.mem.ReadU16(addr + 2)
		if err != nil {
			return errors.Wrapf(err, "sh4: translate delay slot %#08x", addr+2)
		}
		f.emitInstr(b, addr+2, slot, fastmem)
	}
	return nil
}

// emitTerminator closes the unit's block per the branch classification.
func (f *Frontend) emitTerminator(b *ir.IR, u *frontend.Unit) {
	m := u.Meta
	switch m.BranchType {
	case frontend.FallThrough:
		b.StoreContext(offPC, b.ConstU32(m.GuestAddr+uint32(m.Size)))
		b.Branch(b.ConstPtr(f.rt.DispatchDynamic))

	case frontend.Static:
		if u.Branch != nil {
			b.Branch(b.ConstBlock(u.Branch.Block))
			return
		}
		b.StoreContext(offPC, b.ConstU32(m.BranchAddr))
		b.CallNoret(b.ConstPtr(f.rt.DispatchStatic))

	case frontend.StaticTrue, frontend.StaticFalse:
		taken := f.staticTarget(b, u.Branch, m.BranchAddr)
		if m.BranchType == frontend.StaticTrue {
			b.BranchTrue(u.Cond, taken)
		} else {
			b.BranchFalse(u.Cond, taken)
		}
		if u.Next != nil {
			b.Branch(b.ConstBlock(u.Next.Block))
			return
		}
		b.StoreContext(offPC, b.ConstU32(m.NextAddr))
		b.CallNoret(b.ConstPtr(f.rt.DispatchStatic))

	case frontend.Dynamic:
		b.StoreContext(offPC, u.Dest)
		b.Branch(b.ConstPtr(f.rt.DispatchDynamic))

	case frontend.DynamicTrue, frontend.DynamicFalse:
		next := b.ConstU32(m.NextAddr)
		var pc *ir.Value
		if m.BranchType == frontend.DynamicTrue {
			pc = b.Select(u.Cond, u.Dest, next)
		} else {
			pc = b.Select(u.Cond, next, u.Dest)
		}
		b.StoreContext(offPC, pc)
		b.Branch(b.ConstPtr(f.rt.DispatchDynamic))
	}
}

// staticTarget resolves the taken path of a conditional static branch:
// the child's block when it was compiled inline, otherwise an out-of-line
// stub that dispatches to the target's guest address.
func (f *Frontend) staticTarget(b *ir.IR, child *frontend.Unit, branchAddr uint32) *ir.Value {
	if child != nil {
		return b.ConstBlock(child.Block)
	}
	saved := b.GetInsertPoint()
	stub := b.NewBlock()
	b.SetCurrentBlock(stub)
	b.StoreContext(offPC, b.ConstU32(branchAddr))
	b.CallNoret(b.ConstPtr(f.rt.DispatchStatic))
	b.SetInsertPoint(saved)
	return b.ConstBlock(stub)
}
