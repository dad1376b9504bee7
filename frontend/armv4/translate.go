// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package armv4

import (
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/ir"
)

// Translate walks the compile-unit tree rooted at root and emits one IR
// block per unit.
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

func (f *Frontend) emitPreamble(b *ir.IR, m *frontend.Meta) {
	cycles := b.LoadContext(offCycles, ir.TypeI32)
	b.CallCond(b.CmpSLE(cycles, b.ConstI32(0)), b.ConstPtr(f.rt.DispatchLeave))

	irq := b.LoadContext(offIRQ, ir.TypeI64)
	b.CallCond(b.CmpNE(irq, b.ConstI64(0)), b.ConstPtr(f.rt.InterruptCheck))

	b.StoreContext(offCycles, b.Sub(cycles, b.ConstI32(int32(m.NumCycles))))
	ran := b.LoadContext(offInstrs, ir.TypeI64)
	b.StoreContext(offInstrs, b.Add(ran, b.ConstI64(int64(m.NumInstrs))))
}

func (f *Frontend) emitBody(b *ir.IR, u *frontend.Unit, fastmem bool) error {
	m := u.Meta
	addr := m.GuestAddr
	end := m.GuestAddr + uint32(m.Size)
	for addr < end {
		raw, err := f.mem.ReadU32(addr)
		if err != nil {
			return errors.Wrapf(err, "armv4: translate %#08x", addr)
		}
		last := addr+4 == end
		if last && m.BranchType != frontend.FallThrough {
			f.emitBranchBody(b, u, addr, raw)
			return nil
		}
		f.emitInstr(b, addr, raw, fastmem)
		addr += 4
	}
	return nil
}

func (f *Frontend) emitBranchBody(b *ir.IR, u *frontend.Unit, addr uint32, raw uint32) {
	m := u.Meta
	if m.BranchType.Conditional() {
		u.Cond = condValue(b, cond(raw))
	}

	switch {
	case isBranch(raw):
		if isBranchLink(raw) {
			lr := b.ConstU32(addr + 4)
			if m.BranchType.Conditional() {
				// The link register is written only on the taken path.
				lr = b.Select(u.Cond, lr, b.LoadContext(offR(14), ir.TypeI32))
			}
			b.StoreContext(offR(14), lr)
		}

	case isBranchExchange(raw):
		u.Dest = b.LoadContext(offR(int(raw&0xf)), ir.TypeI32)

	default:
		// swi, pc-writing data processing, ldr/ldm into pc and the
		// undefined space: the fallback interprets the instruction
		// (condition included) and leaves the continuation PC in the
		// context.
		b.StoreContext(offPC, b.ConstU32(addr))
		b.Fallback(b.ConstPtr(f.rt.Fallback), addr, raw)
		u.Dest = b.LoadContext(offPC, ir.TypeI32)
	}
}

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

// condValue evaluates a condition code against the CPSR flag bits,
// producing an i8 boolean.
func condValue(b *ir.IR, cc uint32) *ir.Value {
	cpsr := b.LoadContext(offCPSR, ir.TypeI32)
	flag := func(bit uint) *ir.Value {
		return b.And(b.LShr(cpsr, b.ConstI32(int32(bit))), b.ConstI32(1))
	}
	n, z, c, v := flag(31), flag(30), flag(29), flag(28)
	one, zero := b.ConstI32(1), b.ConstI32(0)

	switch cc {
	case 0x0: // eq
		return b.CmpNE(z, zero)
	case 0x1: // ne
		return b.CmpEQ(z, zero)
	case 0x2: // cs
		return b.CmpNE(c, zero)
	case 0x3: // cc
		return b.CmpEQ(c, zero)
	case 0x4: // mi
		return b.CmpNE(n, zero)
	case 0x5: // pl
		return b.CmpEQ(n, zero)
	case 0x6: // vs
		return b.CmpNE(v, zero)
	case 0x7: // vc
		return b.CmpEQ(v, zero)
	case 0x8: // hi: c && !z
		return b.CmpNE(b.And(c, b.Xor(z, one)), zero)
	case 0x9: // ls: !c || z
		return b.CmpNE(b.Or(b.Xor(c, one), z), zero)
	case 0xa: // ge: n == v
		return b.CmpEQ(n, v)
	case 0xb: // lt
		return b.CmpNE(n, v)
	case 0xc: // gt: !z && n == v
		eq := b.ZExt(b.CmpEQ(n, v), ir.TypeI32)
		return b.CmpNE(b.And(b.Xor(z, one), eq), zero)
	case 0xd: // le: z || n != v
		ne := b.ZExt(b.CmpNE(n, v), ir.TypeI32)
		return b.CmpNE(b.Or(z, ne), zero)
	}
	// al
	return b.CmpEQ(zero, zero)
}
