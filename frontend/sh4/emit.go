// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sh4

import (
	"github.com/go-dynarec/drift/ir"
)

// emitInstr lowers one non-terminator instruction. The move/ALU/compare/
// load/store subset translates directly; everything else goes through the
// interpreter fallback.
func (f *Frontend) emitInstr(b *ir.IR, addr uint32, raw uint16, fastmem bool) {
	n := int(raw>>8) & 0xf
	m := int(raw>>4) & 0xf

	loadR := func(r int) *ir.Value { return b.LoadContext(offR(r), ir.TypeI32) }
	storeR := func(r int, v *ir.Value) { b.StoreContext(offR(r), v) }
	setT := func(cond *ir.Value) { b.StoreContext(offT, b.ZExt(cond, ir.TypeI32)) }

	switch {
	case raw == 0x0009: // nop

	case raw == 0x0008: // clrt
		b.StoreContext(offT, b.ConstI32(0))
	case raw == 0x0018: // sett
		b.StoreContext(offT, b.ConstI32(1))

	case raw&0xf000 == 0xe000: // mov #imm,rn
		storeR(n, b.ConstI32(sext8(raw)))
	case raw&0xf00f == 0x6003: // mov rm,rn
		storeR(n, loadR(m))

	case raw&0xf00f == 0x300c: // add rm,rn
		storeR(n, b.Add(loadR(n), loadR(m)))
	case raw&0xf000 == 0x7000: // add #imm,rn
		storeR(n, b.Add(loadR(n), b.ConstI32(sext8(raw))))
	case raw&0xf00f == 0x3008: // sub rm,rn
		storeR(n, b.Sub(loadR(n), loadR(m)))
	case raw&0xf00f == 0x2009: // and rm,rn
		storeR(n, b.And(loadR(n), loadR(m)))
	case raw&0xf00f == 0x200b: // or rm,rn
		storeR(n, b.Or(loadR(n), loadR(m)))
	case raw&0xf00f == 0x200a: // xor rm,rn
		storeR(n, b.Xor(loadR(n), loadR(m)))
	case raw&0xf00f == 0x6007: // not rm,rn
		storeR(n, b.Not(loadR(m)))
	case raw&0xf00f == 0x600b: // neg rm,rn
		storeR(n, b.Neg(loadR(m)))

	case raw&0xf0ff == 0x4000: // shll rn
		rn := loadR(n)
		setT(b.CmpNE(b.And(rn, b.ConstU32(0x80000000)), b.ConstI32(0)))
		storeR(n, b.Shl(rn, b.ConstI32(1)))
	case raw&0xf0ff == 0x4001: // shlr rn
		rn := loadR(n)
		setT(b.CmpNE(b.And(rn, b.ConstI32(1)), b.ConstI32(0)))
		storeR(n, b.LShr(rn, b.ConstI32(1)))
	case raw&0xf0ff == 0x4021: // shar rn
		rn := loadR(n)
		setT(b.CmpNE(b.And(rn, b.ConstI32(1)), b.ConstI32(0)))
		storeR(n, b.AShr(rn, b.ConstI32(1)))
	case raw&0xf0ff == 0x4008: // shll2 rn
		storeR(n, b.Shl(loadR(n), b.ConstI32(2)))
	case raw&0xf0ff == 0x4018: // shll8 rn
		storeR(n, b.Shl(loadR(n), b.ConstI32(8)))
	case raw&0xf0ff == 0x4028: // shll16 rn
		storeR(n, b.Shl(loadR(n), b.ConstI32(16)))

	case raw&0xf00f == 0x3000: // cmp/eq rm,rn
		setT(b.CmpEQ(loadR(n), loadR(m)))
	case raw&0xff00 == 0x8800: // cmp/eq #imm,r0
		setT(b.CmpEQ(loadR(0), b.ConstI32(sext8(raw))))
	case raw&0xf00f == 0x3003: // cmp/ge rm,rn
		setT(b.CmpSGE(loadR(n), loadR(m)))
	case raw&0xf00f == 0x3007: // cmp/gt rm,rn
		setT(b.CmpSGT(loadR(n), loadR(m)))
	case raw&0xf00f == 0x3002: // cmp/hs rm,rn
		setT(b.CmpUGE(loadR(n), loadR(m)))
	case raw&0xf00f == 0x3006: // cmp/hi rm,rn
		setT(b.CmpUGT(loadR(n), loadR(m)))
	case raw&0xf0ff == 0x4015: // cmp/pl rn
		setT(b.CmpSGT(loadR(n), b.ConstI32(0)))
	case raw&0xf0ff == 0x4011: // cmp/pz rn
		setT(b.CmpSGE(loadR(n), b.ConstI32(0)))

	case raw&0xf00f == 0x6002: // mov.l @rm,rn
		storeR(n, b.LoadGuest(loadR(m), ir.TypeI32, fastmem))
	case raw&0xf00f == 0x6001: // mov.w @rm,rn
		storeR(n, b.SExt(b.LoadGuest(loadR(m), ir.TypeI16, fastmem), ir.TypeI32))
	case raw&0xf00f == 0x6000: // mov.b @rm,rn
		storeR(n, b.SExt(b.LoadGuest(loadR(m), ir.TypeI8, fastmem), ir.TypeI32))
	case raw&0xf00f == 0x2002: // mov.l rm,@rn
		b.StoreGuest(loadR(n), loadR(m), fastmem)
	case raw&0xf00f == 0x2001: // mov.w rm,@rn
		b.StoreGuest(loadR(n), b.Trunc(loadR(m), ir.TypeI16), fastmem)
	case raw&0xf00f == 0x2000: // mov.b rm,@rn
		b.StoreGuest(loadR(n), b.Trunc(loadR(m), ir.TypeI8), fastmem)

	case raw&0xf000 == 0xd000: // mov.l @(disp,pc),rn
		ea := (addr+4)&^3 + uint32(raw&0xff)*4
		storeR(n, b.LoadGuest(b.ConstU32(ea), ir.TypeI32, fastmem))
	case raw&0xf000 == 0x9000: // mov.w @(disp,pc),rn
		ea := addr + 4 + uint32(raw&0xff)*2
		storeR(n, b.SExt(b.LoadGuest(b.ConstU32(ea), ir.TypeI16, fastmem), ir.TypeI32))

	case raw&0xf0ff == 0x002a: // sts pr,rn
		storeR(n, b.LoadContext(offPR, ir.TypeI32))
	case raw&0xf0ff == 0x402a: // lds rm,pr
		b.StoreContext(offPR, loadR(n))

	default:
		b.Fallback(b.ConstPtr(f.rt.Fallback), addr, uint32(raw))
	}
}
