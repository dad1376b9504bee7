// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package armv4

import (
	"github.com/go-dynarec/drift/ir"
)

// rotateImm decodes a data-processing immediate operand: an 8-bit value
// rotated right by twice the 4-bit rotate field.
func rotateImm(raw uint32) uint32 {
	imm := raw & 0xff
	rot := (raw >> 8 & 0xf) * 2
	return imm>>rot | imm<<(32-rot)
}

// emitInstr lowers one non-terminator instruction. Only the unconditional,
// flag-free data-processing and word/byte load/store subset translates
// directly; conditional instructions and flag writers go through the
// interpreter fallback, which handles them completely.
func (f *Frontend) emitInstr(b *ir.IR, addr uint32, raw uint32, fastmem bool) {
	if cond(raw) != condAL {
		f.emitFallback(b, addr, raw)
		return
	}

	loadR := func(r int) *ir.Value {
		if r == 15 {
			// Reading the PC yields the fetch address plus 8.
			return b.ConstU32(addr + 8)
		}
		return b.LoadContext(offR(r), ir.TypeI32)
	}
	rd := int(raw >> 12 & 0xf)
	rn := int(raw >> 16 & 0xf)

	switch {
	case raw&0x0ff00000 == 0x03a00000: // mov rd, #imm
		b.StoreContext(offR(rd), b.ConstU32(rotateImm(raw)))
	case raw&0x0ff00000 == 0x03e00000: // mvn rd, #imm
		b.StoreContext(offR(rd), b.ConstU32(^rotateImm(raw)))
	case raw&0x0ff00ff0 == 0x01a00000: // mov rd, rm (no shift)
		b.StoreContext(offR(rd), loadR(int(raw&0xf)))

	case raw&0x0ff00000 == 0x02800000: // add rd, rn, #imm
		b.StoreContext(offR(rd), b.Add(loadR(rn), b.ConstU32(rotateImm(raw))))
	case raw&0x0ff00000 == 0x02400000: // sub rd, rn, #imm
		b.StoreContext(offR(rd), b.Sub(loadR(rn), b.ConstU32(rotateImm(raw))))
	case raw&0x0ff00000 == 0x02000000: // and rd, rn, #imm
		b.StoreContext(offR(rd), b.And(loadR(rn), b.ConstU32(rotateImm(raw))))
	case raw&0x0ff00000 == 0x03800000: // orr rd, rn, #imm
		b.StoreContext(offR(rd), b.Or(loadR(rn), b.ConstU32(rotateImm(raw))))
	case raw&0x0ff00000 == 0x02200000: // eor rd, rn, #imm
		b.StoreContext(offR(rd), b.Xor(loadR(rn), b.ConstU32(rotateImm(raw))))

	case raw&0x0ff00ff0 == 0x00800000: // add rd, rn, rm
		b.StoreContext(offR(rd), b.Add(loadR(rn), loadR(int(raw&0xf))))
	case raw&0x0ff00ff0 == 0x00400000: // sub rd, rn, rm
		b.StoreContext(offR(rd), b.Sub(loadR(rn), loadR(int(raw&0xf))))
	case raw&0x0ff00ff0 == 0x00000000 && raw&0x0c000000 == 0: // and rd, rn, rm
		b.StoreContext(offR(rd), b.And(loadR(rn), loadR(int(raw&0xf))))
	case raw&0x0ff00ff0 == 0x01800000: // orr rd, rn, rm
		b.StoreContext(offR(rd), b.Or(loadR(rn), loadR(int(raw&0xf))))
	case raw&0x0ff00ff0 == 0x00200000: // eor rd, rn, rm
		b.StoreContext(offR(rd), b.Xor(loadR(rn), loadR(int(raw&0xf))))

	case raw&0x0ff00000 == 0x05900000: // ldr rd, [rn, #imm]
		ea := b.Add(loadR(rn), b.ConstU32(raw&0xfff))
		b.StoreContext(offR(rd), b.LoadGuest(ea, ir.TypeI32, fastmem))
	case raw&0x0ff00000 == 0x05800000: // str rd, [rn, #imm]
		ea := b.Add(loadR(rn), b.ConstU32(raw&0xfff))
		b.StoreGuest(ea, loadR(rd), fastmem)
	case raw&0x0ff00000 == 0x05d00000: // ldrb rd, [rn, #imm]
		ea := b.Add(loadR(rn), b.ConstU32(raw&0xfff))
		b.StoreContext(offR(rd), b.ZExt(b.LoadGuest(ea, ir.TypeI8, fastmem), ir.TypeI32))
	case raw&0x0ff00000 == 0x05c00000: // strb rd, [rn, #imm]
		ea := b.Add(loadR(rn), b.ConstU32(raw&0xfff))
		b.StoreGuest(ea, b.Trunc(loadR(rd), ir.TypeI8), fastmem)

	default:
		f.emitFallback(b, addr, raw)
	}
}

func (f *Frontend) emitFallback(b *ir.IR, addr uint32, raw uint32) {
	b.StoreContext(offPC, b.ConstU32(addr))
	b.Fallback(b.ConstPtr(f.rt.Fallback), addr, raw)
}
