// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"math"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/obj"
	"github.com/twitchyliquid64/golang-asm/obj/x86"
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

// Width-dispatched opcode tables, indexed by ir.Type. Integer values
// compute at their own width so the upper register bits of an i32 stay
// zero, which the fastmem addressing mode relies on.
var (
	movOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AMOVB, ir.TypeI16: x86.AMOVW,
		ir.TypeI32: x86.AMOVL, ir.TypeI64: x86.AMOVQ,
		ir.TypeF32: x86.AMOVSS, ir.TypeF64: x86.AMOVSD,
	}
	// Register-to-register integer moves widen with zero extension so a
	// narrow value never carries junk in its upper bits.
	movzxOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AMOVBQZX, ir.TypeI16: x86.AMOVWQZX,
		ir.TypeI32: x86.AMOVL, ir.TypeI64: x86.AMOVQ,
	}
	addOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AADDB, ir.TypeI16: x86.AADDW,
		ir.TypeI32: x86.AADDL, ir.TypeI64: x86.AADDQ,
	}
	subOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ASUBB, ir.TypeI16: x86.ASUBW,
		ir.TypeI32: x86.ASUBL, ir.TypeI64: x86.ASUBQ,
	}
	andOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AANDB, ir.TypeI16: x86.AANDW,
		ir.TypeI32: x86.AANDL, ir.TypeI64: x86.AANDQ,
	}
	orOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AORB, ir.TypeI16: x86.AORW,
		ir.TypeI32: x86.AORL, ir.TypeI64: x86.AORQ,
	}
	xorOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.AXORB, ir.TypeI16: x86.AXORW,
		ir.TypeI32: x86.AXORL, ir.TypeI64: x86.AXORQ,
	}
	cmpOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ACMPB, ir.TypeI16: x86.ACMPW,
		ir.TypeI32: x86.ACMPL, ir.TypeI64: x86.ACMPQ,
	}
	imulOps = map[ir.Type]obj.As{
		ir.TypeI16: x86.AIMULW, ir.TypeI32: x86.AIMULL, ir.TypeI64: x86.AIMULQ,
	}
	shlOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ASHLB, ir.TypeI16: x86.ASHLW,
		ir.TypeI32: x86.ASHLL, ir.TypeI64: x86.ASHLQ,
	}
	shrOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ASHRB, ir.TypeI16: x86.ASHRW,
		ir.TypeI32: x86.ASHRL, ir.TypeI64: x86.ASHRQ,
	}
	sarOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ASARB, ir.TypeI16: x86.ASARW,
		ir.TypeI32: x86.ASARL, ir.TypeI64: x86.ASARQ,
	}
	negOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ANEGB, ir.TypeI16: x86.ANEGW,
		ir.TypeI32: x86.ANEGL, ir.TypeI64: x86.ANEGQ,
	}
	notOps = map[ir.Type]obj.As{
		ir.TypeI8: x86.ANOTB, ir.TypeI16: x86.ANOTW,
		ir.TypeI32: x86.ANOTL, ir.TypeI64: x86.ANOTQ,
	}
	setOps = map[op.Op]obj.As{
		op.CmpEQ: x86.ASETEQ, op.CmpNE: x86.ASETNE,
		op.CmpSGE: x86.ASETGE, op.CmpSGT: x86.ASETGT,
		op.CmpSLE: x86.ASETLE, op.CmpSLT: x86.ASETLT,
		op.CmpUGE: x86.ASETCC, op.CmpUGT: x86.ASETHI,
		op.CmpULE: x86.ASETLS, op.CmpULT: x86.ASETCS,
	}
	fsetOps = map[op.Op]obj.As{
		op.FCmpEQ: x86.ASETEQ, op.FCmpNE: x86.ASETNE,
		op.FCmpGE: x86.ASETCC, op.FCmpGT: x86.ASETHI,
		op.FCmpLE: x86.ASETLS, op.FCmpLT: x86.ASETCS,
	}
	faddOps = map[ir.Type]obj.As{ir.TypeF32: x86.AADDSS, ir.TypeF64: x86.AADDSD}
	fsubOps = map[ir.Type]obj.As{ir.TypeF32: x86.ASUBSS, ir.TypeF64: x86.ASUBSD}
	fmulOps = map[ir.Type]obj.As{ir.TypeF32: x86.AMULSS, ir.TypeF64: x86.AMULSD}
	fdivOps = map[ir.Type]obj.As{ir.TypeF32: x86.ADIVSS, ir.TypeF64: x86.ADIVSD}
)

// pendingSite is a fastmem access awaiting its pad and resume anchors.
type pendingSite struct {
	access *obj.Prog
	after  *obj.Prog
	pad    *obj.Prog

	// The pad recomputes the access with these.
	load    bool
	addrReg int16
	valReg  int16
	size    int
}

type emitter struct {
	backend *Backend
	bld     *asm.Builder
	fastmem bool

	anchors   map[*ir.Block]*obj.Prog
	fastSites []*pendingSite
	needAfter []*pendingSite
}

func newEmitter(b *Backend, bld *asm.Builder, fastmem bool) *emitter {
	return &emitter{
		backend: b,
		bld:     bld,
		fastmem: fastmem,
		anchors: make(map[*ir.Block]*obj.Prog),
	}
}

// prog allocates and appends an instruction, resolving any fastmem sites
// waiting for their resume anchor.
func (e *emitter) prog(as obj.As) *obj.Prog {
	p := e.bld.NewProg()
	p.As = as
	e.bld.AddInstruction(p)
	for _, s := range e.needAfter {
		s.after = p
	}
	e.needAfter = e.needAfter[:0]
	return p
}

func (e *emitter) rr(as obj.As, src, dst int16) *obj.Prog {
	p := e.prog(as)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	return p
}

func (e *emitter) ri(as obj.As, imm int64, dst int16) *obj.Prog {
	p := e.prog(as)
	p.From.Type = obj.TYPE_CONST
	p.From.Offset = imm
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	return p
}

// mr loads dst from [base+offset].
func (e *emitter) mr(as obj.As, base int16, offset int64, dst int16) *obj.Prog {
	p := e.prog(as)
	p.From.Type = obj.TYPE_MEM
	p.From.Reg = base
	p.From.Offset = offset
	p.To.Type = obj.TYPE_REG
	p.To.Reg = dst
	return p
}

// rm stores src to [base+offset].
func (e *emitter) rm(as obj.As, src, base int16, offset int64) *obj.Prog {
	p := e.prog(as)
	p.From.Type = obj.TYPE_REG
	p.From.Reg = src
	p.To.Type = obj.TYPE_MEM
	p.To.Reg = base
	p.To.Offset = offset
	return p
}

func (e *emitter) jmp(as obj.As, target *obj.Prog) *obj.Prog {
	p := e.prog(as)
	p.To.Type = obj.TYPE_BRANCH
	p.Pcond = target
	return p
}

// emit lowers the whole IR body. Block anchors are pre-created so forward
// branches resolve.
func (e *emitter) emit(b *ir.IR) error {
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		p := e.bld.NewProg()
		p.As = obj.ANOP
		e.anchors[blk] = p
	}
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		e.bld.AddInstruction(e.anchors[blk])
		for i := blk.Head(); i != nil; i = i.Next() {
			if err := e.emitInstr(i); err != nil {
				return err
			}
		}
	}
	e.emitPads()
	return nil
}

// sites resolves the collected fastmem sites to buffer-relative offsets.
// Valid only after the builder has assembled.
func (e *emitter) sites() []site {
	out := make([]site, 0, len(e.fastSites))
	for _, s := range e.fastSites {
		out = append(out, site{
			pc:     uint64(s.access.Pc),
			pad:    uint64(s.pad.Pc),
			length: int(s.after.Pc - s.access.Pc),
		})
	}
	return out
}

// localOffset resolves a spill slot to its context-relative offset.
func (e *emitter) localOffset(l *ir.Local) int64 {
	return int64(e.backend.cfg.LocalsOffset) + int64(l.Offset.I32())
}

// materialize loads a constant into reg. Integer payloads narrower than
// 64 bits load zero-extended.
func (e *emitter) materialize(v *ir.Value, reg int16) int16 {
	switch v.Type {
	case ir.TypeI8, ir.TypeI16, ir.TypeI32:
		e.ri(x86.AMOVL, int64(uint32(v.I64))&int64(widthMask(v.Type)), reg)
	case ir.TypeI64:
		e.ri(x86.AMOVQ, v.I64, reg)
	case ir.TypeF32:
		e.ri(x86.AMOVL, int64(f32bits(v.F32)), regScratch1)
		e.rr(x86.AMOVQ, regScratch1, reg)
	case ir.TypeF64:
		e.ri(x86.AMOVQ, int64(f64bits(v.F64)), regScratch1)
		e.rr(x86.AMOVQ, regScratch1, reg)
	}
	return reg
}

// operand returns a register holding v, loading constants and spilled
// values into scratch.
func (e *emitter) operand(v *ir.Value, scratch int16) int16 {
	if v.IsConst() {
		return e.materialize(v, scratch)
	}
	if v.Reg >= 0 {
		return hostReg(v.Reg)
	}
	if v.Local != nil {
		e.mr(movOps[v.Type], regCtx, e.localOffset(v.Local), scratch)
		return scratch
	}
	// Unallocated values compute into scratch directly (IR that has not
	// been through register allocation).
	return scratch
}

// writeResult moves a computed value from src into its allocated home.
func (e *emitter) writeResult(v *ir.Value, src int16) {
	if v == nil {
		return
	}
	if v.Reg >= 0 {
		if dst := hostReg(v.Reg); dst != src {
			if v.Type.IsInt() {
				e.rr(movzxOps[v.Type], src, dst)
			} else {
				e.rr(movOps[v.Type], src, dst)
			}
		}
		return
	}
	if v.Local != nil {
		e.rm(movOps[v.Type], src, regCtx, e.localOffset(v.Local))
	}
}

func widthMask(t ir.Type) uint64 {
	switch t {
	case ir.TypeI8:
		return 0xff
	case ir.TypeI16:
		return 0xffff
	case ir.TypeI32:
		return 0xffffffff
	}
	return ^uint64(0)
}

func (e *emitter) scratchFor(t ir.Type, which int) int16 {
	if t.IsFloat() || t == ir.TypeV128 {
		if which == 0 {
			return regScratchF0
		}
		return regScratchF1
	}
	if which == 0 {
		return regScratch0
	}
	return regScratch1
}

func (e *emitter) emitInstr(i *ir.Instr) error {
	switch i.Op {
	case op.LoadContext:
		t := i.Result.Type
		dst := e.scratchFor(t, 0)
		e.mr(movOps[t], regCtx, int64(i.Args[0].I32()), dst)
		e.writeResult(i.Result, dst)

	case op.StoreContext:
		v := i.Args[1]
		src := e.operand(v, e.scratchFor(v.Type, 0))
		e.rm(movOps[v.Type], src, regCtx, int64(i.Args[0].I32()))

	case op.LoadLocal:
		t := i.Result.Type
		dst := e.scratchFor(t, 0)
		e.mr(movOps[t], regCtx, e.localOffset(&ir.Local{Type: t, Offset: i.Args[0]}), dst)
		e.writeResult(i.Result, dst)

	case op.StoreLocal:
		v := i.Args[1]
		src := e.operand(v, e.scratchFor(v.Type, 0))
		e.rm(movOps[v.Type], src, regCtx, int64(e.backend.cfg.LocalsOffset)+int64(i.Args[0].I32()))

	case op.LoadHost:
		t := i.Result.Type
		addr := e.operand(i.Args[0], regScratch0)
		e.mr(movOps[t], addr, 0, e.scratchFor(t, 1))
		e.writeResult(i.Result, e.scratchFor(t, 1))

	case op.StoreHost:
		addr := e.operand(i.Args[0], regScratch0)
		v := i.Args[1]
		src := e.operand(v, e.scratchFor(v.Type, 1))
		e.rm(movOps[v.Type], src, addr, 0)

	case op.LoadFast:
		e.emitFastLoad(i)

	case op.StoreFast:
		e.emitFastStore(i)

	case op.LoadSlow:
		t := i.Result.Type
		addr := e.operand(i.Args[0], regScratch0)
		e.rr(x86.AMOVL, addr, regArg0)
		e.ri(x86.AMOVQ, int64(t.Size()), regArg1)
		e.ri(x86.AMOVQ, int64(e.backend.cfg.SlowLoad), regScratch1)
		e.call(regScratch1)
		e.writeResult(i.Result, regScratch0)

	case op.StoreSlow:
		addr := e.operand(i.Args[0], regScratch1)
		e.rr(x86.AMOVL, addr, regArg0)
		v := i.Args[1]
		src := e.operand(v, regScratch0)
		if src != regScratch0 {
			e.rr(x86.AMOVQ, src, regScratch0)
		}
		e.ri(x86.AMOVQ, int64(v.Type.Size()), regArg1)
		e.ri(x86.AMOVQ, int64(e.backend.cfg.SlowStore), regScratch1)
		e.call(regScratch1)

	case op.Add, op.Sub, op.And, op.Or, op.Xor:
		e.emitBinary(i, map[op.Op]map[ir.Type]obj.As{
			op.Add: addOps, op.Sub: subOps, op.And: andOps,
			op.Or: orOps, op.Xor: xorOps,
		}[i.Op])

	case op.Smul, op.Umul:
		// The low bits of the product are sign-agnostic.
		e.emitBinary(i, imulOps)

	case op.Shl, op.LShr, op.AShr:
		e.emitShift(i)

	case op.Neg:
		e.emitUnary(i, negOps)

	case op.Not:
		e.emitUnary(i, notOps)

	case op.CmpEQ, op.CmpNE, op.CmpSGE, op.CmpSGT, op.CmpSLE, op.CmpSLT,
		op.CmpUGE, op.CmpUGT, op.CmpULE, op.CmpULT:
		e.emitCompare(i, setOps[i.Op])

	case op.SExt:
		e.emitExtend(i, map[ir.Type]obj.As{
			ir.TypeI8: x86.AMOVBQSX, ir.TypeI16: x86.AMOVWQSX,
			ir.TypeI32: x86.AMOVLQSX, ir.TypeI64: x86.AMOVQ,
		})

	case op.ZExt, op.Trunc:
		// Both reduce to a zero-extending move at the relevant width:
		// the source width for zext, the destination width for trunc.
		t := i.Args[0].Type
		if i.Op == op.Trunc {
			t = i.Result.Type
		}
		src := e.operand(i.Args[0], regScratch0)
		e.rr(movzxOps[t], src, regScratch0)
		e.writeResult(i.Result, regScratch0)

	case op.Bitcast:
		src := e.operand(i.Args[0], e.scratchFor(i.Args[0].Type, 0))
		dst := e.scratchFor(i.Result.Type, 1)
		e.rr(x86.AMOVQ, src, dst)
		e.writeResult(i.Result, dst)

	case op.Select:
		if !i.Result.Type.IsInt() {
			return errors.Errorf("x64: select is integer-only, got %s", i.Result.Type)
		}
		e.emitSelect(i)

	case op.FAdd, op.FSub, op.FMul, op.FDiv:
		e.emitFloatBinary(i, map[op.Op]map[ir.Type]obj.As{
			op.FAdd: faddOps, op.FSub: fsubOps,
			op.FMul: fmulOps, op.FDiv: fdivOps,
		}[i.Op])

	case op.FCmpEQ, op.FCmpNE, op.FCmpGE, op.FCmpGT, op.FCmpLE, op.FCmpLT:
		e.emitFloatCompare(i, fsetOps[i.Op])

	case op.FNeg:
		e.emitFloatSignOp(i, x86.AXORPS, signBit(i.Result.Type))

	case op.FAbs:
		e.emitFloatSignOp(i, x86.AANDPS, ^signBit(i.Result.Type))

	case op.Sqrt:
		src := e.operand(i.Args[0], regScratchF0)
		as := x86.ASQRTSS
		if i.Result.Type == ir.TypeF64 {
			as = x86.ASQRTSD
		}
		e.rr(as, src, regScratchF0)
		e.writeResult(i.Result, regScratchF0)

	case op.FExt:
		src := e.operand(i.Args[0], regScratchF0)
		e.rr(x86.ACVTSS2SD, src, regScratchF0)
		e.writeResult(i.Result, regScratchF0)

	case op.FTrunc:
		src := e.operand(i.Args[0], regScratchF0)
		e.rr(x86.ACVTSD2SS, src, regScratchF0)
		e.writeResult(i.Result, regScratchF0)

	case op.IToF:
		src := e.operand(i.Args[0], regScratch0)
		as := x86.ACVTSQ2SS
		if i.Result.Type == ir.TypeF64 {
			as = x86.ACVTSQ2SD
		}
		e.rr(as, src, regScratchF0)
		e.writeResult(i.Result, regScratchF0)

	case op.FToI:
		src := e.operand(i.Args[0], regScratchF0)
		as := x86.ACVTTSS2SQ
		if i.Args[0].Type == ir.TypeF64 {
			as = x86.ACVTTSD2SQ
		}
		e.rr(as, src, regScratch0)
		e.writeResult(i.Result, regScratch0)

	case op.Branch:
		e.emitBranch(i.Args[0])

	case op.BranchTrue:
		e.emitCondBranch(i.Args[0], i.Args[1], x86.AJNE)

	case op.BranchFalse:
		e.emitCondBranch(i.Args[0], i.Args[1], x86.AJEQ)

	case op.Label:
		// Annotation only.

	case op.Call, op.CallNoret:
		e.emitCall(i, 0)
		if i.Op == op.CallNoret {
			// The target never returns; trap if it somehow does.
			p := e.prog(x86.AINT)
			p.From.Type = obj.TYPE_CONST
			p.From.Offset = 3
		}

	case op.CallCond:
		skip := e.bld.NewProg()
		skip.As = obj.ANOP
		cond := e.operand(i.Args[0], regScratch0)
		e.rr(x86.ATESTB, cond, cond)
		e.jmp(x86.AJEQ, skip)
		e.emitCall(i, 1)
		e.bld.AddInstruction(skip)

	case op.CallFallback:
		e.materialize(i.Args[1], regArg0)
		e.materialize(i.Args[2], regArg1)
		fn := e.operand(i.Args[0], regScratch1)
		e.call(fn)

	case op.DebugInfo:
		// Annotation only.

	case op.DebugBreak:
		p := e.prog(x86.AINT)
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = 3

	case op.AssertEQ:
		if !e.backend.cfg.Debug {
			break
		}
		a := e.operand(i.Args[0], regScratch0)
		b := e.operand(i.Args[1], regScratch1)
		skip := e.bld.NewProg()
		skip.As = obj.ANOP
		e.rr(x86.ACMPQ, a, b)
		e.jmp(x86.AJEQ, skip)
		p := e.prog(x86.AINT)
		p.From.Type = obj.TYPE_CONST
		p.From.Offset = 3
		e.bld.AddInstruction(skip)

	default:
		return errors.Errorf("x64: unhandled op %s", i.Op)
	}
	return nil
}

// emitBinary computes scratch0 = a OP b at the result width.
func (e *emitter) emitBinary(i *ir.Instr, ops map[ir.Type]obj.As) {
	t := i.Result.Type
	a := e.operand(i.Args[0], regScratch0)
	if a != regScratch0 {
		e.rr(movzxOps[t], a, regScratch0)
	}
	b := e.operand(i.Args[1], regScratch1)
	e.rr(ops[t], b, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitUnary(i *ir.Instr, ops map[ir.Type]obj.As) {
	t := i.Result.Type
	a := e.operand(i.Args[0], regScratch0)
	if a != regScratch0 {
		e.rr(movzxOps[t], a, regScratch0)
	}
	p := e.prog(ops[t])
	p.To.Type = obj.TYPE_REG
	p.To.Reg = regScratch0
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitShift(i *ir.Instr) {
	t := i.Result.Type
	ops := shlOps
	switch i.Op {
	case op.LShr:
		ops = shrOps
	case op.AShr:
		ops = sarOps
	}
	a := e.operand(i.Args[0], regScratch0)
	if a != regScratch0 {
		e.rr(movzxOps[t], a, regScratch0)
	}
	amount := e.operand(i.Args[1], regScratch1)
	e.rr(x86.AMOVQ, amount, regShift)
	e.rr(ops[t], regShift, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitCompare(i *ir.Instr, set obj.As) {
	t := i.Args[0].Type
	a := e.operand(i.Args[0], regScratch0)
	b := e.operand(i.Args[1], regScratch1)
	e.rr(cmpOps[t], a, b)
	p := e.prog(set)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = regScratch0
	e.rr(x86.AMOVBQZX, regScratch0, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitFloatCompare(i *ir.Instr, set obj.As) {
	as := x86.AUCOMISS
	if i.Args[0].Type == ir.TypeF64 {
		as = x86.AUCOMISD
	}
	a := e.operand(i.Args[0], regScratchF0)
	b := e.operand(i.Args[1], regScratchF1)
	e.rr(as, b, a)
	p := e.prog(set)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = regScratch0
	e.rr(x86.AMOVBQZX, regScratch0, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitExtend(i *ir.Instr, ops map[ir.Type]obj.As) {
	src := e.operand(i.Args[0], regScratch0)
	e.rr(ops[i.Args[0].Type], src, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitSelect(i *ir.Instr) {
	t := i.Result.Type
	f := e.operand(i.Args[2], regScratch0)
	if f != regScratch0 {
		e.rr(movzxOps[t], f, regScratch0)
	}
	tv := e.operand(i.Args[1], regScratch1)
	cond := e.operand(i.Args[0], regShift)
	e.rr(x86.ATESTB, cond, cond)
	e.rr(x86.ACMOVQNE, tv, regScratch0)
	e.writeResult(i.Result, regScratch0)
}

func (e *emitter) emitFloatBinary(i *ir.Instr, ops map[ir.Type]obj.As) {
	t := i.Result.Type
	a := e.operand(i.Args[0], regScratchF0)
	if a != regScratchF0 {
		e.rr(movOps[t], a, regScratchF0)
	}
	b := e.operand(i.Args[1], regScratchF1)
	e.rr(ops[t], b, regScratchF0)
	e.writeResult(i.Result, regScratchF0)
}

func signBit(t ir.Type) uint64 {
	if t == ir.TypeF32 {
		return 0x80000000
	}
	return 1 << 63
}

func (e *emitter) emitFloatSignOp(i *ir.Instr, as obj.As, mask uint64) {
	src := e.operand(i.Args[0], regScratchF0)
	if src != regScratchF0 {
		e.rr(movOps[i.Result.Type], src, regScratchF0)
	}
	e.ri(x86.AMOVQ, int64(mask), regScratch1)
	e.rr(x86.AMOVQ, regScratch1, regScratchF1)
	e.rr(as, regScratchF1, regScratchF0)
	e.writeResult(i.Result, regScratchF0)
}

func (e *emitter) emitBranch(target *ir.Value) {
	if target.Type == ir.TypeBlock {
		e.jmp(obj.AJMP, e.anchors[target.Blk])
		return
	}
	addr := e.operand(target, regScratch0)
	p := e.prog(obj.AJMP)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = addr
}

func (e *emitter) emitCondBranch(cond, target *ir.Value, jcc obj.As) {
	c := e.operand(cond, regScratch0)
	e.rr(x86.ATESTB, c, c)
	if target.Type == ir.TypeBlock {
		e.jmp(jcc, e.anchors[target.Blk])
		return
	}
	// Host-address target: invert around an indirect jump.
	skip := e.bld.NewProg()
	skip.As = obj.ANOP
	inverse := x86.AJEQ
	if jcc == x86.AJEQ {
		inverse = x86.AJNE
	}
	e.jmp(inverse, skip)
	addr := e.operand(target, regScratch0)
	p := e.prog(obj.AJMP)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = addr
	e.bld.AddInstruction(skip)
}

// emitCall lowers a call op whose target is Args[fnSlot], with up to two
// following value arguments passed in the glue argument registers.
func (e *emitter) emitCall(i *ir.Instr, fnSlot int) {
	argRegs := []int16{regArg0, regArg1}
	for n, slot := 0, fnSlot+1; slot < 4 && i.Args[slot] != nil; n, slot = n+1, slot+1 {
		src := e.operand(i.Args[slot], argRegs[n])
		if src != argRegs[n] {
			e.rr(x86.AMOVQ, src, argRegs[n])
		}
	}
	fn := e.operand(i.Args[fnSlot], regScratch1)
	e.call(fn)
}

func (e *emitter) call(fn int16) {
	p := e.prog(obj.ACALL)
	p.To.Type = obj.TYPE_REG
	p.To.Reg = fn
}

// emitFastLoad emits a naked load through the host-mapped guest address
// space, padded so a fault can patch the site into a jump to its pad.
func (e *emitter) emitFastLoad(i *ir.Instr) {
	t := i.Result.Type
	addr := e.operand(i.Args[0], regScratch0)
	dst := e.scratchFor(t, 1)

	access := e.prog(movOps[t])
	access.From.Type = obj.TYPE_MEM
	access.From.Reg = regMem
	access.From.Index = addr
	access.From.Scale = 1
	access.To.Type = obj.TYPE_REG
	access.To.Reg = dst

	s := &pendingSite{access: access, load: true, addrReg: addr, valReg: dst, size: t.Size()}
	e.pad(s)
	e.writeResult(i.Result, dst)
}

// emitFastStore is the store half of emitFastLoad.
func (e *emitter) emitFastStore(i *ir.Instr) {
	addr := e.operand(i.Args[0], regScratch0)
	v := i.Args[1]
	src := e.operand(v, e.scratchFor(v.Type, 1))

	access := e.prog(movOps[v.Type])
	access.From.Type = obj.TYPE_REG
	access.From.Reg = src
	access.To.Type = obj.TYPE_MEM
	access.To.Reg = regMem
	access.To.Index = addr
	access.To.Scale = 1

	s := &pendingSite{access: access, addrReg: addr, valReg: src, size: v.Type.Size()}
	e.pad(s)
}

// pad fills the site out to a patchable length and queues the slow-path
// pad emission.
func (e *emitter) pad(s *pendingSite) {
	// Two harmless three-byte moves guarantee room for the five-byte
	// patch jump.
	e.rr(x86.AMOVQ, regScratch1, regScratch1)
	e.rr(x86.AMOVQ, regScratch1, regScratch1)
	e.fastSites = append(e.fastSites, s)
	e.needAfter = append(e.needAfter, s)
}

// emitPads emits the slow-path pad for every fastmem site after the main
// body: marshal the access into the slow thunk and jump back.
func (e *emitter) emitPads() {
	for _, s := range e.fastSites {
		first := e.rr(x86.AMOVL, s.addrReg, regArg0)
		s.pad = first
		e.ri(x86.AMOVQ, int64(s.size), regArg1)
		if s.load {
			e.ri(x86.AMOVQ, int64(e.backend.cfg.SlowLoad), regScratch1)
			e.call(regScratch1)
			if s.valReg != regScratch0 {
				e.rr(x86.AMOVQ, regScratch0, s.valReg)
			}
		} else {
			if s.valReg != regScratch0 {
				e.rr(x86.AMOVQ, s.valReg, regScratch0)
			}
			e.ri(x86.AMOVQ, int64(e.backend.cfg.SlowStore), regScratch1)
			e.call(regScratch1)
		}
		e.jmp(obj.AJMP, s.after)
	}
}

func f32bits(f float32) uint32 { return math.Float32bits(f) }

func f64bits(f float64) uint64 { return math.Float64bits(f) }
