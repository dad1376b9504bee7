// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package op

// The opcode table. Loads and stores name their address space explicitly:
// context is the guest register file, local is a spill slot in the context
// frame, host is a raw host pointer, fast is a naked access through the
// host-mapped guest address space, slow is a call through the guest bus.
var (
	LoadContext  = New(0x00, "load_context", FlagLoad)
	StoreContext = New(0x01, "store_context", FlagStore|FlagSideEffects)
	LoadLocal    = New(0x02, "load_local", FlagLoad)
	StoreLocal   = New(0x03, "store_local", FlagStore|FlagSideEffects)
	LoadHost     = New(0x04, "load_host", FlagLoad|FlagSideEffects)
	StoreHost    = New(0x05, "store_host", FlagStore|FlagSideEffects)
	LoadFast     = New(0x06, "load_fast", FlagLoad|FlagSideEffects)
	StoreFast    = New(0x07, "store_fast", FlagStore|FlagSideEffects)
	LoadSlow     = New(0x08, "load_slow", FlagLoad|FlagSideEffects|FlagCall)
	StoreSlow    = New(0x09, "store_slow", FlagStore|FlagSideEffects|FlagCall)

	Add  = New(0x10, "add", 0)
	Sub  = New(0x11, "sub", 0)
	Smul = New(0x12, "smul", 0)
	Umul = New(0x13, "umul", 0)
	Div  = New(0x14, "div", 0)
	Neg  = New(0x15, "neg", 0)
	Abs  = New(0x16, "abs", 0)

	FAdd = New(0x17, "fadd", 0)
	FSub = New(0x18, "fsub", 0)
	FMul = New(0x19, "fmul", 0)
	FDiv = New(0x1a, "fdiv", 0)
	FNeg = New(0x1b, "fneg", 0)
	FAbs = New(0x1c, "fabs", 0)
	Sqrt = New(0x1d, "sqrt", 0)

	VBroadcast = New(0x1e, "vbroadcast", 0)
	VAdd       = New(0x1f, "vadd", 0)
	VMul       = New(0x20, "vmul", 0)
	VDot       = New(0x21, "vdot", 0)

	And  = New(0x22, "and", 0)
	Or   = New(0x23, "or", 0)
	Xor  = New(0x24, "xor", 0)
	Not  = New(0x25, "not", 0)
	Shl  = New(0x26, "shl", 0)
	LShr = New(0x27, "lshr", 0)
	AShr = New(0x28, "ashr", 0)

	CmpEQ  = New(0x30, "cmp_eq", 0)
	CmpNE  = New(0x31, "cmp_ne", 0)
	CmpSGE = New(0x32, "cmp_sge", 0)
	CmpSGT = New(0x33, "cmp_sgt", 0)
	CmpSLE = New(0x34, "cmp_sle", 0)
	CmpSLT = New(0x35, "cmp_slt", 0)
	CmpUGE = New(0x36, "cmp_uge", 0)
	CmpUGT = New(0x37, "cmp_ugt", 0)
	CmpULE = New(0x38, "cmp_ule", 0)
	CmpULT = New(0x39, "cmp_ult", 0)

	FCmpEQ = New(0x3a, "fcmp_eq", 0)
	FCmpNE = New(0x3b, "fcmp_ne", 0)
	FCmpGE = New(0x3c, "fcmp_ge", 0)
	FCmpGT = New(0x3d, "fcmp_gt", 0)
	FCmpLE = New(0x3e, "fcmp_le", 0)
	FCmpLT = New(0x3f, "fcmp_lt", 0)

	SExt    = New(0x40, "sext", 0)
	ZExt    = New(0x41, "zext", 0)
	Trunc   = New(0x42, "trunc", 0)
	FExt    = New(0x43, "fext", 0)
	FTrunc  = New(0x44, "ftrunc", 0)
	IToF    = New(0x45, "itof", 0)
	FToI    = New(0x46, "ftoi", 0)
	Bitcast = New(0x47, "bitcast", 0)

	Select = New(0x48, "select", 0)

	Branch      = New(0x50, "branch", FlagSideEffects|FlagTerminator)
	BranchTrue  = New(0x51, "branch_true", FlagSideEffects|FlagTerminator)
	BranchFalse = New(0x52, "branch_false", FlagSideEffects|FlagTerminator)
	Label       = New(0x53, "label", FlagSideEffects)

	Call         = New(0x60, "call", FlagSideEffects|FlagCall)
	CallCond     = New(0x61, "call_cond", FlagSideEffects|FlagCall)
	CallNoret    = New(0x62, "call_noret", FlagSideEffects|FlagCall|FlagTerminator)
	CallFallback = New(0x63, "call_fallback", FlagSideEffects|FlagCall)

	DebugInfo  = New(0x70, "debug_info", FlagSideEffects)
	DebugBreak = New(0x71, "debug_break", FlagSideEffects)
	AssertEQ   = New(0x72, "assert_eq", FlagSideEffects)
)
