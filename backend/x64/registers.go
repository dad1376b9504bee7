// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/ir"
)

// Reserved registers. The dispatch glue installs the context and memory
// base before entering translated code.
const (
	regCtx      = x86.REG_R14
	regMem      = x86.REG_R15
	regScratch0 = x86.REG_AX
	regScratch1 = x86.REG_BX
	regShift    = x86.REG_CX
	regArg0     = x86.REG_R12
	regArg1     = x86.REG_R13

	regScratchF0 = x86.REG_X14
	regScratchF1 = x86.REG_X15
)

// Allocatable banks, in allocation-priority order. The indices here are
// the Reg values register allocation writes into IR values.
var intBank = []int16{
	x86.REG_DX, x86.REG_SI, x86.REG_DI,
	x86.REG_R8, x86.REG_R9, x86.REG_R10, x86.REG_R11,
}

var fpBank = []int16{
	x86.REG_X0, x86.REG_X1, x86.REG_X2, x86.REG_X3,
	x86.REG_X4, x86.REG_X5, x86.REG_X6, x86.REG_X7,
	x86.REG_X8, x86.REG_X9, x86.REG_X10, x86.REG_X11,
	x86.REG_X12, x86.REG_X13,
}

// RegisterBank is the allocatable register bank, exported for tools that
// run register allocation without instantiating a backend.
var RegisterBank = buildRegisterBank()

func buildRegisterBank() []backend.Register {
	names := []string{"rdx", "rsi", "rdi", "r8", "r9", "r10", "r11"}
	fpNames := []string{
		"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13",
	}
	var bank []backend.Register
	for _, n := range names {
		bank = append(bank, backend.Register{Name: n, Mask: ir.IntMask})
	}
	for _, n := range fpNames {
		bank = append(bank, backend.Register{Name: n, Mask: ir.FloatMask})
	}
	return bank
}

// hostReg maps an allocation index to its hardware register.
func hostReg(idx int) int16 {
	if idx < len(intBank) {
		return intBank[idx]
	}
	return fpBank[idx-len(intBank)]
}
