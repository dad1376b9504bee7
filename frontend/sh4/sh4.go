// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sh4 is the frontend for the 16-bit-opcode RISC guest ISA. The
// analyzer classifies block terminators and accounts delay slots; the
// translator lowers the common move/ALU/load/store subset directly to IR
// and routes everything else through the interpreter fallback.
package sh4

import (
	"io/ioutil"
	"log"
	"os"
	"unsafe"

	"github.com/go-dynarec/drift/guest"
)

// PrintDebugInfo enables analyzer/translator logging to stderr.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "sh4: ", log.Lshortfile)
}

// Context is the guest register file the translated code addresses. The
// emulation shell allocates one per CPU; translated code reaches fields
// through the offsets below.
type Context struct {
	R     [16]uint32
	PC    uint32
	PR    uint32
	SR    uint32
	T     uint32
	GBR   uint32
	MACH  uint32
	MACL  uint32
	SPC   uint32
	SSR   uint32
	FPSCR uint32
	FPUL  uint32
	FR    [16]float32

	RemainingCycles   int32
	RanInstrs         uint64
	PendingInterrupts uint64
}

var ctxLayout Context

func offR(n int) int { return int(unsafe.Offsetof(ctxLayout.R)) + n*4 }

var (
	offPC     = int(unsafe.Offsetof(ctxLayout.PC))
	offPR     = int(unsafe.Offsetof(ctxLayout.PR))
	offSR     = int(unsafe.Offsetof(ctxLayout.SR))
	offT      = int(unsafe.Offsetof(ctxLayout.T))
	offSPC    = int(unsafe.Offsetof(ctxLayout.SPC))
	offSSR    = int(unsafe.Offsetof(ctxLayout.SSR))
	offCycles = int(unsafe.Offsetof(ctxLayout.RemainingCycles))
	offInstrs = int(unsafe.Offsetof(ctxLayout.RanInstrs))
	offIRQ    = int(unsafe.Offsetof(ctxLayout.PendingInterrupts))
)

// Frontend implements frontend.Frontend for this ISA.
type Frontend struct {
	mem guest.Memory
	rt  guest.Runtime
}

// New returns a frontend reading guest code through mem and targeting the
// dispatch glue in rt.
func New(mem guest.Memory, rt guest.Runtime) *Frontend {
	return &Frontend{mem: mem, rt: rt}
}
