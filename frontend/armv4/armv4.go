// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package armv4 is the frontend for the 32-bit load/store guest ISA.
// Every instruction is conditional on the CPSR flags; the analyzer folds
// that into the branch classification, and the translator lowers the
// unconditional data-processing/load/store subset directly, falling back
// to the interpreter for the rest.
package armv4

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/guest"
)

// Context is the guest register file the translated code addresses.
// R[15] is the PC.
type Context struct {
	R    [16]uint32
	CPSR uint32
	SPSR uint32

	RemainingCycles   int32
	RanInstrs         uint64
	PendingInterrupts uint64
}

var ctxLayout Context

func offR(n int) int { return int(unsafe.Offsetof(ctxLayout.R)) + n*4 }

var (
	offPC     = offR(15)
	offCPSR   = int(unsafe.Offsetof(ctxLayout.CPSR))
	offCycles = int(unsafe.Offsetof(ctxLayout.RemainingCycles))
	offInstrs = int(unsafe.Offsetof(ctxLayout.RanInstrs))
	offIRQ    = int(unsafe.Offsetof(ctxLayout.PendingInterrupts))
)

const condAL = 0xe

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

// InvalidInstructionError reports an undecodable opening instruction.
type InvalidInstructionError struct {
	Addr uint32
	Raw  uint32
}

func (e InvalidInstructionError) Error() string {
	return fmt.Sprintf("armv4: invalid instruction %#08x at %#08x", e.Raw, e.Addr)
}

func cond(raw uint32) uint32 { return raw >> 28 }

func sext24(raw uint32) int32 { return int32(raw&0xffffff) << 8 >> 8 }

func isBranch(raw uint32) bool { return raw&0x0e000000 == 0x0a000000 }

func isBranchLink(raw uint32) bool { return raw&0x0f000000 == 0x0b000000 }

func isBranchExchange(raw uint32) bool { return raw&0x0ffffff0 == 0x012fff10 }

func isSWI(raw uint32) bool { return raw&0x0f000000 == 0x0f000000 }

// writesPC reports whether the instruction's destination is the PC:
// data processing with rd == 15 (excluding the flag-only compare group),
// a load into the PC, or a block load whose register list includes it.
func writesPC(raw uint32) bool {
	switch {
	case raw&0x0c000000 == 0x00000000: // data processing
		if opcode := raw >> 21 & 0xf; opcode >= 8 && opcode <= 11 {
			return false // tst/teq/cmp/cmn
		}
		return raw>>12&0xf == 15
	case raw&0x0c100000 == 0x04100000: // ldr
		return raw>>12&0xf == 15
	case raw&0x0e100000 == 0x08100000: // ldm
		return raw&(1<<15) != 0
	}
	return false
}

func cycleCount(raw uint32) int {
	switch {
	case isBranch(raw), isBranchExchange(raw), isSWI(raw):
		return 3
	case raw&0x0c100000 == 0x04100000, raw&0x0e100000 == 0x08100000:
		return 3
	}
	return 1
}

// Analyze reads guest memory at m.GuestAddr and decodes one basic block.
func (f *Frontend) Analyze(m *frontend.Meta) error {
	addr := m.GuestAddr
	m.BranchType = frontend.FallThrough
	m.BranchAddr = guest.InvalidAddr
	m.NextAddr = guest.InvalidAddr
	m.NumInstrs = 0
	m.NumCycles = 0
	m.Size = 0

	for {
		raw, err := f.mem.ReadU32(addr)
		if err != nil {
			if m.NumInstrs == 0 {
				return errors.Wrapf(err, "armv4: analyze %#08x", m.GuestAddr)
			}
			m.NextAddr = addr
			return nil
		}
		if cond(raw) == 0xf {
			// The never/extension space is undefined on this core.
			if m.NumInstrs == 0 {
				return InvalidInstructionError{addr, raw}
			}
			m.Size += 4
			m.NumInstrs++
			m.NumCycles++
			m.BranchType = frontend.Dynamic
			return nil
		}

		m.Size += 4
		m.NumInstrs++
		m.NumCycles += cycleCount(raw)

		switch {
		case isBranch(raw):
			target := addr + 8 + uint32(sext24(raw)*4)
			if cond(raw) == condAL {
				m.BranchType = frontend.Static
			} else {
				m.BranchType = frontend.StaticTrue
				m.NextAddr = addr + 4
			}
			m.BranchAddr = target
			return nil

		case isBranchExchange(raw):
			if cond(raw) == condAL {
				m.BranchType = frontend.Dynamic
			} else {
				m.BranchType = frontend.DynamicTrue
				m.NextAddr = addr + 4
			}
			return nil

		case isSWI(raw), writesPC(raw):
			// Lowered through the fallback, which computes the
			// continuation PC for the conditional forms too.
			m.BranchType = frontend.Dynamic
			return nil
		}

		if m.NumInstrs >= maxBlockInstrs {
			m.BranchType = frontend.FallThrough
			m.NextAddr = addr + 4
			return nil
		}
		addr += 4
	}
}

const maxBlockInstrs = 512
