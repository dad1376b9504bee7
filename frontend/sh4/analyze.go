// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sh4

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/guest"
)

// maxBlockInstrs bounds a single analysis window. A block that long has
// no terminator in sight; it is cut and resumed through dispatch.
const maxBlockInstrs = 512

// branchInfo classifies one decoded instruction.
type branchInfo struct {
	terminator bool
	kind       frontend.BranchType
	// target is the statically known taken-path address, or
	// guest.InvalidAddr.
	target uint32
	// delay marks delayed branches, which consume the following
	// instruction slot.
	delay  bool
	cycles int
}

// InvalidInstructionError reports an undecodable opening instruction.
type InvalidInstructionError struct {
	Addr uint32
	Raw  uint16
}

func (e InvalidInstructionError) Error() string {
	return fmt.Sprintf("sh4: invalid instruction %#04x at %#08x", e.Raw, e.Addr)
}

// DelaySlotError reports a malformed delay slot: the slot instruction
// must decode cleanly and must not itself be a delayed branch.
type DelaySlotError struct {
	Addr uint32
	Raw  uint16
}

func (e DelaySlotError) Error() string {
	return fmt.Sprintf("sh4: illegal delay slot instruction %#04x at %#08x", e.Raw, e.Addr)
}

func sext8(raw uint16) int32  { return int32(int8(raw)) }
func sext12(raw uint16) int32 { return int32(raw&0xfff) << 20 >> 20 }

// classify decodes the terminator properties of one instruction.
func classify(raw uint16, addr uint32) branchInfo {
	switch {
	case raw&0xff00 == 0x8900: // bt
		return branchInfo{true, frontend.StaticTrue, addr + 4 + uint32(sext8(raw)*2), false, 2}
	case raw&0xff00 == 0x8b00: // bf
		return branchInfo{true, frontend.StaticFalse, addr + 4 + uint32(sext8(raw)*2), false, 2}
	case raw&0xff00 == 0x8d00: // bt/s
		return branchInfo{true, frontend.StaticTrue, addr + 4 + uint32(sext8(raw)*2), true, 2}
	case raw&0xff00 == 0x8f00: // bf/s
		return branchInfo{true, frontend.StaticFalse, addr + 4 + uint32(sext8(raw)*2), true, 2}
	case raw&0xf000 == 0xa000: // bra
		return branchInfo{true, frontend.Static, addr + 4 + uint32(sext12(raw)*2), true, 2}
	case raw&0xf000 == 0xb000: // bsr
		return branchInfo{true, frontend.Static, addr + 4 + uint32(sext12(raw)*2), true, 2}
	case raw&0xf0ff == 0x0023: // braf
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 2}
	case raw&0xf0ff == 0x0003: // bsrf
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 2}
	case raw&0xf0ff == 0x402b: // jmp @rn
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 2}
	case raw&0xf0ff == 0x400b: // jsr @rn
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 2}
	case raw == 0x000b: // rts
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 2}
	case raw == 0x002b: // rte
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, true, 5}
	case raw&0xff00 == 0xc300: // trapa
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, false, 7}
	case raw == 0x001b: // sleep
		return branchInfo{true, frontend.Dynamic, guest.InvalidAddr, false, 4}
	case raw&0xf0ff == 0x400e, raw&0xf0ff == 0x4007:
		// ldc rm,sr / ldc.l @rm+,sr change interrupt state; the block
		// ends and dispatch re-evaluates.
		return branchInfo{true, frontend.FallThrough, guest.InvalidAddr, false, 4}
	}
	return branchInfo{cycles: 1}
}

// decodable reports whether raw is a recognizable encoding. The table is
// deliberately permissive: unknown-but-plausible encodings run through
// the interpreter fallback at execution time.
func decodable(raw uint16) bool {
	return raw != 0x0000 && raw != 0xffff
}

// Analyze reads guest memory at m.GuestAddr and decodes one basic block:
// instructions accumulate into the size, instruction and cycle counts
// until a terminator is found. The terminator sets the branch
// classification and the taken/fall-through addresses.
func (f *Frontend) Analyze(m *frontend.Meta) error {
	addr := m.GuestAddr
	m.BranchType = frontend.FallThrough
	m.BranchAddr = guest.InvalidAddr
	m.NextAddr = guest.InvalidAddr
	m.NumInstrs = 0
	m.NumCycles = 0
	m.Size = 0

	for {
		raw, err := f.mem.ReadU16(addr)
		if err != nil {
			if m.NumInstrs == 0 {
				return errors.Wrapf(err, "sh4: analyze %#08x", m.GuestAddr)
			}
			// The block ran into unmaterialized memory; cut it here and
			// let dispatch take over.
			m.NextAddr = addr
			return nil
		}
		if !decodable(raw) {
			if m.NumInstrs == 0 {
				return InvalidInstructionError{addr, raw}
			}
			// An undecodable instruction terminates the block; the
			// fallback raises the illegal-instruction trap at runtime.
			m.Size += 2
			m.NumInstrs++
			m.NumCycles++
			m.BranchType = frontend.Dynamic
			return nil
		}

		br := classify(raw, addr)
		m.Size += 2
		m.NumInstrs++
		m.NumCycles += br.cycles

		if !br.terminator {
			if m.NumInstrs >= maxBlockInstrs {
				m.BranchType = frontend.FallThrough
				m.NextAddr = addr + 2
				return nil
			}
			addr += 2
			continue
		}

		if br.delay {
			slot, err := f.mem.ReadU16(addr + 2)
			if err != nil {
				return errors.Wrapf(err, "sh4: delay slot at %#08x", addr+2)
			}
			if !decodable(slot) || classify(slot, addr+2).delay {
				return DelaySlotError{addr + 2, slot}
			}
			m.Size += 2
			m.NumInstrs++
			m.NumCycles += classify(slot, addr+2).cycles
		}

		m.BranchType = br.kind
		m.BranchAddr = br.target
		switch br.kind {
		case frontend.StaticTrue, frontend.StaticFalse:
			// The fall-through resumes after the branch (and its delay
			// slot, for the delayed forms).
			m.NextAddr = addr + 2
			if br.delay {
				m.NextAddr = addr + 4
			}
		case frontend.FallThrough:
			m.NextAddr = m.GuestAddr + uint32(m.Size)
		}
		logger.Printf("analyzed %#08x: %d instrs, %s -> %#08x/%#08x",
			m.GuestAddr, m.NumInstrs, m.BranchType, m.BranchAddr, m.NextAddr)
		return nil
	}
}
