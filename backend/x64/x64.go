// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package x64 is the amd64 backend. It lowers finalized IR to machine
// code through the golang-asm instruction builder into a fixed-size
// executable buffer, and patches faulting fastmem access sites over to
// their slow-path pads.
//
// Register conventions of the emitted code:
//
//	R14: guest context pointer (installed by the dispatch glue)
//	R15: base of the host-mapped guest address space
//	RAX, RBX: emitter scratch
//	RCX: shift amounts
//	RDX, RSI, RDI, R8-R11: allocatable integer bank
//	R12, R13: host-call arguments
//	X0-X13: allocatable float/vector bank
//	X14, X15: emitter scratch
//
// Host-call targets (dispatch glue, slow memory path, interpreter
// fallback) take their arguments in R12/R13 and preserve the register
// file by convention, RAX excepted (it carries slow-load results), so
// emitted code keeps values live across calls.
package x64

import (
	"io/ioutil"
	"log"
	"os"

	asm "github.com/twitchyliquid64/golang-asm"
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/exc"
	"github.com/go-dynarec/drift/ir"
)

// PrintDebugInfo enables emitter logging to stderr.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "x64: ", log.Lshortfile)
}

// Config parameterizes one backend instance.
type Config struct {
	// CodeBytes is the size of the executable buffer. Zero selects
	// DefaultCodeBytes.
	CodeBytes int
	// LocalsOffset is the byte offset of the spill area inside the guest
	// context.
	LocalsOffset int
	// SlowLoad and SlowStore are the slow-path memory thunks: load takes
	// (addr, size) and returns the value, store takes (addr, size,
	// value).
	SlowLoad  uint64
	SlowStore uint64
	// Debug emits runtime assertions.
	Debug bool
}

// DefaultCodeBytes is the executable-buffer size when Config leaves it
// unset.
const DefaultCodeBytes = 32 << 20

// site is one fastmem access site: the faulting PC, the slow-path pad it
// is patched to jump to, and the patchable byte length.
type site struct {
	pc     uint64
	pad    uint64
	length int
}

// Backend implements backend.Backend for amd64 hosts.
type Backend struct {
	cfg   Config
	buf   *codeBuffer
	sites map[uint64]site
}

// New creates an amd64 backend with its executable buffer mapped.
func New(cfg Config) (*Backend, error) {
	if cfg.CodeBytes == 0 {
		cfg.CodeBytes = DefaultCodeBytes
	}
	buf, err := newCodeBuffer(cfg.CodeBytes)
	if err != nil {
		return nil, err
	}
	return &Backend{
		cfg:   cfg,
		buf:   buf,
		sites: make(map[uint64]site),
	}, nil
}

// Close unmaps the executable buffer.
func (b *Backend) Close() error {
	return b.buf.close()
}

// Reset drops all emitted code and fastmem sites.
func (b *Backend) Reset() {
	b.buf.reset()
	b.sites = make(map[uint64]site)
}

// Assemble emits host code for one compilation's IR and returns where it
// landed. backend.ErrBufferFull reports buffer exhaustion.
func (b *Backend) Assemble(irb *ir.IR, guestAddr uint32, fastmem bool) (backend.Assembly, error) {
	bld, err := asm.NewBuilder("amd64", 256)
	if err != nil {
		return backend.Assembly{}, errors.Wrap(err, "x64: creating builder")
	}

	e := newEmitter(b, bld, fastmem)
	if err := e.emit(irb); err != nil {
		return backend.Assembly{}, errors.Wrapf(err, "x64: assembling %#08x", guestAddr)
	}

	out := bld.Assemble()
	addr, err := b.buf.alloc(out)
	if err != nil {
		return backend.Assembly{}, err
	}

	for _, s := range e.sites() {
		s.pc += addr
		s.pad += addr
		b.sites[s.pc] = s
	}

	logger.Printf("assembled %#08x: %d bytes at %#x (%d remaining)",
		guestAddr, len(out), addr, b.buf.remaining())
	return backend.Assembly{Addr: addr, Size: len(out)}, nil
}

// HandleException patches the fastmem access site at ex.PC to jump to its
// slow-path pad. Unknown PCs are declined.
func (b *Backend) HandleException(ex *exc.Exception) bool {
	s, ok := b.sites[ex.PC]
	if !ok {
		return false
	}
	if !b.buf.contains(s.pc) {
		return false
	}
	// Overwrite the naked access with a jump to the pad; the pad calls
	// the slow path and resumes after the site.
	code := b.buf.bytesAt(s.pc, s.length)
	rel := int32(int64(s.pad) - int64(s.pc) - 5)
	code[0] = 0xe9
	code[1] = byte(rel)
	code[2] = byte(rel >> 8)
	code[3] = byte(rel >> 16)
	code[4] = byte(rel >> 24)
	for i := 5; i < s.length; i++ {
		code[i] = 0x90
	}
	delete(b.sites, s.pc)
	logger.Printf("patched fastmem site %#x -> pad %#x", s.pc, s.pad)
	return true
}

// Registers returns the allocatable register bank.
func (b *Backend) Registers() []backend.Register {
	return RegisterBank
}
