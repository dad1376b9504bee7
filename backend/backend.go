// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package backend defines the contract between the translator and a host
// code generator.
package backend

import (
	"errors"
	"io"

	"github.com/go-dynarec/drift/exc"
	"github.com/go-dynarec/drift/ir"
)

// ErrBufferFull is returned by Assemble when the host code buffer cannot
// hold the emitted code. The caller frees the cache, resets the backend
// and retries the compilation from scratch.
var ErrBufferFull = errors.New("backend: code buffer full")

// Register describes one host register offered to register allocation.
type Register struct {
	Name string
	// Mask is the set of IR value types the register can hold.
	Mask ir.TypeMask
}

// Assembly describes one assembled artifact inside the code buffer.
type Assembly struct {
	// Addr is the host address of the entry point.
	Addr uint64
	// Size is the emitted byte length.
	Size int
}

// Backend assembles finalized IR into host machine code.
type Backend interface {
	// Reset drops all emitted code and restarts the buffer.
	Reset()
	// Assemble emits host code for the IR of one guest entry point.
	// It returns ErrBufferFull when the code buffer is exhausted.
	Assemble(b *ir.IR, guestAddr uint32, fastmem bool) (Assembly, error)
	// HandleException patches a faulting fastmem access site to its slow
	// path. It returns false when the PC is not a known fastmem site.
	HandleException(ex *exc.Exception) bool
	// DumpCode disassembles emitted host code.
	DumpCode(w io.Writer, addr uint64, size int) error
	// Registers is the host register bank consumed by register
	// allocation.
	Registers() []Register
}
