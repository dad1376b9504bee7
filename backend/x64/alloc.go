// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"unsafe"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/backend"
)

const (
	// allocationAlignment keeps every artifact's entry point aligned for
	// the host's fetch unit.
	allocationAlignment = 16
	// minBufferSize is the smallest code buffer worth mapping.
	minBufferSize = 1 << 16
)

// codeBuffer is one fixed-size anonymous RWX mapping carved out with a
// bump pointer. The buffer is append-only; an overflow resets the whole
// translator cache, so there is no per-artifact free.
type codeBuffer struct {
	mem      mmap.MMap
	consumed int
}

func newCodeBuffer(size int) (*codeBuffer, error) {
	if size < minBufferSize {
		size = minBufferSize
	}
	mem, err := mmap.MapRegion(nil, size, mmap.RDWR|mmap.EXEC, mmap.ANON, 0)
	if err != nil {
		return nil, errors.Wrap(err, "x64: mapping code buffer")
	}
	return &codeBuffer{mem: mem}, nil
}

// alloc copies code into the buffer and returns its host address.
func (b *codeBuffer) alloc(code []byte) (uint64, error) {
	offset := (b.consumed + allocationAlignment - 1) &^ (allocationAlignment - 1)
	if offset+len(code) > len(b.mem) {
		return 0, backend.ErrBufferFull
	}
	copy(b.mem[offset:], code)
	b.consumed = offset + len(code)
	return b.addr(offset), nil
}

// addr returns the host address of an offset into the buffer.
func (b *codeBuffer) addr(offset int) uint64 {
	return uint64(uintptr(unsafe.Pointer(&b.mem[0]))) + uint64(offset)
}

// contains reports whether a host address falls inside the buffer.
func (b *codeBuffer) contains(host uint64) bool {
	base := b.addr(0)
	return host >= base && host < base+uint64(len(b.mem))
}

// bytesAt returns the writable view of n buffer bytes starting at host.
func (b *codeBuffer) bytesAt(host uint64, n int) []byte {
	offset := int(host - b.addr(0))
	return b.mem[offset : offset+n]
}

// reset rewinds the bump pointer. Previously issued artifacts become
// garbage the caller must already have invalidated.
func (b *codeBuffer) reset() {
	b.consumed = 0
}

// remaining returns the free byte count.
func (b *codeBuffer) remaining() int {
	return len(b.mem) - b.consumed
}

func (b *codeBuffer) close() error {
	return b.mem.Unmap()
}
