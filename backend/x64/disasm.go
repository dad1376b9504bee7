// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package x64

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/arch/x86/x86asm"
)

// DumpCode disassembles size bytes of emitted host code at addr to w.
func (b *Backend) DumpCode(w io.Writer, addr uint64, size int) error {
	if !b.buf.contains(addr) {
		return errors.Errorf("x64: %#x is not inside the code buffer", addr)
	}
	code := b.buf.bytesAt(addr, size)
	for len(code) > 0 {
		inst, err := x86asm.Decode(code, 64)
		if err != nil {
			// Patched sites can leave partial tails; show raw bytes and
			// resynchronize.
			fmt.Fprintf(w, "%#016x: .byte %#02x\n", addr, code[0])
			addr++
			code = code[1:]
			continue
		}
		if _, err := fmt.Fprintf(w, "%#016x: %s\n", addr, x86asm.GNUSyntax(inst, addr, nil)); err != nil {
			return err
		}
		addr += uint64(inst.Len)
		code = code[inst.Len:]
	}
	return nil
}
