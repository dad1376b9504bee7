// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package armv4

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

var condNames = [16]string{
	"eq", "ne", "cs", "cc", "mi", "pl", "vs", "vc",
	"hi", "ls", "ge", "lt", "gt", "le", "", "nv",
}

// Dump writes a disassembly of size bytes of guest code at addr to w.
func (f *Frontend) Dump(w io.Writer, addr uint32, size int) error {
	end := addr + uint32(size)
	for ; addr < end; addr += 4 {
		raw, err := f.mem.ReadU32(addr)
		if err != nil {
			return errors.Wrapf(err, "armv4: dump %#08x", addr)
		}
		if _, err := fmt.Fprintf(w, "%08x: %08x  %s\n", addr, raw, disasmOne(raw, addr)); err != nil {
			return err
		}
	}
	return nil
}

func disasmOne(raw uint32, addr uint32) string {
	cc := condNames[cond(raw)]
	switch {
	case isBranchLink(raw):
		return fmt.Sprintf("bl%s 0x%08x", cc, addr+8+uint32(sext24(raw)*4))
	case isBranch(raw):
		return fmt.Sprintf("b%s 0x%08x", cc, addr+8+uint32(sext24(raw)*4))
	case isBranchExchange(raw):
		return fmt.Sprintf("bx%s r%d", cc, raw&0xf)
	case isSWI(raw):
		return fmt.Sprintf("swi%s #%d", cc, raw&0xffffff)
	case raw&0x0fe00000 == 0x03a00000:
		return fmt.Sprintf("mov%s r%d, #%d", cc, raw>>12&0xf, rotateImm(raw))
	case raw&0x0fe00000 == 0x02800000:
		return fmt.Sprintf("add%s r%d, r%d, #%d", cc, raw>>12&0xf, raw>>16&0xf, rotateImm(raw))
	case raw&0x0fe00000 == 0x02400000:
		return fmt.Sprintf("sub%s r%d, r%d, #%d", cc, raw>>12&0xf, raw>>16&0xf, rotateImm(raw))
	case raw&0x0ff00000 == 0x05900000:
		return fmt.Sprintf("ldr%s r%d, [r%d, #%d]", cc, raw>>12&0xf, raw>>16&0xf, raw&0xfff)
	case raw&0x0ff00000 == 0x05800000:
		return fmt.Sprintf("str%s r%d, [r%d, #%d]", cc, raw>>12&0xf, raw>>16&0xf, raw&0xfff)
	}
	return fmt.Sprintf(".word 0x%08x", raw)
}
