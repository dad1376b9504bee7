// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package sh4

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Dump writes a disassembly of size bytes of guest code at addr to w.
func (f *Frontend) Dump(w io.Writer, addr uint32, size int) error {
	end := addr + uint32(size)
	for ; addr < end; addr += 2 {
		raw, err := f.mem.ReadU16(addr)
		if err != nil {
			return errors.Wrapf(err, "sh4: dump %#08x", addr)
		}
		if _, err := fmt.Fprintf(w, "%08x: %04x  %s\n", addr, raw, disasmOne(raw, addr)); err != nil {
			return err
		}
	}
	return nil
}

func disasmOne(raw uint16, addr uint32) string {
	n := int(raw>>8) & 0xf
	m := int(raw>>4) & 0xf
	switch {
	case raw == 0x0009:
		return "nop"
	case raw == 0x0008:
		return "clrt"
	case raw == 0x0018:
		return "sett"
	case raw == 0x000b:
		return "rts"
	case raw == 0x002b:
		return "rte"
	case raw == 0x001b:
		return "sleep"
	case raw&0xff00 == 0x8900:
		return fmt.Sprintf("bt 0x%08x", addr+4+uint32(sext8(raw)*2))
	case raw&0xff00 == 0x8b00:
		return fmt.Sprintf("bf 0x%08x", addr+4+uint32(sext8(raw)*2))
	case raw&0xff00 == 0x8d00:
		return fmt.Sprintf("bt/s 0x%08x", addr+4+uint32(sext8(raw)*2))
	case raw&0xff00 == 0x8f00:
		return fmt.Sprintf("bf/s 0x%08x", addr+4+uint32(sext8(raw)*2))
	case raw&0xf000 == 0xa000:
		return fmt.Sprintf("bra 0x%08x", addr+4+uint32(sext12(raw)*2))
	case raw&0xf000 == 0xb000:
		return fmt.Sprintf("bsr 0x%08x", addr+4+uint32(sext12(raw)*2))
	case raw&0xf0ff == 0x0023:
		return fmt.Sprintf("braf r%d", n)
	case raw&0xf0ff == 0x0003:
		return fmt.Sprintf("bsrf r%d", n)
	case raw&0xf0ff == 0x402b:
		return fmt.Sprintf("jmp @r%d", n)
	case raw&0xf0ff == 0x400b:
		return fmt.Sprintf("jsr @r%d", n)
	case raw&0xff00 == 0xc300:
		return fmt.Sprintf("trapa #%d", raw&0xff)
	case raw&0xf000 == 0xe000:
		return fmt.Sprintf("mov #%d,r%d", sext8(raw), n)
	case raw&0xf00f == 0x6003:
		return fmt.Sprintf("mov r%d,r%d", m, n)
	case raw&0xf00f == 0x300c:
		return fmt.Sprintf("add r%d,r%d", m, n)
	case raw&0xf000 == 0x7000:
		return fmt.Sprintf("add #%d,r%d", sext8(raw), n)
	case raw&0xf00f == 0x3008:
		return fmt.Sprintf("sub r%d,r%d", m, n)
	case raw&0xf00f == 0x2009:
		return fmt.Sprintf("and r%d,r%d", m, n)
	case raw&0xf00f == 0x200b:
		return fmt.Sprintf("or r%d,r%d", m, n)
	case raw&0xf00f == 0x200a:
		return fmt.Sprintf("xor r%d,r%d", m, n)
	case raw&0xf00f == 0x3000:
		return fmt.Sprintf("cmp/eq r%d,r%d", m, n)
	case raw&0xff00 == 0x8800:
		return fmt.Sprintf("cmp/eq #%d,r0", sext8(raw))
	case raw&0xf00f == 0x6002:
		return fmt.Sprintf("mov.l @r%d,r%d", m, n)
	case raw&0xf00f == 0x2002:
		return fmt.Sprintf("mov.l r%d,@r%d", m, n)
	case raw&0xf000 == 0xd000:
		return fmt.Sprintf("mov.l @(%d,pc),r%d", raw&0xff, n)
	}
	return fmt.Sprintf(".word 0x%04x", raw)
}
