// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"
)

// Write emits the textual form of the IR. The output round-trips through
// Read: parsing it into a fresh container yields a structurally equivalent
// IR. Values are numbered in definition order; constants are printed
// inline with their type. Float payloads are written as bit patterns so no
// precision is lost in the round trip.
func Write(w io.Writer, b *IR) error {
	bw := bufio.NewWriter(w)
	ids := make(map[*Value]int)
	next := 0
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		fmt.Fprintf(bw, "%s:\n", blk.Label)
		for i := blk.Head(); i != nil; i = i.Next() {
			bw.WriteString("  ")
			if r := i.Result; r != nil {
				ids[r] = next
				fmt.Fprintf(bw, "%s %%%d = ", r.Type, next)
				next++
			}
			bw.WriteString(i.Op.String())
			for slot := 0; slot < i.NumArgs(); slot++ {
				if slot == 0 {
					bw.WriteString(" ")
				} else {
					bw.WriteString(", ")
				}
				bw.WriteString(formatArg(i.Args[slot], ids))
			}
			if i.Label != "" {
				fmt.Fprintf(bw, " @%s", i.Label)
			}
			bw.WriteString("\n")
		}
	}
	return bw.Flush()
}

func formatArg(v *Value, ids map[*Value]int) string {
	if !v.IsConst() {
		id, ok := ids[v]
		if !ok {
			// A use before its definition in listing order means the IR is
			// malformed; surface it in the dump rather than hiding it.
			return "%?"
		}
		return fmt.Sprintf("%%%d", id)
	}
	switch v.Type {
	case TypeI8:
		return fmt.Sprintf("i8 0x%x", uint8(v.I64))
	case TypeI16:
		return fmt.Sprintf("i16 0x%x", uint16(v.I64))
	case TypeI32:
		return fmt.Sprintf("i32 0x%x", uint32(v.I64))
	case TypeI64:
		return fmt.Sprintf("i64 0x%x", uint64(v.I64))
	case TypeF32:
		return fmt.Sprintf("f32 0x%x", math.Float32bits(v.F32))
	case TypeF64:
		return fmt.Sprintf("f64 0x%x", math.Float64bits(v.F64))
	case TypeString:
		return fmt.Sprintf("str %q", v.Str)
	case TypeBlock:
		return fmt.Sprintf("blk %s", v.Blk.Label)
	}
	return fmt.Sprintf("%s ?", v.Type)
}

// Dump returns the textual form of the IR as a string, for logs and tests.
func Dump(b *IR) string {
	var sb strings.Builder
	Write(&sb, b)
	return sb.String()
}
