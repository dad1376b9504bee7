// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package passes

import (
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/ir/op"
)

type loadStoreElimination struct{}

// NewLoadStoreElimination returns the pass that removes redundant context
// loads and stores.
func NewLoadStoreElimination() Pass { return &loadStoreElimination{} }

func (*loadStoreElimination) Name() string { return "lse" }

type available struct {
	offset int
	size   int
	value  *ir.Value
}

// Run scans each block forward, tracking which context ranges hold a known
// value. A load from a range whose value is known is forwarded; a store
// kills every overlapping range and records the stored value. Anything
// that transfers control to host code may mutate the context, so calls
// kill the whole set. The analysis is per block; nothing is assumed known
// on entry.
func (*loadStoreElimination) Run(b *ir.IR) error {
	var avail []available
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		avail = avail[:0]
		for i := blk.Head(); i != nil; {
			next := i.Next()
			switch {
			case i.Op == op.LoadContext:
				offset := int(i.Args[0].I32())
				size := i.Result.Type.Size()
				if known := lookup(avail, offset, size, i.Result.Type); known != nil {
					ir.ReplaceUses(i.Result, known)
					b.RemoveInstr(i)
				} else {
					avail = record(avail, offset, size, i.Result)
				}
			case i.Op == op.StoreContext:
				offset := int(i.Args[0].I32())
				v := i.Args[1]
				size := v.Type.Size()
				if lookup(avail, offset, size, v.Type) == v {
					// The range already holds this exact value.
					b.RemoveInstr(i)
					break
				}
				avail = kill(avail, offset, size)
				avail = record(avail, offset, size, v)
			case i.Op.IsCall():
				avail = avail[:0]
			}
			i = next
		}
	}
	return nil
}

func lookup(avail []available, offset, size int, t ir.Type) *ir.Value {
	for _, a := range avail {
		if a.offset == offset && a.size == size && a.value.Type == t {
			return a.value
		}
	}
	return nil
}

func record(avail []available, offset, size int, v *ir.Value) []available {
	return append(avail, available{offset, size, v})
}

func kill(avail []available, offset, size int) []available {
	out := avail[:0]
	for _, a := range avail {
		if a.offset+a.size <= offset || offset+size <= a.offset {
			out = append(out, a)
		}
	}
	return out
}
