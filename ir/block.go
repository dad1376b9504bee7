// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

// Block is a basic block: a label, an ordered instruction list and the CFG
// edges discovered by control-flow analysis.
type Block struct {
	Label string

	// In and Out are the CFG edges to other blocks, populated by the
	// control-flow analysis pass.
	In  []*Block
	Out []*Block

	// Tag is scratch space for a single pass.
	Tag int64

	head, tail *Instr
	prev, next *Block
}

// Head returns the first instruction of the block, or nil.
func (b *Block) Head() *Instr { return b.head }

// Tail returns the last instruction of the block, or nil.
func (b *Block) Tail() *Instr { return b.tail }

// Prev returns the previous block in the container, or nil.
func (b *Block) Prev() *Block { return b.prev }

// Next returns the next block in the container, or nil.
func (b *Block) Next() *Block { return b.next }

// Empty reports whether the block has no instructions.
func (b *Block) Empty() bool { return b.head == nil }

// insertAfter links i into the block after pos. A nil pos prepends.
func (b *Block) insertAfter(pos, i *Instr) {
	i.Block = b
	if pos == nil {
		i.next = b.head
		i.prev = nil
		if b.head != nil {
			b.head.prev = i
		}
		b.head = i
		if b.tail == nil {
			b.tail = i
		}
		return
	}
	i.prev = pos
	i.next = pos.next
	if pos.next != nil {
		pos.next.prev = i
	} else {
		b.tail = i
	}
	pos.next = i
}

// unlink removes i from the block's instruction list.
func (b *Block) unlink(i *Instr) {
	if i.prev != nil {
		i.prev.next = i.next
	} else {
		b.head = i.next
	}
	if i.next != nil {
		i.next.prev = i.prev
	} else {
		b.tail = i.prev
	}
	i.prev, i.next = nil, nil
	i.Block = nil
}

// AddEdge records a CFG edge from b to dst. Duplicate edges are collapsed.
func AddEdge(b, dst *Block) {
	for _, out := range b.Out {
		if out == dst {
			return
		}
	}
	b.Out = append(b.Out, dst)
	dst.In = append(dst.In, b)
}
