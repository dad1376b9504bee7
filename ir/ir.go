// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"fmt"
	"unsafe"

	"github.com/go-dynarec/drift/ir/op"
)

// DefaultCapacity is the arena byte budget of a freshly created IR when the
// caller does not specify one. One translator instance reuses a single
// arena of this size across all of its compilations.
const DefaultCapacity = 16 << 20

// InsertPoint is the builder cursor: new instructions are inserted into
// Block after After. A nil After inserts at the head of the block. Callers
// that need to emit into another block save the cursor, move it, and
// restore it.
type InsertPoint struct {
	Block *Block
	After *Instr
}

// IR is the container for one compilation's intermediate representation.
// Values, instructions, blocks and locals are carved out of fixed-capacity
// slabs sized from a single byte budget; Reset rewinds the slabs without
// releasing them. Slab capacities never grow, so entity pointers stay
// stable for the lifetime of a compilation.
type IR struct {
	values []Value
	instrs []Instr
	blocks []Block
	locals []Local

	// LocalsSize is the total byte size of allocated spill slots.
	LocalsSize int

	capacity int
	used     int

	head, tail *Block
	cursor     InsertPoint
}

// New creates an IR container with the given arena byte budget. A
// non-positive capacity selects DefaultCapacity.
func New(capacity int) *IR {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	// Entity slabs split the budget. The ratios follow the relative entity
	// sizes so no single slab starves the others.
	valueBytes := capacity * 45 / 100
	instrBytes := capacity * 45 / 100
	blockBytes := capacity * 5 / 100
	localBytes := capacity - valueBytes - instrBytes - blockBytes
	return &IR{
		values:   make([]Value, 0, valueBytes/int(unsafe.Sizeof(Value{}))),
		instrs:   make([]Instr, 0, instrBytes/int(unsafe.Sizeof(Instr{}))),
		blocks:   make([]Block, 0, blockBytes/int(unsafe.Sizeof(Block{}))),
		locals:   make([]Local, 0, localBytes/int(unsafe.Sizeof(Local{}))),
		capacity: capacity,
	}
}

// Reset rewinds the arena. All previously returned entities are invalid
// afterwards.
func (b *IR) Reset() {
	b.values = b.values[:0]
	b.instrs = b.instrs[:0]
	b.blocks = b.blocks[:0]
	b.locals = b.locals[:0]
	b.LocalsSize = 0
	b.used = 0
	b.head, b.tail = nil, nil
	b.cursor = InsertPoint{}
}

// Capacity returns the arena byte budget.
func (b *IR) Capacity() int { return b.capacity }

// Used returns the arena bytes consumed since the last Reset.
func (b *IR) Used() int { return b.used }

func (b *IR) allocValue(t Type) *Value {
	if len(b.values) == cap(b.values) {
		panic(fmt.Sprintf("ir: value arena exhausted (%d entries)", cap(b.values)))
	}
	b.values = append(b.values, Value{Type: t, Reg: -1})
	b.used += int(unsafe.Sizeof(Value{}))
	return &b.values[len(b.values)-1]
}

func (b *IR) allocInstr(o op.Op) *Instr {
	if len(b.instrs) == cap(b.instrs) {
		panic(fmt.Sprintf("ir: instruction arena exhausted (%d entries)", cap(b.instrs)))
	}
	b.instrs = append(b.instrs, Instr{Op: o})
	b.used += int(unsafe.Sizeof(Instr{}))
	return &b.instrs[len(b.instrs)-1]
}

// NewBlock appends a fresh labeled block to the container and returns it.
// The cursor is left untouched.
func (b *IR) NewBlock() *Block {
	if len(b.blocks) == cap(b.blocks) {
		panic(fmt.Sprintf("ir: block arena exhausted (%d entries)", cap(b.blocks)))
	}
	b.blocks = append(b.blocks, Block{Label: fmt.Sprintf("bb%d", len(b.blocks))})
	b.used += int(unsafe.Sizeof(Block{}))
	blk := &b.blocks[len(b.blocks)-1]
	blk.prev = b.tail
	if b.tail != nil {
		b.tail.next = blk
	} else {
		b.head = blk
	}
	b.tail = blk
	return blk
}

// Head returns the first block, or nil.
func (b *IR) Head() *Block { return b.head }

// Tail returns the last block, or nil.
func (b *IR) Tail() *Block { return b.tail }

// NumBlocks returns the number of blocks.
func (b *IR) NumBlocks() int { return len(b.blocks) }

// NumInstrs returns the number of instruction slots allocated since
// Reset. Removed instructions still count against the arena.
func (b *IR) NumInstrs() int { return len(b.instrs) }

// SetCurrentBlock points the cursor at the end of blk.
func (b *IR) SetCurrentBlock(blk *Block) {
	b.cursor = InsertPoint{Block: blk, After: blk.tail}
}

// CurrentBlock returns the cursor's block.
func (b *IR) CurrentBlock() *Block { return b.cursor.Block }

// GetInsertPoint returns the cursor for save/modify/restore emission.
func (b *IR) GetInsertPoint() InsertPoint { return b.cursor }

// SetInsertPoint moves the cursor.
func (b *IR) SetInsertPoint(pt InsertPoint) { b.cursor = pt }

// emit allocates an instruction at the cursor. A non-void result type
// allocates the defining value.
func (b *IR) emit(o op.Op, result Type, args ...*Value) *Instr {
	if b.cursor.Block == nil {
		panic("ir: emit with no current block")
	}
	if len(args) > maxArgs {
		panic(fmt.Sprintf("ir: %s emitted with %d arguments", o, len(args)))
	}
	i := b.allocInstr(o)
	b.cursor.Block.insertAfter(b.cursor.After, i)
	b.cursor.After = i
	for slot, a := range args {
		if a != nil {
			i.setArg(slot, a)
		}
	}
	if result != TypeVoid {
		v := b.allocValue(result)
		v.Def = i
		i.Result = v
	}
	return i
}

// RemoveInstr unlinks i from its block and drops its argument uses. The
// instruction's result must be unused; removing a live definition is an
// invariant violation.
func (b *IR) RemoveInstr(i *Instr) {
	if i.Result != nil && len(i.Result.Uses) > 0 {
		panic(fmt.Sprintf("ir: removing %s whose result still has %d uses", i.Op, len(i.Result.Uses)))
	}
	for slot := range i.Args {
		if i.Args[slot] != nil {
			i.setArg(slot, nil)
		}
	}
	if b.cursor.After == i {
		b.cursor.After = i.prev
	}
	i.Block.unlink(i)
}
