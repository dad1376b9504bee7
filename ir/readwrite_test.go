// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-dynarec/drift/ir/op"
)

// buildSample emits a two-block body exercising every constant kind, a
// forward block reference and an instruction label.
func buildSample(b *IR) {
	entry := b.NewBlock()
	exit := b.NewBlock()

	b.SetCurrentBlock(entry)
	x := b.LoadContext(0x134, TypeI32)
	sum := b.Add(x, b.ConstI32(-4))
	b.StoreContext(0x134, sum)
	f := b.FAdd(b.ConstF32(1.5), b.ConstF32(2.5))
	b.StoreContext(0x140, f)
	b.DebugInfo("pc=%08x", 0x8c010000)
	cond := b.CmpNE(sum, b.ConstI32(0))
	b.BranchTrue(cond, b.ConstBlock(exit))
	b.CallNoret(b.ConstPtr(0xdeadbeef))

	b.SetCurrentBlock(exit)
	wide := b.SExt(sum, TypeI64)
	b.StoreContext(0x150, wide)
	i := b.emit(op.Branch, TypeVoid, b.ConstPtr(0x1000))
	i.Label = "dispatch"
}

// summary flattens an IR into a comparable shape: per block, the label and
// the opcode/argument structure of each instruction.
type instrSummary struct {
	Op     string
	Label  string
	Result string
	Args   []string
}

type blockSummary struct {
	Label  string
	Instrs []instrSummary
}

func summarize(b *IR) []blockSummary {
	var out []blockSummary
	for blk := b.Head(); blk != nil; blk = blk.Next() {
		bs := blockSummary{Label: blk.Label}
		for i := blk.Head(); i != nil; i = i.Next() {
			is := instrSummary{Op: i.Op.String(), Label: i.Label}
			if i.Result != nil {
				is.Result = i.Result.Type.String()
			}
			for slot := 0; slot < i.NumArgs(); slot++ {
				a := i.Args[slot]
				if a.IsConst() {
					is.Args = append(is.Args, formatArg(a, nil))
				} else {
					is.Args = append(is.Args, "def:"+a.Def.Op.String())
				}
			}
			bs.Instrs = append(bs.Instrs, is)
		}
		out = append(out, bs)
	}
	return out
}

func TestWriteReadRoundTrip(t *testing.T) {
	b := newTestIR()
	buildSample(b)
	require.NoError(t, Verify(b))

	text := Dump(b)

	parsed := newTestIR()
	require.NoError(t, Read(strings.NewReader(text), parsed))
	require.NoError(t, Verify(parsed))

	if diff := cmp.Diff(summarize(b), summarize(parsed)); diff != "" {
		t.Fatalf("round-tripped IR differs (-want +got):\n%s", diff)
	}

	// A second trip must be byte-stable.
	assert.Equal(t, text, Dump(parsed))
}

func TestReadErrors(t *testing.T) {
	for _, tc := range []struct {
		name string
		text string
	}{
		{"instr before block", "store_context i32 0x0, i32 0x1\n"},
		{"unknown opcode", "bb0:\n  frobnicate i32 0x0\n"},
		{"undefined value", "bb0:\n  store_context i32 0x0, %4\n"},
		{"unknown block", "bb0:\n  branch blk bb9\n"},
		{"duplicate label", "bb0:\nbb0:\n"},
		{"bad constant", "bb0:\n  store_context i32 0x0, i32 zz\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestIR()
			err := Read(strings.NewReader(tc.text), b)
			require.Error(t, err)
			var perr ParseError
			require.ErrorAs(t, err, &perr)
			assert.NotZero(t, perr.Line)
		})
	}
}

func TestReadStringWithCommas(t *testing.T) {
	text := "bb0:\n  debug_info str \"a, b = c\"\n"
	b := newTestIR()
	require.NoError(t, Read(strings.NewReader(text), b))
	i := b.Head().Head()
	require.Equal(t, op.DebugInfo, i.Op)
	assert.Equal(t, "a, b = c", i.Args[0].Str)
}
