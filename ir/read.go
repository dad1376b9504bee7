// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ir

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-dynarec/drift/ir/op"
)

// ParseError reports a malformed line in a textual IR listing.
type ParseError struct {
	Line int
	Text string
	Err  error
}

func (e ParseError) Error() string {
	return fmt.Sprintf("ir: line %d: %v\n  => %s", e.Line, e.Err, e.Text)
}

// Read parses a textual IR listing produced by Write into b, which is
// Reset first. Blocks are created in listing order; block references may
// point forward.
func Read(r io.Reader, b *IR) error {
	b.Reset()

	type line struct {
		num  int
		text string
	}
	var lines []line
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		lines = append(lines, line{n, text})
	}
	if err := sc.Err(); err != nil {
		return err
	}

	// First pass: materialize blocks in listing order so forward block
	// references resolve.
	blocks := make(map[string]*Block)
	for _, l := range lines {
		if strings.HasSuffix(l.text, ":") {
			name := strings.TrimSuffix(l.text, ":")
			if _, dup := blocks[name]; dup {
				return ParseError{l.num, l.text, fmt.Errorf("duplicate block label %q", name)}
			}
			blk := b.NewBlock()
			blk.Label = name
			blocks[name] = blk
		}
	}

	p := &parser{b: b, blocks: blocks, values: make(map[int]*Value)}
	for _, l := range lines {
		if strings.HasSuffix(l.text, ":") {
			b.SetCurrentBlock(blocks[strings.TrimSuffix(l.text, ":")])
			continue
		}
		if b.CurrentBlock() == nil {
			return ParseError{l.num, l.text, fmt.Errorf("instruction before the first block label")}
		}
		if err := p.instr(l.text); err != nil {
			return ParseError{l.num, l.text, err}
		}
	}
	return nil
}

type parser struct {
	b      *IR
	blocks map[string]*Block
	values map[int]*Value
}

func (p *parser) instr(text string) error {
	label := ""
	if at := findLabel(text); at >= 0 {
		label = text[at+1:]
		text = strings.TrimSpace(text[:at])
	}

	resultType := TypeVoid
	resultID := -1
	if eq := strings.Index(text, "="); eq > 0 {
		head := strings.Fields(text[:eq])
		if len(head) == 2 && strings.HasPrefix(head[1], "%") {
			t, ok := TypeByName(head[0])
			if !ok {
				return fmt.Errorf("unknown result type %q", head[0])
			}
			id, err := strconv.Atoi(head[1][1:])
			if err != nil {
				return fmt.Errorf("malformed value id %q", head[1])
			}
			resultType, resultID = t, id
			text = strings.TrimSpace(text[eq+1:])
		}
	}

	name := text
	rest := ""
	if sp := strings.IndexByte(text, ' '); sp >= 0 {
		name, rest = text[:sp], strings.TrimSpace(text[sp+1:])
	}
	o, ok := op.ByName(name)
	if !ok {
		return fmt.Errorf("unknown opcode %q", name)
	}

	var args []*Value
	for _, raw := range splitArgs(rest) {
		v, err := p.arg(raw)
		if err != nil {
			return err
		}
		args = append(args, v)
	}

	i := p.b.emit(o, resultType, args...)
	i.Label = label
	if resultID >= 0 {
		if _, dup := p.values[resultID]; dup {
			return fmt.Errorf("value %%%d defined twice", resultID)
		}
		p.values[resultID] = i.Result
	}
	return nil
}

func (p *parser) arg(raw string) (*Value, error) {
	if strings.HasPrefix(raw, "%") {
		id, err := strconv.Atoi(raw[1:])
		if err != nil {
			return nil, fmt.Errorf("malformed value reference %q", raw)
		}
		v, ok := p.values[id]
		if !ok {
			return nil, fmt.Errorf("use of undefined value %%%d", id)
		}
		return v, nil
	}

	sp := strings.IndexByte(raw, ' ')
	if sp < 0 {
		return nil, fmt.Errorf("malformed constant %q", raw)
	}
	tname, payload := raw[:sp], strings.TrimSpace(raw[sp+1:])
	t, ok := TypeByName(tname)
	if !ok {
		return nil, fmt.Errorf("unknown constant type %q", tname)
	}

	switch t {
	case TypeString:
		s, err := strconv.Unquote(payload)
		if err != nil {
			return nil, fmt.Errorf("malformed string constant %q", payload)
		}
		return p.b.ConstStr("%s", s), nil
	case TypeBlock:
		blk, ok := p.blocks[payload]
		if !ok {
			return nil, fmt.Errorf("reference to unknown block %q", payload)
		}
		return p.b.ConstBlock(blk), nil
	}

	bits, err := strconv.ParseUint(strings.TrimPrefix(payload, "0x"), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("malformed numeric constant %q", payload)
	}
	switch t {
	case TypeI8:
		return p.b.ConstI8(int8(bits)), nil
	case TypeI16:
		return p.b.ConstI16(int16(bits)), nil
	case TypeI32:
		return p.b.ConstI32(int32(bits)), nil
	case TypeI64:
		return p.b.ConstI64(int64(bits)), nil
	case TypeF32:
		return p.b.ConstF32(math.Float32frombits(uint32(bits))), nil
	case TypeF64:
		return p.b.ConstF64(math.Float64frombits(bits)), nil
	}
	return nil, fmt.Errorf("constant of unsupported type %q", tname)
}

// findLabel locates the " @label" suffix, ignoring '@' inside string
// constants.
func findLabel(text string) int {
	quoted := false
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"':
			if i == 0 || text[i-1] != '\\' {
				quoted = !quoted
			}
		case '@':
			if !quoted && i > 0 && text[i-1] == ' ' {
				return i
			}
		}
	}
	return -1
}

// splitArgs splits an argument list on commas outside string constants.
func splitArgs(rest string) []string {
	if rest == "" {
		return nil
	}
	var out []string
	quoted := false
	start := 0
	for i := 0; i < len(rest); i++ {
		switch rest[i] {
		case '"':
			if i == 0 || rest[i-1] != '\\' {
				quoted = !quoted
			}
		case ',':
			if !quoted {
				out = append(out, strings.TrimSpace(rest[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(rest[start:]))
	return out
}
