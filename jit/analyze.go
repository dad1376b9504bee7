// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/guest"
)

// analyze explores guest control flow from the code's entry address and
// builds its compile-unit tree. The walk is depth-first over statically
// known branch targets; a monotonically increasing visit token stamps
// each meta, so re-encountering a stamped meta (a cycle or a diamond
// re-join) prunes that branch and keeps the result a tree.
func (j *JIT) analyze(c *Code) error {
	j.visitToken++
	root := j.walk(c.GuestAddr, nil)
	if root == nil {
		return errors.Errorf("jit: analysis failed at entry %#08x", c.GuestAddr)
	}
	c.Root = root
	return nil
}

// walk visits one guest address, creating or reusing its meta, and
// recurses on the taken and fall-through targets. A nil return prunes the
// branch.
func (j *JIT) walk(addr uint32, parent *frontend.Unit) *frontend.Unit {
	if addr == guest.InvalidAddr {
		return nil
	}

	m := j.lookupMeta(addr)
	if m == nil {
		m = &frontend.Meta{GuestAddr: addr}
		if err := j.frontend.Analyze(m); err != nil {
			// Expected during bootstrap: the target memory may not be
			// materialized yet. Discard the meta and prune.
			logger.Printf("pruning %#08x: %v", addr, err)
			return nil
		}
		j.metas.Put(addr, m)
	}

	if m.Token == j.visitToken {
		return nil
	}
	m.Token = j.visitToken

	u := &frontend.Unit{Meta: m, Parent: parent}
	m.Refs = append(m.Refs, u)
	u.Branch = j.walk(m.BranchAddr, u)
	u.Next = j.walk(m.NextAddr, u)
	return u
}

func (j *JIT) lookupMeta(addr uint32) *frontend.Meta {
	if v, ok := j.metas.Get(addr); ok {
		return v.(*frontend.Meta)
	}
	return nil
}
