// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package jit

import (
	"github.com/go-dynarec/drift/frontend"
)

// Code is one compiled native artifact for one guest entry point. It is
// present in the forward map iff it is present in the reverse map; after
// invalidation it stays in both until the next FreeCache reaps it.
type Code struct {
	GuestAddr uint32
	HostAddr  uint64
	HostSize  int

	// Fastmem is monotone non-increasing over the code's lifetime: it is
	// cleared on the first fastmem fault and never set again.
	Fastmem bool

	// Root owns the compile-unit tree of this compilation.
	Root *frontend.Unit

	// InEdges are patched branches from other code into this one;
	// OutEdges the reverse. Edges are owned by their source code and
	// linked into the destination's incoming list.
	InEdges  []*Edge
	OutEdges []*Edge

	invalid bool
}

// Edge is a patched direct branch between two code entries.
type Edge struct {
	// Branch is the host address of the branch instruction.
	Branch  uint64
	Src     *Code
	Dst     *Code
	Patched bool
}

func removeEdge(edges []*Edge, e *Edge) []*Edge {
	for i, cand := range edges {
		if cand == e {
			edges[i] = edges[len(edges)-1]
			return edges[:len(edges)-1]
		}
	}
	return edges
}

// freeUnits detaches a compile-unit tree from its metas.
func freeUnits(u *frontend.Unit) {
	if u == nil {
		return
	}
	freeUnits(u.Branch)
	freeUnits(u.Next)
	u.Meta.RemoveRef(u)
	u.Branch, u.Next, u.Parent = nil, nil, nil
}
