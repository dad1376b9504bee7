// Copyright 2020 The go-dynarec Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jit is the translation coordinator. It owns the code cache
// (forward and reverse ordered maps), the per-address analysis cache, and
// the cross-code edge graph, and it drives each compilation through
// analyze, translate, optimize, assemble and finalize. Fault-driven
// invalidation flows back in through the process-wide exception registry.
package jit

import (
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"

	"github.com/go-dynarec/drift/backend"
	"github.com/go-dynarec/drift/exc"
	"github.com/go-dynarec/drift/frontend"
	"github.com/go-dynarec/drift/guest"
	"github.com/go-dynarec/drift/ir"
	"github.com/go-dynarec/drift/passes"
)

// PrintDebugInfo enables coordinator logging to stderr.
var PrintDebugInfo = false

var logger *log.Logger

func init() {
	w := ioutil.Discard
	if PrintDebugInfo {
		w = os.Stderr
	}
	logger = log.New(w, "jit: ", log.Lshortfile)
}

// Config is the coordinator's configuration.
type Config struct {
	// Tag names this translator instance in perf-map entries.
	Tag string
	// Perf enables per-finalization perf-map emission when non-zero.
	Perf int
	// DumpIR writes the pre-optimization IR of every compilation to
	// <AppDir>/ir/0x<addr>.ir.
	DumpIR bool
	// AppDir is the base directory for IR dumps.
	AppDir string
	// ArenaBytes sizes the IR arena; zero selects ir.DefaultCapacity.
	ArenaBytes int
	// Debug forces fastmem off for every compilation.
	Debug bool
}

// JIT coordinates one guest CPU's translation pipeline.
type JIT struct {
	guest    guest.Guest
	frontend frontend.Frontend
	backend  backend.Backend
	cfg      Config

	// codes is the forward map (guest address -> *Code); hosts the
	// reverse map (host address -> *Code). An entry is in one iff it is
	// in the other.
	codes *treemap.Map
	hosts *treemap.Map
	metas *treemap.Map

	visitToken int
	irb        *ir.IR
	pipeline   []passes.Pass

	perf      *os.File
	excHandle *exc.Handle
}

// New creates a coordinator and installs its fastmem fault handler in the
// process-wide exception registry.
func New(g guest.Guest, f frontend.Frontend, b backend.Backend, cfg Config) *JIT {
	if cfg.Tag == "" {
		cfg.Tag = "jit"
	}
	j := &JIT{
		guest:    g,
		frontend: f,
		backend:  b,
		cfg:      cfg,
		codes:    treemap.NewWith(utils.UInt32Comparator),
		hosts:    treemap.NewWith(utils.UInt64Comparator),
		metas:    treemap.NewWith(utils.UInt32Comparator),
		irb:      ir.New(cfg.ArenaBytes),
		pipeline: passes.Default(b.Registers()),
	}
	j.excHandle = exc.Register(j.HandleException)
	if cfg.Perf != 0 {
		name := fmt.Sprintf("/tmp/perf-%d.map", os.Getpid())
		perf, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.Printf("perf map unavailable: %v", err)
		} else {
			j.perf = perf
		}
	}
	return j
}

// Close tears the coordinator down: the exception handler is removed, the
// cache freed, and the perf map closed.
func (j *JIT) Close() error {
	j.excHandle.Remove()
	j.FreeCache()
	if j.perf != nil {
		return j.perf.Close()
	}
	return nil
}

// Lookup returns the code compiled for a guest address, or nil.
func (j *JIT) Lookup(addr uint32) *Code {
	if v, ok := j.codes.Get(addr); ok {
		return v.(*Code)
	}
	return nil
}

// LookupReverse finds the code whose emitted range contains host, which
// may be any address inside the artifact, not only the entry.
func (j *JIT) LookupReverse(host uint64) *Code {
	_, v := j.hosts.Floor(host)
	if v == nil {
		return nil
	}
	c := v.(*Code)
	if host >= c.HostAddr+uint64(c.HostSize) {
		return nil
	}
	return c
}

// Compile translates the block graph reachable from addr and installs the
// result. An existing code at the address is freed first (recompilation
// is invalidation, not append) but its fastmem flag carries over so a
// faulted address stays off the fast path.
func (j *JIT) Compile(addr uint32) (*Code, error) {
	fastmem := true
	if old := j.Lookup(addr); old != nil {
		fastmem = old.Fastmem
		j.freeCode(old)
	}
	if j.cfg.Debug {
		fastmem = false
	}

	c := &Code{GuestAddr: addr, Fastmem: fastmem}
	if err := j.analyze(c); err != nil {
		return nil, err
	}

	j.irb.Reset()
	if err := j.frontend.Translate(j.irb, c.Root, c.Fastmem); err != nil {
		freeUnits(c.Root)
		return nil, errors.Wrapf(err, "jit: translating %#08x", addr)
	}

	if j.cfg.DumpIR {
		j.dumpIR(addr)
	}

	if err := passes.Run(j.irb, j.pipeline); err != nil {
		freeUnits(c.Root)
		return nil, errors.Wrapf(err, "jit: optimizing %#08x", addr)
	}

	out, err := j.backend.Assemble(j.irb, addr, c.Fastmem)
	if err != nil {
		freeUnits(c.Root)
		c.Root = nil
		if errors.Cause(err) == backend.ErrBufferFull {
			// The buffer is exhausted: drop everything and let the next
			// dispatch hit retry against a fresh cache.
			logger.Printf("code buffer overflow at %#08x, resetting cache", addr)
			j.FreeCache()
			return nil, backend.ErrBufferFull
		}
		return nil, err
	}
	c.HostAddr = out.Addr
	c.HostSize = out.Size

	j.finalize(c)
	return c, nil
}

// finalize installs an assembled code into the dispatch cache and both
// lookup maps.
func (j *JIT) finalize(c *Code) {
	if len(c.InEdges) != 0 || len(c.OutEdges) != 0 {
		panic("jit: finalizing a code that already has edges")
	}
	if _, ok := j.codes.Get(c.GuestAddr); ok {
		panic("jit: finalizing a code already present in the forward map")
	}
	if _, ok := j.hosts.Get(c.HostAddr); ok {
		panic("jit: finalizing a code already present in the reverse map")
	}

	j.guest.CacheCode(c.GuestAddr, c.HostAddr)
	j.codes.Put(c.GuestAddr, c)
	j.hosts.Put(c.HostAddr, c)

	if j.perf != nil {
		fmt.Fprintf(j.perf, "%x %x %s_0x%08x\n", c.HostAddr, c.HostSize, j.cfg.Tag, c.GuestAddr)
	}
	logger.Printf("finalized %#08x at %#x (%d bytes)", c.GuestAddr, c.HostAddr, c.HostSize)
}

// AddEdge records a discovered direct branch from the code containing
// branchHost to the code at dstGuest, and patches it. Stale sources and
// missing destinations are dropped silently: the runtime may race the
// cache here.
func (j *JIT) AddEdge(branchHost uint64, dstGuest uint32) {
	src := j.LookupReverse(branchHost)
	if src == nil || j.guest.LookupCode(src.GuestAddr) != src.HostAddr {
		return
	}
	dst := j.Lookup(dstGuest)
	if dst == nil {
		return
	}

	e := &Edge{Branch: branchHost, Src: src, Dst: dst}
	src.OutEdges = append(src.OutEdges, e)
	dst.InEdges = append(dst.InEdges, e)
	j.patchEdges(src)
}

// patchEdges rewrites every unpatched branch touching c to jump directly
// between host artifacts. Idempotent through the per-edge flag.
func (j *JIT) patchEdges(c *Code) {
	for _, e := range c.InEdges {
		if !e.Patched {
			j.guest.PatchEdge(e.Branch, e.Dst.HostAddr)
			e.Patched = true
		}
	}
	for _, e := range c.OutEdges {
		if !e.Patched {
			j.guest.PatchEdge(e.Branch, e.Dst.HostAddr)
			e.Patched = true
		}
	}
}

// restoreEdges undoes the incoming patches of c, sending callers back
// through guest-address dispatch before c becomes unreachable.
func (j *JIT) restoreEdges(c *Code) {
	for _, e := range c.InEdges {
		if e.Patched {
			j.guest.RestoreEdge(e.Branch, e.Dst.GuestAddr)
			e.Patched = false
		}
	}
}

// invalidateCode tombstones c: the compile-unit tree is freed, the guest
// dispatch entry dropped, incoming branches restored, and all edges
// destroyed. The lookup maps keep their entries until FreeCache reaps
// them; the code may still be on the host stack. Idempotent.
func (j *JIT) invalidateCode(c *Code) {
	if c.invalid {
		return
	}
	c.invalid = true

	freeUnits(c.Root)
	c.Root = nil

	j.guest.InvalidateCode(c.GuestAddr)
	j.restoreEdges(c)

	for _, e := range c.InEdges {
		e.Src.OutEdges = removeEdge(e.Src.OutEdges, e)
	}
	for _, e := range c.OutEdges {
		e.Dst.InEdges = removeEdge(e.Dst.InEdges, e)
	}
	c.InEdges, c.OutEdges = nil, nil
}

// freeCode invalidates c and removes it from both lookup maps.
func (j *JIT) freeCode(c *Code) {
	j.invalidateCode(c)
	j.codes.Remove(c.GuestAddr)
	j.hosts.Remove(c.HostAddr)
}

// InvalidateCache invalidates every code without touching the lookup
// maps: code executing on another frame of the stack can still resolve
// its own reverse lookups until it unwinds. With every compile-unit tree
// freed, the metas have no references left and are released too.
func (j *JIT) InvalidateCache() {
	for _, c := range j.allCodes() {
		j.invalidateCode(c)
	}
	j.freeMetas()
}

// FreeCache frees every code, releases the metas and resets the backend.
func (j *JIT) FreeCache() {
	for _, c := range j.allCodes() {
		j.freeCode(c)
	}
	j.freeMetas()
	j.backend.Reset()
}

func (j *JIT) allCodes() []*Code {
	out := make([]*Code, 0, j.codes.Size())
	for _, v := range j.codes.Values() {
		out = append(out, v.(*Code))
	}
	return out
}

func (j *JIT) freeMetas() {
	for _, v := range j.metas.Values() {
		m := v.(*frontend.Meta)
		if len(m.Refs) != 0 {
			panic(fmt.Sprintf("jit: freeing meta %#08x with %d live compile refs", m.GuestAddr, len(m.Refs)))
		}
	}
	j.metas.Clear()
}

// HandleException consumes fastmem faults inside compiled code: the
// backend patches the faulting site to its slow path, the code loses its
// fastmem flag and is invalidated in place. The maps keep the entry so
// further faults from the same still-running frame keep resolving.
func (j *JIT) HandleException(ex *exc.Exception) bool {
	c := j.LookupReverse(ex.PC)
	if c == nil {
		return false
	}
	if !j.backend.HandleException(ex) {
		return false
	}
	c.Fastmem = false
	j.invalidateCode(c)
	return true
}

// DumpGuestCode writes a disassembly of the guest code behind a compiled
// entry.
func (j *JIT) DumpGuestCode(c *Code) error {
	var size int
	if m := j.lookupMeta(c.GuestAddr); m != nil {
		size = m.Size
	}
	if size == 0 {
		return errors.Errorf("jit: no analysis for %#08x", c.GuestAddr)
	}
	return j.frontend.Dump(os.Stderr, c.GuestAddr, size)
}

func (j *JIT) dumpIR(addr uint32) {
	dir := filepath.Join(j.cfg.AppDir, "ir")
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Printf("ir dump: %v", err)
		return
	}
	name := filepath.Join(dir, fmt.Sprintf("0x%08x.ir", addr))
	f, err := os.Create(name)
	if err != nil {
		logger.Printf("ir dump: %v", err)
		return
	}
	defer f.Close()
	if err := ir.Write(f, j.irb); err != nil {
		logger.Printf("ir dump: %v", err)
	}
}
