// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rv64 models the machine-level state of a riscv64-flavored
// user process as seen by a simulated kernel: the saved user register
// image (trapframe), a paged user address space, and the rendezvous
// primitive that hands control between kernel flows.
//
// There is no instruction emulator here. User code runs as Go
// functions; the machine model exists so that the kernel above it can
// keep real register and memory semantics (argument registers, stack
// growth, cross-space copies, a fixed trampoline address) without
// caring how "execution" happens.
package rv64

// Address-space layout. The user region runs from 0 to the process
// size; text entry points are handed out from TextBase upward and are
// never backed by pages; SigretVA is the fixed, unmapped address of
// the return-from-signal entry point. A handler that returns with the
// return-address register pointing at SigretVA re-enters the kernel
// through the normal trap path.
const (
	PageSize = 4096
	MaxVA    = 1 << 38

	TextBase = 1 << 32
	SigretVA = MaxVA - PageSize
)

// PageRoundUp rounds addr up to a page boundary.
func PageRoundUp(addr uint64) uint64 {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// PageRoundDown rounds addr down to a page boundary.
func PageRoundDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}
