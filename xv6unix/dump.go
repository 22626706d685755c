// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/proc.c (procdump).
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
)

// Procdump prints a process listing to w. Runs when a user types
// control-P on the console, and from the monitor's ps command.
// No locks are taken, so this works even if the system is wedged;
// each field is read through its own atomic and the row may be
// mutually stale.
func (sys *System) Procdump(w io.Writer) {
	fmt.Fprintf(w, "\n")
	for i := range sys.procs {
		p := &sys.procs[i]
		state := p.State()
		if state == UNUSED {
			continue
		}
		fmt.Fprintf(w, "%-6d %-8s %-16s %s\n", p.pid.Load(), state, p.Name(), humanize.IBytes(p.sz.Load()))
	}
}

// NumProcs returns the number of process table slots in use.
// Zombies count; they hold their slot until reaped.
func (sys *System) NumProcs() int {
	n := 0
	for i := range sys.procs {
		if sys.procs[i].State() != UNUSED {
			n++
		}
	}
	return n
}
