// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/param.h and kernel/proc.h.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

/*
 * tunable variables
 */
const (
	NPROC      = 64  /* maximum number of processes */
	NCPU       = 8   /* maximum number of CPUs */
	NOFILE     = 16  /* open files per process */
	NFILE      = 100 /* open files per system */
	NDEV       = 10  /* maximum major device number */
	MAXOPS     = 10  /* max concurrent file-system operations */
	PIPESIZE   = 512 /* bytes held in a pipe */
	INPUT_BUF  = 128 /* console input buffer */
	DCACHESIZE = 64  /* directory name lookup cache entries */
	USERSIZE   = 16  /* initial user image, in pages */
	MAXPATH    = 128 /* maximum file path name */
	MAXFILE    = 1 << 20 /* maximum bytes per file */
)

/*
 * signals
 * dont change
 */
const (
	NSIG    = 32
	SIGHUP  = 1  /* hangup */
	SIGINT  = 2  /* interrupt */
	SIGQUIT = 3  /* quit */
	SIGILL  = 4  /* illegal instruction */
	SIGTRAP = 5  /* trace or breakpoint */
	SIGABRT = 6  /* abort */
	SIGBUS  = 7  /* bus error */
	SIGFPE  = 8  /* floating exception */
	SIGKILL = 9  /* kill (cannot be caught, blocked, or ignored) */
	SIGUSR1 = 10 /* user defined */
	SIGSEGV = 11 /* segmentation violation */
	SIGUSR2 = 12 /* user defined */
	SIGPIPE = 13 /* write on a pipe with no one to read it */
	SIGALRM = 14 /* alarm clock */
	SIGTERM = 15 /* software termination */
	SIGSTOP = 17 /* stop (cannot be caught, blocked, or ignored) */
	SIGCONT = 19 /* continue a stopped process */
)

// Procstate is the life-cycle state of a process table slot.
type Procstate int32

const (
	UNUSED Procstate = iota
	USED
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
)

var statenames = [...]string{
	UNUSED:   "unused",
	USED:     "used",
	SLEEPING: "sleep",
	RUNNABLE: "runble",
	RUNNING:  "run",
	ZOMBIE:   "zombie",
}

func (s Procstate) String() string {
	if 0 <= int(s) && int(s) < len(statenames) {
		return statenames[s]
	}
	return "???"
}
