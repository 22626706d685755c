// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package debug

type Tselector string

// ALWAYS
const (
	ALWAYS Tselector = "ALWAYS"
	ERROR            = "ERROR"
	NEVER            = "NEVER"
)

// Kernel
const (
	PROC    Tselector = "PROC"
	SCHED             = "SCHED"
	SIG               = "SIG"
	TRAP              = "TRAP"
	SYSCALL           = "SYSCALL"
	CLOCK             = "CLOCK"
)

// File system
const (
	FS   Tselector = "FS"
	OP             = "OP"
	PIPE           = "PIPE"
	CONS           = "CONS"
)

// Tests
const (
	TEST Tselector = "TEST"
)
