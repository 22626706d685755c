// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

// A Program is the body of a process. It runs on the process's own
// goroutine with the process in user mode and returns the process's
// exit status. A Program calls kernel services through the system
// call wrappers on Proc (Fork, Exit, Open, and so on), never by
// touching kernel state directly.
type Program func(p *Proc) int

// A Sighandler is the body of an installed signal handler.
// It runs in user mode, on the process's goroutine, with the
// signal's number in signum. When it returns, the process
// returns through sigret to the interrupted code.
type Sighandler func(p *Proc, signum int)

// Text installs h in the process's text image and returns its
// address, for use as the PC of a custom signal action. Each call
// returns a distinct address. Only the process itself may install
// text, so no lock is needed.
func (p *Proc) Text(h Sighandler) uint64 {
	va := p.textva
	p.textva += 16
	p.text[va] = h
	return va
}

// Poke writes b to the process's memory at va.
func (p *Proc) Poke(va uint64, b []byte) error {
	return p.as.Write(va, b)
}

// Peek reads len(b) bytes of the process's memory at va.
func (p *Proc) Peek(va uint64, b []byte) error {
	return p.as.Read(va, b)
}
