// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv kernel/console.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package xv6unix

import "io"

func ctrl(x byte) byte { return x - '@' }

// The console provides canonical ("cooked") input: input arrives a
// byte at a time from the operator, is line-edited in buf, and is
// handed to readers a line at a time. Output goes straight through
// to out.
type console struct {
	lock spinlock
	out  io.Writer
	echo bool

	// input
	buf [INPUT_BUF]byte
	r   uint32 // read index
	w   uint32 // write index
	e   uint32 // edit index
}

// putc writes one byte of output. ctrl('H') rubs out the most
// recently written byte.
func (cons *console) putc(ch byte) {
	if ch == ctrl('H') {
		cons.out.Write([]byte("\b \b"))
	} else {
		cons.out.Write([]byte{ch})
	}
}

// consoleInput feeds one byte of operator input to the console.
// Line editing happens here: ctrl('H') erases a character,
// ctrl('U') the line; ctrl('P') prints the process table and
// ctrl('C') becomes SIGINT for the running workload. A completed
// line (or ctrl('D')) wakes any reader.
func (sys *System) consoleInput(c *CPU, ch byte) {
	cons := sys.cons
	cons.lock.acquire(c)
	switch ch {
	case ctrl('P'): // Print process list.
		sys.Procdump(cons.out)
	case ctrl('C'): // Interrupt the workload.
		sys.signal(c, SIGINT)
	case ctrl('U'): // Kill line.
		for cons.e != cons.w && cons.buf[(cons.e-1)%INPUT_BUF] != '\n' {
			cons.e--
			if cons.echo {
				cons.putc(ctrl('H'))
			}
		}
	case ctrl('H'), 0x7f: // Backspace
		if cons.e != cons.w {
			cons.e--
			if cons.echo {
				cons.putc(ctrl('H'))
			}
		}
	default:
		if ch != 0 && cons.e-cons.r < INPUT_BUF {
			if ch == '\r' {
				ch = '\n'
			}
			if cons.echo {
				cons.putc(ch)
			}
			cons.buf[cons.e%INPUT_BUF] = ch
			cons.e++
			if ch == '\n' || ch == ctrl('D') || cons.e-cons.r == INPUT_BUF {
				// Wake up consoleread() if a whole line (or
				// end-of-file) has arrived.
				cons.w = cons.e
				sys.wakeup(c, &cons.r)
			}
		}
	}
	cons.lock.release(c)
}

// consoleread copies input to the user buffer at dst, at most one
// line. It blocks until input arrives. ctrl('D') produces a
// zero-byte read for the caller that hits it.
func (sys *System) consoleread(p *Proc, user bool, dst uint64, n int) int64 {
	cons := sys.cons
	target := n
	cons.lock.acquire(p.cpu)
	for n > 0 {
		// Wait until the operator has typed some input.
		for cons.r == cons.w {
			if p.isKilled() {
				cons.lock.release(p.cpu)
				return errv(EINTR)
			}
			p.sleep(&cons.r, &cons.lock)
		}
		ch := cons.buf[cons.r%INPUT_BUF]
		cons.r++
		if ch == ctrl('D') { // end-of-file
			if n < target {
				// Save ctrl('D') for next time, so the caller
				// gets a 0-byte result then.
				cons.r--
			}
			break
		}
		if !p.eitherCopyout(user, dst, nil, []byte{ch}) {
			break
		}
		dst++
		n--
		if ch == '\n' {
			// A whole line has arrived; return to the user-level
			// read.
			break
		}
	}
	cons.lock.release(p.cpu)
	return int64(target - n)
}

// consolewrite copies user bytes at src to the console output.
func (sys *System) consolewrite(p *Proc, user bool, src uint64, n int) int64 {
	cons := sys.cons
	cons.lock.acquire(p.cpu)
	i := 0
	for ; i < n; i++ {
		var b [1]byte
		if !p.eitherCopyin(b[:], user, src+uint64(i), nil) {
			break
		}
		cons.putc(b[0])
	}
	cons.lock.release(p.cpu)
	return int64(i)
}

// The null device reads empty and discards writes.

func (sys *System) nullread(p *Proc, user bool, dst uint64, n int) int64 {
	return 0
}

func (sys *System) nullwrite(p *Proc, user bool, src uint64, n int) int64 {
	if n < 0 {
		return errv(EINVAL)
	}
	return int64(n)
}
