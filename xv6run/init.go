// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv user/init.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"strconv"

	"rsc.io/xv6/xv6unix"
)

// initmain is the body of init, the first process: attach the
// console to descriptors 0, 1, and 2, start a shell, and spend the
// rest of time adopting and reaping orphans. The interactive form
// restarts the shell when it exits.
func initmain(p *xv6unix.Proc) int { return initbody(p, true) }

// scriptinit is init for scripted runs: the shell is not restarted,
// so the run winds down once the script's processes finish.
func scriptinit(p *xv6unix.Proc) int { return initbody(p, false) }

func initbody(p *xv6unix.Proc, respawn bool) int {
	if fd, err := p.Open("/dev/console", xv6unix.O_RDWR); err != nil || fd != 0 {
		// No console; nowhere even to complain.
		return 1
	}
	p.Dup(0) // stdout
	p.Dup(0) // stderr

	if fd, err := p.Open("/etc/motd", xv6unix.O_RDONLY); err == nil {
		for {
			s, err := p.ReadString(fd, 512)
			if err != nil || s == "" {
				break
			}
			p.WriteString(1, s)
		}
		p.Close(fd)
	}

	for {
		p.WriteString(1, "init: starting sh\n")
		shpid, err := p.Fork(shellmain)
		if err != nil {
			p.WriteString(2, "init: fork failed\n")
			return 1
		}
		for {
			pid, status, err := p.Wait()
			if err != nil {
				p.Sleep(5)
				continue
			}
			if pid == shpid {
				if status != 0 {
					p.WriteString(2, "init: sh exited with status "+strconv.Itoa(status)+"\n")
				}
				break
			}
			// An orphan we adopted; just keep reaping.
		}
		if !respawn {
			break
		}
	}

	// No more shells. Stay around to reap orphans; init may not exit.
	for {
		if _, _, err := p.Wait(); err != nil {
			p.Sleep(5)
		}
	}
}
