// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Ported from xv6-riscv user/sh.c.
//
// Copyright 2006-2019 Frans Kaashoek, Robert Morris, and Russ Cox.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"strconv"
	"strings"

	"rsc.io/xv6/xv6unix"
)

// shellmain is the body of the console shell. One command per line;
// each command runs in a forked child, so the shell itself survives
// signals and failed commands. A trailing & runs the command in the
// background.
func shellmain(p *xv6unix.Proc) int {
	// Control-C should interrupt the command, not the shell.
	// Catch SIGINT and start a fresh line.
	intva := p.Text(func(p *xv6unix.Proc, _ int) {
		p.WriteString(2, "\n")
	})
	p.Sigaction(xv6unix.SIGINT, &xv6unix.Sigaction{Kind: xv6unix.SigCustom, PC: intva}, nil)

	for {
		p.WriteString(2, "$ ")
		line, err := p.ReadString(0, 128)
		if err != nil {
			if err == xv6unix.EINTR {
				continue
			}
			return 1
		}
		if line == "" { // end of input
			return 0
		}
		argv := strings.Fields(line)
		if len(argv) == 0 {
			continue
		}
		bg := false
		if argv[len(argv)-1] == "&" {
			bg = true
			argv = argv[:len(argv)-1]
			if len(argv) == 0 {
				continue
			}
		}

		// cd and exit must act on the shell itself.
		switch argv[0] {
		case "exit":
			status := 0
			if len(argv) > 1 {
				status, _ = strconv.Atoi(argv[1])
			}
			return status
		case "cd":
			dir := "/"
			if len(argv) > 1 {
				dir = argv[1]
			}
			if err := p.Chdir(dir); err != nil {
				p.WriteString(2, "cd: "+dir+": "+err.Error()+"\n")
			}
			continue
		}

		pid, err := p.Fork(func(p *xv6unix.Proc) int {
			return runcmd(p, argv)
		})
		if err != nil {
			p.WriteString(2, "sh: fork: "+err.Error()+"\n")
			continue
		}
		if bg {
			p.WriteString(2, "["+strconv.Itoa(pid)+"]\n")
			continue
		}
		for {
			wpid, status, err := p.Wait()
			if err != nil {
				break
			}
			if wpid == pid {
				if status != 0 {
					p.WriteString(2, "exit "+strconv.Itoa(status)+"\n")
				}
				break
			}
			// Reaped a finished background job.
		}
	}
}

// runcmd executes one command. It runs in a child of the shell; the
// return value becomes the child's exit status.
func runcmd(p *xv6unix.Proc, argv []string) int {
	switch argv[0] {
	case "help":
		p.WriteString(1, shellHelp)

	case "echo":
		p.WriteString(1, strings.Join(argv[1:], " ")+"\n")

	case "cat":
		if len(argv) < 2 {
			return usage(p, "cat file ...")
		}
		for _, name := range argv[1:] {
			fd, err := p.Open(name, xv6unix.O_RDONLY)
			if err != nil {
				p.WriteString(2, "cat: "+name+": "+err.Error()+"\n")
				return 1
			}
			for {
				s, err := p.ReadString(fd, 512)
				if err != nil || s == "" {
					break
				}
				p.WriteString(1, s)
			}
			p.Close(fd)
		}

	case "ls":
		name := "."
		if len(argv) > 1 {
			name = argv[1]
		}
		fd, err := p.Open(name, xv6unix.O_RDONLY)
		if err != nil {
			p.WriteString(2, "ls: "+name+": "+err.Error()+"\n")
			return 1
		}
		for {
			s, err := p.ReadString(fd, 512)
			if err != nil || s == "" {
				break
			}
			p.WriteString(1, s)
		}
		p.Close(fd)

	case "write":
		if len(argv) < 3 {
			return usage(p, "write file word ...")
		}
		fd, err := p.Open(argv[1], xv6unix.O_CREATE|xv6unix.O_TRUNC|xv6unix.O_WRONLY)
		if err != nil {
			p.WriteString(2, "write: "+argv[1]+": "+err.Error()+"\n")
			return 1
		}
		p.WriteString(fd, strings.Join(argv[2:], " ")+"\n")
		p.Close(fd)

	case "rm":
		if len(argv) < 2 {
			return usage(p, "rm file ...")
		}
		for _, name := range argv[1:] {
			if err := p.Unlink(name); err != nil {
				p.WriteString(2, "rm: "+name+": "+err.Error()+"\n")
				return 1
			}
		}

	case "mkdir":
		if len(argv) < 2 {
			return usage(p, "mkdir dir ...")
		}
		for _, name := range argv[1:] {
			if err := p.Mkdir(name); err != nil {
				p.WriteString(2, "mkdir: "+name+": "+err.Error()+"\n")
				return 1
			}
		}

	case "ln":
		if len(argv) != 3 {
			return usage(p, "ln old new")
		}
		if err := p.Link(argv[1], argv[2]); err != nil {
			p.WriteString(2, "ln: "+err.Error()+"\n")
			return 1
		}

	case "stat":
		if len(argv) != 2 {
			return usage(p, "stat file")
		}
		fd, err := p.Open(argv[1], xv6unix.O_RDONLY)
		if err != nil {
			p.WriteString(2, "stat: "+argv[1]+": "+err.Error()+"\n")
			return 1
		}
		st, err := p.Fstat(fd)
		p.Close(fd)
		if err != nil {
			p.WriteString(2, "stat: "+argv[1]+": "+err.Error()+"\n")
			return 1
		}
		p.WriteString(1, "ino "+strconv.FormatUint(uint64(st.Ino), 10)+
			" type "+strconv.Itoa(int(st.Type))+
			" nlink "+strconv.Itoa(int(st.Nlink))+
			" size "+strconv.FormatUint(st.Size, 10)+"\n")

	case "sleep":
		if len(argv) != 2 {
			return usage(p, "sleep ticks")
		}
		n, err := strconv.Atoi(argv[1])
		if err != nil {
			return usage(p, "sleep ticks")
		}
		p.Sleep(n)

	case "uptime":
		p.WriteString(1, strconv.FormatUint(p.Uptime(), 10)+" ticks\n")

	case "kill":
		if len(argv) < 2 || len(argv) > 3 {
			return usage(p, "kill pid [sig]")
		}
		pid, err := strconv.Atoi(argv[1])
		if err != nil {
			return usage(p, "kill pid [sig]")
		}
		sig := xv6unix.SIGTERM
		if len(argv) == 3 {
			sig, err = strconv.Atoi(argv[2])
			if err != nil {
				return usage(p, "kill pid [sig]")
			}
		}
		if err := p.Kill(pid, sig); err != nil {
			p.WriteString(2, "kill: "+err.Error()+"\n")
			return 1
		}

	default:
		p.WriteString(2, "sh: "+argv[0]+": not found\n")
		return 127
	}
	return 0
}

func usage(p *xv6unix.Proc, s string) int {
	p.WriteString(2, "usage: "+s+"\n")
	return 1
}

const shellHelp = `builtins:
	cat cd echo help kill ln ls mkdir rm sleep stat uptime write
	exit [status] leaves the shell; a trailing & runs in background
`
