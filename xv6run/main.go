// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Xv6run boots the xv6 simulator on a disk image and connects the
// simulated console to the terminal.
//
// Usage:
//
//	xv6run [-disk file] [-conf file] [-ncpu n] [-stats]
//
// With no -disk flag the built-in boot image is used. On a terminal,
// keystrokes go to the simulated console: control-P prints the
// process table, control-C sends SIGINT, control-] opens the
// monitor, and control-\ quits. When standard input is not a
// terminal, xv6run feeds it to the console as a script and halts
// once only init is left running.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"rsc.io/xv6/xv6unix"
)

var (
	diskfile   = flag.String("disk", "", "boot from txtar disk image `file`")
	conffile   = flag.String("conf", "", "read machine configuration from YAML `file`")
	ncpu       = flag.Int("ncpu", 0, "override configured number of cpus")
	printstats = flag.Bool("stats", false, "print kernel statistics at exit")
	cpuprofile = flag.String("cpuprofile", "", "write cpuprofile to `file`")
)

func main() {
	log.SetPrefix("xv6run: ")
	log.SetFlags(0)
	flag.Parse()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			log.Fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	conf := xv6unix.DefaultConfig()
	if *conffile != "" {
		c, err := xv6unix.ReadConfig(*conffile)
		if err != nil {
			log.Fatal(err)
		}
		conf = c
	}
	if *ncpu != 0 {
		conf.NCPU = *ncpu
	}

	disk := xv6unix.FS
	if *diskfile != "" {
		data, err := os.ReadFile(*diskfile)
		if err != nil {
			log.Fatal(err)
		}
		disk = data
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	var out io.Writer = os.Stdout
	if interactive {
		out = crlf{os.Stdout}
	}

	sys, err := xv6unix.NewSystem(disk, out, conf)
	if err != nil {
		log.Fatal(err)
	}

	initprog := initmain
	if !interactive {
		initprog = scriptinit
	}
	if _, err := sys.Spawn("init", initprog); err != nil {
		log.Fatal(err)
	}

	if interactive {
		console(sys)
	} else {
		script(sys)
	}
	sys.Halt()
	if *printstats {
		printStats(sys)
	}
}

// console runs the interactive console: raw keystrokes go to the
// simulated tty, control-\ quits, control-] opens the monitor.
func console(sys *xv6unix.System) {
	old, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatal(err)
	}
	fixup := func() { term.Restore(int(os.Stdin.Fd()), old) }
	defer fixup()

	buf := make([]byte, 100)
	for {
		n, err := os.Stdin.Read(buf)
		keep := make([]byte, 0, n)
		for _, c := range buf[:n] {
			switch c {
			case 0x1c: // control-\
				sys.Input(keep)
				return
			case 0x1d: // control-]
				sys.Input(keep)
				keep = keep[:0]
				fixup()
				if !monitor(sys) {
					return
				}
				if _, err := term.MakeRaw(int(os.Stdin.Fd())); err != nil {
					log.Fatal(err)
				}
			default:
				keep = append(keep, c)
			}
		}
		sys.Input(keep)
		if err == io.EOF {
			sys.Input([]byte{0o004})
			return
		}
		if err != nil {
			log.Fatalf("reading stdin: %v", err)
		}
	}
}

// script feeds standard input to the console a little at a time so
// the shell can keep up, then waits for everything but init to
// finish.
func script(sys *xv6unix.System) {
	for sys.NumProcs() < 2 {
		time.Sleep(10 * time.Millisecond)
	}
	buf := make([]byte, 64)
	for {
		n, err := os.Stdin.Read(buf)
		sys.Input(buf[:n])
		if err != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	sys.Input([]byte{0o004})
	for sys.NumProcs() > 1 {
		time.Sleep(10 * time.Millisecond)
	}
}

// monitor is the operator REPL, entered with control-] on the
// console. It reports true to continue the run, false to end it.
func monitor(sys *xv6unix.System) bool {
	fmt.Println()
	rl, err := readline.New("xv6> ")
	if err != nil {
		log.Print(err)
		return true
	}
	defer rl.Close()
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return true
		}
		f := strings.Fields(line)
		if len(f) == 0 {
			continue
		}
		switch f[0] {
		case "help":
			fmt.Print(monitorHelp)
		case "cont", "c":
			return true
		case "halt", "q":
			sys.Halt()
			return false
		case "ps":
			sys.Procdump(os.Stdout)
		case "uptime":
			fmt.Printf("%d ticks\n", sys.Ticks())
		case "stats":
			printStats(sys)
		case "sh":
			if _, err := sys.Spawn("sh", shellmain); err != nil {
				fmt.Println(err)
			}
		case "kill":
			pid, sig, err := parseKill(f[1:])
			if err != nil {
				fmt.Println(err)
				break
			}
			if err := sys.Kill(pid, sig); err != nil {
				fmt.Println(err)
			}
		default:
			fmt.Printf("unknown command %q; try help\n", f[0])
		}
	}
}

const monitorHelp = `commands:
	ps            print the process table
	kill pid [sig]  send a signal (default SIGTERM)
	sh            start a new console shell
	stats         print kernel statistics
	uptime        print clock ticks since boot
	cont          return to the console
	halt          stop the machine and exit
`

func parseKill(args []string) (pid, sig int, err error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, 0, fmt.Errorf("usage: kill pid [sig]")
	}
	pid, err = strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, fmt.Errorf("bad pid %q", args[0])
	}
	sig = xv6unix.SIGTERM
	if len(args) == 2 {
		sig, err = strconv.Atoi(args[1])
		if err != nil {
			return 0, 0, fmt.Errorf("bad signal %q", args[1])
		}
	}
	return pid, sig, nil
}

func printStats(sys *xv6unix.System) {
	if sum, err := sys.SchedStats(); err == nil {
		fmt.Println(sum)
	}
	hits, misses := sys.DcacheStats()
	fmt.Printf("dcache %d hits %d misses\n", hits, misses)
	fmt.Printf("log %d commits\n", sys.Commits())
	fmt.Printf("uptime %d ticks\n", sys.Ticks())
}

// crlf maps \n to \r\n for a terminal in raw mode.
type crlf struct{ w io.Writer }

func (c crlf) Write(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		i := bytes.IndexByte(b, '\n')
		if i < 0 {
			m, err := c.w.Write(b)
			return n + m, err
		}
		m, err := c.w.Write(b[:i])
		n += m
		if err != nil {
			return n, err
		}
		if _, err := c.w.Write([]byte("\r\n")); err != nil {
			return n, err
		}
		n++
		b = b[i+1:]
	}
	return n, nil
}
