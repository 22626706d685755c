// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xv6unix

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runProg spawns body after an idle init and returns its error
// channel; bodies report the first failing step as a string.
func runProg(t *testing.T, sys *System, body func(p *Proc) string) {
	t.Helper()
	resc := make(chan string, 1)
	_, err := sys.Spawn("test", func(p *Proc) int {
		resc <- body(p)
		return 0
	})
	require.NoError(t, err)
	if msg := recv(t, "program result", resc); msg != "" {
		t.Fatal(msg)
	}
}

func TestBootImage(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		fd, err := p.Open("/etc/motd", O_RDONLY)
		if err != nil {
			return "open /etc/motd: " + err.Error()
		}
		s, err := p.ReadString(fd, 64)
		if err != nil {
			return "read /etc/motd: " + err.Error()
		}
		if s != "Welcome to xv6.\n" {
			return "motd = " + s
		}
		p.Close(fd)
		if _, err := p.Open("/no/such/file", O_RDONLY); err != ENOENT {
			return "open of missing file did not fail with ENOENT"
		}
		return ""
	})
}

func TestCreateWriteRead(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		fd, err := p.Open("/tmp/hello", O_CREATE|O_RDWR)
		if err != nil {
			return "create: " + err.Error()
		}
		if n, err := p.WriteString(fd, "hello, disk"); err != nil || n != 11 {
			return "write failed"
		}
		st, err := p.Fstat(fd)
		if err != nil {
			return "fstat: " + err.Error()
		}
		if st.Type != T_FILE || st.Size != 11 || st.Nlink != 1 {
			return "bad stat after write"
		}
		p.Close(fd)

		fd, err = p.Open("/tmp/hello", O_RDONLY)
		if err != nil {
			return "reopen: " + err.Error()
		}
		s, err := p.ReadString(fd, 64)
		if err != nil || s != "hello, disk" {
			return "read back mismatch"
		}
		p.Close(fd)

		// O_TRUNC drops the old contents.
		fd, err = p.Open("/tmp/hello", O_RDWR|O_TRUNC)
		if err != nil {
			return "truncating open: " + err.Error()
		}
		st, err = p.Fstat(fd)
		if err != nil || st.Size != 0 {
			return "truncate did not empty the file"
		}
		p.Close(fd)
		return ""
	})
}

func TestDirListing(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		if err := p.Mkdir("/tmp/d"); err != nil {
			return "mkdir: " + err.Error()
		}
		for _, name := range []string{"/tmp/d/bb", "/tmp/d/a"} {
			fd, err := p.Open(name, O_CREATE|O_WRONLY)
			if err != nil {
				return "create " + name + ": " + err.Error()
			}
			p.Close(fd)
		}
		fd, err := p.Open("/tmp/d", O_RDONLY)
		if err != nil {
			return "open dir: " + err.Error()
		}
		s, err := p.ReadString(fd, 128)
		if err != nil {
			return "read dir: " + err.Error()
		}
		if s != "a\nbb\n" {
			return "dir listing not sorted: " + s
		}
		// Directories are read-only.
		if _, err := p.Open("/tmp/d", O_RDWR); err != EISDIR {
			return "writable open of a directory did not fail"
		}
		return ""
	})
}

func TestLinkUnlink(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		fd, err := p.Open("/tmp/x", O_CREATE|O_WRONLY)
		if err != nil {
			return "create: " + err.Error()
		}
		p.WriteString(fd, "data")
		p.Close(fd)

		if err := p.Link("/tmp/x", "/tmp/y"); err != nil {
			return "link: " + err.Error()
		}
		fd, err = p.Open("/tmp/y", O_RDONLY)
		if err != nil {
			return "open link: " + err.Error()
		}
		if st, err := p.Fstat(fd); err != nil || st.Nlink != 2 {
			return "nlink after link"
		}

		// Content survives unlinking one name, and survives
		// unlinking the last name while a descriptor is open.
		if err := p.Unlink("/tmp/x"); err != nil {
			return "unlink x: " + err.Error()
		}
		if err := p.Unlink("/tmp/y"); err != nil {
			return "unlink y: " + err.Error()
		}
		if s, err := p.ReadString(fd, 16); err != nil || s != "data" {
			return "read through open fd after unlink"
		}
		p.Close(fd)
		if _, err := p.Open("/tmp/y", O_RDONLY); err != ENOENT {
			return "unlinked name still resolves"
		}

		// Directories cannot be linked, and non-empty ones cannot
		// be unlinked.
		if err := p.Link("/tmp", "/tmp2"); err != EPERM {
			return "directory link did not fail"
		}
		if err := p.Unlink("/etc"); err != EINVAL {
			return "unlink of non-empty directory did not fail"
		}
		return ""
	})
}

func TestChdir(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		if err := p.Mkdir("/tmp/wd"); err != nil {
			return "mkdir: " + err.Error()
		}
		if err := p.Chdir("/tmp/wd"); err != nil {
			return "chdir: " + err.Error()
		}
		fd, err := p.Open("rel", O_CREATE|O_WRONLY)
		if err != nil {
			return "relative create: " + err.Error()
		}
		p.Close(fd)
		if _, err := p.Open("/tmp/wd/rel", O_RDONLY); err != nil {
			return "relative create landed elsewhere: " + err.Error()
		}
		if err := p.Chdir("/etc/motd"); err != ENOTDIR {
			return "chdir to a file did not fail"
		}
		if err := p.Chdir(".."); err != nil {
			return "chdir ..: " + err.Error()
		}
		if _, err := p.Open("wd/rel", O_RDONLY); err != nil {
			return "dot-dot did not land in /tmp: " + err.Error()
		}
		return ""
	})
}

func TestDevices(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		fd, err := p.Open("/dev/null", O_RDWR)
		if err != nil {
			return "open /dev/null: " + err.Error()
		}
		if n, err := p.WriteString(fd, "discard"); err != nil || n != 7 {
			return "write to /dev/null"
		}
		if s, err := p.ReadString(fd, 16); err != nil || s != "" {
			return "read from /dev/null not empty"
		}
		p.Close(fd)

		if err := p.Mknod("/tmp/zero", NULLDEV, 0); err != nil {
			return "mknod: " + err.Error()
		}
		fd, err = p.Open("/tmp/zero", O_WRONLY)
		if err != nil {
			return "open mknod device: " + err.Error()
		}
		if _, err := p.WriteString(fd, "x"); err != nil {
			return "write to mknod device: " + err.Error()
		}
		p.Close(fd)
		return ""
	})
}

func TestPipeThroughFork(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		rfd, wfd, err := p.Pipe()
		if err != nil {
			return "pipe: " + err.Error()
		}
		_, err = p.Fork(func(p *Proc) int {
			p.Close(rfd)
			p.WriteString(wfd, "ping")
			p.Close(wfd)
			return 0
		})
		if err != nil {
			return "fork: " + err.Error()
		}
		p.Close(wfd)
		s, err := p.ReadString(rfd, 16)
		if err != nil || s != "ping" {
			return "pipe read mismatch"
		}
		// All writers gone: end of file.
		if s, err := p.ReadString(rfd, 16); err != nil || s != "" {
			return "pipe EOF not seen"
		}
		p.Close(rfd)
		p.Wait()
		return ""
	})
}

func TestPipeNoReader(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		rfd, wfd, err := p.Pipe()
		if err != nil {
			return "pipe: " + err.Error()
		}
		p.Close(rfd)
		if _, err := p.WriteString(wfd, "nobody"); err != EPIPE {
			return "write with no reader did not fail with EPIPE"
		}
		p.Close(wfd)
		return ""
	})
}

func TestConsoleLineDiscipline(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)

	linec := make(chan string, 3)
	reader, err := sys.Spawn("reader", func(p *Proc) int {
		fd, err := p.Open("/dev/console", O_RDONLY)
		if err != nil {
			return 1
		}
		for i := 0; i < 3; i++ {
			s, err := p.ReadString(fd, 64)
			if err != nil {
				return 1
			}
			linec <- s
		}
		return 0
	})
	require.NoError(t, err)

	// Wait for the reader to block on input, then type with edits:
	// backspace replaces the X, control-U erases a junk line.
	waitFor(t, "reader asleep on console", func() bool {
		return reader.State() == SLEEPING
	})
	sys.Input([]byte{'a', 'b', 'X', ctrl('H'), 'c', '\n'})
	sys.Input([]byte{'j', 'u', 'n', 'k', ctrl('U'), 'o', 'k', '\n'})
	sys.Input([]byte{ctrl('D')})

	assert.Equal(t, "abc\n", recv(t, "line 1", linec))
	assert.Equal(t, "ok\n", recv(t, "line 2", linec))
	assert.Equal(t, "", recv(t, "eof", linec), "control-D must read as end of file")
}

func TestDcacheAndLog(t *testing.T) {
	sys := boot(t, nil)
	idleInit(t, sys)
	runProg(t, sys, func(p *Proc) string {
		for i := 0; i < 3; i++ {
			fd, err := p.Open("/etc/motd", O_RDONLY)
			if err != nil {
				return "open: " + err.Error()
			}
			p.Close(fd)
		}
		return ""
	})
	hits, misses := sys.DcacheStats()
	assert.Greater(t, misses, uint64(0), "first lookup must miss")
	assert.Greater(t, hits, uint64(0), "repeat lookups must hit")
	assert.Greater(t, sys.Commits(), uint64(0), "operations must commit")
}

func TestMkfsRejectsBadImage(t *testing.T) {
	for _, bad := range []string{
		"-- file junk --\ndata\n",
		"-- file mode=zzz --\ndata\n",
		"-- ghost link=/nothing --\n",
	} {
		_, err := NewSystem([]byte(bad), io.Discard, nil)
		assert.Error(t, err, "image %q accepted", bad)
	}
}
