// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rv64

import (
	"fmt"

	"github.com/pkg/errors"
)

// A MemError is a fault raised by an access to an unmapped or
// out-of-range user address.
type MemError struct {
	Op   string // "read", "write", "map", "unmap"
	Addr uint64
	Size int
}

func (e *MemError) Error() string {
	return fmt.Sprintf("memory %s fault at %#x+%#x", e.Op, e.Addr, e.Size)
}

// An AddrSpace is a paged, sparse user address space. Pages are
// allocated on Map or Grow and dropped on Unmap or Shrink; the region
// [0, Size()) is fully mapped between those calls. The owning process
// record treats the space as an exclusively owned handle and goes
// through Read/Write for every cross-space copy.
type AddrSpace struct {
	pages map[uint64]*[PageSize]byte // keyed by page-aligned address
	size  uint64                     // program break
}

// NewAddrSpace returns an empty address space.
func NewAddrSpace() *AddrSpace {
	return &AddrSpace{pages: make(map[uint64]*[PageSize]byte)}
}

// Size reports the current program break.
func (as *AddrSpace) Size() uint64 { return as.size }

// Destroy releases every page. The space must not be used afterward.
func (as *AddrSpace) Destroy() {
	as.pages = nil
	as.size = 0
}

// Map maps one zeroed page at the page-aligned address va.
func (as *AddrSpace) Map(va uint64) error {
	if va%PageSize != 0 || va >= MaxVA {
		return &MemError{Op: "map", Addr: va, Size: PageSize}
	}
	if _, ok := as.pages[va]; ok {
		return &MemError{Op: "map", Addr: va, Size: PageSize}
	}
	as.pages[va] = new([PageSize]byte)
	return nil
}

// Unmap unmaps n bytes of pages starting at the page-aligned address
// va. Unmapping an absent page is a fault.
func (as *AddrSpace) Unmap(va, n uint64) error {
	if va%PageSize != 0 {
		return &MemError{Op: "unmap", Addr: va, Size: int(n)}
	}
	for a := va; a < va+n; a += PageSize {
		if _, ok := as.pages[a]; !ok {
			return &MemError{Op: "unmap", Addr: a, Size: PageSize}
		}
		delete(as.pages, a)
	}
	return nil
}

// Grow raises the program break to newsz, mapping fresh zeroed pages.
func (as *AddrSpace) Grow(newsz uint64) error {
	if newsz < as.size {
		return errors.Errorf("grow below current size %#x < %#x", newsz, as.size)
	}
	if newsz >= TextBase {
		return &MemError{Op: "map", Addr: newsz, Size: 0}
	}
	for a := PageRoundUp(as.size); a < newsz; a += PageSize {
		if err := as.Map(a); err != nil {
			return err
		}
	}
	as.size = newsz
	return nil
}

// Shrink lowers the program break to newsz, unmapping whole pages that
// fall beyond it.
func (as *AddrSpace) Shrink(newsz uint64) error {
	if newsz > as.size {
		return errors.Errorf("shrink above current size %#x > %#x", newsz, as.size)
	}
	lo, hi := PageRoundUp(newsz), PageRoundUp(as.size)
	if lo < hi {
		if err := as.Unmap(lo, hi-lo); err != nil {
			return err
		}
	}
	as.size = newsz
	return nil
}

// Dup duplicates the full contents into a new space.
func (as *AddrSpace) Dup() (*AddrSpace, error) {
	cp := NewAddrSpace()
	cp.size = as.size
	for va, pg := range as.pages {
		npg := new([PageSize]byte)
		*npg = *pg
		cp.pages[va] = npg
	}
	return cp, nil
}

// Read copies len(b) bytes out of the space starting at va.
func (as *AddrSpace) Read(va uint64, b []byte) error {
	return as.access("read", va, b, func(pg []byte, b []byte) { copy(b, pg) })
}

// Write copies b into the space starting at va.
func (as *AddrSpace) Write(va uint64, b []byte) error {
	return as.access("write", va, b, func(pg []byte, b []byte) { copy(pg, b) })
}

func (as *AddrSpace) access(op string, va uint64, b []byte, move func(pg, b []byte)) error {
	if va+uint64(len(b)) < va || va+uint64(len(b)) > MaxVA {
		return &MemError{Op: op, Addr: va, Size: len(b)}
	}
	for len(b) > 0 {
		base := PageRoundDown(va)
		pg, ok := as.pages[base]
		if !ok {
			return &MemError{Op: op, Addr: va, Size: len(b)}
		}
		off := va - base
		n := PageSize - off
		if n > uint64(len(b)) {
			n = uint64(len(b))
		}
		move(pg[off:off+n], b[:n])
		va += n
		b = b[n:]
	}
	return nil
}
