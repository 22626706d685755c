// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rv64

import (
	"errors"
	"testing"
)

func TestPageRound(t *testing.T) {
	tests := []struct{ addr, up, down uint64 }{
		{0, 0, 0},
		{1, PageSize, 0},
		{PageSize - 1, PageSize, 0},
		{PageSize, PageSize, PageSize},
		{PageSize + 1, 2 * PageSize, PageSize},
	}
	for _, tt := range tests {
		if have := PageRoundUp(tt.addr); have != tt.up {
			t.Errorf("PageRoundUp(%#x) = %#x, want %#x", tt.addr, have, tt.up)
		}
		if have := PageRoundDown(tt.addr); have != tt.down {
			t.Errorf("PageRoundDown(%#x) = %#x, want %#x", tt.addr, have, tt.down)
		}
	}
}

func TestGrowShrink(t *testing.T) {
	as := NewAddrSpace()
	if err := as.Grow(2*PageSize + 100); err != nil {
		t.Fatal(err)
	}
	if as.Size() != 2*PageSize+100 {
		t.Fatalf("Size = %#x, want %#x", as.Size(), uint64(2*PageSize+100))
	}

	// Accesses may straddle a page boundary.
	msg := []byte("hello, world")
	if err := as.Write(PageSize-5, msg); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(msg))
	if err := as.Read(PageSize-5, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(msg) {
		t.Errorf("read back %q, want %q", got, msg)
	}

	if err := as.Shrink(PageSize); err != nil {
		t.Fatal(err)
	}
	if as.Size() != PageSize {
		t.Errorf("Size after shrink = %#x, want %#x", as.Size(), uint64(PageSize))
	}
	var b [1]byte
	if err := as.Read(PageSize+100, b[:]); err == nil {
		t.Errorf("read beyond break succeeded after shrink")
	}
	if err := as.Read(100, b[:]); err != nil {
		t.Errorf("read below break: %v", err)
	}

	if err := as.Grow(0); err == nil {
		t.Errorf("Grow below current size succeeded")
	}
	if err := as.Shrink(4 * PageSize); err == nil {
		t.Errorf("Shrink above current size succeeded")
	}
	if err := as.Grow(TextBase); err == nil {
		t.Errorf("Grow into the text region succeeded")
	}
}

func TestGrowPreserves(t *testing.T) {
	as := NewAddrSpace()
	if err := as.Grow(PageSize); err != nil {
		t.Fatal(err)
	}
	if err := as.Write(10, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if err := as.Grow(3 * PageSize); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 3)
	if err := as.Read(10, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Errorf("data lost across Grow: %q", got)
	}
	if err := as.Read(PageSize+10, got); err != nil {
		t.Fatal(err)
	}
	if got[0] != 0 || got[1] != 0 || got[2] != 0 {
		t.Errorf("new pages not zeroed: % x", got)
	}
}

func TestMapUnmap(t *testing.T) {
	as := NewAddrSpace()
	if err := as.Map(PageSize); err != nil {
		t.Fatal(err)
	}
	if err := as.Map(PageSize); err == nil {
		t.Errorf("double map succeeded")
	}
	if err := as.Map(PageSize + 8); err == nil {
		t.Errorf("unaligned map succeeded")
	}
	if err := as.Map(MaxVA); err == nil {
		t.Errorf("map beyond MaxVA succeeded")
	}
	if err := as.Unmap(2*PageSize, PageSize); err == nil {
		t.Errorf("unmap of absent page succeeded")
	}
	if err := as.Unmap(PageSize, PageSize); err != nil {
		t.Fatal(err)
	}
	var b [1]byte
	if err := as.Read(PageSize, b[:]); err == nil {
		t.Errorf("read of unmapped page succeeded")
	}
}

func TestAccessFaults(t *testing.T) {
	as := NewAddrSpace()
	var b [8]byte

	err := as.Read(0, b[:])
	var me *MemError
	if !errors.As(err, &me) {
		t.Fatalf("Read of empty space = %v, want MemError", err)
	}
	if me.Op != "read" || me.Addr != 0 {
		t.Errorf("fault = %+v, want read at 0", me)
	}
	if err := as.Write(0, b[:]); err == nil {
		t.Errorf("write to empty space succeeded")
	}
	if err := as.Read(MaxVA-4, b[:]); err == nil {
		t.Errorf("read past MaxVA succeeded")
	}
	if err := as.Read(^uint64(0)-4, b[:]); err == nil {
		t.Errorf("read with wrapped address succeeded")
	}
	if err := as.Read(123456, nil); err != nil {
		t.Errorf("zero-length read: %v", err)
	}
}

func TestDup(t *testing.T) {
	as := NewAddrSpace()
	if err := as.Grow(2 * PageSize); err != nil {
		t.Fatal(err)
	}
	if err := as.Write(100, []byte("original")); err != nil {
		t.Fatal(err)
	}
	cp, err := as.Dup()
	if err != nil {
		t.Fatal(err)
	}
	if cp.Size() != as.Size() {
		t.Errorf("copy Size = %#x, want %#x", cp.Size(), as.Size())
	}
	if err := as.Write(100, []byte("mutated!")); err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 8)
	if err := cp.Read(100, got); err != nil {
		t.Fatal(err)
	}
	if string(got) != "original" {
		t.Errorf("copy shares pages with original: %q", got)
	}
	as.Destroy()
	if err := cp.Read(100, got); err != nil {
		t.Errorf("copy died with original: %v", err)
	}
}
