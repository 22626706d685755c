// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rv64

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestTrapframeSize(t *testing.T) {
	var tf Trapframe
	b, err := tf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(b) != TrapframeSize {
		t.Fatalf("encoded size = %d, want %d", len(b), TrapframeSize)
	}
}

func TestTrapframeLayout(t *testing.T) {
	tf := Trapframe{
		KernelSatp: 0x1111111111111111,
		Epc:        0x2222222222222222,
		Ra:         0x3333333333333333,
		Sp:         0x4444444444444444,
		A0:         0x5555555555555555,
		A7:         0x6666666666666666,
		T6:         0x7777777777777777,
	}
	b, err := tf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	fields := []struct {
		name string
		off  int
		want uint64
	}{
		{"kernel_satp", 0, 0x1111111111111111},
		{"epc", 24, 0x2222222222222222},
		{"ra", 40, 0x3333333333333333},
		{"sp", 48, 0x4444444444444444},
		{"a0", 112, 0x5555555555555555},
		{"a7", 168, 0x6666666666666666},
		{"t6", 280, 0x7777777777777777},
	}
	for _, f := range fields {
		if have := binary.LittleEndian.Uint64(b[f.off:]); have != f.want {
			t.Errorf("%s at offset %d = %#x, want %#x", f.name, f.off, have, f.want)
		}
	}
}

func TestTrapframeRoundTrip(t *testing.T) {
	in := make([]byte, TrapframeSize)
	for i := range in {
		in[i] = byte(i * 7)
	}
	var tf Trapframe
	if err := tf.DecodeFrom(bytes.NewReader(in)); err != nil {
		t.Fatal(err)
	}
	out, err := tf.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(in, out) {
		t.Errorf("round trip changed encoding\nhave % x\nwant % x", out, in)
	}
}

func TestTrapframeClone(t *testing.T) {
	tf := &Trapframe{Epc: 1, Sp: 2, A0: 3}
	cp := tf.Clone()
	tf.A0 = 99
	if cp.Epc != 1 || cp.Sp != 2 || cp.A0 != 3 {
		t.Errorf("clone shares storage with original: %+v", cp)
	}
}
