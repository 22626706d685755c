// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rv64

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// TrapframeSize is the encoded size of a Trapframe: 36 registers,
// 8 bytes each, little-endian.
const TrapframeSize = 288

// A Trapframe is the user-mode register image saved on kernel entry
// and restored on return to user mode. The field order is the wire
// order: a trapframe written into user memory (for example the
// pre-handler backup a signal delivery pushes below the user stack
// pointer) is exactly these fields, little-endian, in this sequence.
type Trapframe struct {
	KernelSatp   uint64
	KernelSP     uint64
	KernelTrap   uint64
	Epc          uint64 // user program counter
	KernelHartid uint64
	Ra           uint64
	Sp           uint64
	Gp           uint64
	Tp           uint64
	T0           uint64
	T1           uint64
	T2           uint64
	S0           uint64
	S1           uint64
	A0           uint64
	A1           uint64
	A2           uint64
	A3           uint64
	A4           uint64
	A5           uint64
	A6           uint64
	A7           uint64
	S2           uint64
	S3           uint64
	S4           uint64
	S5           uint64
	S6           uint64
	S7           uint64
	S8           uint64
	S9           uint64
	S10          uint64
	S11          uint64
	T3           uint64
	T4           uint64
	T5           uint64
	T6           uint64
}

var trapframeOptions = &struc.Options{Order: binary.LittleEndian}

// EncodeTo writes the trapframe's wire encoding to w.
func (tf *Trapframe) EncodeTo(w io.Writer) error {
	return errors.Wrap(struc.PackWithOptions(w, tf, trapframeOptions), "trapframe encode")
}

// DecodeFrom replaces the trapframe with the wire encoding read from r.
func (tf *Trapframe) DecodeFrom(r io.Reader) error {
	return errors.Wrap(struc.UnpackWithOptions(r, tf, trapframeOptions), "trapframe decode")
}

// Bytes returns the wire encoding as a fresh slice.
func (tf *Trapframe) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := tf.EncodeTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Clone returns a copy of the trapframe.
func (tf *Trapframe) Clone() *Trapframe {
	cp := *tf
	return &cp
}
