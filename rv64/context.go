// Copyright 2023 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rv64

// A Context is the register-save area of one kernel flow of control.
// On hardware it would hold callee-saved registers and a stack
// pointer; here each flow is a goroutine, so the saved state is the
// goroutine itself and the Context is only the rendezvous that parks
// and resumes it. The channel is unbuffered: Resume does not return
// until the other flow has actually taken over, which is what makes
// the switch atomic from the kernel's point of view.
type Context struct {
	resume chan struct{}
}

// NewContext returns a parked, resumable context.
func NewContext() Context {
	return Context{resume: make(chan struct{})}
}

// Wait parks the calling flow until another flow resumes this context.
func (c *Context) Wait() {
	<-c.resume
}

// Resume unparks the flow waiting on c. It blocks until that flow has
// taken control.
func (c *Context) Resume() {
	c.resume <- struct{}{}
}

// Swtch saves the calling flow into old and loads new: the flow parked
// on new runs, and the caller parks until something switches back into
// old. Callers must follow the kernel's handoff protocol; Swtch itself
// knows nothing about locks or process state.
func Swtch(old, new *Context) {
	new.Resume()
	old.Wait()
}
