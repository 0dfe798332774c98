// Copyright 2017 CoreOS, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package testenv holds the POD record placed in a shmem.Cell and shared
// across the parent/child boundary for one test slot: identity, the mark
// trail, the failure message, the skip flag, and bench counters.
//
// Every field here must stay a primitive or a fixed-size byte array —
// nothing here may hold a pointer, slice header, or interface, since
// those are meaningless once copied into another process's address
// space.
package testenv

import (
	"fmt"
	"unsafe"
)

const (
	nameSize    = 256
	failMsgSize = 8192
)

// Raw is the POD layout mapped directly onto a shmem.Cell's bytes. Fixed
// identity fields come first, then the mark trail, then the (much
// larger) failure message last, so a child mapping the cell can read its
// own slot id and test name without scanning past the variable-length
// tail.
type Raw struct {
	SlotID       uint32
	Failed       uint32
	Skipped      uint32
	_            uint32 // padding to keep the uint64 fields 8-byte aligned
	BenchIters   uint64
	BenchNsOp    uint64
	TestName     [nameSize]byte
	FuncName     [nameSize]byte
	IterName     [nameSize]byte
	LastMark     [nameSize]byte
	LastTestMark [nameSize]byte
	FailMsg      [failMsgSize]byte
}

// Size is the number of bytes a shmem.Cell backing an Env must be at
// least as large as.
const Size = int(unsafe.Sizeof(Raw{}))

// Env is a handle onto a Raw record living inside a shmem.Cell.
type Env struct {
	raw *Raw
}

// Map interprets cell's bytes as a Raw record. The cell must be at least
// Size bytes.
func Map(cellBytes []byte) *Env {
	if len(cellBytes) < Size {
		panic("testenv: cell too small for Raw layout")
	}
	return &Env{raw: (*Raw)(unsafe.Pointer(&cellBytes[0]))}
}

// Reset prepares the slot for a new test: the failed flag only ever
// flips forward within a single test, so a fresh Reset is required
// before each bound test runs.
func (e *Env) Reset(slotID uint32, testName, funcName string) {
	*e.raw = Raw{SlotID: slotID}
	putString(e.raw.TestName[:], testName)
	putString(e.raw.FuncName[:], funcName)
}

func putString(buf []byte, s string) {
	n := copy(buf, s)
	if n < len(buf) {
		buf[n] = 0
	} else if len(buf) > 0 {
		buf[len(buf)-1] = 0
	}
}

func getString(buf []byte) string {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return string(buf[:n])
}

// SlotID returns the id of the job slot this env belongs to.
func (e *Env) SlotID() uint32 { return e.raw.SlotID }

// FuncName is the test function's symbol name, as recorded at
// registration time via the compiler's current-function intrinsic
// equivalent (runtime.FuncForPC).
func (e *Env) FuncName() string { return getString(e.raw.FuncName[:]) }

// TestName returns the name the parent will report for this test: the
// descriptor-assigned name, with the SetIterName suffix (if any) appended
// after a colon rather than replacing it, so a ranged test's per-index
// name still identifies which base test it came from.
func (e *Env) TestName() string {
	base := getString(e.raw.TestName[:])
	if iter := getString(e.raw.IterName[:]); iter != "" {
		return fmt.Sprintf("%s:%s", base, iter)
	}
	return base
}

// SetIterName records the suffix TestName appends to the currently
// running test's base name.
func (e *Env) SetIterName(name string) { putString(e.raw.IterName[:], name) }

// Failed reports whether the test has called fail() (or crashed in a way
// the job layer marked as such).
func (e *Env) Failed() bool { return e.raw.Failed != 0 }

// SetFailed flips the failed flag. It only ever flips forward; callers
// never clear it.
func (e *Env) SetFailed() { e.raw.Failed = 1 }

// Skipped reports whether skip() was called.
func (e *Env) Skipped() bool { return e.raw.Skipped != 0 }

// SetSkipped marks the test skipped.
func (e *Env) SetSkipped() { e.raw.Skipped = 1 }

// FailMsg returns the formatted failure message, if any.
func (e *Env) FailMsg() string { return getString(e.raw.FailMsg[:]) }

// SetFailMsg records message, truncating if it doesn't fit the fixed
// buffer.
func (e *Env) SetFailMsg(message string) { putString(e.raw.FailMsg[:], message) }

// LastMarkAnywhere is the last file:line touched by any mark() call that
// did not originate inside the test function itself.
func (e *Env) LastMarkAnywhere() string { return getString(e.raw.LastMark[:]) }

// LastTestMark is the last file:line touched by a mark() call that
// originated inside the test function body.
func (e *Env) LastTestMark() string { return getString(e.raw.LastTestMark[:]) }

// Mark implements the dual mark-trail protocol: a call whose function
// name matches the test's own function symbol updates the
// "last line inside the test" trail and clears the "last line anywhere"
// trail; any other call (from a helper invoked by the test) updates only
// the "anywhere" trail.
func (e *Env) Mark(file, function string, line int) {
	loc := fmt.Sprintf("%s:%d", file, line)
	if function == e.FuncName() {
		putString(e.raw.LastTestMark[:], loc)
		putString(e.raw.LastMark[:], "")
	} else {
		putString(e.raw.LastMark[:], loc)
	}
}

// BenchIters returns the final iteration count a benchmark test settled
// on.
func (e *Env) BenchIters() uint64 { return e.raw.BenchIters }

// BenchNsOp returns nanoseconds-per-op for the final iteration count.
func (e *Env) BenchNsOp() uint64 { return e.raw.BenchNsOp }

// SetBenchResult records the outcome of the benchmark loop.
func (e *Env) SetBenchResult(iters, nsOp uint64) {
	e.raw.BenchIters = iters
	e.raw.BenchNsOp = nsOp
}
