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

package job

import "fmt"

// Mark records (file, function, line) into the active frame's env,
// implementing the dual mark-trail protocol of testenv.Env.Mark. Called
// by every assertion macro, success or failure, and usable explicitly by
// user code.
func Mark(file, function string, line int) {
	f := current()
	if f.env == nil {
		return
	}
	f.env.Mark(file, function, line)
}

// Fail formats message, records it, flushes stdout/stderr, marks the
// active env failed, and never returns: control passes to the active
// frame's exit strategy.
func Fail(message string, args ...interface{}) {
	f := current()
	if f.env == nil {
		return
	}
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}
	f.env.SetFailMsg(message)
	flushStdio()
	f.env.SetFailed()
	f.strategy.Exit(reservedFailExitStatus)
}

// Skip marks the active env skipped and never returns.
func Skip() {
	f := current()
	if f.env == nil {
		return
	}
	f.env.SetSkipped()
	f.strategy.Exit(0)
}

// SetIterName sets the suffix appended to the currently running test's
// visible name, for a ranged or table-driven test to identify which
// iteration produced a given result.
func SetIterName(format string, args ...interface{}) {
	f := current()
	if f.env == nil {
		return
	}
	name := format
	if len(args) > 0 {
		name = fmt.Sprintf(format, args...)
	}
	f.env.SetIterName(name)
}

// GetPort returns a stable, per-slot, per-index port assignment:
// port_base + slot_id + i*jobs_count.
func GetPort(i int) uint16 {
	f := current()
	if f.env == nil {
		return 0
	}
	return uint16(f.portBase + int(f.env.SlotID()) + i*f.jobsCount)
}

// GetName returns the currently-running test's visible name.
func GetName() string {
	f := current()
	if f.env == nil {
		return ""
	}
	return f.env.TestName()
}

func flushStdio() {
	// os.Stdout/os.Stderr are unbuffered *os.File handles in Go, so there
	// is no user-space buffer to flush the way libc's stdio needs one;
	// this exists purely as the named counterpart to the upstream
	// fflush(stdout); fflush(stderr) pair that fail() performs before
	// marking the test failed, so the captured-output ordering invariant
	// reads the same way in both implementations.
}
