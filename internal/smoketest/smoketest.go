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

// Package smoketest registers a handful of tests exercising every
// disposition the runner can produce — passed, failed, expected-signal,
// timed-out, ranged/renamed, and filtered-out — so a freshly built
// binary has something to run. Blank-imported for its init() side
// effect of populating the process-wide registry.
package smoketest

import (
	"runtime/debug"
	"syscall"
	"time"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/job"
	"github.com/coreos/partest/register"
)

func init() {
	register.Test(&descriptor.Test{
		Name: "smoke_noop",
		Run:  func(index int, benchN uint64, item interface{}) {},
	})

	register.Test(&descriptor.Test{
		Name: "smoke_fail",
		Run: func(index int, benchN uint64, item interface{}) {
			job.Fail("boom")
		},
	})

	register.Test(&descriptor.Test{
		Name:         "smoke_abort",
		ExpectSignal: syscall.SIGABRT,
		Run: func(index int, benchN uint64, item interface{}) {
			// The Go runtime turns a delivered SIGABRT into a stack dump
			// and exit status 2; at the "crash" traceback level it dies
			// by the signal itself, which is what ExpectSignal checks.
			debug.SetTraceback("crash")
			syscall.Kill(syscall.Getpid(), syscall.SIGABRT)
		},
	})

	register.Test(&descriptor.Test{
		Name:    "smoke_sleep",
		Timeout: 10 * time.Millisecond,
		Run: func(index int, benchN uint64, item interface{}) {
			time.Sleep(time.Second)
		},
	})

	register.Test(&descriptor.Test{
		Name:  "smoke_ranged",
		Range: true,
		Low:   0,
		High:  3,
		Run: func(index int, benchN uint64, item interface{}) {
			job.SetIterName("x%d", index)
		},
	})

	register.Test(&descriptor.Test{
		Name: "smoke_filtered_a",
		Run:  func(index int, benchN uint64, item interface{}) {},
	})
	register.Test(&descriptor.Test{
		Name: "smoke_filtered_skip",
		Run:  func(index int, benchN uint64, item interface{}) {},
	})

	register.Test(&descriptor.Test{
		Name:  "smoke_bench",
		Bench: true,
		Run: func(index int, benchN uint64, item interface{}) {
			for i := uint64(0); i < benchN; i++ {
			}
		},
	})
}
