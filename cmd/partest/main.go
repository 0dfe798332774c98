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

// Command partest is the supervisor binary: a test source file built
// against this module registers its tests into package register from
// init(), and this entrypoint discovers, filters, schedules, and
// reports on them.
//
// Re-exec'd as a child (job.ChildFDEnv set in its environment) it skips
// all of that and runs exactly one named bound test instead.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/job"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/register"
	"github.com/coreos/partest/shmem"
	"github.com/coreos/partest/testenv"
	"github.com/coreos/pkg/capnslog"

	// Register the bundled smoke tests so a freshly built binary has
	// something to run. A real test source file adds its own blank
	// import here alongside this one.
	_ "github.com/coreos/partest/internal/smoketest"
)

var plog = capnslog.NewPackageLogger("github.com/coreos/partest", "cmd/partest")

func main() {
	if fdStr, ok := os.LookupEnv(job.ChildFDEnv); ok {
		runChild(fdStr)
		return
	}
	Execute()
}

// runChild maps the inherited shmem cell, looks up the one bound test
// this process was re-exec'd to run, and drives it to completion via
// job.RunChild — which exits the process itself and never returns.
func runChild(fdStr string) {
	fd, err := strconv.Atoi(fdStr)
	if err != nil {
		plog.Fatalf("child: invalid %s=%q: %v", job.ChildFDEnv, fdStr, err)
	}

	name, ok := job.ParseChildTestName()
	if !ok {
		plog.Fatalf("child: missing %s", job.ChildTestEnv)
	}

	opts := options.Default()
	if err := opts.ApplyEnv(); err != nil {
		plog.Fatalf("child: %v", err)
	}

	cell, err := shmem.Open(os.NewFile(uintptr(fd), "partest-cell"), testenv.Size)
	if err != nil {
		plog.Fatalf("child: open cell: %v", err)
	}
	env := testenv.Map(cell.Bytes())

	bt := findBoundTest(name)
	if bt == nil {
		fmt.Fprintf(os.Stderr, "partest: child: unknown test %q\n", name)
		os.Exit(2)
	}

	job.RunChild(bt, env, opts)
}

// findBoundTest re-derives the one BoundTest named name from the same
// registry + (unfiltered) binder the parent used, rather than shipping
// the whole bound-test list across the fork/exec boundary — the
// registry is process-wide and re-populated identically by every
// re-exec of the same binary's init() functions.
func findBoundTest(name string) *descriptor.BoundTest {
	for _, bt := range descriptor.Bind(register.All(), nil) {
		if bt.Name == name {
			return bt
		}
	}
	return nil
}
