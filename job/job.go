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

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/coreos/partest/bench"
	"github.com/coreos/partest/child"
	"github.com/coreos/partest/clock"
	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/result"
	"github.com/coreos/partest/shmem"
	"github.com/coreos/partest/testenv"
)

// ChildFDEnv is the environment variable a re-exec'd child looks for at
// main() entry to discover it should run a single bound test in-process
// rather than the full supervisor.
const ChildFDEnv = "PARTEST_CHILD_FD"

// ChildTestEnv names the bound test (by BoundTest.Name) the re-exec'd
// child should run.
const ChildTestEnv = "PARTEST_CHILD_TEST"

// reservedFailExitStatus is the exit status a forked test uses to signal
// an assertion failure, distinguishing it from a user-chosen exit code.
const reservedFailExitStatus = 255

// state is a Job's lifecycle state.
type state int

const (
	Idle state = iota
	Prepared
	Running
	Finalizing
)

// Basic drives one worker slot in no-fork mode: every test runs in the
// supervisor's own process, on a dedicated goroutine, isolated from the
// rest of the runner only by non-local exit.
type Basic struct {
	slotID uint32
	opts   *options.Options
	env    *testenv.Env
	res    *result.Result

	state state
}

// NewBasic creates a no-fork Job for the given slot, backed by a
// dedicated shmem.Cell (used purely for its TestEnv layout — no child
// process ever maps it, but this keeps Basic and Forking symmetric and
// lets the runner's own self-test suite drive BasicJob under nested
// no-fork machinery).
func NewBasic(slotID uint32, opts *options.Options) (*Basic, error) {
	cell, err := shmem.New(testenv.Size)
	if err != nil {
		return nil, err
	}
	return &Basic{
		slotID: slotID,
		opts:   opts,
		env:    testenv.Map(cell.Bytes()),
	}, nil
}

// Prep resets the slot's env and seeds a Result for bt. It does not look
// at bt.Enabled: callers record disabled tests through
// result.Results.RecordDisabled and never hand them to Prep or Run.
func (b *Basic) Prep(bt *descriptor.BoundTest) *result.Result {
	b.env.Reset(b.slotID, bt.Name, bt.Desc.FuncName)
	r := &result.Result{}
	r.Reset(bt)
	b.res = r
	b.state = Prepared
	return r
}

// Run drives bt's setup/body/teardown on a dedicated goroutine so a
// fail()/skip() call (via a BasicSharedJob.Exit -> runtime.Goexit) can
// unwind the test without tearing down the whole process, exactly as
// testing.tRunner isolates a Go test function.
func (b *Basic) Run(bt *descriptor.BoundTest) {
	b.state = Running
	start := clock.Now()

	done := make(chan struct{})
	go func() {
		// NewBasicSharedJob must run on this goroutine: it records the
		// id Exit later checks against, and only this goroutine is
		// allowed to call the assertion hooks for this test.
		es := NewBasicSharedJob()
		Push(es, b.env, b.opts.PortBase, b.opts.Jobs)
		defer Pop()

		defer func() {
			recover() // recovers the Goexit-triggered unwind's defers; nothing to re-panic.
			close(done)
		}()
		defer runPanicGuard(b.env)

		if bt.Desc.Setup != nil {
			if err := bt.Desc.Setup(); err != nil {
				Fail(err.Error())
			}
		}
		runBody(bt, b.env, b.opts)
		if bt.Desc.Teardown != nil {
			if err := bt.Desc.Teardown(); err != nil {
				Fail(err.Error())
			}
		}
	}()
	<-done

	b.finish(bt, start)
}

// runBody drives bt's test body once, or — when bt is a benchmark —
// hands it to the self-calibrating loop instead, recording the settled
// iteration count and ns/op into env. This is the "replaces step body
// when is_bench" substitution shared by both isolation strategies.
func runBody(bt *descriptor.BoundTest, env *testenv.Env, opts *options.Options) {
	if bt.Desc.Bench {
		bench.Run(bt, opts.BenchDur(), env.SetBenchResult)
		return
	}
	bt.Desc.Run(bt.Index, 0, bt.Item)
}

func runPanicGuard(env *testenv.Env) {
	if r := recover(); r != nil {
		env.SetFailed()
		env.SetFailMsg(fmt.Sprintf("panic: %v", r))
	}
}

func (b *Basic) finish(bt *descriptor.BoundTest, start clock.Point) {
	b.state = Finalizing
	if bt.Desc.Cleanup != nil {
		bt.Desc.Cleanup()
	}
	b.res.Duration = clock.Now().Sub(start)
	b.state = Idle
}

// Result returns the Result most recently prepared/run on this slot. Its
// Duration is already set; the caller finalizes it against Env() through
// result.Results.Record, which is the one place Finalize runs.
func (b *Basic) Result() *result.Result {
	return b.res
}

// Env returns the slot's test environment, for the caller to pass to
// result.Results.Record alongside Result().
func (b *Basic) Env() *testenv.Env {
	return b.env
}

// Forking drives one worker slot in forking mode: every test runs in a
// freshly re-exec'd child process, isolated by the OS.
type Forking struct {
	slotID uint32
	opts   *options.Options
	cell   *shmem.Cell
	env    *testenv.Env

	cur      *child.Child
	res      *result.Result
	deadline clock.Point
	start    clock.Point

	state state
}

// NewForking creates a forking Job for the given slot, backed by a fresh
// shmem.Cell whose fd is handed to each child it forks.
func NewForking(slotID uint32, opts *options.Options) (*Forking, error) {
	cell, err := shmem.New(testenv.Size)
	if err != nil {
		return nil, err
	}
	return &Forking{
		slotID: slotID,
		opts:   opts,
		cell:   cell,
		env:    testenv.Map(cell.Bytes()),
	}, nil
}

// Prep resets the slot's env and seeds a Result for bt.
func (f *Forking) Prep(bt *descriptor.BoundTest) *result.Result {
	f.env.Reset(f.slotID, bt.Name, bt.Desc.FuncName)
	r := &result.Result{}
	r.Reset(bt)
	f.res = r
	f.state = Prepared
	return r
}

// Start re-execs the binary to run bt in a child process and records the
// deadline the Scheduler must later enforce.
func (f *Forking) Start(bt *descriptor.BoundTest) error {
	f.state = Running
	f.start = clock.Now()

	cmd := exec.Command(os.Args[0], os.Args[1:]...)
	// The child's own flag parsing never runs (it dispatches on
	// ChildFDEnv before reaching cobra), so the parent's CLI-resolved
	// Options have to cross the fork as env vars, not argv, or a child
	// would silently fall back to defaults+env for anything only set via
	// a flag. These are appended last so they win over any stale PTxxx
	// already present in os.Environ().
	cmd.Env = append(os.Environ(), f.opts.EnvPairs()...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("%s=3", ChildFDEnv),
		fmt.Sprintf("%s=%s", ChildTestEnv, bt.Name),
	)
	cmd.ExtraFiles = []*os.File{f.cell.File()}

	c, err := child.Fork(cmd, f.opts.Capture(), true)
	if err != nil {
		return err
	}
	f.cur = c

	timeout := bt.Desc.Timeout
	if timeout <= 0 {
		timeout = f.opts.Timeout()
	}
	f.deadline = f.start.Add(timeout)
	return nil
}

// Deadline is the monotonic point past which the Scheduler should
// terminate this slot's child as timed-out.
func (f *Forking) Deadline() clock.Point {
	return f.deadline
}

// Pid returns the in-flight child's pid, or 0 if none is running.
func (f *Forking) Pid() int {
	if f.cur == nil {
		return 0
	}
	return f.cur.Pid()
}

// FlushPipes drains the in-flight child's captured output.
func (f *Forking) FlushPipes() bool {
	if f.cur == nil {
		return false
	}
	return f.cur.FlushPipes()
}

// DrainOutput performs a final flush of the in-flight child's capture
// pipes and closes them, returning everything captured. Call this before
// CleanupStatus when the caller reaped the child's exit status itself
// (the Scheduler's own WNOHANG Wait4 loop) rather than through
// child.Child.Wait, since CleanupStatus's exit argument otherwise carries
// no output.
func (f *Forking) DrainOutput() (stdout, stderr string) {
	if f.cur == nil {
		return "", ""
	}
	return f.cur.FinalizeCaptured()
}

// CleanupStatus records the observed wait status (exit code or signal)
// onto the Result for the slot's child, as reaped by the Scheduler's
// WNOHANG loop. The caller still owes result.Results.Record(f.Env(), r)
// to finalize and tally it — the child already wrote failed=true into
// the env before _exit if it called fail(), which Finalize picks up from
// te.Failed(). The descriptor's Cleanup hook, if any, runs here in the
// parent, outside isolation.
func (f *Forking) CleanupStatus(exit child.Exit) *result.Result {
	f.state = Finalizing
	if cleanup := f.res.Bound.Desc.Cleanup; cleanup != nil {
		cleanup()
	}
	f.res.Duration = clock.Now().Sub(f.start)
	if exit.HasStatus {
		f.res.ExitStatus = exit.Status
	}
	if exit.HasSignal {
		f.res.Signal = exit.Signal
	}
	f.res.Stdout = exit.Stdout
	f.res.Stderr = exit.Stderr

	f.cur.Release()
	f.cur = nil
	f.state = Idle
	return f.res
}

// Env returns the slot's test environment, for the caller to pass to
// result.Results.Record alongside CleanupStatus's/CheckTimeout's Result.
func (f *Forking) Env() *testenv.Env {
	return f.env
}

// CheckTimeout marks the in-flight test timed-out, terminates its
// child, and finalizes its Result. Call only when now is past Deadline.
func (f *Forking) CheckTimeout(now clock.Point) *result.Result {
	if f.cur == nil || now.Before(f.deadline) {
		return nil
	}
	f.res.TimedOut = true
	f.cur.Terminate()
	exit, _ := f.cur.Wait()
	return f.CleanupStatus(exit)
}

// RunChild runs exactly one bound test in-process and exits — the
// counterpart to Start/CleanupStatus that executes inside the re-exec'd
// child process, driven by cmd/partest when it detects ChildFDEnv.
func RunChild(bt *descriptor.BoundTest, env *testenv.Env, opts *options.Options) {
	es := &ForkingSharedJob{}
	Push(es, env, opts.PortBase, opts.Jobs)
	defer Pop()

	env.Reset(env.SlotID(), bt.Name, bt.Desc.FuncName)

	defer func() {
		if r := recover(); r != nil {
			env.SetFailed()
			env.SetFailMsg(fmt.Sprintf("panic: %v", r))
			es.Exit(reservedFailExitStatus)
		}
	}()

	if bt.Desc.Setup != nil {
		if err := bt.Desc.Setup(); err != nil {
			Fail(err.Error())
		}
	}
	runBody(bt, env, opts)
	if bt.Desc.Teardown != nil {
		if err := bt.Desc.Teardown(); err != nil {
			Fail(err.Error())
		}
	}

	es.Exit(0)
}

// ParseChildTestName reports whether the process was re-exec'd to run a
// single test, and if so, which one.
func ParseChildTestName() (name string, ok bool) {
	name, ok = os.LookupEnv(ChildTestEnv)
	if !ok || strings.TrimSpace(name) == "" {
		return "", false
	}
	return name, true
}
