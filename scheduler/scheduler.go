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

// Package scheduler drives the forking-mode main loop: a fixed pool of
// job.Forking slots, each assigned the next eligible bound test as soon
// as it goes idle, reaped opportunistically via a bounded, signal-woken
// wait rather than a blocking waitpid.
package scheduler

import (
	"syscall"
	"time"

	"github.com/coreos/partest/child"
	"github.com/coreos/partest/clock"
	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/job"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/result"
	"github.com/coreos/partest/sigarbiter"
)

// childWaitInterval bounds each main-loop iteration's sleep inside
// arbiter.ChildWait — long enough to avoid busy-spinning the parent,
// short enough to keep timeout enforcement and pipe draining responsive.
const childWaitInterval = 10 * time.Millisecond

// Scheduler owns a fixed-size pool of job.Forking slots and walks the
// bound-test list, handing each idle slot the next eligible test until
// the list is exhausted and every slot has gone idle again.
type Scheduler struct {
	opts    *options.Options
	results *result.Results

	tests []*descriptor.BoundTest
	next  int

	slots []*job.Forking
	busy  []bool
}

// New creates a Scheduler with options.Jobs slots, ready to drive tests
// against results.
func New(opts *options.Options, results *result.Results, tests []*descriptor.BoundTest) (*Scheduler, error) {
	s := &Scheduler{
		opts:    opts,
		results: results,
		tests:   tests,
		slots:   make([]*job.Forking, opts.Jobs),
		busy:    make([]bool, opts.Jobs),
	}
	for i := range s.slots {
		f, err := job.NewForking(uint32(i), opts)
		if err != nil {
			return nil, err
		}
		s.slots[i] = f
	}
	return s, nil
}

// nextTest advances past disabled tests, recording each via
// RecordDisabled as it goes, and reports whether an eligible test
// remains to hand out.
func (s *Scheduler) nextTest() (*descriptor.BoundTest, bool) {
	for s.next < len(s.tests) {
		bt := s.tests[s.next]
		s.next++
		if bt.Enabled {
			return bt, true
		}
		s.results.RecordDisabled(bt)
	}
	return nil, false
}

// assign hands slot its next eligible test, or leaves it idle if the
// list is exhausted. A fork/exec failure is a system failure: it is
// recorded as an error and the slot moves straight on to its next test
// rather than wedging.
func (s *Scheduler) assign(slot int) {
	bt, ok := s.nextTest()
	if !ok {
		s.busy[slot] = false
		return
	}
	f := s.slots[slot]
	r := f.Prep(bt)
	if err := f.Start(bt); err != nil {
		r.Error = true
		r.FailMsg = err.Error()
		s.results.Record(f.Env(), r)
		s.assign(slot)
		return
	}
	s.busy[slot] = true
}

// TerminateAll kills every slot's in-flight child, implementing
// sigarbiter.Terminator so interactive termination tears the whole pool
// down.
func (s *Scheduler) TerminateAll() {
	for i, busy := range s.busy {
		if !busy {
			continue
		}
		if pid := s.slots[i].Pid(); pid != 0 {
			syscall.Kill(-pid, syscall.SIGTERM)
		}
	}
}

// Run owns the arbiter and drives every bound test to completion,
// returning once results.Done() is true.
func (s *Scheduler) Run() error {
	if err := sigarbiter.Own(s); err != nil {
		return err
	}
	defer sigarbiter.Release()

	for i := range s.slots {
		s.assign(i)
	}

	for !s.results.Done() {
		sigarbiter.ChildWait(childWaitInterval)

		for i, f := range s.slots {
			if s.busy[i] {
				f.FlushPipes()
			}
		}

		s.reap()
		s.checkTimeouts(clock.Now())
	}
	return nil
}

// reap drains every slot whose child has already exited (WNOHANG),
// records its Result, and assigns it the next test.
func (s *Scheduler) reap() {
	for {
		var ws syscall.WaitStatus
		pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
		if err != nil || pid <= 0 {
			return
		}
		slot := s.slotForPid(pid)
		if slot < 0 {
			// The kernel handed back a pid this pool never forked: the
			// supervisor's bookkeeping has desynchronized from reality.
			panic("scheduler: reaped pid not owned by any slot")
		}
		f := s.slots[slot]
		exit := exitFromStatus(ws)
		exit.Stdout, exit.Stderr = f.DrainOutput()
		r := f.CleanupStatus(exit)
		s.results.Record(f.Env(), r)
		s.busy[slot] = false
		s.assign(slot)
	}
}

// checkTimeouts terminates and records any slot whose deadline has
// passed, then reassigns it.
func (s *Scheduler) checkTimeouts(now clock.Point) {
	for i, f := range s.slots {
		if !s.busy[i] {
			continue
		}
		if !now.After(f.Deadline()) {
			continue
		}
		r := f.CheckTimeout(now)
		if r == nil {
			continue
		}
		s.results.Record(f.Env(), r)
		s.busy[i] = false
		s.assign(i)
	}
}

func (s *Scheduler) slotForPid(pid int) int {
	for i, f := range s.slots {
		if s.busy[i] && f.Pid() == pid {
			return i
		}
	}
	return -1
}

func exitFromStatus(ws syscall.WaitStatus) child.Exit {
	var exit child.Exit
	switch {
	case ws.Exited():
		exit.Status = ws.ExitStatus()
		exit.HasStatus = true
	case ws.Signaled():
		exit.Signal = ws.Signal()
		exit.HasSignal = true
	}
	return exit
}
