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

// Package sigarbiter is the single owner of the scheduler's interaction
// with process signals: it reacts to interactive termination by tearing
// the worker pool down, and gives the scheduler a bounded, promptly
// woken wait for reapable children — the Go equivalent of blocking
// SIGCHLD at the parent and sigtimedwait-ing on it.
package sigarbiter

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// ErrAlreadyOwned is returned by Own when another Scheduler already holds
// the arbiter.
var ErrAlreadyOwned = errors.New("sigarbiter: already owned")

// Terminator is the subset of Scheduler the arbiter needs: a way to tear
// every in-flight child down on interactive termination.
type Terminator interface {
	TerminateAll()
}

var (
	mu         sync.Mutex
	owned      bool
	termCh     chan os.Signal
	childCh    chan os.Signal
	stopTerm   chan struct{}
	terminator Terminator
)

// Own installs the arbiter's signal handlers on behalf of s. Only one
// Scheduler may own the arbiter at a time.
func Own(s Terminator) error {
	mu.Lock()
	defer mu.Unlock()
	if owned {
		return ErrAlreadyOwned
	}
	owned = true
	terminator = s

	termCh = make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGTERM)

	childCh = make(chan os.Signal, 16)
	signal.Notify(childCh, syscall.SIGCHLD)

	stopTerm = make(chan struct{})
	go watchTermination(termCh, stopTerm)

	return nil
}

func watchTermination(ch chan os.Signal, stop chan struct{}) {
	select {
	case sig := <-ch:
		mu.Lock()
		t := terminator
		mu.Unlock()
		if t != nil {
			t.TerminateAll()
		}
		signal.Stop(ch)
		signal.Reset(sig)
		syscall.Kill(syscall.Getpid(), sig.(syscall.Signal))
	case <-stop:
	}
}

// ChildWait blocks until a child has become reapable (SIGCHLD observed)
// or d elapses, whichever comes first — the bounded, promptly-woken
// sleep the Scheduler's main loop polls on.
func ChildWait(d time.Duration) {
	mu.Lock()
	ch := childCh
	mu.Unlock()
	if ch == nil {
		time.Sleep(d)
		return
	}
	select {
	case <-ch:
	case <-time.After(d):
	}
}

// Release reverses Own: handlers are uninstalled and ownership is freed
// for the next Scheduler.
func Release() {
	mu.Lock()
	defer mu.Unlock()
	if !owned {
		return
	}
	close(stopTerm)
	signal.Stop(termCh)
	signal.Stop(childCh)
	owned = false
	terminator = nil
	termCh, childCh, stopTerm = nil, nil, nil
}
