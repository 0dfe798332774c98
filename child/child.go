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

// Package child forks (via re-exec, since Go cannot fork a multi-threaded
// runtime) a subprocess, optionally captures its stdout/stderr through
// non-blocking pipes, places it in its own process group, and offers
// graceful-then-forceful termination of that whole group.
package child

import (
	"bytes"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

const (
	pgidPollInterval = 100 * time.Microsecond
	pgidPollTimeout  = 10 * time.Millisecond

	terminatePollInterval = time.Millisecond
	terminatePollTimeout  = 100 * time.Millisecond
)

// Exit is the outcome of a completed child: its exit status (or the
// signal that killed it) plus whatever was captured from its stdio.
type Exit struct {
	Status     int
	HasStatus  bool
	Signal     syscall.Signal
	HasSignal  bool
	Stdout     string
	Stderr     string
}

// Child is a forked (re-exec'd) subprocess, optionally pipe-captured and
// placed in its own process group.
type Child struct {
	Cmd *exec.Cmd

	capture bool
	newPgid bool

	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
	stdoutBuf, stderrBuf bytes.Buffer
}

// Fork starts cmd as a child process. If capture is set, cmd's stdout
// and stderr are redirected through pipes whose read ends the parent
// keeps open, non-blocking, for FlushPipes. If newPgid is set, cmd is
// placed in a new process group and Fork blocks briefly until the child
// has committed it, closing the race between spawn and group-directed
// signaling.
func Fork(cmd *exec.Cmd, capture, newPgid bool) (*Child, error) {
	c := &Child{Cmd: cmd, capture: capture, newPgid: newPgid}

	if newPgid {
		if cmd.SysProcAttr == nil {
			cmd.SysProcAttr = &syscall.SysProcAttr{}
		}
		cmd.SysProcAttr.Setpgid = true
	}

	if capture {
		var err error
		c.stdoutR, c.stdoutW, err = os.Pipe()
		if err != nil {
			return nil, errors.Wrap(err, "child: stdout pipe")
		}
		c.stderrR, c.stderrW, err = os.Pipe()
		if err != nil {
			c.stdoutR.Close()
			c.stdoutW.Close()
			return nil, errors.Wrap(err, "child: stderr pipe")
		}
		cmd.Stdout = c.stdoutW
		cmd.Stderr = c.stderrW
	}

	if err := cmd.Start(); err != nil {
		c.closePipes()
		return nil, errors.Wrap(err, "child: start")
	}

	if capture {
		// The parent doesn't write to these ends; only the child does,
		// via its inherited stdio.
		c.stdoutW.Close()
		c.stderrW.Close()
		c.stdoutW, c.stderrW = nil, nil

		// Fd() switches the file to synchronous, caller-managed I/O —
		// exactly what raw non-blocking reads in FlushPipes need.
		syscall.SetNonblock(int(c.stdoutR.Fd()), true)
		syscall.SetNonblock(int(c.stderrR.Fd()), true)
	}

	if newPgid {
		waitForPgid(cmd.Process.Pid)
	}

	return c, nil
}

func waitForPgid(pid int) {
	deadline := time.Now().Add(pgidPollTimeout)
	for {
		if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(pgidPollInterval)
	}
}

func (c *Child) closePipes() {
	for _, f := range []*os.File{c.stdoutR, c.stdoutW, c.stderrR, c.stderrW} {
		if f != nil {
			f.Close()
		}
	}
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	return c.Cmd.Process.Pid
}

// FlushPipes drains whatever is currently available on the stdout/stderr
// pipes into internal accumulators without blocking. It returns true
// while at least one pipe is still open (the child may still write more),
// false once both have hit EOF.
func (c *Child) FlushPipes() bool {
	if !c.capture {
		return false
	}
	outOpen := drainNonBlocking(c.stdoutR, &c.stdoutBuf)
	errOpen := drainNonBlocking(c.stderrR, &c.stderrBuf)
	return outOpen || errOpen
}

func drainNonBlocking(f *os.File, buf *bytes.Buffer) bool {
	if f == nil {
		return false
	}
	fd := int(f.Fd())
	// Fd() puts the descriptor back into blocking mode on every call, so
	// non-blocking mode is restored before reading.
	syscall.SetNonblock(fd, true)
	var chunk [4096]byte
	for {
		n, err := syscall.Read(fd, chunk[:])
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			return true
		}
		if n == 0 || err != nil {
			return false
		}
	}
}

// Wait reaps the child, performing one final pipe flush first so no
// buffered output is lost to a race between process exit and drain.
func (c *Child) Wait() (Exit, error) {
	c.FlushPipes()
	err := c.Cmd.Wait()
	c.FlushPipes()

	exit := Exit{
		Stdout: c.stdoutBuf.String(),
		Stderr: c.stderrBuf.String(),
	}

	if c.stdoutR != nil {
		c.stdoutR.Close()
	}
	if c.stderrR != nil {
		c.stderrR.Close()
	}

	if err == nil {
		exit.Status = 0
		exit.HasStatus = true
		return exit, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return exit, errors.Wrap(err, "child: wait")
	}

	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return exit, errors.Wrap(err, "child: unrecognized wait status")
	}

	switch {
	case ws.Exited():
		exit.Status = ws.ExitStatus()
		exit.HasStatus = true
	case ws.Signaled():
		exit.Signal = ws.Signal()
		exit.HasSignal = true
	}
	return exit, nil
}

// FinalizeCaptured performs one last non-blocking pipe drain and closes
// the read ends, returning everything captured so far. Use this instead
// of Wait when the caller has already reaped the child itself (e.g. via
// its own Wait4 loop) and only needs the accumulated stdout/stderr, since
// calling Cmd.Wait a second time on an already-reaped pid fails.
func (c *Child) FinalizeCaptured() (stdout, stderr string) {
	c.FlushPipes()
	if c.stdoutR != nil {
		c.stdoutR.Close()
	}
	if c.stderrR != nil {
		c.stderrR.Close()
	}
	return c.stdoutBuf.String(), c.stderrBuf.String()
}

// Terminate sends SIGTERM to the child's process group, polls for exit
// for up to ~100ms in 1ms steps, then escalates to SIGKILL directed at
// the same group so any descendants die too.
func (c *Child) Terminate() error {
	pgid := -c.Pid()
	if !c.newPgid {
		pgid = c.Pid()
	}

	if err := syscall.Kill(pgid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return errors.Wrap(err, "child: SIGTERM")
	}

	deadline := time.Now().Add(terminatePollTimeout)
	for time.Now().Before(deadline) {
		if !processAlive(c.Pid()) {
			return nil
		}
		time.Sleep(terminatePollInterval)
	}

	if err := syscall.Kill(pgid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return errors.Wrap(err, "child: SIGKILL")
	}
	return nil
}

func processAlive(pid int) bool {
	err := syscall.Kill(pid, 0)
	return err == nil
}

// Release detaches from the child's process handle after it has already
// been reaped by an external waitpid (rather than through Wait) — the Go
// runtime otherwise has no way to know the pid is no longer live. Safe
// to call after Wait too, where it is a no-op.
func (c *Child) Release() error {
	return c.Cmd.Process.Release()
}

// Run is a convenience wrapper: forks cmd with capture on, waits for it
// to complete, and returns its Exit.
func Run(cmd *exec.Cmd, newPgid bool) (Exit, error) {
	c, err := Fork(cmd, true, newPgid)
	if err != nil {
		return Exit{}, err
	}
	return c.Wait()
}
