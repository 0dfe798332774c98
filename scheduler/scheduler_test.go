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

package scheduler

import (
	"bytes"
	"os/exec"
	"syscall"
	"testing"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextTestSkipsDisabledAndRecordsThem(t *testing.T) {
	var buf bytes.Buffer
	opts := &options.Options{Jobs: 0}
	rs := result.New(opts, &buf)
	rs.StartTimer()

	tests := []*descriptor.BoundTest{
		{Name: "a", Enabled: false, Desc: &descriptor.Test{}},
		{Name: "b", Enabled: true, Desc: &descriptor.Test{}},
		{Name: "c", Enabled: false, Desc: &descriptor.Test{}},
	}
	for range tests {
		rs.Inc(false)
	}

	s, err := New(opts, rs, tests)
	require.NoError(t, err)

	bt, ok := s.nextTest()
	require.True(t, ok)
	assert.Equal(t, "b", bt.Name)

	_, ok = s.nextTest()
	assert.False(t, ok, "list should be exhausted after the one enabled test")

	assert.NotNil(t, rs.Get("a"))
	assert.NotNil(t, rs.Get("c"))
	assert.Nil(t, rs.Get("b"), "b was handed out, not recorded by nextTest itself")
}

func TestSlotForPidNoMatch(t *testing.T) {
	s := &Scheduler{}
	assert.Equal(t, -1, s.slotForPid(12345))
}

func TestExitFromStatusExited(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "exit 3")
	runErr := cmd.Run()
	exitErr, ok := runErr.(*exec.ExitError)
	require.True(t, ok)
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)

	exit := exitFromStatus(ws)
	assert.True(t, exit.HasStatus)
	assert.Equal(t, 3, exit.Status)
	assert.False(t, exit.HasSignal)
}

func TestExitFromStatusSignaled(t *testing.T) {
	cmd := exec.Command("/bin/sh", "-c", "kill -ABRT $$")
	runErr := cmd.Run()
	exitErr, ok := runErr.(*exec.ExitError)
	require.True(t, ok)
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	require.True(t, ok)

	exit := exitFromStatus(ws)
	assert.True(t, exit.HasSignal)
	assert.Equal(t, syscall.SIGABRT, exit.Signal)
	assert.False(t, exit.HasStatus)
}
