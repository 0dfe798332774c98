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

package result

import (
	"syscall"
	"testing"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEnv(t *testing.T) *testenv.Env {
	t.Helper()
	buf := make([]byte, testenv.Size)
	return testenv.Map(buf)
}

func TestFinalizePassed(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{})
	assert.Equal(t, Passed, r.Disposition())
}

func TestFinalizeSkipped(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")
	te.SetSkipped()

	r.Finalize(te, &options.Options{})
	assert.Equal(t, Skipped, r.Disposition())
}

func TestFinalizeFailed(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")
	te.SetFailed()
	te.SetFailMsg("boom")
	te.Mark("t_test.go", "t_func", 5)

	r.Finalize(te, &options.Options{})
	assert.Equal(t, Failed, r.Disposition())
	assert.Equal(t, "boom", r.FailMsg)
	assert.Equal(t, "t_test.go:5", r.LastLine)
}

func TestFinalizeLastLineBothTrails(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")
	te.Mark("t_test.go", "t_func", 5)
	te.Mark("helper.go", "helper_func", 9)
	te.SetFailed()

	r.Finalize(te, &options.Options{})
	assert.Equal(t, "helper.go:9 (last test assert: t_test.go:5)", r.LastLine)
}

func TestFinalizeExpectedSignalPasses(t *testing.T) {
	bound := &descriptor.BoundTest{
		Name:    "t",
		Enabled: true,
		Desc:    &descriptor.Test{ExpectSignal: syscall.SIGABRT},
	}
	r := &Result{}
	r.Reset(bound)
	r.Signal = syscall.SIGABRT

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{})
	assert.Equal(t, Passed, r.Disposition())
}

func TestFinalizeUnexpectedSignalErrors(t *testing.T) {
	bound := &descriptor.BoundTest{
		Name:    "t",
		Enabled: true,
		Desc:    &descriptor.Test{ExpectSignal: syscall.SIGABRT},
	}
	r := &Result{}
	r.Reset(bound)
	r.Signal = syscall.SIGSEGV

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{})
	assert.Equal(t, Errored, r.Disposition())
}

func TestFinalizeTimeoutKeptDespiteEnv(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)
	r.TimedOut = true

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{})
	assert.Equal(t, TimedOut, r.Disposition())
}

func TestFinalizeDiscardsOutputOnPassBelowThreshold(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)
	r.Stdout, r.Stderr = "hi", "there"

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{Verbose: options.Verbosity(0)})
	assert.Empty(t, r.Stdout)
	assert.Empty(t, r.Stderr)
}

func TestFinalizeKeepsOutputOnPassAboveThreshold(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: true, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)
	r.Stdout, r.Stderr = "hi", "there"

	te := newTestEnv(t)
	te.Reset(0, "t", "t_func")

	r.Finalize(te, &options.Options{Verbose: options.Verbosity(3)})
	require.Equal(t, "hi", r.Stdout)
	assert.Equal(t, "there", r.Stderr)
}

func TestDispositionDisabledTakesPriority(t *testing.T) {
	bound := &descriptor.BoundTest{Name: "t", Enabled: false, Desc: &descriptor.Test{}}
	r := &Result{}
	r.Reset(bound)
	assert.Equal(t, Disabled, r.Disposition())
}
