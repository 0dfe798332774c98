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

package testenv

import "testing"

func newEnv(t *testing.T) *Env {
	t.Helper()
	buf := make([]byte, Size)
	return Map(buf)
}

func TestResetAndIdentity(t *testing.T) {
	e := newEnv(t)
	e.Reset(3, "my_test", "my_test_func")
	if e.SlotID() != 3 {
		t.Errorf("SlotID() = %d, want 3", e.SlotID())
	}
	if e.TestName() != "my_test" {
		t.Errorf("TestName() = %q, want my_test", e.TestName())
	}
	if e.FuncName() != "my_test_func" {
		t.Errorf("FuncName() = %q, want my_test_func", e.FuncName())
	}
	if e.Failed() || e.Skipped() {
		t.Errorf("fresh env should not be failed or skipped")
	}
}

func TestSetIterNameCombinesWithTestName(t *testing.T) {
	e := newEnv(t)
	e.Reset(0, "range_test", "range_test_func")
	if e.TestName() != "range_test" {
		t.Fatalf("TestName() = %q before SetIterName", e.TestName())
	}
	// Callers following the documented set_iter_name convention format
	// only the per-iteration suffix; TestName must append it rather than
	// discard the base name.
	e.SetIterName("x3")
	if e.TestName() != "range_test:x3" {
		t.Errorf("TestName() = %q, want range_test:x3", e.TestName())
	}
}

func TestSetIterNameOnRangedBoundTestProducesBaseIndexIterName(t *testing.T) {
	e := newEnv(t)
	// A ranged test f[0,3) is bound with Name "f:0" (base:index) by
	// descriptor.Bind; TestName must then append the set_iter_name suffix
	// after that, producing "f:0:x0" rather than bare "x0".
	e.Reset(0, "f:0", "f")
	e.SetIterName("x0")
	if got, want := e.TestName(), "f:0:x0"; got != want {
		t.Errorf("TestName() = %q, want %q", got, want)
	}
}

func TestFailedOnlyFlipsForward(t *testing.T) {
	e := newEnv(t)
	e.Reset(0, "t", "f")
	e.SetFailed()
	if !e.Failed() {
		t.Fatalf("expected failed after SetFailed")
	}
	// No API exists to clear it; a fresh Reset is the only way back.
	e.Reset(0, "t", "f")
	if e.Failed() {
		t.Errorf("Reset should clear failed for the next test")
	}
}

func TestMarkProtocolInsideTestFunc(t *testing.T) {
	e := newEnv(t)
	e.Reset(0, "t", "my_func")
	e.Mark("helper.go", "other_func", 10)
	if got := e.LastMarkAnywhere(); got != "helper.go:10" {
		t.Errorf("LastMarkAnywhere() = %q, want helper.go:10", got)
	}
	if got := e.LastTestMark(); got != "" {
		t.Errorf("LastTestMark() = %q, want empty", got)
	}

	e.Mark("t_test.go", "my_func", 42)
	if got := e.LastTestMark(); got != "t_test.go:42" {
		t.Errorf("LastTestMark() = %q, want t_test.go:42", got)
	}
	if got := e.LastMarkAnywhere(); got != "" {
		t.Errorf("LastMarkAnywhere() should clear when marking inside the test, got %q", got)
	}
}

func TestFailMsgTruncation(t *testing.T) {
	e := newEnv(t)
	e.Reset(0, "t", "f")
	long := make([]byte, failMsgSize+100)
	for i := range long {
		long[i] = 'x'
	}
	e.SetFailMsg(string(long))
	if got := e.FailMsg(); len(got) >= failMsgSize {
		t.Errorf("FailMsg() len = %d, want < %d", len(got), failMsgSize)
	}
}

func TestBenchResult(t *testing.T) {
	e := newEnv(t)
	e.Reset(0, "t", "f")
	e.SetBenchResult(1000, 42)
	if e.BenchIters() != 1000 || e.BenchNsOp() != 42 {
		t.Errorf("SetBenchResult not retained: iters=%d nsop=%d", e.BenchIters(), e.BenchNsOp())
	}
}
