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

// Package descriptor holds the immutable description of a registered
// test and the binder that expands range/table descriptors into concrete
// BoundTests and applies filters to them.
package descriptor

import (
	"fmt"
	"math/rand"
	"reflect"
	"syscall"
	"time"
)

// Func is a test body: index is the (expanded) range index, benchN is
// the loop count a benchmark test is asked to honor, item is the i'th
// table element when the descriptor is table-typed (nil otherwise).
type Func func(index int, benchN uint64, item interface{})

// Hook is a setup/teardown/cleanup function. Setup and teardown run
// inside isolation (the forked child, or the test goroutine in no-fork
// mode); cleanup always runs outside isolation, in the parent, after the
// child has exited or the goroutine has unwound.
type Hook func() error

// Test is the immutable description of one registered test, the
// language-neutral equivalent of the linker-section descriptor: every
// Test gathered from package register.All before a run becomes zero or
// more BoundTests.
type Test struct {
	// Name is the programmer-visible identifier.
	Name string

	// FuncName is the test function's symbol name, captured at
	// registration time with runtime.FuncForPC — used to distinguish
	// mark() calls originating inside the test body from calls made by
	// helpers the test calls into.
	FuncName string

	Run      Func
	Setup    Hook
	Teardown Hook
	Cleanup  Hook

	// ExpectExitStatus is the exit status a forked test must produce to
	// be considered passing rather than errored. Zero (the default)
	// expects a normal, successful exit: any nonzero observed status is
	// then errored, mirroring the upstream convention that 0 doubles as
	// "unset."
	ExpectExitStatus int

	// ExpectSignal is the signal a forked test must be killed by to be
	// considered passing. Zero means "no signal expected" — there is no
	// signal numbered 0, so it doubles as the unset sentinel.
	ExpectSignal syscall.Signal

	// ExpectFail marks a test whose body is expected to call fail(). The
	// disposition chain in result.Result.Finalize consults it only after
	// a failed env has already been classified: a test that calls fail()
	// is reported failed whether or not ExpectFail is set.
	ExpectFail bool

	// Timeout overrides options.Options.Timeout for this test. Zero
	// means "use the default."
	Timeout time.Duration

	// Range, when true, expands this descriptor into one BoundTest per
	// integer in [Low, High).
	Range      bool
	Low, High  int

	// Table, when non-nil, must be a slice; ranged variant i is handed
	// reflect.ValueOf(Table).Index(i).Interface() as its Item.
	Table interface{}

	// Bench marks this test as a benchmark: its Run is driven by the
	// bench package's auto-scaling loop instead of being called once.
	Bench bool
}

// BoundTest is a Test descriptor bound to one concrete index (and, for
// table-typed tests, one concrete element).
type BoundTest struct {
	Desc    *Test
	Index   int
	Item    interface{}
	Name    string
	Enabled bool
}

// Filter is one entry of an ordered filter list: (negated, prefix).
type Filter struct {
	Negate bool
	Prefix string
}

// Filters is an ordered list of filter entries. A test is enabled if the
// list is empty, or if no positive filter exists and no negative filter
// matches, or if at least one positive filter matches and no negative
// filter matches.
type Filters []Filter

// Matches reports whether name is enabled under fs.
func (fs Filters) Matches(name string) bool {
	if len(fs) == 0 {
		return true
	}

	havePositive := false
	positiveMatch := false
	negativeMatch := false
	for _, f := range fs {
		if f.Negate {
			if hasPrefix(name, f.Prefix) {
				negativeMatch = true
			}
			continue
		}
		havePositive = true
		if hasPrefix(name, f.Prefix) {
			positiveMatch = true
		}
	}

	if negativeMatch {
		return false
	}
	if !havePositive {
		return true
	}
	return positiveMatch
}

func hasPrefix(name, prefix string) bool {
	if len(prefix) > len(name) {
		return false
	}
	return name[:len(prefix)] == prefix
}

// Bind expands descs into BoundTests (one per non-ranged descriptor, one
// per integer in [Low, High) for ranged ones) and marks each Enabled
// according to fs.
func Bind(descs []*Test, fs Filters) []*BoundTest {
	var out []*BoundTest
	for _, d := range descs {
		if !d.Range {
			bt := &BoundTest{Desc: d, Index: 0, Name: d.Name}
			bt.Enabled = fs.Matches(bt.Name)
			out = append(out, bt)
			continue
		}

		var tableVal reflect.Value
		hasTable := d.Table != nil
		if hasTable {
			tableVal = reflect.ValueOf(d.Table)
		}

		for i := d.Low; i < d.High; i++ {
			bt := &BoundTest{
				Desc:  d,
				Index: i,
				Name:  fmt.Sprintf("%s:%d", d.Name, i),
			}
			if hasTable {
				bt.Item = tableVal.Index(i).Interface()
			}
			bt.Enabled = fs.Matches(bt.Name)
			out = append(out, bt)
		}
	}
	return out
}

// Shuffle randomizes the order of bound, surfacing order-dependence
// bugs: no guarantee is made about inter-test execution order across
// runs.
func Shuffle(bound []*BoundTest, rng *rand.Rand) {
	rng.Shuffle(len(bound), func(i, j int) {
		bound[i], bound[j] = bound[j], bound[i]
	})
}
