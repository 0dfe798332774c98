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
	"fmt"
	"io"
	"sort"

	"github.com/coreos/partest/clock"
	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/testenv"
	"github.com/google/uuid"
)

// Results aggregates every Result produced by a run: counters, a run
// identity, and the sorted-on-dump slice of individual Results.
type Results struct {
	RunID uuid.UUID

	enabled   int
	skipped   int
	passes    int
	errors    int
	failures  int
	finished  int
	total     int
	testsDur  float64
	start     clock.Point
	end       clock.Point

	opts    *options.Options
	out     io.Writer
	results []*Result
}

// New creates an empty Results bound to opts, writing progress symbols
// and the final summary to out.
func New(opts *options.Options, out io.Writer) *Results {
	return &Results{
		RunID: uuid.New(),
		opts:  opts,
		out:   out,
	}
}

// StartTimer begins the wall-clock timer used for the "Ran in Xs"
// headline figure.
func (rs *Results) StartTimer() {
	rs.start = clock.Now()
}

// Inc registers one more test that will eventually be recorded, counting
// it toward the enabled tally iff enabled.
func (rs *Results) Inc(enabled bool) {
	rs.total++
	if enabled {
		rs.enabled++
	}
}

// Done reports whether every registered test has been recorded.
func (rs *Results) Done() bool {
	return rs.finished == rs.total
}

// Record finalizes r against te and opts, tallies it, and — when
// forking with capture active — prints its one-character progress
// symbol.
func (rs *Results) Record(te *testenv.Env, r *Result) {
	r.Finalize(te, rs.opts)

	rs.finished++
	rs.testsDur += r.Duration.Seconds()

	var symbol byte
	switch {
	case !r.Enabled():
		// Not tallied.
	case r.Skipped:
		symbol = 'S'
		rs.skipped++
	case r.Error:
		symbol = 'E'
		rs.errors++
	case r.Failed:
		symbol = 'F'
		rs.failures++
	case r.TimedOut:
		symbol = 'T'
		rs.failures++
	default:
		symbol = '.'
		rs.passes++
	}

	rs.results = append(rs.results, r)

	if rs.opts.Fork() && rs.opts.Capture() {
		if symbol != 0 {
			fmt.Fprintf(rs.out, "%c", symbol)
		}
		if rs.Done() {
			fmt.Fprintln(rs.out)
		}
	}

	if rs.Done() {
		rs.end = clock.Now()
	}
}

// RecordDisabled tallies a bound test that was never assigned a job
// because it failed filtering or the denylist — there is no TestEnv to
// finalize against, so it is appended untallied, matching Record's
// !r.Enabled() branch.
func (rs *Results) RecordDisabled(bt *descriptor.BoundTest) *Result {
	r := &Result{Bound: bt, Name: bt.Name}
	rs.finished++
	rs.results = append(rs.results, r)
	if rs.Done() {
		rs.end = clock.Now()
	}
	return r
}

// Get returns the recorded Result for name, or nil if none was recorded.
func (rs *Results) Get(name string) *Result {
	for _, r := range rs.results {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// All returns every recorded Result, sorted lexicographically by name.
func (rs *Results) All() []*Result {
	sorted := make([]*Result, len(rs.results))
	copy(sorted, rs.results)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	return sorted
}

// Headline renders the one-line summary: "<pct>%: of N tests run, P OK,
// E errors, F failures, S skipped. Ran in Xs (tests used Ys)".
func (rs *Results) Headline() string {
	pct := 100
	if rs.enabled > 0 {
		pct = int((float64(rs.passes) / float64(rs.enabled)) * 100)
	}
	return fmt.Sprintf(
		"%d%%: of %d tests run, %d OK, %d errors, %d failures, %d skipped. Ran in %.3fs (tests used %.3fs)",
		pct, rs.enabled, rs.passes, rs.errors, rs.failures, rs.skipped,
		rs.end.Sub(rs.start).Seconds(), rs.testsDur,
	)
}

// Dump writes the headline to the Results' output. Per-test rendering
// lives in package report; Dump here only writes the headline, matching
// the division of responsibility between the (unchanged) aggregator and
// the (additive) report renderer. The exit code comes from ExitCode.
func (rs *Results) Dump() {
	fmt.Fprintln(rs.out, rs.Headline())
}

// ExitCode is 0 iff every enabled test passed.
func (rs *Results) ExitCode() int {
	if rs.passes == rs.enabled {
		return 0
	}
	return 1
}

// Counts exposes the raw tallies, primarily for tests and the report
// package's table rendering.
type Counts struct {
	Enabled, Skipped, Passes, Errors, Failures, Finished, Total int
}

// Counts returns a snapshot of rs's counters.
func (rs *Results) Counts() Counts {
	return Counts{
		Enabled:  rs.enabled,
		Skipped:  rs.skipped,
		Passes:   rs.passes,
		Errors:   rs.errors,
		Failures: rs.failures,
		Finished: rs.finished,
		Total:    rs.total,
	}
}
