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

// Package bench implements the self-calibrating iteration loop that
// replaces a benchmark descriptor's body step, honoring a wall-clock
// budget the way the original jobs.cpp iteration-count search does.
package bench

import (
	"time"

	"github.com/coreos/partest/descriptor"
)

// maxIters bounds the loop counter regardless of how fast an iteration
// runs, guarding against a body so cheap that the ns_per_op estimate
// would otherwise overflow.
const maxIters = 1_000_000_000

// Run drives bt's body through the self-calibrating loop, growing n
// until either maxIters is reached or maxDur of wall-clock time has
// elapsed, then calls record with the settled iteration count and the
// nanoseconds-per-op it measured at that count.
func Run(bt *descriptor.BoundTest, maxDur time.Duration, record func(iters, nsOp uint64)) {
	maxNs := maxDur.Nanoseconds()

	var n int64 = 1
	var lastN int64 = 1
	var elapsed time.Duration
	var nsPerOp int64

	for n < maxIters && elapsed.Nanoseconds() < maxNs {
		lastN = n

		start := time.Now()
		bt.Desc.Run(bt.Index, uint64(n), bt.Item)
		elapsed = time.Since(start)

		if elapsed <= 0 {
			nsPerOp = 0
		} else {
			nsPerOp = elapsed.Nanoseconds() / n
		}

		if nsPerOp == 0 {
			n = maxIters
		} else {
			n = maxNs / nsPerOp
		}
		n = max64(min64(n+n/5, 100*lastN), lastN+1)
		n = roundUpDecade(n)
	}

	record(uint64(lastN), uint64(nsPerOp))
}

// roundUpDecade snaps n up to the next member of {1,2,3,5}·10^k ≥ n,
// matching jobs.cpp's _roundUp/_nearestPow10 pair exactly: 1→1, 2→2,
// 3→3, 4→5, 5→5, 6→10, 10→10, 11→20, 51→100.
func roundUpDecade(n int64) int64 {
	if n <= 1 {
		return 1
	}

	pow := int64(1)
	for pow*10 <= n {
		pow *= 10
	}
	// pow is the largest power of 10 that is <= n; the first of the
	// decade steps {1,2,3,5} scaled by pow that is >= n is the answer,
	// and 10·pow otherwise.
	for _, base := range []int64{1, 2, 3, 5} {
		if step := base * pow; step >= n {
			return step
		}
	}
	return 10 * pow
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
