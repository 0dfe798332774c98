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

// Package clock wraps the monotonic time source the scheduler and
// benchmarker depend on, so that deadline math never steps backwards.
package clock

import "time"

// Point is a single monotonic reading.
type Point struct {
	t time.Time
}

// Now returns the current monotonic point.
func Now() Point {
	return Point{t: time.Now()}
}

// Add returns the point d in the future (or past, for negative d).
func (p Point) Add(d time.Duration) Point {
	return Point{t: p.t.Add(d)}
}

// Sub returns the duration elapsed from other to p.
func (p Point) Sub(other Point) time.Duration {
	return p.t.Sub(other.t)
}

// Before reports whether p happened before other.
func (p Point) Before(other Point) bool {
	return p.t.Before(other.t)
}

// After reports whether p happened after other.
func (p Point) After(other Point) bool {
	return p.t.After(other.t)
}

// IsZero reports whether p is the zero Point.
func (p Point) IsZero() bool {
	return p.t.IsZero()
}

// Seconds returns d as a floating-point number of seconds, the unit
// the bench and timeout options are expressed in on the CLI/env surface.
func Seconds(d time.Duration) float64 {
	return d.Seconds()
}

// Nanos returns d as an unsigned count of nanoseconds, the unit the
// shared TestEnv records bench results in.
func Nanos(d time.Duration) uint64 {
	if d < 0 {
		return 0
	}
	return uint64(d.Nanoseconds())
}

// FromSeconds converts a floating-point second count (as accepted from
// --bench-dur/--timeout and their PT* environment variables) into a
// Duration.
func FromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
