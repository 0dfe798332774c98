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

package clock

import (
	"testing"
	"time"
)

func TestMonotonicDoesNotStepBackwards(t *testing.T) {
	prev := Now()
	for i := 0; i < 1000; i++ {
		cur := Now()
		if cur.Before(prev) {
			t.Fatalf("clock stepped backwards: %v before %v", cur, prev)
		}
		prev = cur
	}
}

func TestAddSub(t *testing.T) {
	p := Now()
	future := p.Add(5 * time.Second)
	if d := future.Sub(p); d != 5*time.Second {
		t.Errorf("Sub = %v, want 5s", d)
	}
	if !future.After(p) {
		t.Errorf("future should be after p")
	}
	if !p.Before(future) {
		t.Errorf("p should be before future")
	}
}

func TestSecondsNanosRoundTrip(t *testing.T) {
	d := FromSeconds(1.5)
	if d != 1500*time.Millisecond {
		t.Errorf("FromSeconds(1.5) = %v, want 1.5s", d)
	}
	if got := Seconds(d); got != 1.5 {
		t.Errorf("Seconds() = %v, want 1.5", got)
	}
	if got := Nanos(d); got != 1500000000 {
		t.Errorf("Nanos() = %v, want 1500000000", got)
	}
}

func TestNanosNegative(t *testing.T) {
	if got := Nanos(-time.Second); got != 0 {
		t.Errorf("Nanos(negative) = %v, want 0", got)
	}
}
