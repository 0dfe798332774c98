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
	"bytes"
	"testing"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/testenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordOne(t *testing.T, rs *Results, name string, setup func(te *testenv.Env)) {
	t.Helper()
	bound := &descriptor.BoundTest{Name: name, Enabled: true, Desc: &descriptor.Test{}}
	rs.Inc(true)

	buf := make([]byte, testenv.Size)
	te := testenv.Map(buf)
	te.Reset(0, name, name+"_func")
	if setup != nil {
		setup(te)
	}

	r := &Result{}
	r.Reset(bound)
	rs.Record(te, r)
}

func TestResultsAllPass(t *testing.T) {
	var buf bytes.Buffer
	opts := &options.Options{}
	rs := New(opts, &buf)
	rs.StartTimer()

	recordOne(t, rs, "a", nil)
	recordOne(t, rs, "b", nil)

	assert.True(t, rs.Done())
	assert.Equal(t, 0, rs.ExitCode())
	counts := rs.Counts()
	assert.Equal(t, 2, counts.Enabled)
	assert.Equal(t, 2, counts.Passes)
}

func TestResultsOneFailure(t *testing.T) {
	var buf bytes.Buffer
	opts := &options.Options{}
	rs := New(opts, &buf)
	rs.StartTimer()

	recordOne(t, rs, "c", func(te *testenv.Env) {
		te.SetFailed()
		te.SetFailMsg("boom")
	})

	assert.Equal(t, 1, rs.ExitCode())
	assert.Contains(t, rs.Headline(), "0%:")
	assert.Contains(t, rs.Headline(), "1 failures")
}

func TestResultsGetByName(t *testing.T) {
	var buf bytes.Buffer
	rs := New(&options.Options{}, &buf)
	rs.StartTimer()
	recordOne(t, rs, "findme", nil)

	r := rs.Get("findme")
	require.NotNil(t, r)
	assert.Equal(t, "findme", r.Name)
	assert.Nil(t, rs.Get("nope"))
}

func TestResultsAllSortedByName(t *testing.T) {
	var buf bytes.Buffer
	rs := New(&options.Options{}, &buf)
	rs.StartTimer()
	recordOne(t, rs, "zeta", nil)
	recordOne(t, rs, "alpha", nil)
	recordOne(t, rs, "mu", nil)

	all := rs.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, []string{all[0].Name, all[1].Name, all[2].Name})
}

func TestResultsProgressSymbolsWhenForkingAndCapturing(t *testing.T) {
	var buf bytes.Buffer
	opts := &options.Options{} // Fork()==true, Capture()==true by default zero value
	rs := New(opts, &buf)
	rs.StartTimer()

	recordOne(t, rs, "a", nil)
	recordOne(t, rs, "b", func(te *testenv.Env) { te.SetFailed() })

	assert.Equal(t, ".F\n", buf.String())
}

func TestResultsNoProgressSymbolsWhenNotCapturing(t *testing.T) {
	var buf bytes.Buffer
	opts := &options.Options{NoCapture: true}
	rs := New(opts, &buf)
	rs.StartTimer()

	recordOne(t, rs, "a", nil)

	assert.Empty(t, buf.String())
}
