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

package descriptor

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersEmptyEnablesEverything(t *testing.T) {
	var fs Filters
	assert.True(t, fs.Matches("anything"))
}

func TestFiltersPositiveOnly(t *testing.T) {
	fs := Filters{{Prefix: "_a"}}
	assert.True(t, fs.Matches("_abc"))
	assert.False(t, fs.Matches("_xyz"))
}

func TestFiltersNegativeOnly(t *testing.T) {
	fs := Filters{{Negate: true, Prefix: "_x"}}
	assert.True(t, fs.Matches("_abc"))
	assert.False(t, fs.Matches("_xyz"))
}

func TestFiltersPositiveAndNegative(t *testing.T) {
	// With filters ["_a", "-_aa"], "_ab" is enabled and "_aac" is disabled.
	fs := Filters{{Prefix: "_a"}, {Negate: true, Prefix: "_aa"}}
	assert.True(t, fs.Matches("_ab"))
	assert.False(t, fs.Matches("_aac"))
}

func TestFiltersNegativeAlone(t *testing.T) {
	// With ["-_x"] alone, all tests not starting with _x are enabled.
	fs := Filters{{Negate: true, Prefix: "_x"}}
	assert.True(t, fs.Matches("_y_anything"))
	assert.False(t, fs.Matches("_x_anything"))
}

func TestBindNonRanged(t *testing.T) {
	d := &Test{Name: "plain_test"}
	bound := Bind([]*Test{d}, nil)
	require.Len(t, bound, 1)
	assert.Equal(t, "plain_test", bound[0].Name)
	assert.Equal(t, 0, bound[0].Index)
	assert.True(t, bound[0].Enabled)
}

func TestBindRanged(t *testing.T) {
	d := &Test{Name: "ranged_test", Range: true, Low: 2, High: 5}
	bound := Bind([]*Test{d}, nil)
	require.Len(t, bound, 3)
	assert.Equal(t, "ranged_test:2", bound[0].Name)
	assert.Equal(t, "ranged_test:3", bound[1].Name)
	assert.Equal(t, "ranged_test:4", bound[2].Name)
	assert.Equal(t, 2, bound[0].Index)
}

func TestBindRangedWithTable(t *testing.T) {
	table := []string{"a", "b", "c"}
	d := &Test{Name: "table_test", Range: true, Low: 0, High: 3, Table: table}
	bound := Bind([]*Test{d}, nil)
	require.Len(t, bound, 3)
	assert.Equal(t, "a", bound[0].Item)
	assert.Equal(t, "b", bound[1].Item)
	assert.Equal(t, "c", bound[2].Item)
}

func TestBindAppliesFilters(t *testing.T) {
	descs := []*Test{
		{Name: "_a_one"},
		{Name: "_aa_two"},
		{Name: "_other"},
	}
	fs := Filters{{Prefix: "_a"}, {Negate: true, Prefix: "_aa"}}
	bound := Bind(descs, fs)
	require.Len(t, bound, 3)

	enabled := map[string]bool{}
	for _, bt := range bound {
		enabled[bt.Name] = bt.Enabled
	}
	assert.True(t, enabled["_a_one"])
	assert.False(t, enabled["_aa_two"])
	assert.False(t, enabled["_other"])
}

func TestShuffleIsPermutation(t *testing.T) {
	var bound []*BoundTest
	for i := 0; i < 20; i++ {
		bound = append(bound, &BoundTest{Name: string(rune('a' + i))})
	}
	before := map[string]bool{}
	for _, bt := range bound {
		before[bt.Name] = true
	}

	Shuffle(bound, rand.New(rand.NewSource(1)))

	require.Len(t, bound, 20)
	after := map[string]bool{}
	for _, bt := range bound {
		after[bt.Name] = true
	}
	assert.Equal(t, before, after)
}
