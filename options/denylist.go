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

package options

import (
	"os"
	"strings"
	"time"

	"github.com/coreos/partest/descriptor"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const denylistDateFormat = "2006-01-02"

// DenylistEntry is one entry of a --denylist/PARTEST_DENYLIST YAML file:
// a test-name prefix, disabled until the given date (if still in the
// future), with an optional human reason.
//
//	- name: some-flaky-test
//	  until: 2026-12-31
//	  reason: "flakes under load, see TICKET-123"
type DenylistEntry struct {
	Name   string `yaml:"name"`
	Until  string `yaml:"until"`
	Reason string `yaml:"reason"`
}

// ParseDenylistYaml reads and parses path. A missing file is not an
// error — the denylist is optional.
func ParseDenylistYaml(path string) ([]DenylistEntry, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.Wrapf(err, "read denylist %s", path)
	}

	var entries []DenylistEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, errors.Wrapf(err, "parse denylist %s", path)
	}
	return entries, nil
}

// ActivePrefixes returns the name prefixes from entries whose "until"
// date has not yet passed (or is unset/unparsable, which is treated as
// an indefinite denial).
func ActivePrefixes(entries []DenylistEntry, now time.Time) []string {
	var out []string
	for _, e := range entries {
		if e.Until != "" {
			until, err := time.Parse(denylistDateFormat, e.Until)
			if err == nil && now.After(until) {
				continue
			}
		}
		out = append(out, e.Name)
	}
	return out
}

// ApplyDenylist disables (Enabled=false) any bound test whose name has
// one of the given prefixes, regardless of filter outcome — a denylist
// entry always wins over a positive filter, applied after §4.6's
// filter-matching pass.
func ApplyDenylist(bound []*descriptor.BoundTest, prefixes []string) {
	if len(prefixes) == 0 {
		return
	}
	for _, bt := range bound {
		for _, prefix := range prefixes {
			if strings.HasPrefix(bt.Name, prefix) {
				bt.Enabled = false
				break
			}
		}
	}
}
