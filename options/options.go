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

// Package options holds the populated runner configuration: defaults,
// overridden by environment variables, overridden again by CLI flags.
package options

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/coreos/partest/descriptor"
	"github.com/kballard/go-shellquote"
	"github.com/pkg/errors"
)

const (
	defaultBenchDurS = 1.0
	defaultPortBase  = 23120
	defaultTimeoutS  = 5.0
)

// Verbose levels, per the CLI surface: 0 = failures only, 1 = also
// passed-test status lines, 2 = also skipped/disabled lines, 3 = also
// captured output for passed tests.
type Verbosity int

// PassedStatuses reports whether passed-test status lines should print.
func (v Verbosity) PassedStatuses() bool { return v >= 1 }

// AllStatuses reports whether skipped/disabled lines should print.
func (v Verbosity) AllStatuses() bool { return v >= 2 }

// PassedOutput reports whether captured output for passed tests should
// print.
func (v Verbosity) PassedOutput() bool { return v >= 3 }

// Options is the fully-resolved configuration for one run.
type Options struct {
	Bench      bool
	BenchDurS  float64
	Filter     descriptor.Filters
	Jobs       int
	NoCapture  bool
	NoFork     bool
	PortBase   int
	TimeoutS   float64
	Verbose    Verbosity
	DenylistFile string
}

// Capture reports whether stdout/stderr capture is active.
func (o *Options) Capture() bool { return !o.NoCapture }

// Fork reports whether tests run isolated in child processes.
func (o *Options) Fork() bool { return !o.NoFork }

// Timeout is the default per-test timeout as a time.Duration.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.TimeoutS * float64(time.Second))
}

// BenchDur is the per-benchmark wall-clock budget as a time.Duration.
func (o *Options) BenchDur() time.Duration {
	return time.Duration(o.BenchDurS * float64(time.Second))
}

// Default returns an Options populated with the documented defaults
// (before environment or CLI overrides are applied).
func Default() *Options {
	jobs := runtime.NumCPU()
	if jobs < 1 {
		jobs = 1
	}
	return &Options{
		BenchDurS: defaultBenchDurS,
		Jobs:      jobs,
		PortBase:  defaultPortBase,
		TimeoutS:  defaultTimeoutS,
	}
}

// ApplyEnv overlays environment-variable settings onto o. Env applies
// before CLI flags, per the documented precedence.
func (o *Options) ApplyEnv() error {
	if v, ok := os.LookupEnv("PTBENCH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "options: PTBENCH")
		}
		o.Bench = b
	}
	if v, ok := os.LookupEnv("PTBENCHDUR"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "options: PTBENCHDUR")
		}
		o.BenchDurS = f
	}
	if v, ok := os.LookupEnv("PTFILTER"); ok {
		fs, err := ParseFilters(v)
		if err != nil {
			return errors.Wrap(err, "options: PTFILTER")
		}
		o.Filter = fs
	}
	if v, ok := os.LookupEnv("PTJOBS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "options: PTJOBS")
		}
		o.Jobs = n
	}
	if v, ok := os.LookupEnv("PTNOCAPTURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "options: PTNOCAPTURE")
		}
		o.NoCapture = b
	}
	if v, ok := os.LookupEnv("PTNOFORK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrap(err, "options: PTNOFORK")
		}
		o.NoFork = b
	}
	if v, ok := os.LookupEnv("PTPORT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "options: PTPORT")
		}
		o.PortBase = n
	}
	if v, ok := os.LookupEnv("PTTIMEOUT"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrap(err, "options: PTTIMEOUT")
		}
		o.TimeoutS = f
	}
	if v, ok := os.LookupEnv("PTVERBOSE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrap(err, "options: PTVERBOSE")
		}
		o.Verbose = Verbosity(n)
	}
	if v, ok := os.LookupEnv("PARTEST_DENYLIST"); ok {
		o.DenylistFile = v
	}
	return nil
}

// EnvPairs renders o back into the PTxxx=value form ApplyEnv reads. A
// re-exec'd child started with these in its environment observes the
// same resolved defaults+env+flags configuration its parent computed,
// rather than recomputing defaults+env alone and missing whatever the
// parent's CLI flags overrode (flags themselves don't cross exec, since
// the child never parses os.Args as a CLI invocation).
func (o *Options) EnvPairs() []string {
	return []string{
		fmt.Sprintf("PTBENCH=%v", o.Bench),
		fmt.Sprintf("PTBENCHDUR=%g", o.BenchDurS),
		fmt.Sprintf("PTFILTER=%s", o.filterString()),
		fmt.Sprintf("PTJOBS=%d", o.Jobs),
		fmt.Sprintf("PTNOCAPTURE=%v", o.NoCapture),
		fmt.Sprintf("PTNOFORK=%v", o.NoFork),
		fmt.Sprintf("PTPORT=%d", o.PortBase),
		fmt.Sprintf("PTTIMEOUT=%g", o.TimeoutS),
		fmt.Sprintf("PTVERBOSE=%d", int(o.Verbose)),
		fmt.Sprintf("PARTEST_DENYLIST=%s", o.DenylistFile),
	}
}

// ParseFilters splits a shell-quoted, whitespace/comma-tolerant filter
// argument into descriptor.Filters, honoring the "-" negation prefix.
// Grounded on runext.go's use of shellquote for test-argument lists.
func ParseFilters(arg string) (descriptor.Filters, error) {
	fields, err := shellquote.Split(arg)
	if err != nil {
		return nil, errors.Wrap(err, "parse filter list")
	}

	var out descriptor.Filters
	for _, field := range fields {
		for _, raw := range splitCommas(field) {
			if raw == "" {
				continue
			}
			if raw[0] == '-' {
				out = append(out, descriptor.Filter{Negate: true, Prefix: raw[1:]})
			} else {
				out = append(out, descriptor.Filter{Prefix: raw})
			}
		}
	}
	return out, nil
}

func splitCommas(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
