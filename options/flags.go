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
	"github.com/spf13/pflag"
)

// BindFlags registers o's CLI surface on fs, generalizing
// harness.Options.FlagSet's prefixed flag.FlagSet builder to pflag. The
// flag defaults are o's current values, so callers should apply
// defaults and ApplyEnv before calling BindFlags, matching the
// documented defaults -> env -> flags precedence.
func (o *Options) BindFlags(fs *pflag.FlagSet) *FlagState {
	fst := &FlagState{filterArg: o.filterString(), denylistArg: o.DenylistFile}

	fs.BoolVar(&o.Bench, "bench", o.Bench, "include benchmarks in the run")
	fs.Float64Var(&o.BenchDurS, "bench-dur", o.BenchDurS, "per-benchmark wall-clock budget, in seconds")
	fs.StringVar(&fst.filterArg, "filter", fst.filterArg, "shell-quoted list of name prefixes to run (prefix with - to exclude)")
	fs.IntVar(&o.Jobs, "jobs", o.Jobs, "number of parallel worker slots")
	fs.BoolVar(&o.NoCapture, "nocapture", o.NoCapture, "don't capture stdout/stderr from tests")
	fs.BoolVar(&o.NoFork, "nofork", o.NoFork, "run every test in-process instead of in a forked child")
	fs.IntVar(&o.PortBase, "port", o.PortBase, "base port number handed out by get_port")
	fs.Float64Var(&o.TimeoutS, "timeout", o.TimeoutS, "default per-test timeout, in seconds")
	fs.CountP("verbose", "v", "increase summary verbosity (repeatable)")
	fs.StringVar(&fst.denylistArg, "denylist", fst.denylistArg, "path to a YAML denylist file")

	return fst
}

// FlagState holds the raw filter and denylist strings, which Resolve
// applies onto Options after fs.Parse (the filter needs its shellquote
// parsing). Verbose is not held here: it is a CountP flag, since
// repeated -v is the documented way to raise it, and Resolve reads its
// count back out of fs.
type FlagState struct {
	filterArg   string
	denylistArg string
}

// Resolve finishes applying fs's parsed flags onto o: shellquote-parses
// the filter string and reads the verbose count back out of fs. Call
// once, after fs.Parse has run.
func (o *Options) Resolve(fs *pflag.FlagSet, fst *FlagState) error {
	if fst.filterArg != "" {
		parsed, err := ParseFilters(fst.filterArg)
		if err != nil {
			return err
		}
		o.Filter = parsed
	}
	o.DenylistFile = fst.denylistArg

	if fs.Changed("verbose") {
		n, err := fs.GetCount("verbose")
		if err != nil {
			return err
		}
		o.Verbose = Verbosity(n)
	}
	return nil
}

// filterString renders o.Filter back to the shellquote-compatible form
// BindFlags seeds its string flag's default with, so an env-derived
// filter list survives being shown in --help and round-trips if the user
// doesn't override it.
func (o *Options) filterString() string {
	var out string
	for i, f := range o.Filter {
		if i > 0 {
			out += " "
		}
		if f.Negate {
			out += "-"
		}
		out += f.Prefix
	}
	return out
}
