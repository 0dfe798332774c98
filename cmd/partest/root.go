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

package main

import (
	"math/rand"
	"os"
	"time"

	"github.com/coreos/partest/descriptor"
	"github.com/coreos/partest/job"
	"github.com/coreos/partest/options"
	"github.com/coreos/partest/register"
	"github.com/coreos/partest/report"
	"github.com/coreos/partest/result"
	"github.com/coreos/partest/scheduler"
	"github.com/coreos/pkg/capnslog"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	jsonReportPath string

	root = &cobra.Command{
		Use:   "partest",
		Short: "Parallel unit-test runner for native test binaries",
	}
)

// Execute binds the CLI surface onto a fully defaulted+env-applied
// Options, runs the suite, and exits with the computed exit code.
func Execute() {
	opts := options.Default()
	if err := opts.ApplyEnv(); err != nil {
		plog.Fatal(err)
	}

	fst := opts.BindFlags(root.PersistentFlags())
	root.PersistentFlags().StringVar(&jsonReportPath, "json", "",
		"write a machine-readable JSON report to `path`")

	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := opts.Resolve(cmd.Flags(), fst); err != nil {
			return errors.Wrap(err, "resolve flags")
		}
		startLogging(opts)
		return runSuite(opts)
	}

	if err := root.Execute(); err != nil {
		plog.Fatal(err)
	}
}

func startLogging(opts *options.Options) {
	level := capnslog.NOTICE
	if opts.Verbose.AllStatuses() {
		level = capnslog.DEBUG
	} else if opts.Verbose.PassedStatuses() {
		level = capnslog.INFO
	}
	capnslog.SetFormatter(capnslog.NewStringFormatter(os.Stderr))
	capnslog.SetGlobalLogLevel(level)
}

// runSuite gathers descriptors, binds and filters them, applies the
// denylist and the benchmark gate, shuffles, drives either the
// Scheduler (forking mode) or a single job.Basic (no-fork mode), prints
// the summary and JSON report, and exits per results.ExitCode.
func runSuite(opts *options.Options) error {
	bound := descriptor.Bind(register.All(), opts.Filter)

	entries, err := options.ParseDenylistYaml(opts.DenylistFile)
	if err != nil {
		return errors.Wrap(err, "load denylist")
	}
	options.ApplyDenylist(bound, options.ActivePrefixes(entries, time.Now()))
	applyBenchGate(bound, opts.Bench)

	descriptor.Shuffle(bound, rand.New(rand.NewSource(time.Now().UnixNano())))

	rs := result.New(opts, os.Stdout)
	for _, bt := range bound {
		rs.Inc(bt.Enabled)
	}
	rs.StartTimer()

	if opts.Fork() {
		err = runForking(opts, rs, bound)
	} else {
		runBasic(opts, rs, bound)
	}
	if err != nil {
		return errors.Wrap(err, "run suite")
	}

	report.Dump(os.Stdout, rs, opts)
	if jsonReportPath != "" {
		if err := report.WriteJSON(rs, jsonReportPath); err != nil {
			return errors.Wrap(err, "write json report")
		}
	}

	os.Exit(rs.ExitCode())
	return nil
}

// applyBenchGate disables every benchmark-flagged bound test unless
// opts.Bench was requested: benchmarks are opt-in, not part of the
// default run.
func applyBenchGate(bound []*descriptor.BoundTest, include bool) {
	if include {
		return
	}
	for _, bt := range bound {
		if bt.Desc.Bench {
			bt.Enabled = false
		}
	}
}

func runForking(opts *options.Options, rs *result.Results, bound []*descriptor.BoundTest) error {
	sched, err := scheduler.New(opts, rs, bound)
	if err != nil {
		return err
	}
	return sched.Run()
}

// runBasic drives every enabled bound test in-process on a single
// job.Basic slot, bypassing the Scheduler entirely. This is the
// no-fork fallback: no child processes, no parallelism, just a
// sequential pass good for debugging under a single process.
func runBasic(opts *options.Options, rs *result.Results, bound []*descriptor.BoundTest) {
	b, err := job.NewBasic(0, opts)
	if err != nil {
		plog.Fatal(err)
	}
	for _, bt := range bound {
		if !bt.Enabled {
			rs.RecordDisabled(bt)
			continue
		}
		b.Prep(bt)
		b.Run(bt)
		rs.Record(b.Env(), b.Result())
	}
}
