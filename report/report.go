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

// Package report renders a finished result.Results as a colorized
// terminal table and as a machine-readable JSON file, the two outputs
// the aggregator's own Dump() deliberately leaves to a separate renderer.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/coreos/partest/options"
	"github.com/coreos/partest/result"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/term"
)

// label renders the disposition keyword for a result: PASS, FAIL,
// ERROR, TIME OUT, SKIP, DISABLED, BENCH.
func label(r *result.Result) string {
	if r.Bound != nil && r.Bound.Desc != nil && r.Bound.Desc.Bench && r.Disposition() == result.Passed {
		return "BENCH"
	}
	switch r.Disposition() {
	case result.Passed:
		return "PASS"
	case result.Skipped:
		return "SKIP"
	case result.Failed:
		return "FAIL"
	case result.Errored:
		return "ERROR"
	case result.TimedOut:
		return "TIME OUT"
	case result.Disabled:
		return "DISABLED"
	default:
		return "?"
	}
}

func colorize(r *result.Result, s string) string {
	switch r.Disposition() {
	case result.Passed:
		return text.FgHiGreen.Sprint(s)
	case result.Skipped, result.Disabled:
		return text.FgHiBlue.Sprint(s)
	default:
		return text.FgHiRed.Sprint(s)
	}
}

// shouldPrint reports whether r's line belongs in the summary at the
// configured verbosity.
func shouldPrint(r *result.Result, opts *options.Options) bool {
	switch r.Disposition() {
	case result.Passed:
		return opts.Verbose.PassedStatuses()
	case result.Skipped, result.Disabled:
		return opts.Verbose.AllStatuses()
	default:
		return true
	}
}

// Dump writes rs's headline followed by a table of per-test disposition
// lines to w, colorizing when w is an interactive terminal.
func Dump(w io.Writer, rs *result.Results, opts *options.Options) {
	fmt.Fprintln(w, rs.Headline())

	colorful := false
	if f, ok := w.(*os.File); ok {
		colorful = term.IsTerminal(int(f.Fd()))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"STATUS", "NAME", "DURATION", "DETAIL"})

	any := false
	for _, r := range rs.All() {
		if !shouldPrint(r, opts) {
			continue
		}
		any = true
		status := label(r)
		isBench := status == "BENCH"

		detail := r.FailMsg
		if detail == "" {
			detail = r.LastLine
		}
		if isBench {
			detail = fmt.Sprintf("%d iters, %d ns/op", r.BenchIters, r.BenchNsOp)
		} else if opts.Verbose.PassedOutput() && r.Disposition() == result.Passed {
			detail = r.Stdout
		}

		if colorful {
			status = colorize(r, status)
		}
		t.AppendRow(table.Row{status, r.Name, r.Duration.String(), detail})
	}

	if any {
		t.Render()
	}
}
