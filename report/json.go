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

package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/coreos/partest/result"
	"github.com/google/uuid"
)

// jsonTest is one test's entry in the JSON report.
type jsonTest struct {
	Name     string        `json:"name"`
	Status   string        `json:"status"`
	Duration time.Duration `json:"duration"`
	FailMsg  string        `json:"fail_message,omitempty"`
	LastLine string        `json:"last_line,omitempty"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`

	BenchIters uint64 `json:"bench_iters,omitempty"`
	BenchNsOp  uint64 `json:"bench_ns_op,omitempty"`
}

// jsonReport is the whole-run JSON document written alongside the
// terminal summary.
type jsonReport struct {
	RunID    uuid.UUID  `json:"run_id"`
	Headline string     `json:"headline"`
	ExitCode int        `json:"exit_code"`
	Tests    []jsonTest `json:"tests"`
}

// WriteJSON serializes rs to path as a single JSON document: one entry
// per recorded test plus the headline and exit code, the machine-readable
// counterpart to Dump's terminal rendering.
func WriteJSON(rs *result.Results, path string) error {
	doc := jsonReport{
		RunID:    rs.RunID,
		Headline: rs.Headline(),
		ExitCode: rs.ExitCode(),
	}
	for _, r := range rs.All() {
		doc.Tests = append(doc.Tests, jsonTest{
			Name:     r.Name,
			Status:   label(r),
			Duration: r.Duration,
			FailMsg:  r.FailMsg,
			LastLine: r.LastLine,
			Stdout:   r.Stdout,
			Stderr:   r.Stderr,

			BenchIters: r.BenchIters,
			BenchNsOp:  r.BenchNsOp,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
