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

// Package register is the process-wide registry test files deposit into
// from their init() functions, replacing the linker-section trick the
// original runner used to discover tests before main.
package register

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/coreos/partest/descriptor"
)

var (
	mu    sync.Mutex
	tests = map[string]*descriptor.Test{}
)

// Test registers t, deriving its FuncName from t.Run's symbol (the
// registration-time runtime.FuncForPC lookup the mark protocol relies on
// to tell marks inside the test body from marks in a called helper) if
// t.FuncName was left unset. Panics if a test by this name is already
// registered — a programmer error caught at init time, not a runtime
// condition the supervisor needs to recover from.
func Test(t *descriptor.Test) {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := tests[t.Name]; ok {
		panic(fmt.Sprintf("register: test %q already registered", t.Name))
	}
	if t.FuncName == "" && t.Run != nil {
		t.FuncName = funcName(t.Run)
	}
	tests[t.Name] = t
}

func funcName(f descriptor.Func) string {
	pc := reflect.ValueOf(f).Pointer()
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return ""
	}
	return fn.Name()
}

// All returns every registered Test. The returned slice is a fresh copy;
// callers may freely bind/filter/shuffle it.
func All() []*descriptor.Test {
	mu.Lock()
	defer mu.Unlock()
	out := make([]*descriptor.Test, 0, len(tests))
	for _, t := range tests {
		out = append(out, t)
	}
	return out
}

// reset clears the registry. Exported only to the package's own tests,
// which otherwise leak state across test functions via the shared
// process-wide map.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	tests = map[string]*descriptor.Test{}
}
