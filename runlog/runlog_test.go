// Copyright 2025 Loadramp Authors
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

package runlog

import (
	"errors"
	"math"
	"testing"
)

func TestAppendAssignsDenseIDs(t *testing.T) {
	g := NewRegistry()
	starts := []float64{0, 0.5, 0.5, 1.25, 3}
	for i, st := range starts {
		r, err := g.Append(st)
		if err != nil {
			t.Fatalf("append %d: unexpected error %v", i, err)
		}
		if r.ID != int64(i) {
			t.Errorf("run %d: got id %d, not as expected %d", i, r.ID, i)
		}
	}
	if g.Len() != len(starts) {
		t.Errorf("got len %d, expected %d", g.Len(), len(starts))
	}
	for i, r := range g.All() {
		if r.ID != int64(i) {
			t.Errorf("iteration order: index %d holds id %d", i, r.ID)
		}
		if r.StartTime < 0 {
			t.Errorf("run %d: negative start time %g", i, r.StartTime)
		}
	}
}

func TestAppendRejectsRegression(t *testing.T) {
	g := NewRegistry()
	if _, err := g.Append(1.0); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	_, err := g.Append(0.5)
	if !errors.Is(err, ErrStartTimeRegression) {
		t.Errorf("got %v, expected start time regression", err)
	}
	_, err = g.Append(-0.1)
	if !errors.Is(err, ErrNegativeStartTime) {
		t.Errorf("got %v, expected negative start time error", err)
	}
	// tail must be untouched by the failed appends
	if g.Len() != 1 {
		t.Errorf("got len %d after rejected appends, expected 1", g.Len())
	}
}

func TestSliceBisection(t *testing.T) {
	g := NewRegistry()
	for _, st := range []float64{0, 0.5, 1.0, 1.5, 2.0} {
		if _, err := g.Append(st); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	tests := []struct {
		start, end float64
		ids        []int64
	}{
		{0, math.Inf(1), []int64{0, 1, 2, 3, 4}},
		{0.5, 1.5, []int64{1, 2}}, // half open: 1.5 excluded
		{0, 0.5, []int64{0}},
		{2.0, 3.0, []int64{4}},
		{3.0, 4.0, nil},
		{0.6, 0.9, nil},
	}
	for _, tst := range tests {
		got := g.Slice(tst.start, tst.end)
		if len(got) != len(tst.ids) {
			t.Errorf("slice [%g, %g): got %d runs, expected %d", tst.start, tst.end, len(got), len(tst.ids))
			continue
		}
		for i, r := range got {
			if r.ID != tst.ids[i] {
				t.Errorf("slice [%g, %g): index %d got id %d, expected %d", tst.start, tst.end, i, r.ID, tst.ids[i])
			}
		}
	}
}

func TestMarkFinished(t *testing.T) {
	g := NewRegistry()
	r, _ := g.Append(0.25)
	if r.Finished() {
		t.Error("new run already finished")
	}
	if _, ok := r.RunTime(); ok {
		t.Error("pending run has a run time")
	}
	if err := g.MarkFinished(r.ID, Result{RunTime: 0.125}); err != nil {
		t.Fatalf("mark finished: %v", err)
	}
	if !r.Finished() {
		t.Error("run not finished after mark")
	}
	rt, ok := r.RunTime()
	if !ok || rt != 0.125 {
		t.Errorf("got run time %g/%t, expected 0.125", rt, ok)
	}
	ft, ok := r.FinishTime()
	if !ok || ft != 0.375 {
		t.Errorf("got finish time %g/%t, expected 0.375", ft, ok)
	}
	err := g.MarkFinished(r.ID, Result{RunTime: 1})
	if !errors.Is(err, ErrAlreadyFinished) {
		t.Errorf("second mark: got %v, expected already finished", err)
	}
	if rt, _ := r.RunTime(); rt != 0.125 {
		t.Errorf("result mutated by rejected second mark: %g", rt)
	}
	if err := g.MarkFinished(42, Result{}); !errors.Is(err, ErrUnknownRun) {
		t.Errorf("got %v, expected unknown run", err)
	}
}

func TestFailedRunHasNoRunTime(t *testing.T) {
	g := NewRegistry()
	r, _ := g.Append(0)
	err := g.MarkFinished(r.ID, Result{Err: &ErrorDescriptor{Kind: "testerr", Message: "boom"}})
	if err != nil {
		t.Fatalf("mark finished: %v", err)
	}
	if _, ok := r.RunTime(); ok {
		t.Error("failed run reports a run time")
	}
	if _, ok := r.FinishTime(); ok {
		t.Error("failed run reports a finish time")
	}
	if got := r.Result().Err.String(); got != "testerr: boom" {
		t.Errorf("got error descriptor %q", got)
	}
}

// Completions arriving out of submit order must not disturb iteration
// order.
func TestOutOfOrderCompletion(t *testing.T) {
	g := NewRegistry()
	const n = 32
	for i := range n {
		if _, err := g.Append(float64(i) * 0.01); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// finish in reverse, latencies growing with the run index
	for i := n - 1; i >= 0; i-- {
		if err := g.MarkFinished(int64(i), Result{RunTime: float64(i) * 0.001}); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}
	all := g.All()
	for i, r := range all {
		if r.ID != int64(i) {
			t.Errorf("index %d holds id %d after out of order completion", i, r.ID)
		}
		if i > 0 && r.StartTime < all[i-1].StartTime {
			t.Errorf("start time regressed at index %d", i)
		}
	}
	if g.NumFinished() != n {
		t.Errorf("got %d finished, expected %d", g.NumFinished(), n)
	}
}
