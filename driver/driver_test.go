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

package driver

import (
	"bytes"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loadramp/loadramp/executor"
	"github.com/loadramp/loadramp/stats"
	"github.com/loadramp/loadramp/task"
)

func noopDesc(name string) *task.Descriptor {
	return &task.Descriptor{
		Name: name, Executor: task.Threaded, MaxConcurrency: 100,
		New: func() task.Runner { return task.Func(func() error { return nil }) },
	}
}

func TestTargetRPSMonotonic(t *testing.T) {
	const duration = 10.0
	prev := -1.0
	for e := 0.0; e <= duration; e += 0.05 {
		rps := TargetRPS(e, duration)
		if rps < prev {
			t.Fatalf("target rate decreased at elapsed %g: %g after %g", e, rps, prev)
		}
		prev = rps
	}
	if got := TargetRPS(0, duration); got != StartRPS {
		t.Errorf("ramp start: got %g, expected %g", got, StartRPS)
	}
	if got := TargetRPS(duration, duration); got != EndRPS {
		t.Errorf("ramp end: got %g, expected %g", got, EndRPS)
	}
	if got := TargetRPS(duration/2, duration); got != (StartRPS+EndRPS)/2 {
		t.Errorf("ramp midpoint: got %g, expected %g", got, (StartRPS+EndRPS)/2)
	}
}

func TestStateStrings(t *testing.T) {
	states := map[State]string{
		Idle: "Idle", Setup: "Setup", Ramping: "Ramping", Draining: "Draining", Done: "Done",
	}
	for s, want := range states {
		if s.String() != want {
			t.Errorf("got %q, expected %q", s.String(), want)
		}
	}
}

func TestZeroLatencyBenchmark(t *testing.T) {
	b, err := New([]*task.Descriptor{noopDesc("zerolat")}, Options{Duration: 300 * time.Millisecond, Terminal: false})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if got := b.singles[0].state; got != Idle {
		t.Errorf("initial state %v, expected Idle", got)
	}
	if err := b.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	s := b.singles[0]
	if s.state != Done {
		t.Errorf("state after run %v, expected Done", s.state)
	}
	g := stats.Compute(s.exec.Registry().All())
	if g.SubmittedRuns == 0 {
		t.Fatal("no runs submitted during the ramp")
	}
	if g.FinishedRuns != g.SubmittedRuns {
		t.Errorf("after join: %d submitted but %d finished", g.SubmittedRuns, g.FinishedRuns)
	}
	if g.FailedRuns != 0 {
		t.Errorf("zero latency task failed %d times", g.FailedRuns)
	}
	if g.AvgRunTime > 0.001 {
		t.Errorf("avg run time %gs, expected under 1ms", g.AvgRunTime)
	}
	// registry ordering invariant across the whole run
	all := s.exec.Registry().All()
	for i := 1; i < len(all); i++ {
		if all[i].StartTime < all[i-1].StartTime {
			t.Fatalf("start time regressed at run %d", i)
		}
	}
}

func TestFlakyRatioConverges(t *testing.T) {
	var n atomic.Int64
	d := &task.Descriptor{
		Name: "thirds", Executor: task.Threaded, MaxConcurrency: 10,
		New: func() task.Runner {
			return task.Func(func() error {
				if n.Add(1)%3 == 0 {
					return errors.New("induced")
				}
				return nil
			})
		},
	}
	b, err := New([]*task.Descriptor{d}, Options{Duration: 400 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	g := stats.Compute(b.singles[0].exec.Registry().All())
	if g.FinishedRuns < 10 {
		t.Skipf("only %d runs dispatched, not enough to judge the ratio", g.FinishedRuns)
	}
	if g.FailedRatio < 0.25 || g.FailedRatio > 0.40 {
		t.Errorf("failed ratio %g, expected about 1/3", g.FailedRatio)
	}
}

func TestSetupFailureAbortsBeforeRamp(t *testing.T) {
	d := &task.Descriptor{
		Name: "brokensetup", Executor: task.Threaded, MaxConcurrency: 2,
		New: func() task.Runner { return brokenSetup{} },
	}
	b, err := New([]*task.Descriptor{d}, Options{Duration: time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	err = b.Run()
	var se *executor.SetupError
	if !errors.As(err, &se) {
		t.Fatalf("got %v, expected a SetupError", err)
	}
	if st := b.singles[0].state; st != Setup {
		t.Errorf("state after aborted setup %v, expected Setup", st)
	}
}

type brokenSetup struct{}

func (brokenSetup) Setup() error { return errors.New("backend down") }
func (brokenSetup) Run() error   { return nil }

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Options{Duration: time.Second}); err == nil {
		t.Error("expected error for empty task list")
	}
	if _, err := New([]*task.Descriptor{noopDesc("x")}, Options{}); err == nil {
		t.Error("expected error for zero duration")
	}
	bad := &task.Descriptor{Name: "bad", Executor: "gevent", MaxConcurrency: 1,
		New: func() task.Runner { return task.Func(func() error { return nil }) }}
	_, err := New([]*task.Descriptor{bad}, Options{Duration: time.Second})
	var ce *task.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("got %v, expected a ConfigError", err)
	}
}

func TestTerminalOutput(t *testing.T) {
	var buf bytes.Buffer
	d := noopDesc("render")
	b, err := New([]*task.Descriptor{d}, Options{Duration: 250 * time.Millisecond, Terminal: true, Out: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := b.singles[0].terminalOutput()
	for _, want := range []string{"Stress test of render", "interval", "Count", "Failed", "Std Dev", "Total"} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal output missing %q:\n%s", want, out)
		}
	}
	if !strings.Contains(out, "(0%)") {
		t.Errorf("expected a zero failed percentage cell:\n%s", out)
	}
}

func TestResultsKeyedByTask(t *testing.T) {
	b, err := New([]*task.Descriptor{noopDesc("one"), noopDesc("two")},
		Options{Duration: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := b.Run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	res := b.Results(0.1)
	if len(res) != 2 {
		t.Fatalf("got %d result entries, expected 2", len(res))
	}
	for _, name := range []string{"one", "two"} {
		ts, ok := res[name]
		if !ok {
			t.Fatalf("missing results for task %q", name)
		}
		if len(ts.AvgRunTime) != 2 {
			t.Errorf("%s: got %d avg points for 0.1s windows over 0.2s, expected 2", name, len(ts.AvgRunTime))
		}
	}
}
