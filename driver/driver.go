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

// Package driver runs the benchmark: it ramps the dispatch rate
// linearly from StartRPS to EndRPS over the configured duration,
// submitting invocations through an executor, while a periodic
// reporter renders windowed statistics. One benchmark runs its tasks
// sequentially, one sub-benchmark per task.
package driver // import "github.com/loadramp/loadramp/driver"

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"fortio.org/dflag"
	"fortio.org/log"
	"github.com/google/uuid"
	"github.com/loadramp/loadramp/executor"
	"github.com/loadramp/loadramp/results"
	"github.com/loadramp/loadramp/task"
)

const (
	// StartRPS and EndRPS bound the linear dispatch-rate ramp.
	StartRPS = 0.0
	EndRPS   = 1000.0
)

var (
	// DispatchSlack compensates for observed dispatch undershoot due
	// to scheduling latency. Empirical; tunable at runtime via the
	// dispatch-slack dynamic flag.
	DispatchSlack = dflag.New(1.05, "Over-dispatch factor applied to the ramp's pending-run computation")
	// ReportInterval is the reporter tick and the width of the
	// per-window rows in the terminal table.
	ReportInterval = dflag.New(1*time.Second, "Interval between periodic stat reports")
)

// TargetRPS is the instantaneous target rate of the linear ramp; it is
// non-decreasing in elapsed.
func TargetRPS(elapsed, duration float64) float64 {
	return StartRPS + (EndRPS-StartRPS)*(elapsed/duration)
}

// State of one task's benchmark.
type State int

const (
	Idle State = iota
	Setup
	Ramping
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Setup:
		return "Setup"
	case Ramping:
		return "Ramping"
	case Draining:
		return "Draining"
	case Done:
		return "Done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options configures a Benchmark.
type Options struct {
	// Duration of each task's ramp.
	Duration time.Duration
	// Terminal enables the cleared-screen table reporter; when
	// false the reporter logs a single-line summary instead.
	Terminal bool
	// Out is where terminal rendering goes, defaults to stdout.
	Out io.Writer
}

// Benchmark drives one or more tasks, each through its own executor.
type Benchmark struct {
	ID      string
	opts    Options
	singles []*single
}

// single is the per-task benchmark: the ramp loop plus its reporter.
type single struct {
	desc  *task.Descriptor
	opts  Options
	exec  executor.Executor
	start time.Time
	state State
}

// New validates every task descriptor up front and builds the
// benchmark. Configuration problems surface here, before anything ran.
func New(tasks []*task.Descriptor, opts Options) (*Benchmark, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tasks to benchmark")
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("benchmark duration must be positive, got %v", opts.Duration)
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	b := &Benchmark{ID: uuid.NewString(), opts: opts}
	for _, d := range tasks {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		b.singles = append(b.singles, &single{desc: d, opts: opts, state: Idle})
	}
	return b, nil
}

// Run executes every task's benchmark in order. The first setup
// failure aborts the whole benchmark; workload failures during the
// ramp never do.
func (b *Benchmark) Run() error {
	log.Infof("benchmark %s starting: %d task(s), %v each", b.ID, len(b.singles), b.opts.Duration)
	for _, s := range b.singles {
		if err := s.run(); err != nil {
			return err
		}
	}
	log.Infof("benchmark %s done", b.ID)
	return nil
}

// Results shapes every task's run log into the exporter series.
func (b *Benchmark) Results(sampleInterval float64) map[string]results.TaskSeries {
	d := make(map[string]results.TaskSeries, len(b.singles))
	for _, s := range b.singles {
		d[s.desc.Name] = results.Shape(s.exec.Registry(), b.opts.Duration.Seconds(), sampleInterval)
	}
	return d
}

// Export writes the shaped series into a freshly created directory
// under dirPath (first free .N suffix if it exists). A sampleInterval
// of 0 defaults to duration/50. Returns the directory actually used.
func (b *Benchmark) Export(dirPath string, sampleInterval float64) (string, error) {
	if sampleInterval <= 0 {
		sampleInterval = b.opts.Duration.Seconds() / 50.0
	}
	return results.Export(dirPath, b.Results(sampleInterval))
}

func (s *single) run() error {
	log.Infof("starting benchmark of %s", s.desc)
	s.state = Setup
	exec, err := executor.New(s.desc)
	if err != nil {
		return err
	}
	s.exec = exec
	if err := exec.Setup(); err != nil {
		return err
	}
	s.start = exec.Start()
	stopReporter := s.startReporter()

	s.state = Ramping
	s.ramp()

	s.state = Draining
	s.exec.Finish()
	s.exec.Join()
	stopReporter()
	s.state = Done
	log.Debugf("%+v", s.exec.Stats())
	return nil
}

// ramp advances wall-clock time and submits runs so the dispatch rate
// tracks TargetRPS. The executor's admission gate is the only place
// the loop blocks on workload latency.
func (s *single) ramp() {
	duration := s.opts.Duration.Seconds()
	now := time.Now()
	lastDispatch := now
	for {
		now = time.Now()
		elapsed := now.Sub(s.start).Seconds()
		if elapsed >= duration {
			return
		}
		rps := TargetRPS(elapsed, duration)
		pending := now.Sub(lastDispatch).Seconds() * rps * DispatchSlack.Get()
		for pending >= 1.0 {
			s.exec.WaitAvailable()
			s.exec.Submit()
			now = time.Now()
			lastDispatch = now
			pending -= 1.0
			runtime.Gosched()
		}
		runtime.Gosched()
	}
}

// startReporter launches the periodic reporter and returns its cancel
// function, which blocks until the reporter exited.
func (s *single) startReporter() func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(ReportInterval.Get())
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.report()
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (s *single) report() {
	if s.opts.Terminal {
		// clear screen, cursor home
		fmt.Fprint(s.opts.Out, "\033[H\033[J")
		fmt.Fprint(s.opts.Out, s.terminalOutput())
		return
	}
	g := s.exec.Stats()
	log.Infof("%s: submitted %d finished %d failed %d (%.0f%%) avg %.4fs min %.4fs max %.4fs +/- %.4fs",
		s.desc.Name, g.SubmittedRuns, g.FinishedRuns, g.FailedRuns, 100*g.FailedRatio,
		g.AvgRunTime, g.MinRunTime, g.MaxRunTime, g.StdDevRunTime)
}
