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

// Package executor runs task invocations concurrently with bounded
// parallelism and records every outcome in the run log. Two back-ends
// implement the same contract: threaded (one worker goroutine per
// invocation, gated by a mutex+cond slot counter) and cooperative (one
// lightweight goroutine per invocation, capped by a weighted semaphore,
// for I/O-parked workloads).
package executor // import "github.com/loadramp/loadramp/executor"

import (
	"fmt"
	"time"

	"fortio.org/log"
	"github.com/loadramp/loadramp/runlog"
	"github.com/loadramp/loadramp/stats"
	"github.com/loadramp/loadramp/task"
)

// Executor is the capability set the driver dispatches through.
// Lifecycle: Setup, Start, then any number of WaitAvailable+Submit
// from a single goroutine, then Finish and Join.
type Executor interface {
	// Setup constructs the task instance(s) and runs each one's
	// Setup() exactly once, before any dispatch.
	Setup() error
	// Start stamps and returns the benchmark start time; all run
	// start times are relative to it.
	Start() time.Time
	// Submit reserves the next run id, records the Run, and
	// enqueues execution of the task's Run(). The returned Run is
	// pending until its worker completes.
	Submit() *runlog.Run
	// WaitAvailable blocks until at least one worker slot is free.
	WaitAvailable()
	// Available is the non-blocking variant.
	Available() bool
	// Join waits for all in-flight runs to finish.
	Join()
	// Finish stamps the end time; no new submissions are accepted.
	Finish()
	// Registry exposes the run log for stats and export.
	Registry() *runlog.Registry
	// Stats aggregates the run log so far.
	Stats() stats.GeneralStats
}

// New builds the back-end selected by the descriptor.
func New(d *task.Descriptor) (Executor, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	switch d.Executor {
	case task.Threaded:
		return newThreaded(d), nil
	case task.Cooperative:
		return newCooperative(d), nil
	}
	// Validate() already rejected anything else.
	return nil, &task.ConfigError{Task: d.Name, Msg: fmt.Sprintf("invalid executor type %q", d.Executor)}
}

// SetupError is a workload setup failure; fatal for the task, the
// benchmark aborts before the ramp begins.
type SetupError struct {
	Task string
	Err  error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup of task %q failed: %v", e.Task, e.Err)
}

func (e *SetupError) Unwrap() error {
	return e.Err
}

// invoke runs one invocation and captures its outcome. Workload errors
// and panics never propagate past here; they become the result's
// ErrorDescriptor.
func invoke(r task.Runner, runID int64) (res runlog.Result) {
	res.RunID = runID
	defer func() {
		if p := recover(); p != nil {
			log.Errf("run %d panicked: %v", runID, p)
			res.Err = &runlog.ErrorDescriptor{Kind: "panic", Message: fmt.Sprintf("%v", p)}
		}
	}()
	start := time.Now()
	if err := r.Run(); err != nil {
		res.Err = &runlog.ErrorDescriptor{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
		return res
	}
	res.RunTime = time.Since(start).Seconds()
	return res
}

// base carries the state shared by both back-ends.
type base struct {
	desc     *task.Descriptor
	reg      *runlog.Registry
	start    time.Time
	end      time.Time
	finished bool
}

func newBase(d *task.Descriptor) base {
	return base{desc: d, reg: runlog.NewRegistry()}
}

func (b *base) Start() time.Time {
	b.start = time.Now()
	log.LogVf("executor for %s started", b.desc.Name)
	return b.start
}

func (b *base) Finish() {
	b.end = time.Now()
	b.finished = true
	log.LogVf("executor for %s finishing after %v", b.desc.Name, b.end.Sub(b.start))
}

func (b *base) Registry() *runlog.Registry {
	return b.reg
}

// Stats aggregates the whole run log so far.
func (b *base) Stats() stats.GeneralStats {
	return stats.Compute(b.reg.All())
}

// record reserves the next id and appends the Run for a dispatch
// happening now. Registry refusal here is a driver bug.
func (b *base) record() *runlog.Run {
	if b.finished {
		log.Fatalf("submit on finished executor for %s", b.desc.Name)
	}
	run, err := b.reg.Append(time.Since(b.start).Seconds())
	if err != nil {
		log.Fatalf("registry append: %v", err)
	}
	return run
}

// complete marks the run finished. Double completion is a bug.
func (b *base) complete(res runlog.Result) {
	if err := b.reg.MarkFinished(res.RunID, res); err != nil {
		log.Fatalf("mark finished: %v", err)
	}
}

// makeInstances builds the task instance(s) and runs Setup on each.
// n instances when perWorker, else a single shared one.
func makeInstances(d *task.Descriptor) ([]task.Runner, error) {
	n := 1
	if d.PerWorkerInstance {
		n = d.MaxConcurrency
	}
	instances := make([]task.Runner, n)
	for i := range instances {
		instances[i] = d.New()
		if err := instances[i].Setup(); err != nil {
			return nil, &SetupError{Task: d.Name, Err: err}
		}
	}
	return instances, nil
}

// instancePool is the fixed-capacity checkout queue used when the task
// wants one instance per worker. Strict checkout/return discipline:
// callers must return on every exit path.
type instancePool struct {
	q chan task.Runner
}

func newInstancePool(instances []task.Runner) *instancePool {
	p := &instancePool{q: make(chan task.Runner, len(instances))}
	for _, r := range instances {
		p.q <- r
	}
	return p
}

func (p *instancePool) get() task.Runner {
	return <-p.q
}

func (p *instancePool) put(r task.Runner) {
	p.q <- r
}
