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

// Package runlog holds the per-benchmark log of dispatched invocations:
// each invocation is a Run with a dense id and a start time relative to
// the benchmark start, and an outcome (Result) attached when it
// completes. The Registry is append-only and ordered by start time so
// time-range queries resolve by bisection.
package runlog // import "github.com/loadramp/loadramp/runlog"

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"fortio.org/log"
)

// ErrorDescriptor captures a workload failure as a (kind, message)
// pair. Kind is the error's concrete type (or "panic").
type ErrorDescriptor struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *ErrorDescriptor) String() string {
	return e.Kind + ": " + e.Message
}

// Result is the outcome of one Run. Err is nil on success, in which
// case RunTime is the observed latency in seconds. When Err is set
// RunTime is meaningless and must not be aggregated.
type Result struct {
	RunID   int64
	Err     *ErrorDescriptor
	RunTime float64
}

// Run is one dispatched invocation. ID is dense and equals the run's
// index in the Registry. StartTime is seconds since benchmark start.
// The result pointer is nil while the run is pending and set exactly
// once on completion; readers therefore always observe either a
// pending run or a complete, immutable result.
type Run struct {
	ID        int64
	StartTime float64
	result    atomic.Pointer[Result]
}

// Finished reports whether the run's outcome has been recorded.
func (r *Run) Finished() bool {
	return r.result.Load() != nil
}

// Result returns the run's outcome, or nil while pending.
func (r *Run) Result() *Result {
	return r.result.Load()
}

// RunTime returns the observed latency and true for a finished,
// successful run.
func (r *Run) RunTime() (float64, bool) {
	res := r.result.Load()
	if res == nil || res.Err != nil {
		return 0, false
	}
	return res.RunTime, true
}

// FinishTime returns StartTime + RunTime for a finished successful run.
func (r *Run) FinishTime() (float64, bool) {
	rt, ok := r.RunTime()
	if !ok {
		return 0, false
	}
	return r.StartTime + rt, true
}

func (r *Run) String() string {
	return fmt.Sprintf("Run(id=%d, start=%g)", r.ID, r.StartTime)
}

// Registry invariant breaches. These indicate a driver or executor
// bug, not a workload failure; callers treat them as fatal.
var (
	ErrStartTimeRegression = errors.New("run start time regressed")
	ErrNegativeStartTime   = errors.New("negative run start time")
	ErrUnknownRun          = errors.New("unknown run id")
	ErrAlreadyFinished     = errors.New("run already marked finished")
)

// Registry is the append-only, time-ordered collection of Runs.
// Append is called by the single driver goroutine, MarkFinished by
// worker completion paths, Slice by the reporter and the exporter.
type Registry struct {
	mu   sync.RWMutex
	runs []*Run
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Append creates the next Run at the given start time and inserts it
// at the tail. The new run's id is its insertion index. Returns
// ErrStartTimeRegression if startTime is below the current tail's.
func (g *Registry) Append(startTime float64) (*Run, error) {
	if startTime < 0 {
		return nil, fmt.Errorf("%w: %g", ErrNegativeStartTime, startTime)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if n := len(g.runs); n > 0 && startTime < g.runs[n-1].StartTime {
		return nil, fmt.Errorf("%w: %g after %g", ErrStartTimeRegression, startTime, g.runs[n-1].StartTime)
	}
	r := &Run{ID: int64(len(g.runs)), StartTime: startTime}
	g.runs = append(g.runs, r)
	return r, nil
}

// MarkFinished attaches the result to the identified run and flips it
// to finished. A second call for the same run is a bug and returns
// ErrAlreadyFinished.
func (g *Registry) MarkFinished(runID int64, res Result) error {
	g.mu.RLock()
	n := int64(len(g.runs))
	var r *Run
	if runID >= 0 && runID < n {
		r = g.runs[runID]
	}
	g.mu.RUnlock()
	if r == nil {
		return fmt.Errorf("%w: %d (have %d)", ErrUnknownRun, runID, n)
	}
	res.RunID = runID
	if !r.result.CompareAndSwap(nil, &res) {
		return fmt.Errorf("%w: %d", ErrAlreadyFinished, runID)
	}
	log.Debugf("run %d finished (err=%v)", runID, res.Err)
	return nil
}

// Slice returns the ordered view of runs with start <= StartTime < end.
// The returned slice shares the registry's (immutable prefix) backing
// store and must be treated as read-only.
func (g *Registry) Slice(start, end float64) []*Run {
	g.mu.RLock()
	defer g.mu.RUnlock()
	lo := sort.Search(len(g.runs), func(i int) bool { return g.runs[i].StartTime >= start })
	hi := sort.Search(len(g.runs), func(i int) bool { return g.runs[i].StartTime >= end })
	return g.runs[lo:hi]
}

// All returns the full ordered view, i.e. Slice(0, +Inf).
func (g *Registry) All() []*Run {
	return g.Slice(0, math.Inf(1))
}

// Len is the number of submitted runs.
func (g *Registry) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.runs)
}

// NumFinished counts runs whose outcome has been recorded.
func (g *Registry) NumFinished() int {
	n := 0
	for _, r := range g.All() {
		if r.Finished() {
			n++
		}
	}
	return n
}
