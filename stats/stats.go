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

// Package stats derives aggregate statistics from the run log: counts
// of submitted/finished/failed runs and latency min/max/avg/stddev,
// either over the whole log or sliced into uniform time windows.
package stats // import "github.com/loadramp/loadramp/stats"

import (
	"math"

	"github.com/loadramp/loadramp/runlog"
)

// GeneralStats is one aggregate over a set of runs. The latency
// aggregates (Avg, StdDev, Min, Max) consider only finished successful
// runs; failed runs contribute to FailedRuns/FailedRatio only.
// All times are seconds.
type GeneralStats struct {
	SubmittedRuns int64
	FinishedRuns  int64
	FailedRuns    int64
	FailedRatio   float64
	AvgRunTime    float64
	StdDevRunTime float64
	MinRunTime    float64
	MaxRunTime    float64
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// Compute aggregates a slice of runs into a GeneralStats. It is a pure
// function: deterministic for a given input, no shared state. A run
// finished with an error is counted failed and excluded from the
// latency aggregates; with no successful run Min (and the others)
// stay 0.
func Compute(runs []*runlog.Run) GeneralStats {
	var submitted, finished, failed, success int64
	var sum, sumSq float64
	minT := math.MaxFloat64
	maxT := 0.0
	for _, r := range runs {
		submitted++
		res := r.Result()
		if res == nil {
			continue
		}
		finished++
		if res.Err != nil {
			failed++
			continue
		}
		success++
		t := res.RunTime
		sum += t
		sumSq += t * t
		if t < minT {
			minT = t
		}
		if t > maxT {
			maxT = t
		}
	}
	if minT == math.MaxFloat64 {
		minT = 0
	}
	// sample standard deviation without precomputing the mean:
	// sqrt((sum(xi^2) - (sum(xi)^2)/n) / (n-1))
	stdDev := 0.0
	if success > 1 {
		n := float64(success)
		sigma := (sumSq - sum*sum/n) / (n - 1)
		if sigma > 0 {
			stdDev = math.Sqrt(sigma)
		}
	}
	return GeneralStats{
		SubmittedRuns: submitted,
		FinishedRuns:  finished,
		FailedRuns:    failed,
		FailedRatio:   ratio(float64(failed), float64(finished)),
		AvgRunTime:    ratio(sum, float64(success)),
		StdDevRunTime: stdDev,
		MinRunTime:    minT,
		MaxRunTime:    maxT,
	}
}

// Interval is the stats of one half-open window [Start, Start+step).
type Interval struct {
	Start float64
	Stats GeneralStats
}

// Intervals slices the registry into uniform windows of the given step
// and computes stats per window. Window starts form the arithmetic
// progression start, start+step, ... while < end.
func Intervals(reg *runlog.Registry, step, start, end float64) []Interval {
	var out []Interval
	for i := start; i < end; i += step {
		out = append(out, Interval{Start: i, Stats: Compute(reg.Slice(i, i+step))})
	}
	return out
}
