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

// Package results shapes a benchmark's run log into the time series
// the report front-end consumes and writes them as a single json blob.
package results // import "github.com/loadramp/loadramp/results"

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"fortio.org/log"
	"github.com/loadramp/loadramp/runlog"
	"github.com/loadramp/loadramp/stats"
)

// Point is one (window start seconds, value) sample.
type Point [2]float64

// Series is an ordered list of points.
type Series []Point

// TaskSeries is one task's aligned series. Latency values are in
// milliseconds; failed/runs are counts at 1-second windows.
type TaskSeries struct {
	AvgRunTime Series `json:"avg_run_time"`
	MaxRunTime Series `json:"max_run_time"`
	StdDev     Series `json:"std_dev"`
	Failed     Series `json:"failed"`
	Runs       Series `json:"runs"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Shape slices the run log into sampleInterval windows over
// [0, duration) and produces the five series: per-window average and
// standard deviation (seconds rounded to 4 decimals, scaled to
// milliseconds), the single slowest successful run per window at its
// own start time, and the per-second failed/submitted counts, both
// prepended with a (0, 0) origin point.
func Shape(reg *runlog.Registry, duration, sampleInterval float64) TaskSeries {
	ts := TaskSeries{
		Failed: Series{{0, 0}},
		Runs:   Series{{0, 0}},
	}
	for _, iv := range stats.Intervals(reg, sampleInterval, 0, duration) {
		t := round2(iv.Start)
		ts.AvgRunTime = append(ts.AvgRunTime, Point{t, round4(iv.Stats.AvgRunTime) * 1000})
		ts.StdDev = append(ts.StdDev, Point{t, round4(iv.Stats.StdDevRunTime) * 1000})
		peak := 0.0
		peakStart := 0.0
		for _, r := range reg.Slice(iv.Start, iv.Start+sampleInterval) {
			rt, ok := r.RunTime()
			if !ok {
				continue
			}
			if rt > peak {
				peak = rt
				peakStart = r.StartTime
			}
		}
		if peak != 0 {
			ts.MaxRunTime = append(ts.MaxRunTime, Point{round2(peakStart), round4(peak) * 1000})
		}
	}
	for _, iv := range stats.Intervals(reg, 1.0, 0, duration) {
		t := round2(iv.Start + 1.0)
		ts.Failed = append(ts.Failed, Point{t, float64(iv.Stats.FailedRuns)})
		ts.Runs = append(ts.Runs, Point{t, float64(iv.Stats.SubmittedRuns)})
	}
	return ts
}

// FreshDir creates dirPath, or the first available dirPath.N (N >= 1)
// when it already exists, and returns the directory created.
func FreshDir(dirPath string) (string, error) {
	path := dirPath
	for i := 1; ; i++ {
		err := os.Mkdir(path, 0o755)
		if err == nil {
			return path, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating export directory %s: %w", path, err)
		}
		path = fmt.Sprintf("%s.%d", dirPath, i)
	}
}

// Export writes the per-task series mapping as results.json into a
// freshly created directory under dirPath. I/O failures surface to the
// caller; the benchmark results they describe are unaffected.
func Export(dirPath string, data map[string]TaskSeries) (string, error) {
	dir, err := FreshDir(dirPath)
	if err != nil {
		log.Errf("export: %v", err)
		return "", err
	}
	j, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing results: %w", err)
	}
	fname := filepath.Join(dir, "results.json")
	if err := os.WriteFile(fname, append(j, '\n'), 0o644); err != nil {
		log.Errf("export: %v", err)
		return "", fmt.Errorf("writing %s: %w", fname, err)
	}
	log.Infof("exported results to %s", fname)
	return dir, nil
}
