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
	"fmt"
	"strings"
	"time"

	"fortio.org/safecast"
	"github.com/loadramp/loadramp/stats"
)

const banner = ` _                 _
| | ___   __ _  __| |_ __ __ _ _ __ ___  _ __
| |/ _ \ / _` + "`" + ` |/ _` + "`" + ` | '__/ _` + "`" + ` | '_ ` + "`" + ` _ \| '_ \
| | (_) | (_| | (_| | | | (_| | | | | | | |_) |
|_|\___/ \__,_|\__,_|_|  \__,_|_| |_| |_| .__/
                                        |_|`

const (
	rowFmt    = "%12s %10d %14s %12.4f %12.4f %12.4f %12.4f\n"
	headerFmt = "%12s %10s %14s %12s %12s %12s %12s\n"
)

func failedCell(g stats.GeneralStats) string {
	pct := safecast.MustTruncate[int](100 * g.FailedRatio)
	return fmt.Sprintf("%d (%d%%)", g.FailedRuns, pct)
}

// terminalOutput renders the right-aligned per-window table: one row
// per report interval from 0 to min(elapsed, duration), a separator,
// and a Total row over the whole run log.
func (s *single) terminalOutput() string {
	var sb strings.Builder
	sb.WriteString(banner)
	sb.WriteString("\n------------------------------------\n")
	fmt.Fprintf(&sb, "Stress test of %s\n\n", s.desc)
	fmt.Fprintf(&sb, headerFmt, "interval", "Count", "Failed", "Min", "Max", "Std Dev", "Avg")

	step := ReportInterval.Get().Seconds()
	duration := s.opts.Duration.Seconds()
	elapsed := time.Since(s.start).Seconds()
	end := min(elapsed, duration)
	reg := s.exec.Registry()
	for _, iv := range stats.Intervals(reg, step, 0, end) {
		g := iv.Stats
		fmt.Fprintf(&sb, rowFmt, fmt.Sprintf("%.1f", iv.Start), g.FinishedRuns, failedCell(g),
			g.MinRunTime, g.MaxRunTime, g.StdDevRunTime, g.AvgRunTime)
	}
	for range 7 {
		fmt.Fprintf(&sb, "%12s ", "-")
	}
	sb.WriteString("\n")
	g := stats.Compute(reg.All())
	fmt.Fprintf(&sb, rowFmt, "Total", g.FinishedRuns, failedCell(g),
		g.MinRunTime, g.MaxRunTime, g.StdDevRunTime, g.AvgRunTime)
	return sb.String()
}
