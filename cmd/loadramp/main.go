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

// Loadramp drives a named workload at a linearly ramping request rate
// and reports windowed latency statistics.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fortio.org/cli"
	"fortio.org/dflag"
	"fortio.org/log"
	"github.com/loadramp/loadramp/driver"
	"github.com/loadramp/loadramp/loader"
	"github.com/loadramp/loadramp/version"
	"golang.org/x/term"
)

var (
	durationFlag = flag.Float64("duration", 10.0, "Benchmark `duration` in seconds, per task")
	verboseFlag  = flag.Bool("verbose", false,
		"Verbose debug logging instead of terminal rendering")
	allFlag    = flag.Bool("all", false, "Benchmark every task the name resolves to, not just the first")
	exportFlag = flag.String("export", "",
		"`Directory` to export results.json to (a fresh dir, .N suffixed if it exists). Empty for no export")
	sampleFreqFlag = flag.Float64("sample-frequency", 0,
		"Export sampling frequency in `Hz` (window = 1/freq). 0 picks duration/50 windows")
)

func main() {
	os.Exit(Main())
}

func Main() int {
	dflag.Flag("dispatch-slack", driver.DispatchSlack)
	dflag.Flag("report-interval", driver.ReportInterval)
	cli.ProgramName = "loadramp " + version.Short()
	cli.ArgsHelp = fmt.Sprintf("task\nwhere task is one of: %s, or all", strings.Join(loader.Names(), ", "))
	cli.MinArgs = 1
	cli.MaxArgs = 1
	cli.Main() // exits on usage errors
	if *verboseFlag {
		log.SetLogLevelQuiet(log.Verbose)
	}
	tasks, err := loader.Load(flag.Arg(0))
	if err != nil {
		cli.ErrUsage("Error: %v", err)
	}
	if !*allFlag {
		tasks = tasks[:1]
	}
	if *durationFlag <= 0 {
		cli.ErrUsage("Error: -duration must be positive, got %g", *durationFlag)
	}
	terminal := !*verboseFlag && term.IsTerminal(int(os.Stdout.Fd()))
	b, err := driver.New(tasks, driver.Options{
		Duration: time.Duration(*durationFlag * float64(time.Second)),
		Terminal: terminal,
	})
	if err != nil {
		log.Errf("%v", err)
		return 1
	}
	if err := b.Run(); err != nil {
		log.Errf("benchmark failed: %v", err)
		return 1
	}
	if *exportFlag != "" {
		interval := 0.0
		if *sampleFreqFlag > 0 {
			interval = 1.0 / *sampleFreqFlag
		}
		dir, err := b.Export(*exportFlag, interval)
		if err != nil {
			log.Errf("export failed: %v", err)
			return 1
		}
		fmt.Printf("Results exported to %s\n", dir)
	}
	return 0
}
