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

package loader

import (
	"fmt"
	"sync/atomic"
	"time"

	"fortio.org/log"
	"github.com/loadramp/loadramp/task"
)

// Builtin demo workloads so the binary is usable without an external
// workload package.

// sleepTask parks for a fixed 100ms, simulating an I/O bound request.
type sleepTask struct{}

func (s *sleepTask) Setup() error { return nil }

func (s *sleepTask) Run() error {
	time.Sleep(100 * time.Millisecond)
	return nil
}

// flakyTask fails every third invocation.
type flakyTask struct {
	n atomic.Int64
}

func (f *flakyTask) Setup() error { return nil }

func (f *flakyTask) Run() error {
	if f.n.Add(1)%3 == 0 {
		return fmt.Errorf("flaky: induced failure")
	}
	return nil
}

func mustRegister(d *task.Descriptor) {
	if err := Register(d); err != nil {
		log.Fatalf("builtin registration: %v", err)
	}
}

func init() {
	mustRegister(&task.Descriptor{
		Name:           "sleep",
		Executor:       task.Cooperative,
		MaxConcurrency: 1000,
		New:            func() task.Runner { return &sleepTask{} },
	})
	mustRegister(&task.Descriptor{
		Name:           "noop",
		Executor:       task.Threaded,
		MaxConcurrency: 100,
		New:            func() task.Runner { return task.Func(func() error { return nil }) },
	})
	flaky := &flakyTask{}
	mustRegister(&task.Descriptor{
		Name:           "flaky",
		Executor:       task.Threaded,
		MaxConcurrency: 10,
		New:            func() task.Runner { return flaky },
	})
}
