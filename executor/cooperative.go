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

package executor

import (
	"context"
	"runtime"
	"sync"

	"fortio.org/log"
	"github.com/loadramp/loadramp/runlog"
	"github.com/loadramp/loadramp/task"
	"golang.org/x/sync/semaphore"
)

// cooperative multiplexes invocations as lightweight tasks capped by a
// weighted semaphore. Each invocation suspends at its own I/O points;
// the admission gate suspends submitters when the pool is full. Not
// meant for CPU-bound workloads.
type cooperative struct {
	base
	sem    *semaphore.Weighted
	pool   *instancePool
	shared task.Runner
	wg     sync.WaitGroup
}

func newCooperative(d *task.Descriptor) *cooperative {
	return &cooperative{base: newBase(d), sem: semaphore.NewWeighted(int64(d.MaxConcurrency))}
}

func (c *cooperative) Setup() error {
	instances, err := makeInstances(c.desc)
	if err != nil {
		return err
	}
	if c.desc.PerWorkerInstance {
		c.pool = newInstancePool(instances)
	} else {
		c.shared = instances[0]
	}
	log.LogVf("cooperative executor ready for %s", c.desc)
	return nil
}

func (c *cooperative) Submit() *runlog.Run {
	run := c.record()
	// Blocks only if the caller skipped WaitAvailable; keeps the
	// in-flight count hard-capped either way.
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		log.Fatalf("semaphore acquire: %v", err)
	}
	c.wg.Add(1)
	go c.worker(run.ID)
	runtime.Gosched()
	return run
}

func (c *cooperative) worker(runID int64) {
	defer func() {
		c.sem.Release(1)
		c.wg.Done()
	}()
	var res runlog.Result
	if c.pool != nil {
		instance := c.pool.get()
		defer c.pool.put(instance)
		res = invoke(instance, runID)
	} else {
		res = invoke(c.shared, runID)
	}
	c.complete(res)
}

func (c *cooperative) WaitAvailable() {
	runtime.Gosched()
	if err := c.sem.Acquire(context.Background(), 1); err != nil {
		log.Fatalf("semaphore acquire: %v", err)
	}
	c.sem.Release(1)
}

func (c *cooperative) Available() bool {
	if !c.sem.TryAcquire(1) {
		return false
	}
	c.sem.Release(1)
	return true
}

func (c *cooperative) Join() {
	c.wg.Wait()
	log.LogVf("cooperative executor for %s joined, %d runs", c.desc.Name, c.reg.Len())
}
