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
	"runtime"
	"sync"

	"fortio.org/log"
	"github.com/loadramp/loadramp/runlog"
	"github.com/loadramp/loadramp/task"
)

// slotGate is the admission gate for the threaded back-end: an
// in-flight counter plus condition signalling under one mutex.
// Submitters acquire before scheduling a worker; workers release on
// exit, which wakes anyone parked in wait.
type slotGate struct {
	mu       sync.Mutex
	cond     *sync.Cond
	inFlight int
	limit    int
}

func newSlotGate(limit int) *slotGate {
	g := &slotGate{limit: limit}
	g.cond = sync.NewCond(&g.mu)
	return g
}

func (g *slotGate) acquire() {
	g.mu.Lock()
	g.inFlight++
	g.mu.Unlock()
}

func (g *slotGate) release() {
	g.mu.Lock()
	g.inFlight--
	if g.inFlight < g.limit {
		g.cond.Signal()
	}
	g.mu.Unlock()
}

func (g *slotGate) wait() {
	g.mu.Lock()
	for g.inFlight >= g.limit {
		g.cond.Wait()
	}
	g.mu.Unlock()
}

func (g *slotGate) available() bool {
	g.mu.Lock()
	ok := g.inFlight < g.limit
	g.mu.Unlock()
	return ok
}

// threaded runs each invocation on a transient worker goroutine,
// bounded by the slot gate.
type threaded struct {
	base
	gate   *slotGate
	pool   *instancePool
	shared task.Runner
	wg     sync.WaitGroup
}

func newThreaded(d *task.Descriptor) *threaded {
	return &threaded{base: newBase(d), gate: newSlotGate(d.MaxConcurrency)}
}

func (t *threaded) Setup() error {
	instances, err := makeInstances(t.desc)
	if err != nil {
		return err
	}
	if t.desc.PerWorkerInstance {
		t.pool = newInstancePool(instances)
	} else {
		t.shared = instances[0]
	}
	log.LogVf("threaded executor ready for %s", t.desc)
	return nil
}

func (t *threaded) Submit() *runlog.Run {
	run := t.record()
	t.gate.acquire()
	t.wg.Add(1)
	go t.worker(run.ID)
	runtime.Gosched()
	return run
}

func (t *threaded) worker(runID int64) {
	defer func() {
		t.gate.release()
		t.wg.Done()
	}()
	var res runlog.Result
	if t.pool != nil {
		instance := t.pool.get()
		defer t.pool.put(instance)
		res = invoke(instance, runID)
	} else {
		res = invoke(t.shared, runID)
	}
	t.complete(res)
}

func (t *threaded) WaitAvailable() {
	t.gate.wait()
}

func (t *threaded) Available() bool {
	return t.gate.available()
}

func (t *threaded) Join() {
	t.wg.Wait()
	log.LogVf("threaded executor for %s joined, %d runs", t.desc.Name, t.reg.Len())
}
