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

// Package task defines the workload descriptor: what to run, under
// which executor, and with how much parallelism. Loaders produce
// Descriptors; the driver and executors consume them.
package task // import "github.com/loadramp/loadramp/task"

import (
	"fmt"

	"fortio.org/sets"
)

// Kind selects the execution back-end for a workload.
type Kind string

const (
	// Threaded runs each invocation on its own worker goroutine,
	// bounded by MaxConcurrency.
	Threaded = Kind("threaded")
	// Cooperative runs each invocation as a lightweight goroutine,
	// with the in-flight count capped by a semaphore; meant for
	// workloads that park on I/O, not for CPU-bound ones.
	Cooperative = Kind("cooperative")
)

// Kinds is the set of valid executor kinds.
var Kinds = sets.New(Threaded, Cooperative)

// Runner is one task instance. Setup is called exactly once before the
// first dispatch; Run once per dispatched invocation. A non-nil error
// from Run marks that invocation failed.
type Runner interface {
	Setup() error
	Run() error
}

// Descriptor configures one workload. New constructs a fresh task
// instance; with PerWorkerInstance the executor builds MaxConcurrency
// independent instances and hands one out per invocation, otherwise a
// single shared instance is reused for every invocation.
type Descriptor struct {
	Name              string
	Executor          Kind
	MaxConcurrency    int
	PerWorkerInstance bool
	New               func() Runner
}

// ConfigError is a fatal configuration problem (unknown executor kind,
// non-positive concurrency); it surfaces to the CLI as a non-zero exit.
type ConfigError struct {
	Task string
	Msg  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("task %q: %s", e.Task, e.Msg)
}

// Validate checks the descriptor's configuration surface.
func (d *Descriptor) Validate() error {
	if d.New == nil {
		return &ConfigError{Task: d.Name, Msg: "missing task constructor"}
	}
	if !Kinds.Has(d.Executor) {
		return &ConfigError{Task: d.Name, Msg: fmt.Sprintf("invalid executor type %q (must be %q or %q)",
			d.Executor, Threaded, Cooperative)}
	}
	if d.MaxConcurrency <= 0 {
		return &ConfigError{Task: d.Name, Msg: fmt.Sprintf("max concurrency must be positive, got %d", d.MaxConcurrency)}
	}
	return nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("%s (%s, c=%d, per-worker=%t)", d.Name, d.Executor, d.MaxConcurrency, d.PerWorkerInstance)
}

// Func adapts a bare function into a Runner with a no-op Setup, for
// workloads that carry no state.
type Func func() error

func (f Func) Setup() error { return nil }
func (f Func) Run() error   { return f() }
