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

// Package loader resolves a workload name to registered task
// descriptors. Workload packages call Register (typically from init);
// the CLI resolves its positional argument through Load. A few builtin
// demo workloads ship with the binary.
package loader // import "github.com/loadramp/loadramp/loader"

import (
	"fmt"
	"sync"

	"fortio.org/log"
	"github.com/loadramp/loadramp/task"
)

var (
	mu     sync.Mutex
	byName = map[string]*task.Descriptor{}
	order  []*task.Descriptor
)

// Register adds a descriptor under its task name. Duplicate names are
// rejected.
func Register(d *task.Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := byName[d.Name]; ok {
		return fmt.Errorf("task %q already registered", d.Name)
	}
	byName[d.Name] = d
	order = append(order, d)
	log.Debugf("registered task %s", d)
	return nil
}

// Load yields the descriptors a name resolves to: a single registered
// task by its name, or every registered task for "all".
func Load(name string) ([]*task.Descriptor, error) {
	mu.Lock()
	defer mu.Unlock()
	if name == "all" {
		if len(order) == 0 {
			return nil, fmt.Errorf("no tasks registered")
		}
		out := make([]*task.Descriptor, len(order))
		copy(out, order)
		return out, nil
	}
	d, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown task %q", name)
	}
	return []*task.Descriptor{d}, nil
}

// Names lists the registered task names in registration order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, len(order))
	for i, d := range order {
		names[i] = d.Name
	}
	return names
}
