// Copyright 2023 - See NOTICE file for copyright holders.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package channel

import (
	"encoding/json"
	"sync"
)

type (
	// Result is the outcome of one correlated request.
	Result struct {
		Data json.RawMessage
		Err  error
	}

	// Registry correlates outstanding requests with their replies. Ids are
	// handed out monotonically starting at 0 and are never reused.
	Registry struct {
		mutex sync.Mutex
		next  uint64
		slots map[uint64]*slot
	}

	slot struct {
		result   chan Result
		teardown func()
	}
)

func NewRegistry() *Registry {
	return &Registry{slots: make(map[uint64]*slot)}
}

// Register occupies a new slot. teardown may be nil, it runs exactly once
// when the slot is settled.
func (r *Registry) Register(teardown func()) (uint64, <-chan Result) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	id := r.next
	r.next++
	s := &slot{result: make(chan Result, 1), teardown: teardown}
	r.slots[id] = s
	return id, s.result
}

// Settle resolves the slot id with res. It returns false if id is unknown or
// was settled before.
func (r *Registry) Settle(id uint64, res Result) bool {
	r.mutex.Lock()
	s, ok := r.slots[id]
	delete(r.slots, id)
	r.mutex.Unlock()

	if !ok {
		return false
	}
	if s.teardown != nil {
		s.teardown()
	}
	s.result <- res
	return true
}

// Pending is the number of occupied slots.
func (r *Registry) Pending() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.slots)
}
