// SPDX-License-Identifier: Apache-2.0

package host

import (
	"sync"
)

// DefaultBufferSize is the capacity of each subscription.
const DefaultBufferSize = 16

// Bus fans inbound messages out to all subscribers.
type Bus struct {
	mutex sync.RWMutex
	subs  map[*subscription]struct{}
}

type subscription struct {
	ch   chan Message
	done chan struct{}
	once sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscription]struct{})}
}

// Publish delivers m to every subscriber. It blocks until each subscriber
// accepted the message or unsubscribed.
func (b *Bus) Publish(m Message) {
	b.mutex.RLock()
	subs := make([]*subscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mutex.RUnlock()

	for _, s := range subs {
		select {
		case s.ch <- m:
		case <-s.done:
		}
	}
}

func (b *Bus) Subscribe() (<-chan Message, func()) {
	s := &subscription{
		ch:   make(chan Message, DefaultBufferSize),
		done: make(chan struct{}),
	}
	b.mutex.Lock()
	b.subs[s] = struct{}{}
	b.mutex.Unlock()

	return s.ch, func() {
		s.once.Do(func() {
			close(s.done)
			b.mutex.Lock()
			delete(b.subs, s)
			b.mutex.Unlock()
		})
	}
}
