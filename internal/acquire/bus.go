// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

package acquire

import (
	"sync"
)

// bus fans out state snapshots to subscribers. Delivery never blocks: a subscriber that did
// not keep up loses older snapshots and only sees the latest one.
type bus struct {
	mu   sync.Mutex
	subs map[chan State]struct{}
}

func newBus() *bus {
	return &bus{subs: make(map[chan State]struct{})}
}

// subscribe registers a subscriber and delivers current to it right away.
func (b *bus) subscribe(size int, current State) (<-chan State, func()) {
	if size < 1 {
		size = 1
	}
	ch := make(chan State, size)
	ch <- current

	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}

func (b *bus) publish(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		// Buffer is full: drop the oldest snapshot to make room for the latest one
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
