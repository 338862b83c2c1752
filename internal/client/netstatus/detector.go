// Package netstatus tracks whether the client believes it is online.
package netstatus

import "sync"

// Detector holds the current connectivity flag and notifies subscribers when
// it changes. It starts online and does no probing of its own; callers feed
// it with Set.
type Detector struct {
	mu     sync.Mutex
	online bool
	subs   map[int]chan bool
	nextID int
}

// New returns a Detector in the online state.
func New() *Detector {
	return &Detector{online: true, subs: make(map[int]chan bool)}
}

// IsOnline reports the current state.
func (d *Detector) IsOnline() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.online
}

// Set records the state. Subscribers are notified only when it changes.
func (d *Detector) Set(online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.online == online {
		return
	}
	d.online = online
	for _, ch := range d.subs {
		// Keep only the latest value for slow readers.
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
}

// Subscribe returns a channel receiving every state change and a function
// that unsubscribes and closes the channel. A reader that falls behind sees
// only the most recent state.
func (d *Detector) Subscribe() (<-chan bool, func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := d.nextID
	d.nextID++
	ch := make(chan bool, 1)
	d.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			delete(d.subs, id)
			close(ch)
		})
	}
}
