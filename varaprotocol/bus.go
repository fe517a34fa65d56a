package varaprotocol

import (
	"sync"
	"sync/atomic"
)

// listener is one subscriber on a bus. fn reports whether the notification
// was the one the listener was waiting for; one-shot listeners are removed
// as soon as that happens.
type listener struct {
	id      uint64
	fn      func(Notification) bool
	oneShot bool
	removed atomic.Bool
}

// bus fans notifications out to subscribers. Each bus is published from a
// single reader goroutine, so a listener never sees two notifications at
// once; subscribing and unsubscribing are safe from any goroutine.
type bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners []*listener
}

func newBus() *bus {
	return &bus{}
}

// subscribe registers a listener that sees every notification until the
// returned function is called.
func (b *bus) subscribe(handler func(Notification)) func() {
	l := b.add(func(n Notification) bool {
		handler(n)
		return false
	}, false)
	return func() { b.remove(l) }
}

// once registers a listener that is removed the first time match returns
// true. The returned function removes it early.
func (b *bus) once(match func(Notification) bool) func() {
	l := b.add(match, true)
	return func() { b.remove(l) }
}

func (b *bus) add(fn func(Notification) bool, oneShot bool) *listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	l := &listener{id: b.nextID, fn: fn, oneShot: oneShot}
	b.listeners = append(b.listeners, l)
	return l
}

func (b *bus) remove(l *listener) {
	if l.removed.Swap(true) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, cur := range b.listeners {
		if cur == l {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			return
		}
	}
}

// publish delivers n to every listener registered when publish was called,
// in registration order.
func (b *bus) publish(n Notification) {
	b.mu.Lock()
	snapshot := make([]*listener, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.Unlock()

	for _, l := range snapshot {
		if l.removed.Load() {
			continue
		}
		if l.fn(n) && l.oneShot {
			b.remove(l)
		}
	}
}

// len returns the number of registered listeners.
func (b *bus) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}
