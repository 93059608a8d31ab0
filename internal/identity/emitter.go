package identity

import (
	"sync"

	"propmaster/internal/session/models"
)

// emitter fans session events out to listeners synchronously, in
// registration order. Listeners must not call back into the client.
type emitter struct {
	mu        sync.RWMutex
	listeners []*listener
}

type listener struct {
	fn   func(models.Event)
	once sync.Once
	e    *emitter
}

// Unsubscribe removes the listener. Safe to call more than once.
func (l *listener) Unsubscribe() {
	l.once.Do(func() {
		l.e.mu.Lock()
		defer l.e.mu.Unlock()
		for i, cur := range l.e.listeners {
			if cur == l {
				l.e.listeners = append(l.e.listeners[:i], l.e.listeners[i+1:]...)
				return
			}
		}
	})
}

func (e *emitter) subscribe(fn func(models.Event)) *listener {
	l := &listener{fn: fn, e: e}
	e.mu.Lock()
	e.listeners = append(e.listeners, l)
	e.mu.Unlock()
	return l
}

func (e *emitter) emit(ev models.Event) {
	e.mu.RLock()
	listeners := append([]*listener(nil), e.listeners...)
	e.mu.RUnlock()
	for _, l := range listeners {
		l.fn(ev)
	}
}
