package gateway

import (
	"sync"

	"github.com/edvin/subadmin/internal/model"
)

// Listeners is a registry of session listeners safe for concurrent use.
// Backends embed it to implement OnSessionChange.
type Listeners struct {
	mu   sync.Mutex
	next int
	fns  map[int]SessionListener
}

// Add registers fn and returns a function that removes it.
func (l *Listeners) Add(fn SessionListener) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]SessionListener)
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.fns, id)
			l.mu.Unlock()
		})
	}
}

// Notify calls every registered listener outside the lock.
func (l *Listeners) Notify(event string, session *model.Session) {
	l.mu.Lock()
	fns := make([]SessionListener, 0, len(l.fns))
	for _, fn := range l.fns {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(event, session)
	}
}
