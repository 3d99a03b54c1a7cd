package link

// events.go - callback fan-out for link notifications.
//
// Collaborators register as many handlers per signal as they like;
// each documented lifecycle transition invokes every registered
// handler exactly once.  Handlers run synchronously on the emitting
// goroutine (the control context for lifecycle events, the pump for
// received data), so long-running work should be offloaded — and a
// handler must not call Connect or Disconnect directly, since a
// disconnect joins the very pump the handler may be running on.

import "sync"

// BytesReceivedFunc handles an inbound buffer from a link.  The
// buffer is owned by the handler; the pump never reuses it.
type BytesReceivedFunc func(l *Link, data []byte)

// StateFunc handles a connected or disconnected transition.
type StateFunc func(l *Link)

// NameChangedFunc handles a display-name recomputation.
type NameChangedFunc func(name string)

// ErrorFunc handles a communication error report.
type ErrorFunc func(linkName, msg string)

type emitter struct {
	mu           sync.RWMutex
	received     []BytesReceivedFunc
	connected    []StateFunc
	disconnected []StateFunc
	nameChanged  []NameChangedFunc
	commError    []ErrorFunc
}

// ── registration ─────────────────────────────────────────────────────

// OnBytesReceived registers a handler for inbound data.
func (l *Link) OnBytesReceived(fn BytesReceivedFunc) {
	l.events.mu.Lock()
	defer l.events.mu.Unlock()
	l.events.received = append(l.events.received, fn)
}

// OnConnected registers a handler for the connected transition.
func (l *Link) OnConnected(fn StateFunc) {
	l.events.mu.Lock()
	defer l.events.mu.Unlock()
	l.events.connected = append(l.events.connected, fn)
}

// OnDisconnected registers a handler for the disconnected transition.
func (l *Link) OnDisconnected(fn StateFunc) {
	l.events.mu.Lock()
	defer l.events.mu.Unlock()
	l.events.disconnected = append(l.events.disconnected, fn)
}

// OnNameChanged registers a handler for display-name changes.
func (l *Link) OnNameChanged(fn NameChangedFunc) {
	l.events.mu.Lock()
	defer l.events.mu.Unlock()
	l.events.nameChanged = append(l.events.nameChanged, fn)
}

// OnCommunicationError registers a handler for error reports.
func (l *Link) OnCommunicationError(fn ErrorFunc) {
	l.events.mu.Lock()
	defer l.events.mu.Unlock()
	l.events.commError = append(l.events.commError, fn)
}

// ── emission ─────────────────────────────────────────────────────────

func (e *emitter) emitBytesReceived(l *Link, data []byte) {
	e.mu.RLock()
	handlers := e.received
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(l, data)
	}
}

func (e *emitter) emitConnected(l *Link) {
	e.mu.RLock()
	handlers := e.connected
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(l)
	}
}

func (e *emitter) emitDisconnected(l *Link) {
	e.mu.RLock()
	handlers := e.disconnected
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(l)
	}
}

func (e *emitter) emitNameChanged(name string) {
	e.mu.RLock()
	handlers := e.nameChanged
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(name)
	}
}

func (e *emitter) emitCommunicationError(linkName, msg string) {
	e.mu.RLock()
	handlers := e.commError
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn(linkName, msg)
	}
}
