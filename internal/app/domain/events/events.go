// Package events defines the typed notification contract between the wallet
// core and whatever renders alerts. The core only emits; rendering is
// entirely external.
package events

import "time"

// Kind classifies an in-app event.
type Kind string

const (
	KindSuccess Kind = "success"
	KindWarn    Kind = "warn"
	KindError   Kind = "error"
)

// Event codes raised by the reconciliation engine and the navigation guard.
const (
	CodeBalancesChanged  = "balances-changed"
	CodeQueryComplete    = "query-complete"
	CodeConnectionFailed = "connection-failed"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeOfflineNoAccess  = "offline-no-access"
	CodePageNotFound     = "page-not-found"
)

// Event is a single in-app notification.
type Event struct {
	Kind     Kind
	Code     string
	Message  string
	Duration time.Duration
}

// Dispatcher receives in-app events. Implementations must not block.
type Dispatcher interface {
	Emit(ev Event)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ev Event)

func (f DispatcherFunc) Emit(ev Event) {
	if f != nil {
		f(ev)
	}
}

// SystemNotifier is the optional OS-level notification capability. Supported
// is an explicit probe; callers must check it before Notify and must never
// rely on Notify failing to detect absence of the capability.
type SystemNotifier interface {
	Supported() bool
	Notify(title, body string, onActivate func()) error
}

// ChannelDispatcher buffers events on a channel for consumers that poll,
// dropping when the buffer is full so emitters never block.
type ChannelDispatcher struct {
	ch chan Event
}

// NewChannelDispatcher creates a dispatcher with the given buffer size.
func NewChannelDispatcher(buffer int) *ChannelDispatcher {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelDispatcher{ch: make(chan Event, buffer)}
}

func (d *ChannelDispatcher) Emit(ev Event) {
	select {
	case d.ch <- ev:
	default:
	}
}

// Events exposes the receive side for the rendering layer.
func (d *ChannelDispatcher) Events() <-chan Event {
	return d.ch
}
