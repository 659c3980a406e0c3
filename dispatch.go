package tether

import (
	"log/slog"
	"time"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/transport"
)

// dispatch drains the transport's events until the transport closes the
// stream. It is the only goroutine that writes to the inbox.
func (a *Agent) dispatch(events <-chan transport.Event, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	for ev := range events {
		switch ev.Kind {
		case transport.EventConnAck:
			a.setConnected(stop, true)
		case transport.EventDisconnect:
			a.log.Warn("disconnected from broker", slogx.Error(ev.Err))
			a.setConnected(stop, false)
		case transport.EventPublish:
			a.inbox.Push(Message{Address: address.ParseOrCustom(ev.Topic), Payload: ev.Payload})
		case transport.EventError:
			a.log.Error("transport error", slogx.Error(ev.Err), slog.Duration("backoff", a.cfg.ErrorBackoff))
			a.backoff(stop)
		default:
			a.log.Debug("ignoring transport event", slogx.Stringer("kind", ev.Kind))
		}
	}
}

func (a *Agent) backoff(stop <-chan struct{}) {
	if a.cfg.ErrorBackoff <= 0 {
		return
	}
	timer := time.NewTimer(a.cfg.ErrorBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-stop:
	}
}

// setConnected updates the flag unless the connection that produced the event
// has been replaced or shut down.
func (a *Agent) setConnected(stop <-chan struct{}, connected bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stop == nil || a.stop != stop {
		return
	}
	a.connected = connected
	if connected {
		a.state = StateConnected
	} else {
		a.state = StateDisconnected
	}
}
