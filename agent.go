package tether

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fogfish/opts"

	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/internal/mailbox"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/transport"
)

var (
	_ channel.Subscriber = (*Agent)(nil)
	_ address.Identity   = (*Agent)(nil)
)

// Agent is one participant on the broker.
//
// Channel building, polling and publishing run on the caller's goroutine. A
// single background goroutine per connection moves transport events into the
// inbox; the inbox and the connected flag are the only state it shares.
type Agent struct {
	cfg Config
	log *slog.Logger

	idMu    sync.RWMutex
	role    string
	groupID string

	mu        sync.Mutex
	state     State
	connected bool
	transport transport.Transport
	stop      chan struct{}
	stopped   chan struct{}

	inbox *mailbox.Mailbox[Message]
}

// New creates an agent for the role. Unless AutoConnect(false) is given it also
// connects, using the configured connect timeout.
func New(role string, options ...opts.Option[Config]) (*Agent, error) {
	if err := validateRole(role); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := opts.Apply(&cfg, options); err != nil {
		return nil, fmt.Errorf("tether: %w", err)
	}

	a := &Agent{
		cfg:     cfg,
		role:    role,
		groupID: cfg.GroupID,
		inbox:   mailbox.New[Message](),
		log:     slog.Default().With(slogx.LoggerName("tether"), slog.String("client_id", cfg.ClientID)),
	}

	if cfg.AutoConnect {
		if err := a.Connect(context.Background()); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func validateRole(role string) error {
	if role == "" {
		return fmt.Errorf("%w: empty", ErrInvalidRole)
	}
	if strings.Contains(role, address.Separator) {
		return fmt.Errorf("%w: %q contains %q", ErrInvalidRole, role, address.Separator)
	}
	return nil
}

// Connect dials the broker, starts the dispatch goroutine and blocks until the
// broker accepts the session.
//
// A caller that arrives while another Connect is still waiting for the session
// waits for the same session instead of dialing again. Connecting a connected
// agent is a no-op.
//
// Parameters:
//   - ctx: bounds the wait together with the configured connect timeout.
//
// Returns:
//   - error: nil once the session is up. ErrConnectTimeout when the connect
//     timeout passes first, the context's cause when ctx is done, and
//     ErrTransportNotReady when the attempt being waited on is torn down.
//     A failed attempt leaves the agent in StateFailed.
func (a *Agent) Connect(ctx context.Context) error {
	ctx, cancel := a.withConnectTimeout(ctx)
	defer cancel()

	a.mu.Lock()
	if a.transport != nil {
		a.mu.Unlock()
		if err := a.awaitConnected(ctx); err != nil {
			return fmt.Errorf("tether: connect %s: %w", a.BrokerURI(), err)
		}
		return nil
	}
	a.state = StateConnecting
	tr, err := a.cfg.Dialer(a.cfg.transportOptions())
	if err != nil {
		a.state = StateFailed
		a.mu.Unlock()
		return fmt.Errorf("tether: dial %s: %w", a.BrokerURI(), err)
	}
	a.transport = tr
	a.stop = make(chan struct{})
	a.stopped = make(chan struct{})
	go a.dispatch(tr.Events(), a.stop, a.stopped)
	a.mu.Unlock()

	a.log.Info("connecting", slog.String("broker", a.BrokerURI()), slog.String("role", a.Role()))
	if err := tr.Connect(ctx); err != nil {
		a.fail()
		if ctx.Err() != nil {
			err = context.Cause(ctx)
		}
		return fmt.Errorf("tether: connect %s: %w", a.BrokerURI(), err)
	}

	if err := a.awaitConnected(ctx); err != nil {
		a.fail()
		return fmt.Errorf("tether: connect %s: %w", a.BrokerURI(), err)
	}
	a.log.Info("connected", slog.String("broker", a.BrokerURI()))
	return nil
}

func (a *Agent) withConnectTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.ConnectTimeout > 0 {
		return context.WithTimeoutCause(ctx, a.cfg.ConnectTimeout, ErrConnectTimeout)
	}
	return context.WithCancel(ctx)
}

// awaitConnected polls until the dispatch goroutine has seen the connection
// acknowledgement.
func (a *Agent) awaitConnected(ctx context.Context) error {
	ticker := time.NewTicker(a.pollInterval())
	defer ticker.Stop()
	for {
		a.mu.Lock()
		connected, tr := a.connected, a.transport
		a.mu.Unlock()
		if connected {
			return nil
		}
		if tr == nil {
			return ErrTransportNotReady
		}

		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
	}
}

// pollInterval falls back to DefaultPollInterval when none is configured.
func (a *Agent) pollInterval() time.Duration {
	if a.cfg.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return a.cfg.PollInterval
}

// fail tears down a connection attempt that did not come up.
func (a *Agent) fail() {
	a.shutdown()
	a.mu.Lock()
	a.state = StateFailed
	a.mu.Unlock()
}

// Close ends the session and waits for the dispatch goroutine to exit.
// Queued messages remain available to CheckMessages.
func (a *Agent) Close() error {
	err := a.shutdown()
	a.mu.Lock()
	if a.state != StateFailed && a.state != StateUnconfigured {
		a.state = StateDisconnected
	}
	a.mu.Unlock()
	return err
}

func (a *Agent) shutdown() error {
	a.mu.Lock()
	tr, stop, stopped := a.transport, a.stop, a.stopped
	a.transport, a.stop, a.stopped = nil, nil, nil
	a.connected = false
	a.mu.Unlock()

	if tr == nil {
		return nil
	}
	close(stop)
	err := tr.Close()
	<-stopped
	if err != nil {
		return fmt.Errorf("tether: close: %w", err)
	}
	return nil
}

// CheckMessages returns the oldest queued message without blocking. The
// boolean is false when nothing is queued.
func (a *Agent) CheckMessages() (Message, bool) {
	return a.inbox.TryPop()
}

// Publish sends payload through a sender definition, using its topic, QoS and
// retain flag. A nil payload publishes an empty message.
func (a *Agent) Publish(ctx context.Context, def channel.Definition, payload []byte) error {
	if !def.IsSender() {
		return fmt.Errorf("tether: publish on %q: %w", def.Name, ErrNotSender)
	}
	return a.PublishRaw(ctx, def.Topic(), payload, def.QoS, def.Retain)
}

// PublishRaw sends payload to an arbitrary topic.
func (a *Agent) PublishRaw(ctx context.Context, topic string, payload []byte, qos transport.QoS, retain bool) error {
	tr, err := a.ready()
	if err != nil {
		return fmt.Errorf("tether: publish %s: %w", topic, err)
	}
	if payload == nil {
		payload = []byte{}
	}
	if err := tr.Publish(ctx, topic, payload, qos, retain); err != nil {
		return fmt.Errorf("tether: publish %s: %w", topic, err)
	}
	a.log.Debug("published", slogx.Topic(topic), slogx.ByteSize("size", payload))
	return nil
}

// Subscribe registers interest in a topic filter. Receiver definitions call
// this when they are built.
func (a *Agent) Subscribe(ctx context.Context, topic string, qos transport.QoS) error {
	tr, err := a.ready()
	if err != nil {
		return fmt.Errorf("tether: subscribe %s: %w", topic, err)
	}
	if err := tr.Subscribe(ctx, topic, qos); err != nil {
		return fmt.Errorf("tether: subscribe %s: %w", topic, err)
	}
	a.log.Debug("subscribed", slogx.Topic(topic), slogx.Stringer("qos", qos))
	return nil
}

func (a *Agent) ready() (transport.Transport, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.transport == nil || !a.connected {
		return nil, ErrTransportNotReady
	}
	return a.transport, nil
}

// Sender resolves a sender with default settings.
func (a *Agent) Sender(name string) (channel.Definition, error) {
	return channel.NewSender(name).Resolve(a)
}

// Receiver builds a receiver with default settings and subscribes to it.
func (a *Agent) Receiver(ctx context.Context, name string) (channel.Definition, error) {
	return channel.NewReceiver(name).Build(ctx, a)
}

func (a *Agent) Role() string {
	a.idMu.RLock()
	defer a.idMu.RUnlock()
	return a.role
}

// SetRole changes the role used by senders resolved afterwards.
func (a *Agent) SetRole(role string) error {
	if err := validateRole(role); err != nil {
		return err
	}
	a.idMu.Lock()
	a.role = role
	a.idMu.Unlock()
	return nil
}

// GroupID returns the agent's group id and whether it has one.
func (a *Agent) GroupID() (string, bool) {
	a.idMu.RLock()
	defer a.idMu.RUnlock()
	return a.groupID, a.groupID != ""
}

// SetGroupID changes the group id used by senders resolved afterwards. An
// empty id removes the group.
func (a *Agent) SetGroupID(groupID string) {
	a.idMu.Lock()
	a.groupID = groupID
	a.idMu.Unlock()
}

func (a *Agent) DefaultQoS() transport.QoS {
	return a.cfg.QoS
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) IsConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// BrokerURI renders the broker location without credentials.
func (a *Agent) BrokerURI() string {
	return a.cfg.transportOptions().BrokerURI()
}

// Description is a one line summary for logs and tools.
func (a *Agent) Description() string {
	group, ok := a.GroupID()
	if !ok {
		group = "any"
	}
	return fmt.Sprintf("tether agent with role %q, group %q, broker %s", a.Role(), group, a.BrokerURI())
}

func (a *Agent) String() string {
	return a.Description()
}
