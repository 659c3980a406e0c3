// Package natsx implements the tether transport on NATS.
//
// Topics are mapped onto subjects: "/" becomes ".", "+" becomes "*" and "#"
// becomes ">". Within a segment ".", "*", ">" and "%" are percent-escaped.
// NATS core delivery is at-most-once and has no retained messages, so the
// requested QoS and retain flag are accepted but not enforced.
package natsx

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/pkg/uuidx"
	"github.com/casualjim/tether/transport"
)

const eventBufferSize = 256

// Dial creates an unconnected NATS transport. It satisfies transport.Dialer.
func Dial(opts transport.Options) (transport.Transport, error) {
	serverURL, err := ServerURL(opts)
	if err != nil {
		return nil, err
	}
	return &client{
		url:    serverURL,
		opts:   opts,
		stream: transport.NewStream(eventBufferSize),
		log:    slog.Default().With(slogx.LoggerName("nats"), slog.String("server", serverURL)),
	}, nil
}

// ServerURL translates transport options into a NATS server URL.
func ServerURL(opts transport.Options) (string, error) {
	var scheme string
	switch opts.Protocol {
	case transport.ProtocolMQTT, "":
		scheme = "nats"
	case transport.ProtocolMQTTS:
		scheme = "tls"
	case transport.ProtocolWS:
		scheme = "ws"
	case transport.ProtocolWSS:
		scheme = "wss"
	default:
		return "", fmt.Errorf("nats: unsupported protocol %q", opts.Protocol)
	}
	return scheme + "://" + opts.Host + ":" + strconv.Itoa(opts.Port), nil
}

type client struct {
	url    string
	opts   transport.Options
	stream *transport.Stream
	log    *slog.Logger

	mu   sync.Mutex
	conn *nats.Conn
	subs []*nats.Subscription
}

func (c *client) Connect(ctx context.Context) error {
	clientID := c.opts.ClientID
	if clientID == "" {
		clientID = uuidx.ClientID("tether")
	}

	options := []nats.Option{
		nats.Name(clientID),
		nats.MaxReconnects(-1),
		nats.ConnectHandler(func(*nats.Conn) { c.connAck() }),
		nats.ReconnectHandler(func(*nats.Conn) { c.connAck() }),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.log.Warn("connection lost", slogx.Error(err))
			c.stream.Emit(transport.Event{Kind: transport.EventDisconnect, Err: err})
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			c.stream.Emit(transport.Event{Kind: transport.EventError, Err: err})
		}),
	}
	if c.opts.Username != "" {
		options = append(options, nats.UserInfo(c.opts.Username, c.opts.Password))
	}
	if c.opts.Protocol.Secure() {
		options = append(options, nats.Secure(c.opts.TLS()))
	}
	if deadline, ok := ctx.Deadline(); ok {
		options = append(options, nats.Timeout(time.Until(deadline)))
	} else if c.opts.ConnectTimeout > 0 {
		options = append(options, nats.Timeout(c.opts.ConnectTimeout))
	}

	c.log.Info("connecting to server")
	conn, err := nats.Connect(c.url, options...)
	if err != nil {
		return fmt.Errorf("nats: connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	// the connect handler only fires for connections established asynchronously
	c.connAck()
	return nil
}

func (c *client) Subscribe(ctx context.Context, topic string, qos transport.QoS) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}

	for _, subject := range SubscribeSubjects(topic) {
		sub, err := conn.Subscribe(subject, c.onMessage)
		if err != nil {
			return fmt.Errorf("nats: subscribe %q: %w", subject, err)
		}
		c.mu.Lock()
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
		c.log.Debug("subscribed", slogx.Topic(topic), slog.String("subject", subject), slogx.Stringer("qos", qos))
	}
	// flush so the server knows about the interest before we return
	if err := conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: subscribe %q: %w", topic, err)
	}
	return nil
}

func (c *client) Publish(_ context.Context, topic string, payload []byte, _ transport.QoS, retain bool) error {
	conn, err := c.connection()
	if err != nil {
		return err
	}
	if retain {
		c.log.Debug("retained messages are not supported, publishing without retention", slogx.Topic(topic))
	}
	if err := conn.Publish(Subject(topic), payload); err != nil {
		return fmt.Errorf("nats: publish %q: %w", topic, err)
	}
	return nil
}

func (c *client) Events() <-chan transport.Event {
	return c.stream.Events()
}

func (c *client) Close() error {
	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn, c.subs = nil, nil
	c.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			c.log.Debug("failed to unsubscribe", slogx.Error(err), slog.String("subject", sub.Subject))
		}
	}
	if conn != nil {
		conn.Close()
	}
	c.stream.Close()
	return nil
}

func (c *client) connection() (*nats.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	return c.conn, nil
}

func (c *client) connAck() {
	c.stream.Emit(transport.Event{Kind: transport.EventConnAck})
}

func (c *client) onMessage(msg *nats.Msg) {
	c.stream.Emit(transport.Event{
		Kind:    transport.EventPublish,
		Topic:   Topic(msg.Subject),
		Payload: msg.Data,
	})
}
