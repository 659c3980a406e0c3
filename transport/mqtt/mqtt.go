// Package mqtt implements the tether transport on top of the Eclipse Paho
// MQTT 3.1.1 client. Plain TCP, TLS and (secure) websocket connections are
// supported; the client reconnects on its own after a lost connection.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/pkg/uuidx"
	"github.com/casualjim/tether/transport"
)

const (
	eventBufferSize    = 256
	disconnectQuiesce  = 250 // milliseconds
	defaultKeepAlive   = 3 * time.Second
	defaultConnTimeout = 10 * time.Second
)

// Dial creates an unconnected MQTT transport. It satisfies transport.Dialer.
func Dial(opts transport.Options) (transport.Transport, error) {
	brokerURL, err := BrokerURL(opts)
	if err != nil {
		return nil, err
	}

	c := &client{
		opts:   opts,
		stream: transport.NewStream(eventBufferSize),
		log:    slog.Default().With(slogx.LoggerName("mqtt"), slog.String("broker", brokerURL)),
	}

	clientID := opts.ClientID
	if clientID == "" {
		clientID = uuidx.ClientID("tether")
	}
	keepAlive := opts.KeepAlive
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnTimeout
	}

	co := paho.NewClientOptions().
		AddBroker(brokerURL).
		SetClientID(clientID).
		SetUsername(opts.Username).
		SetPassword(opts.Password).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetDefaultPublishHandler(c.onMessage).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)
	if opts.Protocol.Secure() {
		co.SetTLSConfig(opts.TLS())
	}

	c.client = paho.NewClient(co)
	return c, nil
}

// BrokerURL translates transport options into the URL form Paho expects.
// Websocket URLs carry the base path; TCP URLs never do.
func BrokerURL(opts transport.Options) (string, error) {
	var scheme string
	switch opts.Protocol {
	case transport.ProtocolMQTT, "":
		scheme = "tcp"
	case transport.ProtocolMQTTS:
		scheme = "ssl"
	case transport.ProtocolWS:
		scheme = "ws"
	case transport.ProtocolWSS:
		scheme = "wss"
	default:
		return "", fmt.Errorf("mqtt: unsupported protocol %q", opts.Protocol)
	}

	u := url.URL{Scheme: scheme, Host: opts.Host + ":" + strconv.Itoa(opts.Port)}
	if opts.Protocol.Websocket() {
		u.Path = opts.BasePath
		if u.Path == "" {
			u.Path = "/"
		}
	}
	return u.String(), nil
}

type client struct {
	opts   transport.Options
	client paho.Client
	stream *transport.Stream
	log    *slog.Logger
}

func (c *client) Connect(ctx context.Context) error {
	c.log.Info("connecting to broker")
	if err := wait(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("mqtt: connect: %w", err)
	}
	return nil
}

func (c *client) Subscribe(ctx context.Context, topic string, qos transport.QoS) error {
	if !c.client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}
	// a nil callback routes messages to the default publish handler
	if err := wait(ctx, c.client.Subscribe(topic, byte(qos), nil)); err != nil {
		return fmt.Errorf("mqtt: subscribe %q: %w", topic, err)
	}
	c.log.Debug("subscribed", slogx.Topic(topic), slogx.Stringer("qos", qos))
	return nil
}

func (c *client) Publish(ctx context.Context, topic string, payload []byte, qos transport.QoS, retain bool) error {
	if !c.client.IsConnectionOpen() {
		return transport.ErrNotConnected
	}
	if err := wait(ctx, c.client.Publish(topic, byte(qos), retain, payload)); err != nil {
		return fmt.Errorf("mqtt: publish %q: %w", topic, err)
	}
	return nil
}

func (c *client) Events() <-chan transport.Event {
	return c.stream.Events()
}

// Close disconnects even when the first connect is still in flight, which
// aborts that attempt instead of letting it complete in the background.
func (c *client) Close() error {
	c.client.Disconnect(disconnectQuiesce)
	c.stream.Close()
	return nil
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("session established")
	c.stream.Emit(transport.Event{Kind: transport.EventConnAck})
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection lost", slogx.Error(err))
	c.stream.Emit(transport.Event{Kind: transport.EventDisconnect, Err: err})
}

func (c *client) onMessage(_ paho.Client, msg paho.Message) {
	c.stream.Emit(transport.Event{
		Kind:    transport.EventPublish,
		Topic:   msg.Topic(),
		Payload: msg.Payload(),
	})
}

func wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
