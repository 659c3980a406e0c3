// Package transport defines the boundary between a tether agent and the
// pub/sub client that actually talks to a broker.
//
// A Transport connects, subscribes and publishes flat topic strings and
// reports everything that happens on the connection through a single event
// stream. The agent owns exactly one goroutine that drains this stream.
//
// Implementations live in sub packages:
//   - mqtt: MQTT 3.1.1 brokers over TCP, TLS and websockets
//   - natsx: NATS servers, with topics mapped onto subjects
//   - memory: an in-process broker for tests and local tooling
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrNotConnected is returned by transports that are asked to move messages
// before their session is established.
var ErrNotConnected = errors.New("transport not connected")

// QoS is the delivery guarantee requested from the broker.
type QoS byte

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "at-most-once"
	case AtLeastOnce:
		return "at-least-once"
	case ExactlyOnce:
		return "exactly-once"
	default:
		return "qos(" + strconv.Itoa(int(q)) + ")"
	}
}

// Valid reports whether q is one of the three defined levels.
func (q QoS) Valid() bool {
	return q <= ExactlyOnce
}

// ParseQoS converts a numeric level into a QoS.
func ParseQoS(level int) (QoS, error) {
	if level < 0 || level > int(ExactlyOnce) {
		return AtMostOnce, fmt.Errorf("invalid qos level %d", level)
	}
	return QoS(level), nil
}

// Protocol selects how the transport reaches the broker.
type Protocol string

const (
	ProtocolMQTT  Protocol = "mqtt"
	ProtocolMQTTS Protocol = "mqtts"
	ProtocolWS    Protocol = "ws"
	ProtocolWSS   Protocol = "wss"
)

// ParseProtocol accepts the protocol names used in broker URIs.
func ParseProtocol(s string) (Protocol, error) {
	switch p := Protocol(strings.ToLower(s)); p {
	case ProtocolMQTT, ProtocolMQTTS, ProtocolWS, ProtocolWSS:
		return p, nil
	case "tcp":
		return ProtocolMQTT, nil
	case "ssl", "tls":
		return ProtocolMQTTS, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", s)
	}
}

// Secure reports whether the protocol runs over TLS.
func (p Protocol) Secure() bool {
	return p == ProtocolMQTTS || p == ProtocolWSS
}

// Websocket reports whether the protocol runs over a websocket.
func (p Protocol) Websocket() bool {
	return p == ProtocolWS || p == ProtocolWSS
}

// Options carries everything a transport needs to open a connection.
type Options struct {
	Protocol       Protocol
	Host           string
	Port           int
	Username       string
	Password       string
	BasePath       string
	ClientID       string
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
	// TLSConfig is used for secure protocols; nil means system roots.
	TLSConfig *tls.Config
}

// BrokerURI renders protocol, host, port and base path.
func (o Options) BrokerURI() string {
	return fmt.Sprintf("%s://%s:%d%s", o.Protocol, o.Host, o.Port, o.path())
}

func (o Options) path() string {
	if o.BasePath == "" {
		return "/"
	}
	if !strings.HasPrefix(o.BasePath, "/") {
		return "/" + o.BasePath
	}
	return o.BasePath
}

// TLS returns the configured TLS settings or an empty config that uses the
// host's root certificates.
func (o Options) TLS() *tls.Config {
	if o.TLSConfig != nil {
		return o.TLSConfig
	}
	return &tls.Config{MinVersion: tls.VersionTLS12, ServerName: o.Host}
}

// EventKind classifies transport events.
type EventKind uint8

const (
	// EventConnAck means the broker accepted the session.
	EventConnAck EventKind = iota + 1
	// EventPublish carries an incoming message.
	EventPublish
	// EventDisconnect means the session was lost; the transport may reconnect.
	EventDisconnect
	// EventError reports a transient transport error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnAck:
		return "connack"
	case EventPublish:
		return "publish"
	case EventDisconnect:
		return "disconnect"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a single notification from the transport.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Transport is a connection to a pub/sub broker.
//
// Events must be closed by the transport once Close returns, which is what ends
// the agent's dispatch goroutine.
type Transport interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, qos QoS) error
	Publish(ctx context.Context, topic string, payload []byte, qos QoS, retain bool) error
	Events() <-chan Event
	Close() error
}

// Dialer creates an unconnected transport from options.
type Dialer func(Options) (Transport, error)
