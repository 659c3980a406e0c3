package tether

import (
	"crypto/tls"
	"time"

	"github.com/casualjim/tether/pkg/uuidx"
	"github.com/casualjim/tether/transport"
	"github.com/casualjim/tether/transport/mqtt"
)

const (
	DefaultProtocol       = transport.ProtocolMQTT
	DefaultHost           = "localhost"
	DefaultPort           = 1883
	DefaultUsername       = "tether"
	DefaultPassword       = "sp_ceB0ss!"
	DefaultBasePath       = "/"
	DefaultQoS            = transport.AtLeastOnce
	DefaultConnectTimeout = 10 * time.Second
	DefaultKeepAlive      = 3 * time.Second
	DefaultErrorBackoff   = time.Second
	DefaultPollInterval   = 10 * time.Millisecond
)

// Config holds everything an agent needs besides its role.
type Config struct {
	// GroupID scopes published topics to one instance of a role. Empty means
	// no group.
	GroupID  string
	Protocol transport.Protocol
	Host     string
	Port     int
	Username string
	Password string
	BasePath string
	ClientID string
	// AutoConnect makes New connect before returning.
	AutoConnect bool
	// QoS is the delivery guarantee of channels that do not choose one.
	QoS            transport.QoS
	ConnectTimeout time.Duration
	KeepAlive      time.Duration
	// ErrorBackoff is how long dispatch pauses after a transport error.
	ErrorBackoff time.Duration
	// PollInterval is how often Connect checks whether the session is up. Values
	// that are not positive use DefaultPollInterval.
	PollInterval time.Duration
	TLSConfig    *tls.Config
	Dialer       transport.Dialer
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return Config{
		Protocol:       DefaultProtocol,
		Host:           DefaultHost,
		Port:           DefaultPort,
		Username:       DefaultUsername,
		Password:       DefaultPassword,
		BasePath:       DefaultBasePath,
		ClientID:       uuidx.ClientID("tether"),
		AutoConnect:    true,
		QoS:            DefaultQoS,
		ConnectTimeout: DefaultConnectTimeout,
		KeepAlive:      DefaultKeepAlive,
		ErrorBackoff:   DefaultErrorBackoff,
		PollInterval:   DefaultPollInterval,
		Dialer:         mqtt.Dial,
	}
}

func (c Config) transportOptions() transport.Options {
	return transport.Options{
		Protocol:       c.Protocol,
		Host:           c.Host,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		BasePath:       c.BasePath,
		ClientID:       c.ClientID,
		KeepAlive:      c.KeepAlive,
		ConnectTimeout: c.ConnectTimeout,
		TLSConfig:      c.TLSConfig,
	}
}
