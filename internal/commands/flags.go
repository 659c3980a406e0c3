package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether"
	"github.com/casualjim/tether/transport"
	"github.com/casualjim/tether/transport/memory"
	"github.com/casualjim/tether/transport/mqtt"
	"github.com/casualjim/tether/transport/natsx"
)

// pollInterval is how long the commands sleep when no message is queued.
const pollInterval = 5 * time.Millisecond

// Flags holds the global options shared by every command.
type Flags struct {
	LogLevel  string
	Transport string
	Protocol  string
	Host      string
	Port      int
	BasePath  string
	Username  string
	Password  string
	Role      string
	GroupID   string

	// Broker backs the memory transport. It is created on first use.
	Broker *memory.Broker
}

// Global returns the flags every command accepts.
func (f *Flags) Global() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (trace, debug, info, warn, error)",
			Sources:     cli.EnvVars("TETHER_LOG_LEVEL"),
			Value:       "info",
			Destination: &f.LogLevel,
		},
		&cli.StringFlag{
			Name:        "transport",
			Usage:       "broker client to use (mqtt, nats, memory)",
			Sources:     cli.EnvVars("TETHER_TRANSPORT"),
			Value:       "mqtt",
			Destination: &f.Transport,
		},
		&cli.StringFlag{
			Name:        "protocol",
			Usage:       "broker protocol (mqtt, mqtts, ws, wss)",
			Sources:     cli.EnvVars("TETHER_PROTOCOL"),
			Value:       string(tether.DefaultProtocol),
			Destination: &f.Protocol,
		},
		&cli.StringFlag{
			Name:        "host",
			Usage:       "broker host",
			Sources:     cli.EnvVars("TETHER_HOST"),
			Value:       tether.DefaultHost,
			Destination: &f.Host,
		},
		&cli.IntFlag{
			Name:        "port",
			Usage:       "broker port",
			Sources:     cli.EnvVars("TETHER_PORT"),
			Value:       tether.DefaultPort,
			Destination: &f.Port,
		},
		&cli.StringFlag{
			Name:        "base-path",
			Usage:       "path of websocket brokers",
			Sources:     cli.EnvVars("TETHER_BASE_PATH"),
			Value:       tether.DefaultBasePath,
			Destination: &f.BasePath,
		},
		&cli.StringFlag{
			Name:        "username",
			Sources:     cli.EnvVars("TETHER_USERNAME"),
			Value:       tether.DefaultUsername,
			Destination: &f.Username,
		},
		&cli.StringFlag{
			Name:        "password",
			Sources:     cli.EnvVars("TETHER_PASSWORD"),
			Value:       tether.DefaultPassword,
			Destination: &f.Password,
		},
		&cli.StringFlag{
			Name:        "role",
			Usage:       "role used for generated publish topics",
			Sources:     cli.EnvVars("TETHER_ROLE"),
			Value:       "utils",
			Destination: &f.Role,
		},
		&cli.StringFlag{
			Name:        "group",
			Usage:       "group id used for generated publish topics",
			Sources:     cli.EnvVars("TETHER_GROUP"),
			Destination: &f.GroupID,
		},
	}
}

// Connect creates an agent from the global flags and waits for the session.
func (f *Flags) Connect(ctx context.Context) (*tether.Agent, error) {
	protocol, err := transport.ParseProtocol(f.Protocol)
	if err != nil {
		return nil, err
	}
	dialer, err := f.dialer()
	if err != nil {
		return nil, err
	}

	agent, err := tether.New(f.Role,
		tether.GroupID(f.GroupID),
		tether.Protocol(protocol),
		tether.Host(f.Host),
		tether.Port(f.Port),
		tether.BasePath(f.BasePath),
		tether.Credentials(f.Username, f.Password),
		tether.Dialer(dialer),
		tether.AutoConnect(false),
	)
	if err != nil {
		return nil, err
	}
	if err := agent.Connect(ctx); err != nil {
		return nil, fmt.Errorf("is a broker running at %s? %w", agent.BrokerURI(), err)
	}
	slog.Debug("agent ready", slog.String("agent", agent.Description()))
	return agent, nil
}

func (f *Flags) dialer() (transport.Dialer, error) {
	switch f.Transport {
	case "mqtt", "":
		return mqtt.Dial, nil
	case "nats":
		return natsx.Dial, nil
	case "memory":
		if f.Broker == nil {
			f.Broker = memory.NewBroker()
		}
		return f.Broker.Dial, nil
	default:
		return nil, fmt.Errorf("unknown transport %q, expected mqtt, nats or memory", f.Transport)
	}
}

// drain hands every queued message to fn until ctx is done, fn returns
// errStop, or fn fails. A done context is a normal way to stop.
func drain(ctx context.Context, agent *tether.Agent, idle func(), fn func(tether.Message) error) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		for {
			msg, ok := agent.CheckMessages()
			if !ok {
				break
			}
			if err := fn(msg); err != nil {
				if errors.Is(err, errStop) {
					return nil
				}
				return err
			}
		}
		if idle != nil {
			idle()
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

var errStop = errors.New("stop")

// withDuration bounds ctx when d is positive.
func withDuration(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
