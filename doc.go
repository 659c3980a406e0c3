/*
Package tether lets independent agents exchange typed, addressed messages over
a publish/subscribe broker without formatting topic strings by hand.

Every agent has a role and, optionally, a group id that tells several instances
of the same role apart. Channels are declared by name; the agent works out the
topic:

  - senders publish to role/channel or role/channel/group
  - receivers subscribe to +/channel/# unless they narrow role or group

Incoming messages are queued by a background goroutine and polled with
CheckMessages, which never blocks.

# Basic Usage

	agent, err := tether.New("brush", tether.GroupID("left"))
	if err != nil {
		// Handle error
	}
	defer agent.Close()

	colours, err := tether.NewSender[Colour](agent, "colours")
	if err != nil {
		// Handle error
	}
	_ = colours.Send(ctx, Colour{R: 255})

	positions, err := tether.NewReceiver[Position](ctx, agent, "positions")
	if err != nil {
		// Handle error
	}

	for {
		msg, ok := agent.CheckMessages()
		if !ok {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if pos, ok := positions.Parse(msg); ok {
			// use pos
		}
	}

# Configuration

New applies defaults for everything but the role: an MQTT broker on
localhost:1883, the conventional tether credentials, at-least-once delivery and
an automatic connect. Options override single fields:

	agent, err := tether.New("tracker",
		tether.Host("broker.local"),
		tether.Protocol(transport.ProtocolWSS),
		tether.Port(443),
		tether.AutoConnect(false),
	)

The default credentials are a convenience for local brokers, not a security
mechanism.

# Transports

The agent talks to the broker through the transport package. MQTT is the
default; transport/natsx targets a NATS server and transport/memory runs an
in-process broker for tests and tools:

	broker := memory.NewBroker()
	agent, err := tether.New("tester", tether.Dialer(broker.Dial))
*/
package tether
