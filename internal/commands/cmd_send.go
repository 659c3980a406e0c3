package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fatih/color"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/codec"
	"github.com/casualjim/tether/transport"
)

// DummyData is published by send --dummy-data.
type DummyData struct {
	ID         int     `json:"id"`
	AFloat     float64 `json:"a_float"`
	AnIntArray []int   `json:"an_int_array"`
	AString    string  `json:"a_string"`
}

var dummyData = DummyData{
	ID:         0,
	AFloat:     42.0,
	AnIntArray: []int{1, 2, 3, 4},
	AString:    "hello world",
}

// SendCmd publishes a single message.
type SendCmd struct {
	flags *Flags

	channelName string
	role        string
	group       string
	topic       string
	message     string
	sets        []string
	dummy       bool
	retain      bool
	qos         int
}

func NewSendCmd(flags *Flags) *SendCmd {
	return &SendCmd{flags: flags}
}

func (cmd *SendCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "send",
		Aliases: []string{"s"},
		Usage:   "Publish a message given as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "channel-name",
				Value:       "testMessages",
				Destination: &cmd.channelName,
			},
			&cli.StringFlag{
				Name:        "channel-role",
				Usage:       "publish as this role instead of --role",
				Destination: &cmd.role,
			},
			&cli.StringFlag{
				Name:        "channel-group",
				Usage:       "publish with this group instead of --group",
				Destination: &cmd.group,
			},
			&cli.StringFlag{
				Name:        "topic",
				Usage:       "publish to this exact topic, ignoring the channel flags",
				Destination: &cmd.topic,
			},
			&cli.StringFlag{
				Name:        "message",
				Aliases:     []string{"m"},
				Usage:       "JSON payload",
				Destination: &cmd.message,
			},
			&cli.StringSliceFlag{
				Name:        "set",
				Usage:       "set a value in the payload, as path=value",
				Destination: &cmd.sets,
			},
			&cli.BoolFlag{
				Name:        "dummy-data",
				Usage:       "publish a built in test payload",
				Destination: &cmd.dummy,
			},
			&cli.BoolFlag{
				Name:        "retain",
				Destination: &cmd.retain,
			},
			&cli.IntFlag{
				Name:        "qos",
				Value:       int(transport.AtLeastOnce),
				Destination: &cmd.qos,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *SendCmd) builder() (*channel.Builder, error) {
	qos, err := transport.ParseQoS(cmd.qos)
	if err != nil {
		return nil, err
	}
	b := channel.NewSender(cmd.channelName).QoS(qos).Retain(cmd.retain)
	if cmd.role != "" {
		b.Role(cmd.role)
	}
	if cmd.group != "" {
		b.GroupID(cmd.group)
	}
	if cmd.topic != "" {
		b.Topic(cmd.topic)
	}
	return b, nil
}

func (cmd *SendCmd) run(ctx context.Context, c *cli.Command) error {
	payload, err := BuildPayload(cmd.message, cmd.sets, cmd.dummy)
	if err != nil {
		return err
	}
	b, err := cmd.builder()
	if err != nil {
		return err
	}

	agent, err := cmd.flags.Connect(ctx)
	if err != nil {
		return err
	}
	defer agent.Close()

	def, err := b.Resolve(agent)
	if err != nil {
		return err
	}
	if err := agent.Publish(ctx, def, payload); err != nil {
		return err
	}

	slog.Info("sent", slog.String("topic", def.Topic()), slog.Int("bytes", len(payload)))
	fmt.Fprintf(c.Root().Writer, "%s %s\n", color.GreenString("sent"), color.CyanString(def.Topic()))
	return nil
}

// BuildPayload turns the send flags into a message payload. Without a message
// and without sets the payload is empty.
func BuildPayload(message string, sets []string, dummy bool) ([]byte, error) {
	if dummy {
		if message != "" || len(sets) > 0 {
			return nil, errors.New("--dummy-data cannot be combined with --message or --set")
		}
		return codec.Encode(dummyData)
	}
	if message == "" && len(sets) == 0 {
		return nil, nil
	}

	text := message
	if text == "" {
		text = "{}"
	}
	if !gjson.Valid(text) {
		return nil, fmt.Errorf("message is not valid JSON: %s", text)
	}

	for _, set := range sets {
		path, value, ok := strings.Cut(set, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid --set %q, expected path=value", set)
		}
		var err error
		if gjson.Valid(value) {
			text, err = sjson.SetRaw(text, path, value)
		} else {
			text, err = sjson.Set(text, path, value)
		}
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", path, err)
		}
	}
	return codec.FromJSON(text)
}
