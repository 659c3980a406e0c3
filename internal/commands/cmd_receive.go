package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/k0kubun/pp/v3"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether"
	"github.com/casualjim/tether/address"
	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/codec"
)

// ReceiveCmd prints every message that reaches a receiving channel.
type ReceiveCmd struct {
	flags *Flags

	role        string
	group       string
	channelName string
	topic       string
	path        string
	pretty      bool
	count       int
}

func NewReceiveCmd(flags *Flags) *ReceiveCmd {
	return &ReceiveCmd{flags: flags}
}

func (cmd *ReceiveCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "receive",
		Aliases: []string{"r"},
		Usage:   "Receive messages and print them as JSON",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "channel-role",
				Usage:       "only messages published by this role",
				Destination: &cmd.role,
			},
			&cli.StringFlag{
				Name:        "channel-group",
				Usage:       "only messages published by this group",
				Destination: &cmd.group,
			},
			&cli.StringFlag{
				Name:        "channel-name",
				Usage:       "only messages on this channel",
				Destination: &cmd.channelName,
			},
			&cli.StringFlag{
				Name:        "topic",
				Usage:       "subscribe to this exact topic filter, ignoring the channel flags",
				Destination: &cmd.topic,
			},
			&cli.StringFlag{
				Name:        "path",
				Usage:       "print only the value at this gjson path",
				Destination: &cmd.path,
			},
			&cli.BoolFlag{
				Name:        "pretty",
				Usage:       "pretty print decoded payloads",
				Destination: &cmd.pretty,
			},
			&cli.IntFlag{
				Name:        "count",
				Aliases:     []string{"n"},
				Usage:       "exit after this many messages (0 receives until interrupted)",
				Destination: &cmd.count,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReceiveCmd) builder() *channel.Builder {
	name := cmd.channelName
	if name == "" {
		name = "receive"
	}
	b := channel.NewReceiver(name)
	if cmd.channelName == "" {
		b.AnyChannel()
	}
	if cmd.role != "" {
		b.Role(cmd.role)
	}
	if cmd.group != "" {
		b.GroupID(cmd.group)
	}
	if cmd.topic != "" {
		b.Topic(cmd.topic)
	}
	return b
}

func (cmd *ReceiveCmd) run(ctx context.Context, c *cli.Command) error {
	agent, err := cmd.flags.Connect(ctx)
	if err != nil {
		return err
	}
	defer agent.Close()

	def, err := cmd.builder().Build(ctx, agent)
	if err != nil {
		return err
	}
	slog.Info("listening", slog.String("topic", def.Topic()))

	w := c.Root().Writer
	received := 0
	return drain(ctx, agent, nil, func(msg tether.Message) error {
		if !def.Matches(msg.Address) {
			return nil
		}
		cmd.print(w, msg)
		received++
		if cmd.count > 0 && received >= cmd.count {
			return errStop
		}
		return nil
	})
}

func (cmd *ReceiveCmd) print(w io.Writer, msg tether.Message) {
	fmt.Fprintln(w, header(msg.Address))
	fmt.Fprintln(w, cmd.format(msg.Payload))
}

func header(addr address.Address) string {
	h := color.CyanString(addr.Topic())
	if addr.IsStructured() {
		h += " " + color.New(color.Faint).Sprint(addr.ChannelName())
	}
	return h
}

func (cmd *ReceiveCmd) format(payload []byte) string {
	if len(payload) == 0 {
		return color.YellowString("(empty message)")
	}
	text, err := codec.ToJSON(payload)
	if err != nil {
		return color.RedString("(undecodable payload, %d bytes)", len(payload))
	}

	if cmd.path != "" {
		res := gjson.Get(text, cmd.path)
		if !res.Exists() {
			return color.YellowString("(nothing at %s)", cmd.path)
		}
		text = res.Raw
	}

	if cmd.pretty {
		var v any
		if err := json.Unmarshal([]byte(text), &v); err == nil {
			printer := pp.New()
			printer.SetColoringEnabled(!color.NoColor)
			return printer.Sprint(v)
		}
	}
	return text
}
