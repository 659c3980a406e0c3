package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether"
	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/pkg/slogx"
	"github.com/casualjim/tether/recording"
)

// RecordCmd writes received messages to a JSON recording.
type RecordCmd struct {
	flags *Flags

	topic        string
	file         string
	duration     time.Duration
	delay        time.Duration
	nonzeroStart bool
}

func NewRecordCmd(flags *Flags) *RecordCmd {
	return &RecordCmd{flags: flags}
}

func (cmd *RecordCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:  "record",
		Usage: "Record messages to a JSON file for later playback",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "topic",
				Value:       "#",
				Destination: &cmd.topic,
			},
			&cli.StringFlag{
				Name:        "file",
				Aliases:     []string{"o"},
				Usage:       "output file (default recording-<unix time>.json)",
				Destination: &cmd.file,
			},
			&cli.DurationFlag{
				Name:        "duration",
				Usage:       "stop after this long (0 records until interrupted)",
				Destination: &cmd.duration,
			},
			&cli.DurationFlag{
				Name:        "delay",
				Usage:       "wait this long before recording",
				Destination: &cmd.delay,
			},
			&cli.BoolFlag{
				Name:        "nonzero-start",
				Usage:       "keep the time before the first message as its delta",
				Destination: &cmd.nonzeroStart,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *RecordCmd) run(ctx context.Context, c *cli.Command) error {
	if cmd.delay > 0 {
		slog.Info("waiting before recording", slog.Duration("delay", cmd.delay))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cmd.delay):
		}
	}

	agent, err := cmd.flags.Connect(ctx)
	if err != nil {
		return err
	}
	defer agent.Close()

	def, err := channel.NewReceiver("record").Topic(cmd.topic).Build(ctx, agent)
	if err != nil {
		return err
	}

	path := cmd.file
	if path == "" {
		path = fmt.Sprintf("recording-%d.json", time.Now().Unix())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	rec, err := recording.NewRecorder(f, recording.NonzeroStart(cmd.nonzeroStart))
	if err != nil {
		return err
	}
	log := slog.Default().With(slogx.LoggerName("record"), slog.String("file", path))
	log.Info("recording", slog.String("topic", def.Topic()))

	ctx, cancel := withDuration(ctx, cmd.duration)
	defer cancel()

	err = drain(ctx, agent, nil, func(msg tether.Message) error {
		log.Debug("recorded", slogx.Topic(msg.Topic()), slogx.ByteSize("payload", msg.Payload))
		return rec.Write(msg.Topic(), msg.Payload)
	})
	if cerr := rec.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Info("recording finished", slog.Int("messages", rec.Count()))
	fmt.Fprintf(c.Root().Writer, "recorded %d messages to %s\n", rec.Count(), path)
	return f.Sync()
}
