package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether"
	"github.com/casualjim/tether/channel"
	"github.com/casualjim/tether/insights"
)

// TopicsCmd watches traffic and reports which agents and channels are active.
type TopicsCmd struct {
	flags *Flags

	topic           string
	samplerInterval time.Duration
	reportInterval  time.Duration
	duration        time.Duration
	recent          int
	plain           bool
}

func NewTopicsCmd(flags *Flags) *TopicsCmd {
	return &TopicsCmd{flags: flags}
}

func (cmd *TopicsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:    "topics",
		Aliases: []string{"t"},
		Usage:   "Watch topics and summarize the agents and channels using them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "topic",
				Value:       "#",
				Destination: &cmd.topic,
			},
			&cli.DurationFlag{
				Name:        "sampler-interval",
				Value:       time.Second,
				Destination: &cmd.samplerInterval,
			},
			&cli.DurationFlag{
				Name:        "report-interval",
				Value:       5 * time.Second,
				Destination: &cmd.reportInterval,
			},
			&cli.DurationFlag{
				Name:        "duration",
				Usage:       "stop after this long (0 runs until interrupted)",
				Destination: &cmd.duration,
			},
			&cli.IntFlag{
				Name:        "recent",
				Usage:       "number of recent messages in each report",
				Value:       10,
				Destination: &cmd.recent,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "print the raw markdown report",
				Destination: &cmd.plain,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *TopicsCmd) run(ctx context.Context, c *cli.Command) error {
	agent, err := cmd.flags.Connect(ctx)
	if err != nil {
		return err
	}
	defer agent.Close()

	if _, err := channel.NewReceiver("topics").Topic(cmd.topic).Build(ctx, agent); err != nil {
		return err
	}

	render := func(md string) (string, error) { return md, nil }
	if !cmd.plain {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		render = renderer.Render
	}

	ctx, cancel := withDuration(ctx, cmd.duration)
	defer cancel()

	in := insights.New(cmd.samplerInterval)
	report := func() error {
		out, err := render(in.Markdown(cmd.recent))
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(c.Root().Writer, out)
		return err
	}

	var lastReport time.Time
	err = drain(ctx, agent, func() {
		in.Sample()
		if cmd.reportInterval > 0 && time.Since(lastReport) >= cmd.reportInterval && in.MessageCount() > 0 {
			lastReport = time.Now()
			_ = report()
		}
	}, func(msg tether.Message) error {
		in.Update(msg.Topic(), msg.Payload)
		return nil
	})
	if err != nil {
		return err
	}
	return report()
}
