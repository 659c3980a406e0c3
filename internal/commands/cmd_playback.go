package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether/recording"
)

// PlaybackCmd republishes a recording made by record.
type PlaybackCmd struct {
	flags *Flags

	filter        string
	overrideTopic string
	speed         float64
	loops         int
	infinite      bool
}

func NewPlaybackCmd(flags *Flags) *PlaybackCmd {
	return &PlaybackCmd{flags: flags}
}

func (cmd *PlaybackCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "playback",
		Aliases:   []string{"p"},
		Usage:     "Publish the messages of a recording",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "filter",
				Usage:       "comma separated topics or topic filters to play",
				Destination: &cmd.filter,
			},
			&cli.StringFlag{
				Name:        "override-topic",
				Usage:       "publish every message to this topic",
				Destination: &cmd.overrideTopic,
			},
			&cli.FloatFlag{
				Name:        "speed",
				Value:       1,
				Destination: &cmd.speed,
			},
			&cli.IntFlag{
				Name:        "loops",
				Value:       1,
				Destination: &cmd.loops,
			},
			&cli.BoolFlag{
				Name:        "infinite",
				Usage:       "loop until interrupted",
				Destination: &cmd.infinite,
			},
		},
		Action: cmd.run,
	})
	return app
}

func splitFilters(s string) []string {
	var filters []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}
	return filters
}

func (cmd *PlaybackCmd) run(ctx context.Context, c *cli.Command) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected one recording file, got %d arguments", c.NArg())
	}
	path := c.Args().First()

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	entries, err := recording.Load(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}

	player, err := recording.NewPlayer(
		recording.Speed(cmd.speed),
		recording.Filters(splitFilters(cmd.filter)),
		recording.OverrideTopic(cmd.overrideTopic),
		recording.Loops(cmd.loops),
		recording.Infinite(cmd.infinite),
	)
	if err != nil {
		return err
	}

	agent, err := cmd.flags.Connect(ctx)
	if err != nil {
		return err
	}
	defer agent.Close()

	slog.Info("playing", slog.String("file", path), slog.Int("entries", len(entries)))
	n, err := player.Play(ctx, entries, agent)
	if err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Fprintf(c.Root().Writer, "published %d messages\n", n)
	return nil
}
