package commands

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/casualjim/tether/recording"
)

// SchemaCmd prints the JSON schema of recording entries.
type SchemaCmd struct{}

func NewSchemaCmd() *SchemaCmd {
	return &SchemaCmd{}
}

func (cmd *SchemaCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:   "schema",
		Usage:  "Print the JSON schema of an entry in a recording file",
		Action: cmd.run,
	})
	return app
}

func (cmd *SchemaCmd) run(_ context.Context, c *cli.Command) error {
	data, err := json.MarshalIndent(recording.Schema(), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(c.Root().Writer, string(data))
	return err
}
