package main

import (
	"os"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/catalog"
	"github.com/elee1766/gauntletfuse/src/export"
	"github.com/elee1766/gauntletfuse/src/render"
	"github.com/elee1766/gauntletfuse/src/schema"
)

// SchemaCmd prints the JSON schema of an input or output document
type SchemaCmd struct {
	Name string `arg:"" enum:"settings,run-request,export" help:"Schema to print (settings, run-request, export)"`
}

// Run executes the schema command
func (c *SchemaCmd) Run(kctx *kong.Context, cli *CLI) error {
	var (
		data []byte
		err  error
	)
	switch c.Name {
	case "settings":
		data, err = schema.Marshal(schema.Settings())
	case "run-request":
		data, err = schema.Marshal(schema.RunRequest(catalog.Roles()))
	case "export":
		data, err = export.Schema()
	}
	if err != nil {
		return err
	}
	return render.JSON(os.Stdout, data, stdoutIsTerminal())
}
