package main

import (
	"github.com/alecthomas/kong"
)

// CLI represents the main CLI structure
type CLI struct {
	Config    string `short:"c" help:"Configuration file" type:"path"`
	DB        string `help:"Database path (defaults to config)" env:"GAUNTLET_DB"`
	Token     string `help:"Session token identifying the user" env:"GAUNTLET_TOKEN"`
	LogLevel  string `help:"Log level (debug, info, warn, error); defaults to config"`
	LogFormat string `help:"Log format (text, json); defaults to config"`

	Serve     ServeCmd     `cmd:"" help:"Serve the HTTP API"`
	Run       RunCmd       `cmd:"" help:"Create a run and execute it in the foreground"`
	Show      ShowCmd      `cmd:"" help:"Show a run"`
	Cancel    CancelCmd    `cmd:"" help:"Cancel a run"`
	Export    ExportCmd    `cmd:"" help:"Export a run as JSON"`
	Schema    SchemaCmd    `cmd:"" help:"Print JSON schemas"`
	Seed      SeedCmd      `cmd:"" help:"Seed shared personas and a test user"`
	Migrate   MigrateCmd   `cmd:"" help:"Database migrations"`
	Providers ProvidersCmd `cmd:"" help:"Provider utilities"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gauntlet"),
		kong.Description("Multi-model debate arena"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		FatalError(cliLogger(&cli), err)
	}
}
