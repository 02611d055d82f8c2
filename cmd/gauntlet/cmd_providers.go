package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/aisdk"
	"github.com/elee1766/gauntletfuse/src/app"
)

// ProvidersCmd groups provider utilities
type ProvidersCmd struct {
	Models ProvidersModelsCmd `cmd:"" help:"List the models a provider offers"`
}

// ProvidersModelsCmd lists a provider's models using its key alias
type ProvidersModelsCmd struct {
	Provider string `arg:"" help:"Provider ID"`
	Search   string `help:"Only show models whose ID or name contains this"`
	Format   string `help:"Output format (table, json)" enum:"table,json" default:"table"`
}

// Run executes the providers models command
func (c *ProvidersModelsCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	a, err := openApp(ctx, cli, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := currentUser(ctx, a, cli)
	if err != nil {
		return err
	}
	p, err := a.Catalog.GetProvider(ctx, user, c.Provider)
	if err != nil {
		return err
	}
	models, err := a.Invoker.ListModels(ctx, *p)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	models = filterModels(models, c.Search)

	if c.Format == "json" {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(models)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "ID\tName\tContext Length")
	fmt.Fprintln(w, "---\t----\t--------------")
	for _, model := range models {
		fmt.Fprintf(w, "%s\t%s\t%d\n", model.ID, model.Name, model.ContextLength)
	}
	return nil
}

func filterModels(models []*aisdk.ModelInfo, query string) []*aisdk.ModelInfo {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return models
	}
	var out []*aisdk.ModelInfo
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.ID), query) || strings.Contains(strings.ToLower(m.Name), query) {
			out = append(out, m)
		}
	}
	return out
}
