package main

import (
	"context"
	"fmt"

	"github.com/alecthomas/kong"

	"github.com/elee1766/gauntletfuse/src/app"
	"github.com/elee1766/gauntletfuse/src/auth"
)

// SeedCmd seeds the shared personas and, when an email is given, a user
// with a fresh session token
type SeedCmd struct {
	Email string `help:"Create this user and print a session token" env:"GF_TEST_EMAIL"`
	Name  string `help:"Display name for the seeded user"`
}

// Run executes the seed command
func (c *SeedCmd) Run(kctx *kong.Context, cli *CLI) error {
	ctx := context.Background()
	a, err := openApp(ctx, cli, app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.Catalog.SeedPersonas(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("seeded %d shared personas\n", len(created))

	if c.Email == "" {
		return nil
	}
	user, err := a.Auth.EnsureUser(ctx, c.Email, c.Name)
	if err != nil {
		return err
	}
	token, err := a.Auth.IssueToken(ctx, auth.UserID(user.ID), a.Config.Server.SessionTTL.Std())
	if err != nil {
		return err
	}
	fmt.Printf("user %s (%s)\n", user.Email, user.ID)
	fmt.Printf("export GAUNTLET_TOKEN=%s\n", token)
	return nil
}
