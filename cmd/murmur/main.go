package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/wolfeidau/murmur/cmd/murmur/internal/commands"
	"github.com/wolfeidau/murmur/internal/client"
	"github.com/wolfeidau/murmur/internal/logger"
)

var (
	version = "dev"

	cli struct {
		Login     commands.LoginCmd     `cmd:"" help:"Log in and persist the session token"`
		Logout    commands.LogoutCmd    `cmd:"" help:"Forget the session token"`
		Whoami    commands.WhoamiCmd    `cmd:"" help:"Show the logged in user"`
		Register  commands.RegisterCmd  `cmd:"" help:"Create an account"`
		Feed      commands.FeedCmd      `cmd:"" help:"Show the post feed"`
		Post      commands.PostCmd      `cmd:"" help:"Create and react to posts"`
		Comments  commands.CommentsCmd  `cmd:"" help:"List and manage comments on a post"`
		Replies   commands.RepliesCmd   `cmd:"" help:"List and manage replies to a comment"`
		Profile   commands.ProfileCmd   `cmd:"" help:"Show and edit profiles"`
		Follow    commands.FollowCmd    `cmd:"" help:"Follow or unfollow a user"`
		Followers commands.FollowersCmd `cmd:"" help:"List a user's followers"`
		Following commands.FollowingCmd `cmd:"" help:"List who a user follows"`
		Ver       commands.VersionCmd   `cmd:"" name:"version" help:"Print the version"`

		Debug   bool             `help:"Enable debug mode."`
		Config  string           `help:"Config file (default ~/.murmur/config.yaml)." type:"path" env:"MURMUR_CONFIG"`
		Server  string           `help:"API base URL, overrides server_url from the config file."`
		Version kong.VersionFlag `help:"Print version and exit."`
	}
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := kong.Parse(&cli,
		kong.Name("murmur"),
		kong.Description("A command line client for the murmur social API."),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	logger.Install(logger.Setup(cli.Debug))

	err := cmd.Run(&commands.Globals{
		Debug:   cli.Debug,
		Version: version,
		Config:  cli.Config,
		Server:  cli.Server,
	})
	stop()
	if err != nil {
		cmd.Fatalf("%s", client.Describe(err))
	}
}
