package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/richardwooding/feed-rss/cmd"
	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/version"
)

type CLI struct {
	model.Globals

	Render cmd.RenderCmd `cmd:"" help:"Render a feed from a node file, URL or database."`
	Serve  cmd.ServeCmd  `cmd:"" help:"Serve the configured channels over HTTP."`
	Mcp    cmd.McpCmd    `cmd:"" help:"Run MCP Server"`
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("feed-rss"),
		kong.Description("Build RSS 2.0 feeds from hierarchical content."),
		kong.UsageOnError(),
		kong.Vars{"version": version.GetFullVersion()},
	)
}

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	cli := CLI{}
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cli.Globals.ConfigureLogging()
	defer model.DefaultLogger().Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kctx.BindTo(ctx, (*context.Context)(nil))
	err = kctx.Run(&cli.Globals)
	if err != nil {
		model.LogError("command failed", err)
	}
	kctx.FatalIfErrorf(err)
}
