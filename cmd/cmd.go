// Package cmd holds the command-line entry points of feed-rss.
package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/richardwooding/feed-rss/config"
	"github.com/richardwooding/feed-rss/mcpserver"
	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
	"github.com/richardwooding/feed-rss/server"
	"github.com/richardwooding/feed-rss/store"
)

// ErrNoSource is returned when render is given neither a source nor a database.
var ErrNoSource = errors.New("a source or --database must be specified")

// RenderCmd renders one feed to a file or stdout.
type RenderCmd struct {
	Source          string        `arg:"" optional:"" name:"source" help:"JSON node file or URL."`
	Database        string        `name:"database" type:"path" help:"SQLite database holding a nodes table."`
	Parent          *int64        `name:"parent" help:"Only include the children of this node."`
	Title           string        `name:"title" help:"Channel title."`
	Link            string        `name:"link" help:"Channel link."`
	Description     string        `name:"description" help:"Channel description."`
	Language        string        `name:"language" help:"Channel language, e.g. en-us."`
	BaseURL         string        `name:"base-url" help:"Resolve relative node URLs against this URL."`
	Enrich          bool          `name:"enrich" help:"Write node summaries and bodies as description and content:encoded."`
	Format          string        `name:"format" default:"indented" enum:"indented,compact" help:"Output layout."`
	Output          string        `name:"output" short:"o" type:"path" help:"Write to this file instead of stdout."`
	Timeout         time.Duration `name:"timeout" default:"30s" help:"Timeout for fetching a remote source."`
	AllowPrivateIPs bool          `name:"allow-private-ips" help:"Allow sources on private or loopback addresses."`

	stdout io.Writer `kong:"-"`
}

func (c *RenderCmd) Run(globals *model.Globals, ctx context.Context) error {
	if c.Source == "" && c.Database == "" {
		return ErrNoSource
	}
	format, err := rss.ParseFormat(c.Format)
	if err != nil {
		return err
	}

	feedStore, err := newStore(store.Config{
		Timeout:         c.Timeout,
		AllowPrivateIPs: c.AllowPrivateIPs,
	}, c.Database)
	if err != nil {
		return err
	}
	defer feedStore.Close()

	f, err := feedStore.BuildFeed(ctx, config.ChannelConfig{
		Name:        "render",
		Title:       c.Title,
		Link:        c.Link,
		Description: c.Description,
		Language:    c.Language,
		Source:      c.Source,
		BaseURL:     c.BaseURL,
		Parent:      c.Parent,
		Enrich:      c.Enrich,
	})
	if err != nil {
		return err
	}

	out, err := c.output()
	if err != nil {
		return err
	}
	if err := f.Write(rss.NewWriterSink(out), format); err != nil {
		if closer, ok := out.(io.Closer); ok {
			_ = closer.Close()
		}
		return err
	}
	return nil
}

func (c *RenderCmd) output() (io.Writer, error) {
	if c.Output == "" {
		stdout := c.stdout
		if stdout == nil {
			stdout = os.Stdout
		}
		// hide Close so the sink does not close stdout
		return struct{ io.Writer }{stdout}, nil
	}
	file, err := os.Create(c.Output)
	if err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeWrite, "failed to create output file", err).
			WithURL(c.Output).
			WithOperation("render").
			WithComponent("cmd")
	}
	return file, nil
}

// ServeCmd serves the configured channels over HTTP.
type ServeCmd struct {
	Config string `name:"config" short:"c" default:"feed-rss.yaml" type:"path" env:"FEED_RSS_CONFIG" help:"YAML configuration file."`
	Addr   string `name:"addr" help:"Listen address, overrides server.addr."`
}

func (c *ServeCmd) Run(globals *model.Globals, ctx context.Context) error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Addr = c.Addr
	}

	feedStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer feedStore.Close()

	model.InfoLogWithContext("serving channels", "cmd", "serve", "", map[string]interface{}{
		"addr":     cfg.Server.Addr,
		"channels": len(cfg.Channels),
	})
	return server.New(cfg, feedStore).Run(ctx)
}

// McpCmd exposes the configured channels as an MCP server.
type McpCmd struct {
	Config         string        `name:"config" short:"c" default:"feed-rss.yaml" type:"path" env:"FEED_RSS_CONFIG" help:"YAML configuration file."`
	Transport      string        `name:"transport" default:"stdio" enum:"stdio,http-with-sse" help:"Transport to use for the MCP server."`
	ChangeInterval time.Duration `name:"change-interval" default:"1m" help:"How often subscribed channels are checked for changes, 0 to disable."`
}

func (c *McpCmd) Run(globals *model.Globals, ctx context.Context) error {
	transport, err := model.ParseTransport(c.Transport)
	if err != nil {
		return err
	}
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}

	feedStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer feedStore.Close()

	srv, err := mcpserver.NewServer(mcpserver.Config{
		Channels:       cfg,
		Builder:        feedStore,
		Transport:      transport,
		ChangeInterval: c.ChangeInterval,
	})
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// openStore creates the store described by the source section of cfg.
func openStore(cfg *config.Config) (*store.Store, error) {
	return newStore(store.ConfigFromSource(cfg.Source), cfg.Source.Database)
}

// newStore creates a store, attaching the SQLite database at database when
// it is set. The database must already exist.
func newStore(storeConfig store.Config, database string) (*store.Store, error) {
	if database != "" {
		db, err := store.OpenExistingSQLite(database)
		if err != nil {
			return nil, err
		}
		storeConfig.Database = db
	}
	feedStore, err := store.NewStore(storeConfig)
	if err != nil {
		if storeConfig.Database != nil {
			_ = storeConfig.Database.Close()
		}
		return nil, err
	}
	return feedStore, nil
}
