package mcpserver

import (
	"context"

	"github.com/richardwooding/feed-rss/config"
	"github.com/richardwooding/feed-rss/rss"
)

// ChannelLister gives access to the configured channels.
type ChannelLister interface {
	ListChannels() []config.ChannelConfig
	Channel(name string) (config.ChannelConfig, bool)
}

// FeedBuilder builds the feed of a configured channel.
type FeedBuilder interface {
	BuildFeed(ctx context.Context, ch config.ChannelConfig) (*rss.Feed, error)
}
