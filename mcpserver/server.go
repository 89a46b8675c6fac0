// Package mcpserver exposes configured RSS channels and an ad-hoc feed
// builder through the Model Context Protocol.
package mcpserver

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
	"github.com/richardwooding/feed-rss/version"
)

var sessionCounter int64

// Config holds the configuration for creating a new MCP server
type Config struct {
	Channels  ChannelLister
	Builder   FeedBuilder
	Transport model.Transport
	// ChangeInterval is how often subscribed channels are re-rendered. Zero
	// disables change notifications.
	ChangeInterval time.Duration
}

// Server implements an MCP server for RSS channels
type Server struct {
	channels        ChannelLister
	builder         FeedBuilder
	resourceManager *ResourceManager
	sessionID       string
	transport       model.Transport
	changeInterval  time.Duration
}

// generateSessionID creates a unique session ID for this server instance
func generateSessionID() string {
	counter := atomic.AddInt64(&sessionCounter, 1)
	return fmt.Sprintf("feed-rss-session-%d-%d", time.Now().UnixNano(), counter)
}

// NewServer creates a new MCP server with the given configuration
func NewServer(config Config) (*Server, error) {
	if config.Transport == model.UndefinedTransport {
		return nil, model.NewFeedError(model.ErrorTypeTransport, "transport must be specified").
			WithOperation("create_server").
			WithComponent("mcp_server")
	}
	if config.Channels == nil {
		return nil, model.NewFeedError(model.ErrorTypeConfiguration, "Channels is required").
			WithOperation("create_server").
			WithComponent("mcp_server")
	}
	if config.Builder == nil {
		return nil, model.NewFeedError(model.ErrorTypeConfiguration, "Builder is required").
			WithOperation("create_server").
			WithComponent("mcp_server")
	}
	return &Server{
		channels:        config.Channels,
		builder:         config.Builder,
		resourceManager: NewResourceManager(config.Channels, config.Builder),
		sessionID:       generateSessionID(),
		transport:       config.Transport,
		changeInterval:  config.ChangeInterval,
	}, nil
}

// RenderChannelParams contains parameters for the render_channel tool.
type RenderChannelParams struct {
	Name   string `json:"name"`
	Format string `json:"format,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Search string `json:"search,omitempty"`
}

// BuildFeedParams contains parameters for the build_rss_feed tool.
type BuildFeedParams struct {
	Title       string         `json:"title"`
	Link        string         `json:"link"`
	Description string         `json:"description,omitempty"`
	Language    string         `json:"language,omitempty"`
	Generator   string         `json:"generator,omitempty"`
	PubDate     *time.Time     `json:"pubDate,omitempty"`
	Items       []rss.FeedItem `json:"items,omitempty"`
	Format      string         `json:"format,omitempty"`
}

var formatSchema = &jsonschema.Schema{
	Type:        "string",
	Enum:        []any{"indented", "compact"},
	Description: "Output layout, indented by default",
}

var (
	listChannelsTool = &mcp.Tool{
		Name:        "list_channels",
		Description: "List the configured RSS channels",
		InputSchema: &jsonschema.Schema{Type: "object"},
	}

	renderChannelTool = &mcp.Tool{
		Name:        "render_channel",
		Description: "Render a configured channel as an RSS 2.0 document",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"name"},
			Properties: map[string]*jsonschema.Schema{
				"name":   {Type: "string", Description: "Channel name"},
				"format": formatSchema,
				"limit":  {Type: "integer", Description: "Maximum number of items, newest first"},
				"search": {Type: "string", Description: "Only items whose title, description or content contains this text"},
			},
		},
	}

	buildFeedTool = &mcp.Tool{
		Name:        "build_rss_feed",
		Description: "Build an RSS 2.0 document from the given channel fields and items",
		InputSchema: &jsonschema.Schema{
			Type:     "object",
			Required: []string{"title", "link"},
			Properties: map[string]*jsonschema.Schema{
				"title":       {Type: "string", Description: "Channel title"},
				"link":        {Type: "string", Description: "Channel link"},
				"description": {Type: "string"},
				"language":    {Type: "string"},
				"generator":   {Type: "string"},
				"pubDate":     {Type: "string", Format: "date-time", Description: "Channel publication date, RFC 3339"},
				"format":      formatSchema,
				"items": {
					Type: "array",
					Items: &jsonschema.Schema{
						Type: "object",
						Properties: map[string]*jsonschema.Schema{
							"title":       {Type: "string"},
							"link":        {Type: "string"},
							"pubDate":     {Type: "string", Format: "date-time"},
							"guid":        {Type: "string"},
							"description": {Type: "string", Description: "Summary, written as CDATA"},
							"content":     {Type: "string", Description: "HTML body, written as content:encoded"},
						},
					},
				},
			},
		},
	}
)

// Run starts the MCP server and handles client connections until context is canceled
func (s *Server) Run(ctx context.Context) (err error) {
	// subscriptions do not outlive the connection
	defer s.resourceManager.RemoveSession(s.sessionID)

	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "feed-rss",
			Version: version.GetVersion(),
		},
		&mcp.ServerOptions{
			SubscribeHandler:   s.handleSubscribeResource,
			UnsubscribeHandler: s.handleUnsubscribeResource,
			HasResources:       true,
		},
	)

	mcp.AddTool(srv, listChannelsTool, s.handleListChannels)
	mcp.AddTool(srv, renderChannelTool, s.handleRenderChannel)
	mcp.AddTool(srv, buildFeedTool, s.handleBuildFeed)

	if err := s.addResourceHandlers(ctx, srv); err != nil {
		return err
	}

	if s.changeInterval > 0 {
		go s.CheckForResourceChanges(ctx, s.changeInterval, srv)
	}

	switch s.transport {
	case model.StdioTransport:
		err = srv.Run(ctx, &mcp.StdioTransport{})
	case model.HTTPWithSSETransport:
		err = srv.Run(ctx, &mcp.StreamableServerTransport{SessionID: s.sessionID})
	default:
		return model.NewFeedError(model.ErrorTypeTransport, "unsupported transport").
			WithOperation("run_server").
			WithComponent("mcp_server")
	}

	return
}

func (s *Server) handleListChannels(ctx context.Context, req *mcp.CallToolRequest, args any) (*mcp.CallToolResult, any, error) {
	result, err := s.resourceManager.readChannelList()
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: result.Contents[0].Text}},
	}, nil, nil
}

func (s *Server) handleRenderChannel(ctx context.Context, req *mcp.CallToolRequest, args RenderChannelParams) (*mcp.CallToolResult, any, error) {
	if _, err := rss.ParseFormat(args.Format); err != nil {
		return nil, nil, model.NewFeedErrorWithCause(model.ErrorTypeValidation, fmt.Sprintf("Invalid format %q", args.Format), err).
			WithOperation("render_channel").
			WithComponent("mcp_server")
	}
	filters := &FilterParams{Search: args.Search, Format: args.Format}
	if args.Limit > 0 {
		limit := min(args.Limit, maxLimit)
		filters.Limit = &limit
	}

	data, err := s.resourceManager.RenderChannel(ctx, args.Name, filters)
	if err != nil {
		model.LogError("render_channel failed", err)
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

func (s *Server) handleBuildFeed(ctx context.Context, req *mcp.CallToolRequest, args BuildFeedParams) (*mcp.CallToolResult, any, error) {
	format, err := rss.ParseFormat(args.Format)
	if err != nil {
		return nil, nil, model.NewFeedErrorWithCause(model.ErrorTypeValidation, fmt.Sprintf("Invalid format %q", args.Format), err).
			WithOperation("build_rss_feed").
			WithComponent("mcp_server")
	}

	f := rss.NewFeed()
	f.Title = args.Title
	f.Link = args.Link
	f.Description = args.Description
	f.Language = args.Language
	f.Generator = args.Generator
	if args.PubDate != nil {
		f.SetPubDate(*args.PubDate)
	}
	for i := range args.Items {
		item := args.Items[i]
		f.Add(&item)
	}

	data, err := f.Render(format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}, nil, nil
}

// addResourceHandlers registers the channel list and every channel as resources
func (s *Server) addResourceHandlers(ctx context.Context, srv *mcp.Server) error {
	resources, err := s.resourceManager.ListResources(ctx)
	if err != nil {
		return err
	}
	for _, resource := range resources {
		srv.AddResource(resource, s.handleReadResource)
	}
	srv.AddResourceTemplate(&mcp.ResourceTemplate{
		Name:        "channel",
		URITemplate: ChannelURITemplate + "{?format,limit,offset,since,until,search}",
		Description: "RSS 2.0 document of a configured channel, optionally filtered",
		MIMEType:    rss.MIMEType,
	}, s.handleReadResource)
	return nil
}

func (s *Server) handleReadResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return s.resourceManager.ReadResource(ctx, req.Params.URI)
}

func (s *Server) handleSubscribeResource(ctx context.Context, req *mcp.SubscribeRequest) error {
	return s.resourceManager.Subscribe(s.sessionID, req.Params.URI)
}

func (s *Server) handleUnsubscribeResource(ctx context.Context, req *mcp.UnsubscribeRequest) error {
	return s.resourceManager.Unsubscribe(s.sessionID, req.Params.URI)
}

// NotifyResourceUpdated sends a resource update notification to subscribed clients
func (s *Server) NotifyResourceUpdated(ctx context.Context, uri string, mcpServer *mcp.Server) error {
	if len(s.resourceManager.GetSubscribedSessions(uri)) == 0 {
		return nil
	}
	return mcpServer.ResourceUpdated(ctx, &mcp.ResourceUpdatedNotificationParams{
		URI: uri,
	})
}

// CheckForResourceChanges periodically re-renders subscribed channels and
// notifies subscribers of those that changed
func (s *Server) CheckForResourceChanges(ctx context.Context, interval time.Duration, mcpServer *mcp.Server) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			changedURIs, err := s.resourceManager.DetectResourceChanges(ctx)
			if err != nil {
				model.LogError("failed to detect resource changes", err)
				continue
			}
			for _, uri := range changedURIs {
				if err := s.NotifyResourceUpdated(ctx, uri, mcpServer); err != nil {
					model.WarnLog("failed to notify resource update", err)
				}
			}
		}
	}
}
