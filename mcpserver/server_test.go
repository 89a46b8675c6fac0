package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
)

func newTestServer(t *testing.T) (*Server, *stubBuilder) {
	t.Helper()
	builder := testBuilder()
	server, err := NewServer(Config{
		Channels:  testChannels(),
		Builder:   builder,
		Transport: model.StdioTransport,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return server, builder
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) != 1 {
		t.Fatalf("expected a single content block, got %+v", result)
	}
	text, ok := result.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected *mcp.TextContent, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewServer(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantErr   bool
		errorType model.ErrorType
	}{
		{
			name: "valid config",
			config: Config{
				Transport: model.StdioTransport,
				Channels:  testChannels(),
				Builder:   testBuilder(),
			},
		},
		{
			name: "undefined transport",
			config: Config{
				Channels: testChannels(),
				Builder:  testBuilder(),
			},
			wantErr:   true,
			errorType: model.ErrorTypeTransport,
		},
		{
			name: "nil Channels",
			config: Config{
				Transport: model.StdioTransport,
				Builder:   testBuilder(),
			},
			wantErr:   true,
			errorType: model.ErrorTypeConfiguration,
		},
		{
			name: "nil Builder",
			config: Config{
				Transport: model.HTTPWithSSETransport,
				Channels:  testChannels(),
			},
			wantErr:   true,
			errorType: model.ErrorTypeConfiguration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, err := NewServer(tt.config)

			if tt.wantErr {
				var feedErr *model.FeedError
				if !errors.As(err, &feedErr) {
					t.Fatalf("NewServer() error = %v, want *model.FeedError", err)
				}
				if feedErr.ErrorType != tt.errorType {
					t.Errorf("NewServer() error type = %v, want %v", feedErr.ErrorType, tt.errorType)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewServer() error = %v", err)
			}
			if server.transport != tt.config.Transport {
				t.Errorf("NewServer() transport = %v, want %v", server.transport, tt.config.Transport)
			}
			if !strings.HasPrefix(server.sessionID, "feed-rss-session-") {
				t.Errorf("unexpected session ID %q", server.sessionID)
			}
		})
	}
}

func TestGenerateSessionIDIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for range 100 {
		id := generateSessionID()
		if seen[id] {
			t.Fatalf("duplicate session ID %q", id)
		}
		seen[id] = true
	}
}

func TestHandleListChannels(t *testing.T) {
	server, _ := newTestServer(t)

	result, _, err := server.handleListChannels(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("handleListChannels() error = %v", err)
	}

	var body struct {
		Channels []struct {
			Name string `json:"name"`
		} `json:"channels"`
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Count != 2 || body.Channels[0].Name != "news" || body.Channels[1].Name != "blog" {
		t.Errorf("unexpected channel list %+v", body)
	}
}

func TestHandleRenderChannel(t *testing.T) {
	server, _ := newTestServer(t)

	t.Run("renders the channel", func(t *testing.T) {
		result, _, err := server.handleRenderChannel(context.Background(), nil, RenderChannelParams{Name: "news"})
		if err != nil {
			t.Fatalf("handleRenderChannel() error = %v", err)
		}

		feed, err := gofeed.NewParser().ParseString(toolText(t, result))
		if err != nil {
			t.Fatalf("output does not parse: %v", err)
		}
		if len(feed.Items) != 3 || feed.Items[0].Title != "Update" {
			t.Errorf("unexpected items: %d, first %q", len(feed.Items), feed.Items[0].Title)
		}
	})

	t.Run("limit search and format", func(t *testing.T) {
		result, _, err := server.handleRenderChannel(context.Background(), nil, RenderChannelParams{
			Name:   "news",
			Format: "compact",
			Limit:  1,
			Search: "launch",
		})
		if err != nil {
			t.Fatalf("handleRenderChannel() error = %v", err)
		}
		text := toolText(t, result)
		if strings.Contains(text, "\n") {
			t.Error("compact output contains a newline")
		}
		if strings.Count(text, "<item>") != 1 || !strings.Contains(text, "<title>Launch</title>") {
			t.Errorf("unexpected output %s", text)
		}
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, _, err := server.handleRenderChannel(context.Background(), nil, RenderChannelParams{Name: "missing"})
		var feedErr *model.FeedError
		if !errors.As(err, &feedErr) || feedErr.ErrorType != model.ErrorTypeNotFound {
			t.Errorf("expected not found error, got %v", err)
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		_, _, err := server.handleRenderChannel(context.Background(), nil, RenderChannelParams{Name: "news", Format: "pretty"})
		if !errors.Is(err, rss.ErrInvalidFormat) {
			t.Errorf("expected ErrInvalidFormat, got %v", err)
		}
	})
}

func TestHandleBuildFeed(t *testing.T) {
	server, _ := newTestServer(t)
	pubDate := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)

	result, _, err := server.handleBuildFeed(context.Background(), nil, BuildFeedParams{
		Title:       "Ad hoc",
		Link:        "https://example.com/",
		Description: "Built on request",
		Generator:   "tests",
		PubDate:     &pubDate,
		Format:      "compact",
		Items: []rss.FeedItem{
			{Title: "older", PubDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), GUID: "a"},
			{Title: "newer", PubDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), GUID: "b", Content: "<p>body</p>"},
		},
	})
	if err != nil {
		t.Fatalf("handleBuildFeed() error = %v", err)
	}

	text := toolText(t, result)
	for _, want := range []string{
		`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/">`,
		"<pubDate>Fri, 01 May 2020 12:00:00 GMT</pubDate><item><title>newer</title>",
		"<generator>tests</generator><description>Built on request</description>",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	_, _, err = server.handleBuildFeed(context.Background(), nil, BuildFeedParams{Format: "yaml"})
	var feedErr *model.FeedError
	if !errors.As(err, &feedErr) || feedErr.ErrorType != model.ErrorTypeValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNotifyResourceUpdatedWithoutSubscribers(t *testing.T) {
	server, _ := newTestServer(t)

	if err := server.NotifyResourceUpdated(context.Background(), testChannelURI, nil); err != nil {
		t.Errorf("NotifyResourceUpdated() error = %v", err)
	}
}

func TestSubscribeHandlersUseServerSession(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()

	sub := &mcp.SubscribeRequest{Params: &mcp.SubscribeParams{URI: testChannelURI}}
	if err := server.handleSubscribeResource(ctx, sub); err != nil {
		t.Fatalf("subscribe error = %v", err)
	}
	sessions := server.resourceManager.GetSubscribedSessions(testChannelURI)
	if len(sessions) != 1 || sessions[0] != server.sessionID {
		t.Errorf("unexpected sessions %v", sessions)
	}

	unsub := &mcp.UnsubscribeRequest{Params: &mcp.UnsubscribeParams{URI: testChannelURI}}
	if err := server.handleUnsubscribeResource(ctx, unsub); err != nil {
		t.Fatalf("unsubscribe error = %v", err)
	}
	if got := server.resourceManager.GetSubscribedSessions(testChannelURI); len(got) != 0 {
		t.Errorf("expected no sessions, got %v", got)
	}
}

func TestCheckForResourceChangesStopsOnCancel(t *testing.T) {
	server, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		server.CheckForResourceChanges(ctx, 10*time.Millisecond, nil)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("CheckForResourceChanges did not return after cancel")
	}
}

func TestRunUnsupportedTransport(t *testing.T) {
	server, _ := newTestServer(t)
	server.transport = model.Transport(42)

	err := server.Run(context.Background())
	var feedErr *model.FeedError
	if !errors.As(err, &feedErr) || feedErr.ErrorType != model.ErrorTypeTransport {
		t.Errorf("expected transport error, got %v", err)
	}
}

func TestRunRemovesSession(t *testing.T) {
	server, _ := newTestServer(t)
	server.transport = model.Transport(42)

	sub := &mcp.SubscribeRequest{Params: &mcp.SubscribeParams{URI: testChannelURI}}
	if err := server.handleSubscribeResource(context.Background(), sub); err != nil {
		t.Fatalf("subscribe error = %v", err)
	}

	_ = server.Run(context.Background())

	if _, ok := server.resourceManager.GetSession(server.sessionID); ok {
		t.Error("session still registered after Run returned")
	}
	if got := server.resourceManager.GetSubscribedSessions(testChannelURI); len(got) != 0 {
		t.Errorf("expected no subscribed sessions, got %v", got)
	}
}
