package mcpserver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
)

// URI template constants for the resource types
const (
	ChannelListURI     = "rss://channels"
	ChannelURITemplate = "rss://channel/{name}"
)

// ResourceManager serves channels as MCP resources and tracks subscriptions
type ResourceManager struct {
	channels ChannelLister
	builder  FeedBuilder
	sessions map[string]*ResourceSession
	digests  map[string]string
	mu       sync.RWMutex
}

// ResourceSession tracks subscription state for a client session
type ResourceSession struct {
	id            string
	subscriptions map[string]bool // resource URI -> subscribed
	lastUpdate    time.Time
	mu            sync.RWMutex
}

// NewResourceManager creates a new ResourceManager
func NewResourceManager(channels ChannelLister, builder FeedBuilder) *ResourceManager {
	return &ResourceManager{
		channels: channels,
		builder:  builder,
		sessions: make(map[string]*ResourceSession),
		digests:  make(map[string]string),
	}
}

// CreateSession creates a new resource session
func (rm *ResourceManager) CreateSession(sessionID string) *ResourceSession {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	session := &ResourceSession{
		id:            sessionID,
		subscriptions: make(map[string]bool),
		lastUpdate:    time.Now(),
	}
	rm.sessions[sessionID] = session
	return session
}

// RemoveSession removes a resource session
func (rm *ResourceManager) RemoveSession(sessionID string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.sessions, sessionID)
}

// GetSession retrieves a resource session
func (rm *ResourceManager) GetSession(sessionID string) (*ResourceSession, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	session, exists := rm.sessions[sessionID]
	return session, exists
}

// Subscribe subscribes a session to a channel resource, creating the session
// on first use
func (rm *ResourceManager) Subscribe(sessionID, uri string) error {
	if _, err := rm.channelFromURI(uri); err != nil {
		return err
	}
	session, exists := rm.GetSession(sessionID)
	if !exists {
		session = rm.CreateSession(sessionID)
	}
	session.Subscribe(uri)
	return nil
}

// Unsubscribe removes a subscription
func (rm *ResourceManager) Unsubscribe(sessionID, uri string) error {
	session, exists := rm.GetSession(sessionID)
	if !exists {
		return model.NewFeedError(model.ErrorTypeNotFound, "Unknown session").
			WithURL(uri).
			WithOperation("unsubscribe").
			WithComponent("resource_manager")
	}
	session.Unsubscribe(uri)
	return nil
}

// GetSubscribedSessions returns the IDs of sessions subscribed to uri
func (rm *ResourceManager) GetSubscribedSessions(uri string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	var ids []string
	for id, session := range rm.sessions {
		if session.IsSubscribed(uri) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ListResources returns the channel list resource and one resource per channel
func (rm *ResourceManager) ListResources(ctx context.Context) ([]*mcp.Resource, error) {
	resources := []*mcp.Resource{{
		URI:         ChannelListURI,
		Name:        "channels",
		Title:       "All Channels",
		Description: "List of all configured RSS channels",
		MIMEType:    "application/json",
	}}

	for _, ch := range rm.channels.ListChannels() {
		resources = append(resources, &mcp.Resource{
			URI:         channelURI(ch.Name),
			Name:        ch.Name,
			Title:       ch.Title,
			Description: fmt.Sprintf("RSS 2.0 document of channel %s", ch.Title),
			MIMEType:    rss.MIMEType,
		})
	}
	return resources, nil
}

// ReadResource reads content for a specific resource
func (rm *ResourceManager) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	if uri == ChannelListURI {
		return rm.readChannelList()
	}
	return rm.readChannel(ctx, uri)
}

func (rm *ResourceManager) readChannelList() (*mcp.ReadResourceResult, error) {
	channels := rm.channels.ListChannels()
	list := make([]map[string]interface{}, 0, len(channels))
	for _, ch := range channels {
		list = append(list, map[string]interface{}{
			"name":   ch.Name,
			"title":  ch.Title,
			"link":   ch.Link,
			"uri":    channelURI(ch.Name),
			"format": ch.RenderFormat().String(),
			"enrich": ch.Enrich,
		})
	}

	content := map[string]interface{}{
		"channels":   list,
		"count":      len(list),
		"updated_at": time.Now().UTC(),
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      ChannelListURI,
			MIMEType: "application/json",
			Text:     mustMarshalJSON(content),
		}},
	}, nil
}

func (rm *ResourceManager) readChannel(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	name, err := rm.channelFromURI(uri)
	if err != nil {
		return nil, err
	}
	filters, err := ParseURIParameters(uri)
	if err != nil {
		return nil, err
	}

	data, err := rm.RenderChannel(ctx, name, filters)
	if err != nil {
		return nil, err
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: rss.MIMEType,
			Text:     string(data),
		}},
	}, nil
}

// RenderChannel builds, filters and serializes the named channel.
func (rm *ResourceManager) RenderChannel(ctx context.Context, name string, filters *FilterParams) ([]byte, error) {
	ch, ok := rm.channels.Channel(name)
	if !ok {
		return nil, model.NewFeedError(model.ErrorTypeNotFound, fmt.Sprintf("Unknown channel %q", name)).
			WithOperation("render_channel").
			WithComponent("resource_manager")
	}

	f, err := rm.builder.BuildFeed(ctx, ch)
	if err != nil {
		return nil, err
	}
	ApplyFilters(f, filters)
	return f.Render(filters.RenderFormat(ch.RenderFormat()))
}

// DetectResourceChanges renders every subscribed channel and returns the URIs
// whose output differs from the previous check. The first check only records
// digests.
func (rm *ResourceManager) DetectResourceChanges(ctx context.Context) ([]string, error) {
	var changed []string
	for _, uri := range rm.subscribedURIs() {
		result, err := rm.readChannel(ctx, uri)
		if err != nil {
			model.LogError("failed to check resource", err)
			continue
		}
		sum := sha256.Sum256([]byte(stripPubDate(result.Contents[0].Text)))
		digest := hex.EncodeToString(sum[:])

		rm.mu.Lock()
		previous, seen := rm.digests[uri]
		rm.digests[uri] = digest
		rm.mu.Unlock()

		if seen && previous != digest {
			changed = append(changed, uri)
		}
	}
	return changed, nil
}

func (rm *ResourceManager) subscribedURIs() []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	set := make(map[string]bool)
	for _, session := range rm.sessions {
		for _, uri := range session.GetSubscriptions() {
			set[uri] = true
		}
	}
	uris := make([]string, 0, len(set))
	for uri := range set {
		if uri != ChannelListURI {
			uris = append(uris, uri)
		}
	}
	sort.Strings(uris)
	return uris
}

func (rm *ResourceManager) channelFromURI(uri string) (string, error) {
	if uri == ChannelListURI {
		return "", nil
	}
	name, err := channelNameFromURI(uri)
	if err != nil {
		return "", err
	}
	if _, ok := rm.channels.Channel(name); !ok {
		return "", model.NewFeedError(model.ErrorTypeNotFound, fmt.Sprintf("Unknown channel %q", name)).
			WithURL(uri).
			WithOperation("read_resource").
			WithComponent("resource_manager")
	}
	return name, nil
}

// Subscribe adds a resource subscription for a session
func (rs *ResourceSession) Subscribe(uri string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.subscriptions[uri] = true
	rs.lastUpdate = time.Now()
}

// Unsubscribe removes a resource subscription for a session
func (rs *ResourceSession) Unsubscribe(uri string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.subscriptions, uri)
	rs.lastUpdate = time.Now()
}

// IsSubscribed checks if a session is subscribed to a resource
func (rs *ResourceSession) IsSubscribed(uri string) bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.subscriptions[uri]
}

// GetSubscriptions returns all active subscriptions
func (rs *ResourceSession) GetSubscriptions() []string {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	uris := make([]string, 0, len(rs.subscriptions))
	for uri := range rs.subscriptions {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func channelURI(name string) string {
	return expandURITemplate(ChannelURITemplate, map[string]string{"name": name})
}

// expandURITemplate expands a URI template with the given parameters
func expandURITemplate(template string, params map[string]string) string {
	result := template
	for key, value := range params {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}
	return result
}

// channelNameFromURI extracts the channel name from rss://channel/{name},
// ignoring any query.
func channelNameFromURI(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme != "rss" || u.Host != "channel" {
		return "", model.NewFeedError(model.ErrorTypeValidation, "Unknown resource URI").
			WithURL(uri).
			WithOperation("parse_resource_uri").
			WithComponent("resource_manager")
	}
	name := strings.Trim(u.Path, "/")
	if name == "" || strings.Contains(name, "/") {
		return "", model.NewFeedError(model.ErrorTypeValidation, "Could not extract channel name from URI").
			WithURL(uri).
			WithOperation("parse_resource_uri").
			WithComponent("resource_manager")
	}
	return name, nil
}

// stripPubDate drops the channel pubDate so that an empty channel dated
// "now" does not register as a change on every check.
func stripPubDate(doc string) string {
	start := strings.Index(doc, "<pubDate>")
	if start < 0 {
		return doc
	}
	end := strings.Index(doc[start:], "</pubDate>")
	if end < 0 {
		return doc
	}
	return doc[:start] + doc[start+end+len("</pubDate>"):]
}

// mustMarshalJSON marshals an object to JSON string, panicking on error
func mustMarshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal JSON: %v", err))
	}
	return string(data)
}
