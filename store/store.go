// Package store loads content nodes for feed channels from JSON exports,
// HTTP endpoints and SQLite databases.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/richardwooding/feed-rss/config"
	"github.com/richardwooding/feed-rss/model"
	"github.com/richardwooding/feed-rss/rss"
	"github.com/richardwooding/feed-rss/version"
)

// maxPayloadSize bounds a remote source response.
const maxPayloadSize = 32 << 20

type Config struct {
	Timeout                        time.Duration
	ExpireAfter                    time.Duration
	HTTPClient                     *http.Client
	RequestsPerSecond              float64
	BurstCapacity                  int
	UserAgent                      string
	AllowPrivateIPs                bool
	CircuitBreakerEnabled          *bool
	CircuitBreakerMaxRequests      uint32
	CircuitBreakerInterval         time.Duration
	CircuitBreakerTimeout          time.Duration
	CircuitBreakerFailureThreshold uint32
	// Database serves channels that have no source of their own.
	Database *SQLiteSource
}

// ConfigFromSource maps the source section of a configuration file.
func ConfigFromSource(src config.SourceConfig) Config {
	return Config{
		Timeout:                        src.Timeout,
		ExpireAfter:                    src.CacheTTL,
		RequestsPerSecond:              src.RequestsPerSecond,
		BurstCapacity:                  src.Burst,
		UserAgent:                      src.UserAgent,
		AllowPrivateIPs:                src.AllowPrivateIPs,
		CircuitBreakerFailureThreshold: src.FailureThreshold,
	}
}

type Store struct {
	config          Config
	client          *http.Client
	payloadCache    *cache.LoadableCache[string]
	breakerEnabled  bool
	mu              sync.Mutex
	circuitBreakers map[string]*gobreaker.CircuitBreaker
	db              *SQLiteSource
}

// RateLimitedTransport wraps an http.RoundTripper with rate limiting
type RateLimitedTransport struct {
	transport   http.RoundTripper
	rateLimiter *rate.Limiter
}

// RoundTrip implements the http.RoundTripper interface with rate limiting
func (r *RateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := r.rateLimiter.Wait(req.Context()); err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeRateLimit, "rate limit wait aborted", err).
			WithURL(req.URL.String()).
			WithOperation("load_source").
			WithComponent("rate_limiter")
	}
	return r.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client with rate limiting
func NewRateLimitedHTTPClient(requestsPerSecond float64, burstCapacity int) *http.Client {
	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), burstCapacity)

	return &http.Client{
		Transport: &RateLimitedTransport{
			transport:   http.DefaultTransport,
			rateLimiter: limiter,
		},
		Timeout: 30 * time.Second,
	}
}

func NewStore(config Config) (*Store, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ExpireAfter == 0 {
		config.ExpireAfter = 5 * time.Minute
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 2.0
	}
	if config.BurstCapacity <= 0 {
		config.BurstCapacity = 5
	}
	if config.CircuitBreakerMaxRequests == 0 {
		config.CircuitBreakerMaxRequests = 3
	}
	if config.CircuitBreakerInterval <= 0 {
		config.CircuitBreakerInterval = 60 * time.Second
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}
	if config.CircuitBreakerFailureThreshold == 0 {
		config.CircuitBreakerFailureThreshold = 3
	}
	if config.UserAgent == "" {
		config.UserAgent = version.Generator()
	}
	if config.HTTPClient == nil {
		config.HTTPClient = NewRateLimitedHTTPClient(config.RequestsPerSecond, config.BurstCapacity)
	}

	ristrettoCache, err := ristretto.NewCache[string, string](&ristretto.Config[string, string]{
		NumCounters: 10000,
		MaxCost:     256 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeCache, "failed to create payload cache", err).
			WithOperation("new_store").
			WithComponent("store")
	}

	s := &Store{
		config:          config,
		client:          config.HTTPClient,
		breakerEnabled:  config.CircuitBreakerEnabled == nil || *config.CircuitBreakerEnabled,
		circuitBreakers: make(map[string]*gobreaker.CircuitBreaker),
		db:              config.Database,
	}

	loadFunction := func(ctx context.Context, key any) (string, []store.Option, error) {
		sourceURL, ok := key.(string)
		if !ok {
			return "", nil, errors.New("invalid key type")
		}
		payload, err := s.fetchGuarded(ctx, sourceURL)
		if err != nil {
			return "", nil, err
		}
		return payload, []store.Option{
			store.WithExpiration(config.ExpireAfter),
			store.WithCost(int64(len(payload))),
		}, nil
	}

	s.payloadCache = cache.NewLoadable[string](
		loadFunction,
		cache.New[string](ristretto_store.NewRistretto(ristrettoCache)),
	)
	return s, nil
}

// Close releases the payload cache and the database, if any.
func (s *Store) Close() error {
	var errs []error
	if err := s.payloadCache.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nodes loads the nodes exported at source, an HTTP(S) URL or a local JSON
// file. Remote payloads are cached for the configured expiry.
func (s *Store) Nodes(ctx context.Context, source string) ([]*model.Node, error) {
	var data []byte
	if model.IsRemoteSource(source) {
		if err := model.ValidateSourceURL(source, s.config.AllowPrivateIPs); err != nil {
			return nil, model.CreateValidationError(err, source)
		}
		payload, err := s.payloadCache.Get(ctx, source)
		if err != nil {
			return nil, err
		}
		data = []byte(payload)
	} else {
		raw, err := os.ReadFile(source)
		if err != nil {
			return nil, model.NewFeedErrorWithCause(model.ErrorTypeNotFound, "failed to read content file", err).
				WithURL(source).
				WithOperation("load_source").
				WithComponent("content_source")
		}
		data = raw
	}
	return decodeNodes(data, source)
}

// CircuitBreakerOpen reports whether requests to source are currently refused.
func (s *Store) CircuitBreakerOpen(source string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cb, exists := s.circuitBreakers[source]
	return exists && cb.State() == gobreaker.StateOpen
}

// ChannelContent loads the records of a channel: its own source when set,
// otherwise the database. Parent restricts the result to one node's
// children and BaseURL makes relative links absolute.
func (s *Store) ChannelContent(ctx context.Context, ch config.ChannelConfig) ([]*model.Node, error) {
	var (
		nodes []*model.Node
		err   error
	)
	switch {
	case ch.Source != "":
		nodes, err = s.Nodes(ctx, ch.Source)
		if err == nil && ch.Parent != nil {
			nodes = childrenOf(nodes, *ch.Parent)
		}
	case s.db != nil && ch.Parent != nil:
		nodes, err = s.db.Children(ctx, *ch.Parent)
	case s.db != nil:
		nodes, err = s.db.All(ctx)
	default:
		err = model.NewFeedError(model.ErrorTypeConfiguration, fmt.Sprintf("channel %q has no content source", ch.Name)).
			WithOperation("channel_content").
			WithComponent("store")
	}
	if err != nil {
		return nil, err
	}

	if ch.BaseURL != "" {
		base, err := url.Parse(ch.BaseURL)
		if err != nil {
			return nil, model.CreateValidationError(fmt.Errorf("%w: %v", model.ErrInvalidURL, err), ch.BaseURL)
		}
		for _, n := range nodes {
			n.ResolveURL(base)
		}
	}
	return nodes, nil
}

// BuildFeed loads a channel's records and builds its feed.
func (s *Store) BuildFeed(ctx context.Context, ch config.ChannelConfig) (*rss.Feed, error) {
	nodes, err := s.ChannelContent(ctx, ch)
	if err != nil {
		return nil, err
	}

	cfg := rss.Config{
		Title:   ch.Title,
		Link:    ch.Link,
		Convert: ch.Convert(),
	}
	if ch.Parent != nil {
		cfg.Parent = NodeGroup(nodes)
	} else {
		cfg.Content = Contents(nodes)
	}

	f, err := rss.New(cfg)
	if err != nil {
		return nil, err
	}
	f.Generator = ch.Generator
	if f.Generator == "" {
		f.Generator = version.Generator()
	}
	f.Description = ch.Description
	f.Language = ch.Language

	model.DebugLogWithContext("feed built", "store", "build_feed", ch.Source, map[string]interface{}{
		"channel": ch.Name,
		"items":   f.Len(),
	})
	return f, nil
}

// NodeGroup is a resolved set of sibling nodes.
type NodeGroup []*model.Node

// Children implements rss.Parent.
func (g NodeGroup) Children() []rss.Content {
	return Contents(g)
}

// Contents converts nodes to rss.Content values.
func Contents(nodes []*model.Node) []rss.Content {
	content := make([]rss.Content, 0, len(nodes))
	for _, n := range nodes {
		content = append(content, n)
	}
	return content
}

func childrenOf(nodes []*model.Node, parentID int64) []*model.Node {
	children := make([]*model.Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ParentKey == parentID {
			children = append(children, n)
		}
	}
	return children
}

func decodeNodes(data []byte, source string) ([]*model.Node, error) {
	var nodes []*model.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, model.CreateParsingError(err, source)
	}
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) breaker(sourceURL string) *gobreaker.CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, exists := s.circuitBreakers[sourceURL]; exists {
		return cb
	}
	threshold := s.config.CircuitBreakerFailureThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("source-%s", sourceURL),
		MaxRequests: s.config.CircuitBreakerMaxRequests,
		Interval:    s.config.CircuitBreakerInterval,
		Timeout:     s.config.CircuitBreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			model.InfoLogWithContext("circuit breaker state changed", "circuit_breaker", "load_source", sourceURL,
				map[string]interface{}{"from": from.String(), "to": to.String()})
		},
	})
	s.circuitBreakers[sourceURL] = cb
	return cb
}

func (s *Store) fetchGuarded(ctx context.Context, sourceURL string) (string, error) {
	if !s.breakerEnabled {
		return s.fetch(ctx, sourceURL)
	}
	result, err := s.breaker(sourceURL).Execute(func() (interface{}, error) {
		return s.fetch(ctx, sourceURL)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", model.CreateCircuitBreakerError(sourceURL, err)
		}
		return "", err
	}
	payload, ok := result.(string)
	if !ok {
		return "", errors.New("unexpected result type from circuit breaker")
	}
	return payload, nil
}

func (s *Store) fetch(ctx context.Context, sourceURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return "", model.CreateValidationError(fmt.Errorf("%w: %v", model.ErrInvalidURL, err), sourceURL)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.config.UserAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		var feedErr *model.FeedError
		if errors.As(err, &feedErr) {
			return "", feedErr
		}
		return "", model.CreateNetworkError(err, sourceURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", model.CreateHTTPError(resp, sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return "", model.CreateNetworkError(err, sourceURL)
	}

	model.DebugLogWithContext("source fetched", "http_client", "load_source", sourceURL, map[string]interface{}{
		"status":   resp.StatusCode,
		"bytes":    len(body),
		"duration": time.Since(start).String(),
	})
	return string(body), nil
}
