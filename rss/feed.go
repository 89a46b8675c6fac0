package rss

import (
	"bytes"
	"slices"
	"time"

	"github.com/richardwooding/feed-rss/model"
)

// DefaultVersion is the RSS version written on the root element.
const DefaultVersion = "2.0"

// Config holds the optional inputs for building a Feed with New.
type Config struct {
	Title   string
	Link    string
	Parent  Parent
	Content []Content
	// Convert maps each record to an item. DefaultConvert is used when nil.
	Convert ConvertFunc
}

// Feed is an RSS channel together with its items. Items added through Add
// and AddRange are kept in descending order by publication date.
//
// A Feed is not safe for concurrent mutation.
type Feed struct {
	Version     string
	Title       string
	Link        string
	Generator   string
	Description string
	Language    string

	pubDate *time.Time
	items   []*FeedItem
	sorted  bool
	now     func() time.Time
}

// NewFeed returns an empty RSS 2.0 feed.
func NewFeed() *Feed {
	return &Feed{
		Version: DefaultVersion,
		items:   []*FeedItem{},
		sorted:  true,
		now:     time.Now,
	}
}

// New creates a feed with the given channel title and link, seeded with the
// children of config.Parent followed by config.Content. An error returned by
// the conversion function is passed back unchanged.
func New(config Config) (*Feed, error) {
	f := NewFeed()
	f.Title = config.Title
	f.Link = config.Link

	var content []Content
	if config.Parent != nil {
		content = append(content, config.Parent.Children()...)
	}
	content = append(content, config.Content...)

	if len(content) > 0 {
		if err := f.AddRange(content, config.Convert); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// PubDate returns the explicit publication date if one was set, otherwise
// the date of the most recent item, otherwise the current time.
func (f *Feed) PubDate() time.Time {
	if f.pubDate != nil {
		return *f.pubDate
	}
	if len(f.items) == 0 {
		return f.clock()
	}
	if f.sorted {
		return f.items[0].PubDate
	}
	// items replaced through SetItems may be in any order
	latest := f.items[0].PubDate
	for _, item := range f.items[1:] {
		if item.PubDate.After(latest) {
			latest = item.PubDate
		}
	}
	return latest
}

// SetPubDate overrides the computed publication date. The zero time removes
// the override.
func (f *Feed) SetPubDate(t time.Time) {
	if t.IsZero() {
		f.pubDate = nil
		return
	}
	f.pubDate = &t
}

// Items returns the items of the feed in their stored order.
func (f *Feed) Items() []*FeedItem {
	return slices.Clone(f.items)
}

// SetItems replaces the items of the feed as given. The order is not checked.
func (f *Feed) SetItems(items []*FeedItem) {
	f.items = slices.DeleteFunc(slices.Clone(items), func(item *FeedItem) bool {
		return item == nil
	})
	if f.items == nil {
		f.items = []*FeedItem{}
	}
	f.sorted = false
}

// Len returns the number of items.
func (f *Feed) Len() int {
	return len(f.items)
}

// Add appends item, sorting only when it is newer than the current last item.
func (f *Feed) Add(item *FeedItem) {
	if item == nil {
		return
	}
	mustSort := !f.sorted
	if n := len(f.items); n > 0 && item.PubDate.After(f.items[n-1].PubDate) {
		mustSort = true
	}
	f.items = append(f.items, item)
	if mustSort {
		f.sortItems()
	}
}

// AddRange converts every record with convert and adds the results. When
// convert is nil DefaultConvert is used. The first conversion error is
// returned as is and leaves the feed unchanged. A nil item without an error
// is skipped.
func (f *Feed) AddRange(content []Content, convert ConvertFunc) error {
	if convert == nil {
		convert = DefaultConvert
	}
	converted := make([]*FeedItem, 0, len(content))
	for _, c := range content {
		item, err := convert(c)
		if err != nil {
			return err
		}
		if item != nil {
			converted = append(converted, item)
		}
	}
	f.items = append(f.items, converted...)
	f.sortItems()
	return nil
}

// HasContent reports whether any item carries a content:encoded body.
func (f *Feed) HasContent() bool {
	return slices.ContainsFunc(f.items, func(item *FeedItem) bool {
		return item.HasContent()
	})
}

// ToDocument renders the feed. Items are emitted newest first whatever their
// stored order; the feed itself is not modified.
func (f *Feed) ToDocument() *Document {
	items := make([]FeedItem, 0, len(f.items))
	for _, item := range f.items {
		items = append(items, *item)
	}
	slices.SortStableFunc(items, byPubDateDesc)

	doc := &Document{
		Channel: Channel{
			Title:       f.Title,
			Link:        f.Link,
			PubDate:     formatDate(f.PubDate()),
			Items:       items,
			Generator:   nonBlank(f.Generator),
			Description: nonBlank(f.Description),
			Language:    nonBlank(f.Language),
		},
	}
	if !isBlank(f.Version) {
		doc.Version = f.Version
	}
	if f.HasContent() {
		doc.ContentNamespace = ContentNamespace
	}
	return doc
}

// Render serializes the feed with the given format.
func (f *Feed) Render(format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.ToDocument().Encode(&buf, format); err != nil {
		return nil, model.NewFeedErrorWithCause(model.ErrorTypeRender, "failed to render feed", err).
			WithOperation("render_feed").
			WithComponent("rss_feed")
	}
	return buf.Bytes(), nil
}

func (f *Feed) sortItems() {
	slices.SortStableFunc(f.items, func(a, b *FeedItem) int {
		return byPubDateDesc(*a, *b)
	})
	f.sorted = true
}

func (f *Feed) clock() time.Time {
	if f.now == nil {
		return time.Now()
	}
	return f.now()
}

func byPubDateDesc(a, b FeedItem) int {
	return b.PubDate.Compare(a.PubDate)
}

func nonBlank(s string) string {
	if isBlank(s) {
		return ""
	}
	return s
}
