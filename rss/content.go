package rss

import (
	"strconv"
	"time"
)

// Content is a single record supplied by the host content system.
type Content interface {
	Name() string
	ID() int64
	CreateDate() time.Time
	// URLWithDomain returns the fully qualified URL of the record.
	URLWithDomain() string
}

// Parent is a host record whose children have already been resolved.
type Parent interface {
	Children() []Content
}

// ConvertFunc turns a content record into a feed item.
type ConvertFunc func(Content) (*FeedItem, error)

// DefaultConvert maps name, id, creation time and absolute URL of c onto a
// new item.
func DefaultConvert(c Content) (*FeedItem, error) {
	return &FeedItem{
		Title:   c.Name(),
		GUID:    strconv.FormatInt(c.ID(), 10),
		PubDate: c.CreateDate(),
		Link:    c.URLWithDomain(),
	}, nil
}

// RichContent is content that also carries a summary and an HTML body.
type RichContent interface {
	Content
	Summary() string
	Body() string
}

// EnrichedConvert behaves like DefaultConvert and additionally fills
// Description and Content when c implements RichContent.
func EnrichedConvert(c Content) (*FeedItem, error) {
	item, err := DefaultConvert(c)
	if err != nil {
		return nil, err
	}
	if rich, ok := c.(RichContent); ok {
		item.Description = rich.Summary()
		item.Content = rich.Body()
	}
	return item, nil
}
