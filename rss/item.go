// Package rss builds RSS 2.0 feeds from host content and serializes them to XML.
package rss

import (
	"encoding/xml"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// ContentNamespace is the namespace URI of the RSS Content Module.
const ContentNamespace = "http://purl.org/rss/1.0/modules/content/"

// FeedItem represents a single <item> of a feed.
type FeedItem struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pubDate"`
	GUID        string    `json:"guid"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
}

type cdata struct {
	Text string `xml:",cdata"`
}

type itemXML struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
	Description *cdata `xml:"description,omitempty"`
	Content     *cdata `xml:"content:encoded,omitempty"`
}

// MarshalXML renders the item as an <item> element. Description and content
// are written as CDATA and left out entirely when blank.
func (i FeedItem) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name = xml.Name{Local: "item"}
	out := itemXML{
		Title:   i.Title,
		Link:    i.Link,
		PubDate: formatDate(i.PubDate),
		GUID:    i.GUID,
	}
	if !isBlank(i.Description) {
		out.Description = &cdata{Text: xmlSafe(i.Description)}
	}
	if i.HasContent() {
		out.Content = &cdata{Text: xmlSafe(i.Content)}
	}
	return e.EncodeElement(out, start)
}

// HasContent reports whether the item carries a content:encoded body.
func (i FeedItem) HasContent() bool {
	return !isBlank(i.Content)
}

// formatDate converts t to UTC and formats it the RFC 1123 way, e.g.
// "Tue, 15 Nov 1994 12:45:26 GMT".
func formatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// xmlSafe replaces invalid UTF-8 and characters outside the XML Char
// production with U+FFFD. CDATA text is written unescaped, so this matches
// what the encoder does for escaped elements.
func xmlSafe(s string) string {
	clean := true
	for _, r := range s {
		if r == utf8.RuneError || !isXMLChar(r) {
			clean = false
			break
		}
	}
	if clean {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, size := utf8.DecodeRuneInString(s)
		if r == utf8.RuneError && size <= 1 || !isXMLChar(r) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
		s = s[size:]
	}
	return b.String()
}

func isXMLChar(r rune) bool {
	return r == '\t' || r == '\n' || r == '\r' ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}
