package rss

import (
	"encoding/xml"
	"io"
)

// Declaration is written ahead of every serialized document.
const Declaration = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`

// Document is a rendered RSS document. It holds no reference to the Feed it
// was built from.
type Document struct {
	XMLName          xml.Name `xml:"rss"`
	Version          string   `xml:"version,attr,omitempty"`
	ContentNamespace string   `xml:"xmlns:content,attr,omitempty"`
	Channel          Channel  `xml:"channel"`
}

// Channel is the <channel> element of a Document. Element order follows
// field order.
type Channel struct {
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	PubDate     string     `xml:"pubDate"`
	Items       []FeedItem `xml:"item"`
	Generator   string     `xml:"generator,omitempty"`
	Description string     `xml:"description,omitempty"`
	Language    string     `xml:"language,omitempty"`
}

// Encode writes the XML declaration followed by the document to w.
func (d *Document) Encode(w io.Writer, format Format) error {
	header := Declaration
	if format != FormatCompact {
		header += "\n"
	}
	if _, err := io.WriteString(w, header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	if format != FormatCompact {
		enc.Indent("", "  ")
	}
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}
