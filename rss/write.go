package rss

import (
	"io"
	"net/http"

	"github.com/richardwooding/feed-rss/model"
)

// MIMEType is the content type announced when a feed is written.
const MIMEType = "application/rss+xml"

// ResponseSink is the host side of a feed response. The sink is told the
// content type, receives the document and is then ended.
type ResponseSink interface {
	io.Writer
	SetContentType(contentType string)
	End() error
}

// HTTPSink adapts an http.ResponseWriter to ResponseSink.
type HTTPSink struct {
	w http.ResponseWriter
}

// NewHTTPSink wraps w.
func NewHTTPSink(w http.ResponseWriter) *HTTPSink {
	return &HTTPSink{w: w}
}

// SetContentType implements ResponseSink.
func (s *HTTPSink) SetContentType(contentType string) {
	s.w.Header().Set("Content-Type", contentType)
}

// Write implements io.Writer.
func (s *HTTPSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// End flushes the response if the writer supports it.
func (s *HTTPSink) End() error {
	if flusher, ok := s.w.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}

// WriterSink adapts any io.Writer to ResponseSink. End closes the writer
// when it is an io.Closer.
type WriterSink struct {
	ContentType string
	w           io.Writer
}

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// SetContentType records the content type.
func (s *WriterSink) SetContentType(contentType string) {
	s.ContentType = contentType
}

// Write implements io.Writer.
func (s *WriterSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

// End implements ResponseSink.
func (s *WriterSink) End() error {
	if closer, ok := s.w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Write renders the feed and hands it to sink with the RSS content type,
// then ends the sink. Nothing is written when rendering fails.
func (f *Feed) Write(sink ResponseSink, format Format) error {
	data, err := f.Render(format)
	if err != nil {
		return err
	}

	sink.SetContentType(MIMEType)
	if _, err := sink.Write(data); err != nil {
		return model.NewFeedErrorWithCause(model.ErrorTypeWrite, "failed to write feed", err).
			WithOperation("write_feed").
			WithComponent("rss_feed")
	}
	if err := sink.End(); err != nil {
		return model.NewFeedErrorWithCause(model.ErrorTypeWrite, "failed to end response", err).
			WithOperation("write_feed").
			WithComponent("rss_feed")
	}

	model.DebugLogWithContext("feed written", "rss_feed", "write_feed", f.Link, map[string]interface{}{
		"items":  len(f.items),
		"bytes":  len(data),
		"format": format.String(),
	})
	return nil
}

// WriteContent builds a feed from content and writes it to sink in one go.
func WriteContent(sink ResponseSink, title, link string, content []Content, convert ConvertFunc, format Format) error {
	f, err := New(Config{
		Title:   title,
		Link:    link,
		Content: content,
		Convert: convert,
	})
	if err != nil {
		return err
	}
	return f.Write(sink, format)
}
