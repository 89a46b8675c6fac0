package rss

import (
	"errors"
)

// ErrInvalidFormat is returned by ParseFormat for an unknown format name.
var ErrInvalidFormat = errors.New("invalid format")

// Format controls how a document is laid out when it is serialized.
type Format uint8

const (
	// FormatIndented writes one element per line with two-space indentation.
	FormatIndented Format = iota
	// FormatCompact disables formatting: no line breaks and no indentation.
	FormatCompact
)

// ParseFormat converts a string to a Format. An empty string selects the default.
func ParseFormat(format string) (Format, error) {
	switch format {
	case "", "indented":
		return FormatIndented, nil
	case "compact":
		return FormatCompact, nil
	default:
		return FormatIndented, ErrInvalidFormat
	}
}

// String returns the string representation of a Format
func (f Format) String() string {
	switch f {
	case FormatIndented:
		return "indented"
	case FormatCompact:
		return "compact"
	default:
		return "undefined"
	}
}
