package model

import (
	"strings"
	"testing"
)

func TestGenerateChannelID(t *testing.T) {
	testCases := []struct {
		name     string
		source   string
		expected string
	}{
		{
			name:     "remote source with path",
			source:   "https://cms.example.com/api/news.json",
			expected: "cms.example.com-api-news.json",
		},
		{
			name:     "remote source without path",
			source:   "https://example.com",
			expected: "example.com",
		},
		{
			name:     "local file",
			source:   "./content/Blog Posts.json",
			expected: "blog-posts",
		},
		{
			name:     "sqlite database",
			source:   "/var/lib/cms/content.db",
			expected: "content",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := GenerateChannelID(tc.source); got != tc.expected {
				t.Errorf("GenerateChannelID(%q) = %q, want %q", tc.source, got, tc.expected)
			}
		})
	}
}

func TestGenerateChannelID_Long(t *testing.T) {
	source := "https://very-long-domain-name-example.com/very/long/path/with/many/segments/nodes.json"
	id := GenerateChannelID(source)

	if len(id) != 41 {
		t.Errorf("expected 41 characters, got %d (%q)", len(id), id)
	}
	if !strings.HasPrefix(id, "very-long-domain-name-example.co-") {
		t.Errorf("unexpected prefix in %q", id)
	}
	if id != GenerateChannelID(source) {
		t.Error("expected a stable ID for the same source")
	}
	if id == GenerateChannelID(source+"?page=2") {
		t.Error("expected different sources to get different IDs")
	}
}

func TestGenerateChannelID_Empty(t *testing.T) {
	id := GenerateChannelID("")
	if !strings.HasPrefix(id, "channel-") {
		t.Errorf("expected hash fallback, got %q", id)
	}
}
