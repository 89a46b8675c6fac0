package rss

import (
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFeed() *Feed {
	f := NewFeed()
	f.Title = "T"
	f.Link = "http://x/"
	f.Add(&FeedItem{
		Title:   "A",
		Link:    "http://x/a",
		PubDate: day(2024, 1, 1),
		GUID:    "1",
	})
	return f
}

func TestFeed_RenderCompactExact(t *testing.T) {
	data, err := sampleFeed().Render(FormatCompact)
	require.NoError(t, err)

	assert.Equal(t,
		`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`+
			`<rss version="2.0"><channel>`+
			`<title>T</title><link>http://x/</link>`+
			`<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate>`+
			`<item><title>A</title><link>http://x/a</link>`+
			`<pubDate>Mon, 01 Jan 2024 00:00:00 GMT</pubDate><guid>1</guid></item>`+
			`</channel></rss>`,
		string(data))
}

func TestFeed_RenderIndented(t *testing.T) {
	data, err := sampleFeed().Render(FormatIndented)
	require.NoError(t, err)

	out := string(data)
	assert.True(t, strings.HasPrefix(out, Declaration+"\n<rss version=\"2.0\">\n  <channel>\n    <title>T</title>"))
	assert.Contains(t, out, "\n    <item>\n      <title>A</title>")
	assert.True(t, strings.HasSuffix(out, "  </channel>\n</rss>"))
}

func TestFeed_RenderEmpty(t *testing.T) {
	f := NewFeed()
	f.SetPubDate(day(2023, 6, 15))

	data, err := f.Render(FormatCompact)
	require.NoError(t, err)

	assert.Equal(t,
		Declaration+`<rss version="2.0"><channel><title></title><link></link>`+
			`<pubDate>Thu, 15 Jun 2023 00:00:00 GMT</pubDate></channel></rss>`,
		string(data))
}

func TestFeed_RenderContentNamespace(t *testing.T) {
	t.Run("declared once when an item has content", func(t *testing.T) {
		f := sampleFeed()
		f.Add(&FeedItem{Title: "B", PubDate: day(2024, 2, 1), Content: "<p>b</p>"})
		f.Add(&FeedItem{Title: "C", PubDate: day(2024, 3, 1), Content: "<p>c</p>"})

		data, err := f.Render(FormatCompact)
		require.NoError(t, err)

		out := string(data)
		assert.Equal(t, 1, strings.Count(out, `xmlns:content="http://purl.org/rss/1.0/modules/content/"`))
		assert.Equal(t, 2, strings.Count(out, "<content:encoded>"))
		assert.True(t, strings.HasPrefix(out, Declaration+`<rss version="2.0" xmlns:content=`))
	})

	t.Run("absent without content", func(t *testing.T) {
		f := sampleFeed()
		f.Add(&FeedItem{Title: "B", PubDate: day(2024, 2, 1), Description: "only a summary"})

		data, err := f.Render(FormatCompact)
		require.NoError(t, err)

		assert.NotContains(t, string(data), "xmlns:content")
		assert.Contains(t, string(data), "<description><![CDATA[only a summary]]></description>")
	})
}

func TestFeed_RenderSortsWithoutMutating(t *testing.T) {
	f := NewFeed()
	f.SetItems([]*FeedItem{
		{Title: "jan", PubDate: day(2024, 1, 1)},
		{Title: "mar", PubDate: day(2024, 3, 1)},
		{Title: "feb", PubDate: day(2024, 2, 1)},
	})

	data, err := f.Render(FormatCompact)
	require.NoError(t, err)

	out := string(data)
	assert.Less(t, strings.Index(out, "<title>mar</title>"), strings.Index(out, "<title>feb</title>"))
	assert.Less(t, strings.Index(out, "<title>feb</title>"), strings.Index(out, "<title>jan</title>"))
	assert.Equal(t, []string{"jan", "mar", "feb"}, titles(f.Items()))
	assert.Contains(t, out, "<pubDate>Fri, 01 Mar 2024 00:00:00 GMT</pubDate><item><title>mar</title>")
}

func TestFeed_RenderOptionalChannelFields(t *testing.T) {
	f := sampleFeed()
	f.Generator = "   "
	f.Description = "About x"
	f.Language = "en-us"

	data, err := f.Render(FormatCompact)
	require.NoError(t, err)

	out := string(data)
	assert.NotContains(t, out, "<generator>")
	assert.Contains(t, out, "</item><description>About x</description><language>en-us</language></channel>")
}

func TestFeed_RenderBlankVersionOmitted(t *testing.T) {
	f := sampleFeed()
	f.Version = ""

	data, err := f.Render(FormatCompact)
	require.NoError(t, err)

	assert.Contains(t, string(data), "<rss><channel>")
}

func TestFeed_RenderIsRepeatable(t *testing.T) {
	f := sampleFeed()

	first, err := f.Render(FormatIndented)
	require.NoError(t, err)
	second, err := f.Render(FormatIndented)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestFeed_RenderParsesAsRSS(t *testing.T) {
	f := NewFeed()
	f.Title = "Site news"
	f.Link = "https://example.com/"
	f.Add(&FeedItem{
		Title:       "Plain",
		Link:        "https://example.com/plain",
		PubDate:     day(2024, 1, 1),
		GUID:        "1",
		Description: "<em>summary</em>",
	})
	f.Add(&FeedItem{
		Title:   "Rich",
		Link:    "https://example.com/rich",
		PubDate: day(2024, 3, 1),
		GUID:    "2",
		Content: "<p>Body & <b>more</b></p>",
	})

	for _, format := range []Format{FormatIndented, FormatCompact} {
		t.Run(format.String(), func(t *testing.T) {
			data, err := f.Render(format)
			require.NoError(t, err)

			parsed, err := gofeed.NewParser().ParseString(string(data))
			require.NoError(t, err)

			assert.Equal(t, "rss", parsed.FeedType)
			assert.Equal(t, "2.0", parsed.FeedVersion)
			assert.Equal(t, "Site news", parsed.Title)
			require.Len(t, parsed.Items, 2)

			rich := parsed.Items[0]
			assert.Equal(t, "Rich", rich.Title)
			assert.Equal(t, "2", rich.GUID)
			assert.Equal(t, "<p>Body & <b>more</b></p>", rich.Content)
			require.NotNil(t, rich.PublishedParsed)
			assert.True(t, rich.PublishedParsed.Equal(day(2024, 3, 1)))

			plain := parsed.Items[1]
			assert.Equal(t, "<em>summary</em>", plain.Description)
			assert.Empty(t, plain.Content)

			require.NotNil(t, parsed.PublishedParsed)
			assert.WithinDuration(t, day(2024, 3, 1), *parsed.PublishedParsed, time.Second)
		})
	}
}
