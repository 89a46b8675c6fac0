package rss

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

type feedScenario struct {
	feed *Feed
}

func (s *feedScenario) anEmptyFeed(title, link string) error {
	s.feed = NewFeed()
	s.feed.Title = title
	s.feed.Link = link
	return nil
}

func parseDay(value string) (time.Time, error) {
	return time.Parse(time.DateOnly, value)
}

func (s *feedScenario) addItem(title, date string) error {
	return s.addItemWithContent(title, date, "")
}

func (s *feedScenario) addItemWithContent(title, date, content string) error {
	published, err := parseDay(date)
	if err != nil {
		return err
	}
	s.feed.Add(&FeedItem{
		Title:   title,
		Link:    s.feed.Link + strings.ToLower(title),
		PubDate: published,
		GUID:    strings.ToLower(title),
		Content: content,
	})
	return nil
}

func (s *feedScenario) setPubDate(date string) error {
	published, err := parseDay(date)
	if err != nil {
		return err
	}
	s.feed.SetPubDate(published)
	return nil
}

func (s *feedScenario) itemsAreOrdered(list string) error {
	want := strings.Split(list, ", ")
	doc := s.feed.ToDocument()
	if len(doc.Channel.Items) != len(want) {
		return fmt.Errorf("expected %d items, got %d", len(want), len(doc.Channel.Items))
	}
	for i, item := range doc.Channel.Items {
		if item.Title != want[i] {
			return fmt.Errorf("item %d: expected %q, got %q", i, want[i], item.Title)
		}
	}
	return nil
}

func (s *feedScenario) channelPubDateIs(expected string) error {
	if got := s.feed.ToDocument().Channel.PubDate; got != expected {
		return fmt.Errorf("expected pubDate %q, got %q", expected, got)
	}
	return nil
}

func (s *feedScenario) channelPubDateIsNow() error {
	got, err := time.Parse(http.TimeFormat, s.feed.ToDocument().Channel.PubDate)
	if err != nil {
		return err
	}
	if diff := time.Since(got); diff < -time.Minute || diff > time.Minute {
		return fmt.Errorf("pubDate %s is %s away from now", got, diff)
	}
	return nil
}

func (s *feedScenario) render() (string, error) {
	data, err := s.feed.Render(FormatCompact)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (s *feedScenario) namespaceDeclared(count int) error {
	out, err := s.render()
	if err != nil {
		return err
	}
	if got := strings.Count(out, "xmlns:content="); got != count {
		return fmt.Errorf("expected the namespace %d times, found %d", count, got)
	}
	return nil
}

func (s *feedScenario) outputContainsElements(count int, name string) error {
	out, err := s.render()
	if err != nil {
		return err
	}
	if got := strings.Count(out, "<"+name+">"); got != count {
		return fmt.Errorf("expected %d <%s> elements, found %d", count, name, got)
	}
	return nil
}

func (s *feedScenario) noItems() error {
	out, err := s.render()
	if err != nil {
		return err
	}
	if strings.Contains(out, "<item>") {
		return errors.New("expected no <item> elements")
	}
	return nil
}

func InitializeFeedScenario(ctx *godog.ScenarioContext) {
	s := &feedScenario{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		s.feed = nil
		return ctx, nil
	})

	ctx.Step(`^an empty feed titled "([^"]*)" linking to "([^"]*)"$`, s.anEmptyFeed)
	ctx.Step(`^I add an item "([^"]*)" published on "([^"]*)"$`, s.addItem)
	ctx.Step(`^I add an item "([^"]*)" published on "([^"]*)" with content "([^"]*)"$`, s.addItemWithContent)
	ctx.Step(`^the feed publication date is set to "([^"]*)"$`, s.setPubDate)
	ctx.Step(`^the items are ordered "([^"]*)"$`, s.itemsAreOrdered)
	ctx.Step(`^the channel pubDate is "([^"]*)"$`, s.channelPubDateIs)
	ctx.Step(`^the channel pubDate is within a minute of now$`, s.channelPubDateIsNow)
	ctx.Step(`^the content namespace is declared (\d+) times?$`, s.namespaceDeclared)
	ctx.Step(`^the output contains (\d+) "([^"]*)" elements$`, s.outputContainsElements)
	ctx.Step(`^the document has no items$`, s.noItems)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		Name:                "rss",
		ScenarioInitializer: InitializeFeedScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
