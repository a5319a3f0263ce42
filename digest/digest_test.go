package digest_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-digest/config"
	"policy-digest/digest"
	"policy-digest/feeder"
	"policy-digest/sheets"
	"policy-digest/wordpress"
)

type fakeFeeder struct {
	items map[string][]feeder.FeedItem
	errs  map[string]error
}

func (f *fakeFeeder) FetchRecent(ctx context.Context, rssURL string, window time.Duration) ([]feeder.FeedItem, error) {
	if err := f.errs[rssURL]; err != nil {
		return nil, err
	}
	return f.items[rssURL], nil
}

type fakeFetcher struct {
	texts map[string]string
	calls []string
}

func (f *fakeFetcher) FullText(ctx context.Context, link string) (string, error) {
	f.calls = append(f.calls, link)
	if text, ok := f.texts[link]; ok {
		return text, nil
	}
	return "", errors.New("fetch failed")
}

type fakeSummarizer struct {
	fn    func(text string) (string, error)
	calls []string
}

func (f *fakeSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	f.calls = append(f.calls, text)
	if f.fn != nil {
		return f.fn(text)
	}
	return "A concise professional summary of the article.", nil
}

type fakeSheet struct {
	rows []sheets.LogRow
	err  error
}

func (f *fakeSheet) Append(ctx context.Context, row sheets.LogRow) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, row)
	return nil
}

type fakePublisher struct {
	posts []wordpress.Post
	err   error
}

func (f *fakePublisher) PublishPost(ctx context.Context, post wordpress.Post) error {
	f.posts = append(f.posts, post)
	return f.err
}

func testConfig(categories []config.Category) config.AppConfig {
	return config.AppConfig{
		WindowDays: 1,
		Digest: config.DigestConfig{
			SkipLinkPatterns: []string{
				"flsenate.gov/Media/VideoPlayer",
				"thefloridachannel.org/videos",
				"govinfo.gov/app/details",
			},
			MaxArticleChars: 8000,
			MaxTags:         5,
		},
		WordPress:  config.WordPressConfig{CategoryName: "News Bot", DefaultCategoryID: 11},
		Categories: categories,
	}
}

func item(title, link string) feeder.FeedItem {
	now := time.Now()
	return feeder.FeedItem{
		Title:        title,
		Link:         link,
		Published:    now.Format("2006-01-02"),
		PublishedISO: now.Format(time.RFC3339),
		PublishedAt:  now,
		Summary:      "feed summary",
	}
}

// Scenario A: one category, one feed serving two items, only one of them
// inside the window. The published digest carries exactly one article block.
func TestRunOnlyInWindowItemIsProcessed(t *testing.T) {
	recent := time.Now().Add(-2 * time.Hour)
	stale := time.Now().Add(-60 * time.Hour)
	feedXML := fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>f</title>
<item><title>Fresh</title><link>http://example.com/fresh</link><pubDate>%s</pubDate></item>
<item><title>Stale</title><link>http://example.com/stale</link><pubDate>%s</pubDate></item>
</channel></rss>`, recent.Format(time.RFC1123Z), stale.Format(time.RFC1123Z))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedXML)
	}))
	defer srv.Close()

	fetch := &fakeFetcher{texts: map[string]string{
		"http://example.com/fresh": "full article text",
		"http://example.com/stale": "should never be fetched",
	}}
	sum := &fakeSummarizer{}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Housing Policy", Feeds: []string{srv.URL}}})
	bot := digest.New(cfg, feeder.New(), fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))

	require.Len(t, pub.posts, 1)
	content := pub.posts[0].Content
	assert.Equal(t, 1, strings.Count(content, "<article"), "digest should hold exactly one article block")
	assert.Contains(t, content, "http://example.com/fresh")
	assert.NotContains(t, content, "http://example.com/stale")
	assert.Equal(t, []string{"http://example.com/fresh"}, fetch.calls)
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Fresh", sheet.rows[0].Title)
}

// Scenario B: skip-listed links are dropped before any fetch or summarize
// call and leave no trace in HTML, tags, or the sheet.
func TestRunSkipsMediaOnlyLinks(t *testing.T) {
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{
		"feed-1": {item("Committee video", "https://thefloridachannel.org/videos/committee-hearing/")},
	}}
	fetch := &fakeFetcher{}
	sum := &fakeSummarizer{}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Florida Law", Feeds: []string{"feed-1"}}})
	bot := digest.New(cfg, feeds, fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))

	assert.Empty(t, fetch.calls, "fetcher must not run for skip-listed links")
	assert.Empty(t, sum.calls, "summarizer must not run for skip-listed links")
	assert.Empty(t, sheet.rows)
	require.Len(t, pub.posts, 1)
	assert.NotContains(t, pub.posts[0].Content, "thefloridachannel.org")
	assert.Empty(t, pub.posts[0].Tags)
}

// Scenario C: a summarizer failure skips the article (no sheet row) and the
// run proceeds to the next item without aborting.
func TestRunSummaryErrorSkipsItemAndContinues(t *testing.T) {
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{
		"feed-1": {
			item("Broken", "http://example.com/broken"),
			item("Working", "http://example.com/working"),
		},
	}}
	fetch := &fakeFetcher{texts: map[string]string{
		"http://example.com/broken":  "text a",
		"http://example.com/working": "text b",
	}}
	sum := &fakeSummarizer{fn: func(text string) (string, error) {
		if text == "text a" {
			return "", errors.New("service unavailable")
		}
		return "Summary of the working article.", nil
	}}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Federal Laws", Feeds: []string{"feed-1"}}})
	bot := digest.New(cfg, feeds, fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))

	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Working", sheet.rows[0].Title)
	require.Len(t, pub.posts, 1)
	assert.Equal(t, 1, strings.Count(pub.posts[0].Content, "<article"))
}

// A denylist-prefixed summary is an idempotent skip: no HTML fragment, no
// sheet row, no tag contribution.
func TestRunRefusalSummarySkipsItem(t *testing.T) {
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{
		"feed-1": {item("Refused", "http://example.com/refused")},
	}}
	fetch := &fakeFetcher{texts: map[string]string{"http://example.com/refused": "text"}}
	sum := &fakeSummarizer{fn: func(string) (string, error) {
		return "Sorry, I am unable to summarize this article.", nil
	}}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Executive Orders", Feeds: []string{"feed-1"}}})
	bot := digest.New(cfg, feeds, fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))

	assert.Empty(t, sheet.rows)
	require.Len(t, pub.posts, 1)
	assert.Equal(t, 0, strings.Count(pub.posts[0].Content, "<article"))
	assert.Empty(t, pub.posts[0].Tags)
}

// A failed article fetch falls back to the feed-provided fields rather than
// skipping the item.
func TestRunFetchFailureFallsBackToFeedFields(t *testing.T) {
	it := item("Fallback story", "http://example.com/unfetchable")
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{"feed-1": {it}}}
	fetch := &fakeFetcher{} // every fetch errors
	var summarized string
	sum := &fakeSummarizer{fn: func(text string) (string, error) {
		summarized = text
		return "Summary built from feed fields.", nil
	}}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Education Policy", Feeds: []string{"feed-1"}}})
	bot := digest.New(cfg, feeds, fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))

	assert.Contains(t, summarized, "Title: Fallback story")
	assert.Contains(t, summarized, "Link: http://example.com/unfetchable")
	assert.Contains(t, summarized, "Summary: feed summary")
	require.Len(t, sheet.rows, 1)
}

// Feed read failures are contained: the run continues with other feeds.
func TestRunFeedErrorDoesNotAbort(t *testing.T) {
	feeds := &fakeFeeder{
		items: map[string][]feeder.FeedItem{
			"feed-good": {item("Good", "http://example.com/good")},
		},
		errs: map[string]error{"feed-bad": errors.New("connection refused")},
	}
	fetch := &fakeFetcher{texts: map[string]string{"http://example.com/good": "text"}}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Infrastructure", Feeds: []string{"feed-bad", "feed-good"}}})
	bot := digest.New(cfg, feeds, fetch, &fakeSummarizer{}, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))
	require.Len(t, sheet.rows, 1)
	assert.Equal(t, "Good", sheet.rows[0].Title)
}

// Sheet failures never block the digest or the publish.
func TestRunSheetFailureDoesNotBlockPublish(t *testing.T) {
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{
		"feed-1": {item("Logged nowhere", "http://example.com/a")},
	}}
	fetch := &fakeFetcher{texts: map[string]string{"http://example.com/a": "text"}}
	sheet := &fakeSheet{err: errors.New("spreadsheet not found")}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{{Name: "Real Estate", Feeds: []string{"feed-1"}}})
	bot := digest.New(cfg, feeds, fetch, &fakeSummarizer{}, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))
	require.Len(t, pub.posts, 1)
	assert.Equal(t, 1, strings.Count(pub.posts[0].Content, "<article"))
}

// Publish failure is surfaced as the run's return value, with no retry.
func TestRunReportsPublishFailure(t *testing.T) {
	feeds := &fakeFeeder{}
	pub := &fakePublisher{err: errors.New("403 forbidden")}

	cfg := testConfig([]config.Category{{Name: "Empty", Feeds: nil}})
	bot := digest.New(cfg, feeds, &fakeFetcher{}, &fakeSummarizer{}, &fakeSheet{}, pub)

	err := bot.Run(context.Background())
	assert.Error(t, err)
	assert.Len(t, pub.posts, 1, "exactly one publish attempt")
}

// The post aggregates the union of all article tags across categories and
// the digest document skeleton.
func TestRunAggregatesTagsAndHeadings(t *testing.T) {
	feeds := &fakeFeeder{items: map[string][]feeder.FeedItem{
		"feed-1": {item("Zoning reform zoning", "http://example.com/1")},
		"feed-2": {item("Transit funding transit", "http://example.com/2")},
	}}
	fetch := &fakeFetcher{texts: map[string]string{
		"http://example.com/1": "t1",
		"http://example.com/2": "t2",
	}}
	sum := &fakeSummarizer{fn: func(string) (string, error) {
		return "Officials approved statewide zoning and transit changes.", nil
	}}
	sheet := &fakeSheet{}
	pub := &fakePublisher{}

	cfg := testConfig([]config.Category{
		{Name: "Urban Planning", Feeds: []string{"feed-1"}},
		{Name: "Transportation", Feeds: []string{"feed-2"}},
	})
	bot := digest.New(cfg, feeds, fetch, sum, sheet, pub)

	require.NoError(t, bot.Run(context.Background()))
	require.Len(t, pub.posts, 1)

	post := pub.posts[0]
	assert.True(t, strings.HasPrefix(post.Content, "<h2>TLDR: Daily Summary</h2>"))
	assert.Contains(t, post.Content, "<h4>Urban Planning Summary</h4>")
	assert.Contains(t, post.Content, "<h4>Transportation Summary</h4>")
	assert.Contains(t, post.Title, time.Now().Format("01/02"))
	assert.Equal(t, "News Bot", post.CategoryName)

	// union, no duplicates
	seen := map[string]int{}
	for _, tag := range post.Tags {
		seen[tag]++
	}
	for tag, n := range seen {
		assert.Equal(t, 1, n, "tag %q duplicated", tag)
	}
	assert.Contains(t, post.Tags, "zoning")
	assert.Contains(t, post.Tags, "transit")

	// sheet rows round-trip their tags
	require.Len(t, sheet.rows, 2)
	for _, row := range sheet.rows {
		joined := row.Values()[5]
		if joined != "" {
			assert.Equal(t, row.Tags, strings.Split(joined, ", "))
		}
	}
}
