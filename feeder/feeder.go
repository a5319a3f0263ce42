package feeder

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/mmcdole/gofeed"

	"policy-digest/internal/logger"
)

// FeedItem is one candidate article taken from a syndication feed.
type FeedItem struct {
	Title        string
	Link         string
	Published    string // YYYY-MM-DD
	PublishedISO string // RFC3339 instant
	PublishedAt  time.Time
	Summary      string // feed-provided, may be empty
}

const FEEDER_TIMEOUT = 30 * time.Second

// feedUserAgent is a browser-like User-Agent. Some feed hosts (CDN or
// security proxies) block the default Go client UA.
const feedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

// Reader fetches and parses syndication feeds.
type Reader struct {
	client *http.Client
	now    func() time.Time
}

func New() *Reader {
	return &Reader{
		client: &http.Client{
			Timeout: FEEDER_TIMEOUT,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Keep the browser UA across redirects; Go resets headers.
				req.Header.Set("User-Agent", feedUserAgent)
				return nil
			},
		},
		now: time.Now,
	}
}

// FetchRecent fetches the feed at rssURL and returns its entries published
// within the window, preserving feed order. Entries whose publish date
// cannot be derived are skipped individually.
func (r *Reader) FetchRecent(ctx context.Context, rssURL string, window time.Duration) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rssURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodySample, _ := io.ReadAll(io.LimitReader(resp.Body, 500))
		return nil, fmt.Errorf("failed to fetch feed: status code %d, url: %s, body: %s", resp.StatusCode, rssURL, string(bodySample))
	}

	cleanedReader, err := cleanControlCharacters(resp.Body)
	if err != nil {
		return nil, err
	}

	fp := gofeed.NewParser()
	feed, err := fp.Parse(cleanedReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	cutoff := r.now().Add(-window)

	var items []FeedItem
	for _, item := range feed.Items {
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.IsZero() {
			logger.Log.Warnf("skipping feed entry without parseable date: %s (%s)", item.Title, rssURL)
			continue
		}
		if published.Before(cutoff) {
			continue
		}

		items = append(items, FeedItem{
			Title:        item.Title,
			Link:         item.Link,
			Published:    published.Format("2006-01-02"),
			PublishedISO: published.Format(time.RFC3339),
			PublishedAt:  published,
			Summary:      item.Description,
		})
	}

	return items, nil
}

// Control characters that XML forbids (0x00-0x1F except tab, LF, CR).
// Some government feeds ship them raw and break the parser.
var invalidControlCharRegex = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)

func cleanControlCharacters(r io.Reader) (io.Reader, error) {
	bodyBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read body for cleaning: %w", err)
	}

	cleanedBytes := invalidControlCharRegex.ReplaceAll(bodyBytes, []byte(""))

	return bytes.NewReader(cleanedBytes), nil
}
