// Package digest drives the whole pipeline: for every configured category
// and feed it reads recent entries, fetches and summarizes each article,
// accumulates the HTML digest and tag set, logs each article to the sheet,
// and publishes one combined post per run.
package digest

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"

	"policy-digest/config"
	"policy-digest/feeder"
	"policy-digest/internal/logger"
	"policy-digest/sheets"
	"policy-digest/summarizer"
	"policy-digest/tagger"
	"policy-digest/wordpress"
)

// Feeder yields recent feed items for one feed URL.
type Feeder interface {
	FetchRecent(ctx context.Context, rssURL string, window time.Duration) ([]feeder.FeedItem, error)
}

// ArticleFetcher retrieves the plain-text body of an article link.
type ArticleFetcher interface {
	FullText(ctx context.Context, link string) (string, error)
}

// Summarizer produces a short professional summary of article text.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// SheetLogger appends one row per processed article to the external log.
type SheetLogger interface {
	Append(ctx context.Context, row sheets.LogRow) error
}

// Publisher creates the published digest post in the CMS.
type Publisher interface {
	PublishPost(ctx context.Context, post wordpress.Post) error
}

// Bot owns the run: the category table is fixed at construction and all
// mutable run state (category HTML, the tag union) lives inside Run.
type Bot struct {
	categories       []config.Category
	window           time.Duration
	skipLinkPatterns []string
	maxArticleChars  int
	maxTags          int
	postCategory     string

	feeds     Feeder
	articles  ArticleFetcher
	summaries Summarizer
	sheet     SheetLogger
	publisher Publisher

	now func() time.Time
}

func New(cfg config.AppConfig, feeds Feeder, articles ArticleFetcher, summaries Summarizer, sheet SheetLogger, publisher Publisher) *Bot {
	return &Bot{
		categories:       cfg.Categories,
		window:           time.Duration(cfg.WindowDays) * 24 * time.Hour,
		skipLinkPatterns: cfg.Digest.SkipLinkPatterns,
		maxArticleChars:  cfg.Digest.MaxArticleChars,
		maxTags:          cfg.Digest.MaxTags,
		postCategory:     cfg.WordPress.CategoryName,
		feeds:            feeds,
		articles:         articles,
		summaries:        summaries,
		sheet:            sheet,
		publisher:        publisher,
		now:              time.Now,
	}
}

// Run executes one full pass over every category and feed, then publishes
// the combined digest. Per-item and per-feed failures are absorbed; only
// the final publish outcome is reported.
func (b *Bot) Run(ctx context.Context) error {
	runID := uuid.NewString()
	today := b.now().Format("01/02")

	var fullHTML strings.Builder
	fullHTML.WriteString("<h2>TLDR: Daily Summary</h2>")

	var allTags []string
	seenTags := make(map[string]struct{})

	articleCount := 0
	for _, category := range b.categories {
		var categoryHTML strings.Builder
		fmt.Fprintf(&categoryHTML, "<h3>%s – %s</h3><hr>", category.Name, today)

		for _, feedURL := range category.Feeds {
			items, err := b.feeds.FetchRecent(ctx, feedURL, b.window)
			if err != nil {
				logger.WarnWithFields("failed to read feed", logger.Fields{
					"run_id":   runID,
					"category": category.Name,
					"feed":     feedURL,
					"error":    err.Error(),
				})
				continue
			}

			for _, item := range items {
				block, summary, tags := b.processArticle(ctx, item)
				if block == "" {
					continue
				}

				categoryHTML.WriteString(block)
				articleCount++
				for _, tag := range tags {
					if _, seen := seenTags[tag]; seen {
						continue
					}
					seenTags[tag] = struct{}{}
					allTags = append(allTags, tag)
				}

				row := sheets.LogRow{
					Date:         item.Published,
					Category:     category.Name,
					Title:        item.Title,
					Link:         item.Link,
					Summary:      summary,
					Tags:         tags,
					PublishedISO: item.PublishedISO,
				}
				if err := b.sheet.Append(ctx, row); err != nil {
					// Logging failures never block the digest.
					logger.WarnWithFields("failed to log article to sheet", logger.Fields{
						"run_id": runID,
						"link":   item.Link,
						"error":  err.Error(),
					})
				}
			}
		}

		fmt.Fprintf(&fullHTML, "<h4>%s Summary</h4>%s", category.Name, categoryHTML.String())
	}

	post := wordpress.Post{
		Title:        fmt.Sprintf("TLDR: Daily Summary – %s", today),
		Content:      fullHTML.String(),
		CategoryName: b.postCategory,
		Tags:         allTags,
	}
	if err := b.publisher.PublishPost(ctx, post); err != nil {
		logger.WarnWithFields("failed to publish digest", logger.Fields{
			"run_id": runID,
			"error":  err.Error(),
		})
		return err
	}

	logger.InfoWithFields("digest published", logger.Fields{
		"run_id":   runID,
		"articles": articleCount,
		"tags":     len(allTags),
	})
	return nil
}

// processArticle turns one feed item into an HTML fragment, its summary and
// its tags. An empty fragment means the item was skipped and must leave no
// trace in the digest, the tag set, or the sheet.
func (b *Bot) processArticle(ctx context.Context, item feeder.FeedItem) (string, string, []string) {
	for _, pattern := range b.skipLinkPatterns {
		if pattern != "" && strings.Contains(item.Link, pattern) {
			logger.Log.Infof("skipping media or metadata-only link: %s", item.Link)
			return "", "", nil
		}
	}

	fullText, err := b.articles.FullText(ctx, item.Link)
	if err != nil || strings.TrimSpace(fullText) == "" {
		// Best effort: summarize what the feed itself provided.
		fullText = fmt.Sprintf("Title: %s\nLink: %s\nSummary: %s", item.Title, item.Link, item.Summary)
	}
	fullText = truncate(fullText, b.maxArticleChars)

	summary, err := b.summaries.Summarize(ctx, fullText)
	if err != nil {
		logger.Log.Warnf("summary failed for %q: %v", item.Title, err)
		return "", "", nil
	}
	if summarizer.LooksLikeRefusal(summary) {
		logger.Log.Warnf("model declined to summarize %q, skipping", item.Title)
		return "", "", nil
	}

	tags := tagger.ExtractTags(item.Title, summary, b.maxTags)

	block := fmt.Sprintf(
		`<article class="news-article"><h4 class="news-title"><a href="%s" target="_blank">%s</a></h4><time class="news-date">%s</time><div class="news-summary"><p>%s</p></div></article><hr/>`,
		item.Link, html.EscapeString(item.Title), item.Published, html.EscapeString(summary),
	)

	return block, summary, tags
}

// truncate returns s truncated to max runes.
func truncate(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max])
}
