package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"policy-digest/config"
	"policy-digest/parser"
	"policy-digest/renderer"
)

// redirectTimeout bounds the explicit fetch used for redirect-problematic
// hosts. The generic path has no run-level timeout of its own.
const redirectTimeout = 10 * time.Second

// bodyContentSelector is the article container federalregister.gov pages
// put their full document text in.
const bodyContentSelector = "div.body-content"

// Fetcher retrieves the plain-text body of an article URL, choosing an
// extraction path per host. Every failure is reported as an error; callers
// fall back to feed-provided fields.
type Fetcher struct {
	// RedirectHosts get an explicit GET (redirects followed, bounded
	// timeout) and container-first HTML extraction.
	RedirectHosts []string

	// RenderedHosts get a headless-browser render before extraction.
	RenderedHosts []string

	redirectClient *http.Client
	render         func(ctx context.Context, url string) (string, error)
}

func New(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		RedirectHosts:  cfg.RedirectHosts,
		RenderedHosts:  cfg.RenderedHosts,
		redirectClient: &http.Client{Timeout: redirectTimeout},
		render:         renderer.RenderHTML,
	}
}

// FullText returns the extracted article body for link, or an error when no
// text could be retrieved.
func (f *Fetcher) FullText(ctx context.Context, link string) (string, error) {
	if matchesAny(link, f.RedirectHosts) {
		return f.fetchRedirectHost(ctx, link)
	}
	if matchesAny(link, f.RenderedHosts) {
		return f.fetchRenderedHost(ctx, link)
	}
	return f.fetchGeneric(ctx, link)
}

func matchesAny(link string, hosts []string) bool {
	for _, h := range hosts {
		if h != "" && strings.Contains(link, h) {
			return true
		}
	}
	return false
}

// fetchRedirectHost downloads the page directly and prefers the known
// content container, falling back to the whole document's visible text.
func (f *Fetcher) fetchRedirectHost(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.redirectClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status code %d", link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", err
	}

	if container := doc.Find(bodyContentSelector); container.Length() > 0 {
		return strings.TrimSpace(container.Text()), nil
	}

	htmlStr, err := doc.Html()
	if err != nil {
		return "", err
	}
	return parser.VisibleText(htmlStr)
}

func (f *Fetcher) fetchRenderedHost(ctx context.Context, link string) (string, error) {
	htmlStr, err := f.render(ctx, link)
	if err != nil {
		return "", err
	}
	return parser.ExtractText(htmlStr)
}

func (f *Fetcher) fetchGeneric(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %s: status code %d", link, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return parser.ExtractText(string(body))
}
