package summarizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"policy-digest/quota"
)

// ErrQuotaExhausted means the daily LLM budget is spent; callers skip the
// article like any other summary failure.
var ErrQuotaExhausted = errors.New("summarizer: daily quota exhausted")

const summaryTemperature = 0.4
const summaryMaxOutputTokens = 350

const summaryPrompt = "You are a policy analyst writing for a professional audience in planning, housing, infrastructure, and governance. " +
	"Summarize the following article in 3–5 concise sentences. " +
	"Include: (1) what happened, (2) why it matters, and (3) any relevance to planners, developers, housing officials, or civic leaders.\n\n" +
	"Avoid generalities, focus on specifics. Be objective but insightful. Write clearly and professionally.\n\n" +
	"Article:\n%s"

// refusalPrefixes are openings the model produces when it declines to
// summarize. The check is a deliberately narrow case-insensitive prefix
// match; do not generalize it.
var refusalPrefixes = []string{
	"sorry",
	"apologies",
	"unable",
	"can't",
	"not available",
}

// LooksLikeRefusal reports whether the model explicitly declined to
// summarize. Articles with such summaries are dropped entirely.
func LooksLikeRefusal(summary string) bool {
	s := strings.ToLower(strings.TrimSpace(summary))
	for _, prefix := range refusalPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Client produces article summaries through the generative text service.
type Client struct {
	model   string
	limiter *quota.Limiter
}

// New builds a summarizer for the given model. limiter may be nil to
// disable quota enforcement.
func New(model string, limiter *quota.Limiter) *Client {
	return &Client{model: model, limiter: limiter}
}

// Summarize returns a 3-5 sentence professional summary of text.
// Any service error is returned as-is; there is no retry here.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if c.limiter != nil {
		allowed, err := c.limiter.WaitAndReserve(ctx)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", ErrQuotaExhausted
		}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return "", err
	}

	result, err := client.Models.GenerateContent(
		ctx,
		c.model,
		genai.Text(fmt.Sprintf(summaryPrompt, text)),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](summaryTemperature),
			MaxOutputTokens: summaryMaxOutputTokens,
		},
	)
	if err != nil {
		return "", err
	}

	summary := strings.TrimSpace(result.Text())
	if summary == "" {
		return "", fmt.Errorf("model returned an empty summary")
	}
	return summary, nil
}
