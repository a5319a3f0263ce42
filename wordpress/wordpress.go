package wordpress

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"policy-digest/internal/httpclient"
	"policy-digest/internal/logger"
)

// Post is the digest document to publish, before tag and category names are
// resolved to CMS identifiers.
type Post struct {
	Title        string
	Content      string
	CategoryName string
	Tags         []string
}

// Client talks to the WordPress REST API with basic credential auth.
type Client struct {
	base              *httpclient.BaseClient
	username          string
	password          string
	defaultCategoryID int
}

func New(baseURL, username, password string, defaultCategoryID int) *Client {
	return &Client{
		base:              httpclient.NewBaseClient(baseURL),
		username:          username,
		password:          password,
		defaultCategoryID: defaultCategoryID,
	}
}

type term struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type postPayload struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	Status     string `json:"status"`
	Categories []int  `json:"categories"`
	Tags       []int  `json:"tags"`
}

// PublishPost resolves tag and category identifiers, then creates one
// published post. nil is returned iff the CMS answered 201 Created.
func (c *Client) PublishPost(ctx context.Context, post Post) error {
	tagIDs := make([]int, 0, len(post.Tags))
	for _, tag := range post.Tags {
		id, err := c.ensureTagID(ctx, tag)
		if err != nil {
			// A missing tag does not block the post.
			logger.Log.Warnf("failed to resolve tag %q: %v", tag, err)
			continue
		}
		tagIDs = append(tagIDs, id)
	}

	categoryID := c.resolveCategoryID(ctx, post.CategoryName)

	payload := postPayload{
		Title:      post.Title,
		Content:    post.Content,
		Status:     "publish",
		Categories: []int{categoryID},
		Tags:       tagIDs,
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, "/wp-json/wp/v2/posts", nil, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("wordpress create post: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}

// ensureTagID returns the identifier of an existing tag with the given
// name, creating the tag when the search comes back empty.
func (c *Client) ensureTagID(ctx context.Context, name string) (int, error) {
	query := url.Values{}
	query.Set("search", name)

	req, err := c.base.NewRequest(ctx, http.MethodGet, "/wp-json/wp/v2/tags", query, nil)
	if err != nil {
		return 0, err
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var existing []term
		if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil {
			return 0, err
		}
		if len(existing) > 0 {
			return existing[0].ID, nil
		}
	}

	return c.createTag(ctx, name)
}

func (c *Client) createTag(ctx context.Context, name string) (int, error) {
	buf, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return 0, err
	}

	req, err := c.base.NewRequest(ctx, http.MethodPost, "/wp-json/wp/v2/tags", nil, bytes.NewReader(buf))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.base.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return 0, fmt.Errorf("wordpress create tag: status=%d body=%s", resp.StatusCode, string(b))
	}

	var created term
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, err
	}
	return created.ID, nil
}

// resolveCategoryID looks the category name up and falls back to the fixed
// default identifier when the search fails or finds nothing.
func (c *Client) resolveCategoryID(ctx context.Context, name string) int {
	query := url.Values{}
	query.Set("search", name)

	req, err := c.base.NewRequest(ctx, http.MethodGet, "/wp-json/wp/v2/categories", query, nil)
	if err != nil {
		return c.defaultCategoryID
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.base.Do(req)
	if err != nil {
		return c.defaultCategoryID
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.defaultCategoryID
	}

	var existing []term
	if err := json.NewDecoder(resp.Body).Decode(&existing); err != nil || len(existing) == 0 {
		return c.defaultCategoryID
	}
	return existing[0].ID
}
