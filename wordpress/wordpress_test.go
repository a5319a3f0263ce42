package wordpress_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-digest/wordpress"
)

type fakeCMS struct {
	knownTags      map[string]int
	nextTagID      int
	createdTags    []string
	categories     map[string]int
	capturedPost   map[string]any
	postStatusCode int
}

func newFakeCMS() *fakeCMS {
	return &fakeCMS{
		knownTags:      map[string]int{},
		nextTagID:      100,
		categories:     map[string]int{},
		postStatusCode: http.StatusCreated,
	}
}

func (f *fakeCMS) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/wp-json/wp/v2/tags", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			name := r.URL.Query().Get("search")
			if id, ok := f.knownTags[name]; ok {
				fmt.Fprintf(w, `[{"id":%d,"name":"%s"}]`, id, name)
				return
			}
			fmt.Fprint(w, `[]`)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.nextTagID++
		f.knownTags[body.Name] = f.nextTagID
		f.createdTags = append(f.createdTags, body.Name)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id":%d,"name":"%s"}`, f.nextTagID, body.Name)
	})

	mux.HandleFunc("/wp-json/wp/v2/categories", func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("search")
		if id, ok := f.categories[name]; ok {
			fmt.Fprintf(w, `[{"id":%d,"name":"%s"}]`, id, name)
			return
		}
		fmt.Fprint(w, `[]`)
	})

	mux.HandleFunc("/wp-json/wp/v2/posts", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.capturedPost))
		w.WriteHeader(f.postStatusCode)
		if f.postStatusCode == http.StatusCreated {
			fmt.Fprint(w, `{"id":555}`)
		}
	})

	return mux
}

func TestPublishPostReusesAndCreatesTags(t *testing.T) {
	cms := newFakeCMS()
	cms.knownTags["housing"] = 7
	cms.categories["News Bot"] = 9

	srv := httptest.NewServer(cms.handler(t))
	defer srv.Close()

	client := wordpress.New(srv.URL, "bot", "secret", 11)
	err := client.PublishPost(context.Background(), wordpress.Post{
		Title:        "TLDR: Daily Summary – 08/28",
		Content:      "<h2>TLDR: Daily Summary</h2>",
		CategoryName: "News Bot",
		Tags:         []string{"housing", "zoning"},
	})
	require.NoError(t, err)

	// housing existed and was reused, only zoning was created
	assert.Equal(t, []string{"zoning"}, cms.createdTags)

	assert.Equal(t, "publish", cms.capturedPost["status"])
	assert.Equal(t, []any{float64(9)}, cms.capturedPost["categories"])
	assert.Equal(t, []any{float64(7), float64(101)}, cms.capturedPost["tags"])
}

func TestPublishPostFallsBackToDefaultCategory(t *testing.T) {
	cms := newFakeCMS()
	srv := httptest.NewServer(cms.handler(t))
	defer srv.Close()

	client := wordpress.New(srv.URL, "bot", "secret", 11)
	err := client.PublishPost(context.Background(), wordpress.Post{
		Title:        "TLDR",
		Content:      "<p>x</p>",
		CategoryName: "Nonexistent",
	})
	require.NoError(t, err)

	assert.Equal(t, []any{float64(11)}, cms.capturedPost["categories"])
}

func TestPublishPostNon201IsFailure(t *testing.T) {
	cms := newFakeCMS()
	cms.postStatusCode = http.StatusForbidden

	srv := httptest.NewServer(cms.handler(t))
	defer srv.Close()

	client := wordpress.New(srv.URL, "bot", "secret", 11)
	err := client.PublishPost(context.Background(), wordpress.Post{Title: "TLDR", Content: "x"})
	assert.Error(t, err)
}
