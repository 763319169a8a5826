package nyt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const sampleResponse = `{
	"status": "OK",
	"num_results": 2,
	"results": [
		{"url": "https://example.com/a", "title": "First Story", "abstract": "Something happened.", "published_date": "2026-07-30"},
		{"url": "https://example.com/b", "title": "Second Story", "abstract": "Something else.", "published_date": "2026-07-31"}
	]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New("test-key")
	c.baseURL = srv.URL
	return c
}

func TestMostPopularViewedParsesArticles(t *testing.T) {
	var gotPath, gotKey string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("api-key")
		w.Write([]byte(sampleResponse))
	})

	section, err := c.MostPopularViewed(context.Background(), "7")
	if err != nil {
		t.Fatalf("MostPopularViewed: %v", err)
	}
	if gotPath != "/viewed/7.json" {
		t.Errorf("path = %q, want /viewed/7.json", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api-key = %q", gotKey)
	}
	if section.Title != "Most Viewed" {
		t.Errorf("section title = %q", section.Title)
	}
	if len(section.Articles) != 2 {
		t.Fatalf("got %d articles, want 2", len(section.Articles))
	}
	if section.Articles[0].Title != "First Story" {
		t.Errorf("first article = %q", section.Articles[0].Title)
	}
	if section.Articles[1].PublishedDate.Day() != 31 {
		t.Errorf("published date not parsed: %v", section.Articles[1].PublishedDate)
	}
}

func TestMostPopularSharedScopesSingleShareType(t *testing.T) {
	var gotPath string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(sampleResponse))
	})

	if _, err := c.MostPopularShared(context.Background(), "1", []string{"facebook"}); err != nil {
		t.Fatalf("MostPopularShared: %v", err)
	}
	if gotPath != "/shared/1/facebook.json" {
		t.Errorf("path = %q, want the share type in the path", gotPath)
	}
}

func TestFetchSurfacesAPIError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"fault": "rate limited"}`))
	})

	_, err := c.MostPopularEmailed(context.Background(), "1")
	if err == nil {
		t.Fatal("expected an error for a 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q should carry the status code", err)
	}
}

func TestFetchSurfacesMalformedJSON(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	if _, err := c.MostPopularViewed(context.Background(), "1"); err == nil {
		t.Fatal("expected an error for a malformed body")
	}
}
