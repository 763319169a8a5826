// Package nyt is the live NewsFetcher adapter: a thin client for the
// New York Times "Most Popular" API, built the way the rest of this
// codebase wraps third-party HTTP APIs — a shared httpkit client, a
// context-bound GET, a capped body read.
package nyt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nugget/pulse/internal/feeds"
	"github.com/nugget/pulse/internal/httpkit"
	"github.com/nugget/pulse/internal/pulseerr"
	"github.com/nugget/pulse/internal/pulsemodel"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps the response body read.
const maxBodyBytes int64 = 2 * 1024 * 1024

const defaultBaseURL = "https://api.nytimes.com/svc/mostpopular/v2"

// Client is the live NewsFetcher.
type Client struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// New constructs a Client. apiKey comes from the news.new_york_times
// configuration block.
func New(apiKey string) *Client {
	return &Client{
		httpClient: httpkit.NewClient(
			httpkit.WithTimeout(DefaultTimeout),
			httpkit.WithRetry(2, 500*time.Millisecond),
		),
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
	}
}

type apiResponse struct {
	Status     string       `json:"status"`
	NumResults int          `json:"num_results"`
	Results    []apiArticle `json:"results"`
}

type apiArticle struct {
	URL           string `json:"url"`
	Title         string `json:"title"`
	Abstract      string `json:"abstract"`
	PublishedDate string `json:"published_date"`
}

// MostPopularViewed fetches the most-viewed section.
func (c *Client) MostPopularViewed(ctx context.Context, period feeds.Period) (pulsemodel.ArticleSection, error) {
	return c.fetch(ctx, "Most Viewed", fmt.Sprintf("/viewed/%s.json", period))
}

// MostPopularEmailed fetches the most-emailed section.
func (c *Client) MostPopularEmailed(ctx context.Context, period feeds.Period) (pulsemodel.ArticleSection, error) {
	return c.fetch(ctx, "Most Emailed", fmt.Sprintf("/emailed/%s.json", period))
}

// MostPopularShared fetches the most-shared section, optionally
// scoped to specific share types (e.g. "facebook", "twitter").
func (c *Client) MostPopularShared(ctx context.Context, period feeds.Period, shareTypes []string) (pulsemodel.ArticleSection, error) {
	path := fmt.Sprintf("/shared/%s.json", period)
	if len(shareTypes) == 1 {
		path = fmt.Sprintf("/shared/%s/%s.json", period, shareTypes[0])
	}
	return c.fetch(ctx, "Most Shared", path)
}

func (c *Client) fetch(ctx context.Context, sectionTitle, path string) (pulsemodel.ArticleSection, error) {
	url := c.baseURL + path + "?api-key=" + c.apiKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return pulsemodel.ArticleSection{}, pulseerr.Wrap(pulseerr.NewsError, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pulsemodel.ArticleSection{}, pulseerr.Wrap(pulseerr.NewsError, "request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := httpkit.ReadErrorBody(resp.Body, 4096)
		return pulsemodel.ArticleSection{}, pulseerr.New(pulseerr.NewsError, fmt.Sprintf("nyt api returned %d: %s", resp.StatusCode, detail))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return pulsemodel.ArticleSection{}, pulseerr.Wrap(pulseerr.NewsError, "read response", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return pulsemodel.ArticleSection{}, pulseerr.Wrap(pulseerr.SerdeError, "unmarshal nyt response", err)
	}

	section := pulsemodel.ArticleSection{Title: sectionTitle}
	for _, a := range parsed.Results {
		published, _ := time.Parse("2006-01-02", a.PublishedDate)
		section.Articles = append(section.Articles, pulsemodel.Article{
			URL:           a.URL,
			Title:         a.Title,
			Abstract:      a.Abstract,
			PublishedDate: published,
			Metric:        sectionTitle,
		})
	}
	return section, nil
}
