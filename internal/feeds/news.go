// Package feeds defines the NewsFetcher and TweetStream ports: the
// pull-based article fetch and the lazy tweet sequence NewsService
// and TwitterService consume. Live adapters sit in the nyt and
// twitterstream subpackages; this package fixes only the interfaces.
package feeds

import (
	"context"

	"github.com/nugget/pulse/internal/pulsemodel"
)

// Period selects which "most popular" window to query.
type Period string

// NewsFetcher pulls article sections for a configured period. A
// fetcher error aborts the current NewsService invocation but must
// not disable future ones.
type NewsFetcher interface {
	MostPopularViewed(ctx context.Context, period Period) (pulsemodel.ArticleSection, error)
	MostPopularEmailed(ctx context.Context, period Period) (pulsemodel.ArticleSection, error)
	MostPopularShared(ctx context.Context, period Period, shareTypes []string) (pulsemodel.ArticleSection, error)
}
