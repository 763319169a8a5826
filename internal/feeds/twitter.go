package feeds

import (
	"context"

	"github.com/nugget/pulse/internal/pulsemodel"
)

// TweetStream is a pull-based lazy sequence of tweets: the caller
// calls Next repeatedly until the stream ends (io.EOF) or errors.
// Modeled this way instead of a push callback because the underlying
// source (a filtered, chunked HTTP stream) is naturally an iterator —
// matching the GLOSSARY's "lazy sequence" framing directly, rather
// than wrapping it in an extra layer of indirection.
type TweetStream interface {
	Next(ctx context.Context) (pulsemodel.TweetRecord, error)
	Close() error
}
