// Package twitterstream is the live TweetStream adapter: it holds one
// chunked HTTP connection open against the statuses/filter endpoint
// and decodes newline-delimited JSON tweets off it. Ingest above the
// per-second watermark is logged rather than dropped — a silently
// missing tweet would corrupt the downstream group buffers, which is
// not a property MQTT-style drop-on-overload paths have to care about.
package twitterstream

import (
	"bufio"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nugget/pulse/internal/feeds"
	"github.com/nugget/pulse/internal/httpkit"
	"github.com/nugget/pulse/internal/pulseerr"
	"github.com/nugget/pulse/internal/pulsemodel"
)

const filterStreamURL = "https://stream.twitter.com/1.1/statuses/filter.json"

// Credentials are the OAuth1 tokens from the twitter configuration
// block.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessKey      string
	AccessSecret   string
}

// Stream is the live feeds.TweetStream, consuming a single filter
// connection tracking the union of every configured group's terms.
type Stream struct {
	httpClient *http.Client
	creds      Credentials
	terms      []string
	logger     *slog.Logger

	resp    *http.Response
	scanner *bufio.Scanner
	limiter *rateLimiter
	cancel  context.CancelFunc
}

// Open dials the filter stream tracking terms, English-language tweets
// only, and returns a Stream ready for Next. The HTTP client uses no
// per-request timeout — this is a single long-lived connection, not a
// round trip.
func Open(ctx context.Context, creds Credentials, terms []string, logger *slog.Logger) (*Stream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	streamCtx, cancel := context.WithCancel(ctx)

	form := url.Values{}
	form.Set("track", strings.Join(terms, ","))
	form.Set("language", "en")

	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, filterStreamURL, strings.NewReader(form.Encode()))
	if err != nil {
		cancel()
		return nil, pulseerr.Wrap(pulseerr.TwitterError, "build filter stream request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", oauth1Header(req.Method, filterStreamURL, form, creds))

	client := httpkit.NewClient(httpkit.WithTimeout(0))
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, pulseerr.Wrap(pulseerr.TwitterError, "open filter stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		body := httpkit.ReadErrorBody(resp.Body, 4096)
		cancel()
		return nil, pulseerr.New(pulseerr.TwitterError, fmt.Sprintf("filter stream returned %d: %s", resp.StatusCode, body))
	}

	limiter := newRateLimiter(50, time.Second, logger)
	go limiter.run(streamCtx)

	return &Stream{
		httpClient: client,
		creds:      creds,
		terms:      terms,
		logger:     logger,
		resp:       resp,
		scanner:    bufio.NewScanner(resp.Body),
		limiter:    limiter,
		cancel:     cancel,
	}, nil
}

type rawTweet struct {
	IDStr     string  `json:"id_str"`
	Text      string  `json:"text"`
	Lang      string  `json:"lang"`
	CreatedAt string  `json:"created_at"`
	User      *struct {
		ScreenName string `json:"screen_name"`
	} `json:"user"`
	FavoriteCount int32 `json:"favorite_count"`
	RetweetCount  int32 `json:"retweet_count"`
	Coordinates   *struct {
		Coordinates [2]float64 `json:"coordinates"`
	} `json:"coordinates"`
}

// Next blocks until the next tweet arrives, the stream ends (io.EOF),
// or ctx is cancelled. Non-tweet stream messages (heartbeats, control
// messages) are skipped transparently.
func (s *Stream) Next(ctx context.Context) (pulsemodel.TweetRecord, error) {
	for {
		select {
		case <-ctx.Done():
			return pulsemodel.TweetRecord{}, ctx.Err()
		default:
		}

		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return pulsemodel.TweetRecord{}, pulseerr.Wrap(pulseerr.TwitterError, "read filter stream", err)
			}
			return pulsemodel.TweetRecord{}, io.EOF
		}

		line := strings.TrimSpace(s.scanner.Text())
		if line == "" {
			continue
		}

		if !s.limiter.allow() {
			s.logger.Warn("twitterstream: ingest rate exceeded, processing anyway so no tweet is dropped")
		}

		var raw rawTweet
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			s.logger.Warn("twitterstream: skipping undecodable line", "error", err)
			continue
		}
		if raw.IDStr == "" || raw.Text == "" {
			// Not a tweet object (e.g. a limit/warning control message).
			continue
		}

		return s.toTweetRecord(raw), nil
	}
}

func (s *Stream) toTweetRecord(raw rawTweet) pulsemodel.TweetRecord {
	rec := pulsemodel.TweetRecord{
		TwitterID: raw.IDStr,
		Favorites: raw.FavoriteCount,
		Retweets:  raw.RetweetCount,
		Text:      raw.Text,
	}
	if raw.Lang != "" {
		lang := raw.Lang
		rec.Lang = &lang
	}
	if raw.User != nil && raw.User.ScreenName != "" {
		user := raw.User.ScreenName
		rec.User = &user
	}
	if raw.Coordinates != nil {
		lon, lat := raw.Coordinates.Coordinates[0], raw.Coordinates.Coordinates[1]
		rec.Lon, rec.Lat = &lon, &lat
	}
	if t, err := time.Parse(time.RubyDate, raw.CreatedAt); err == nil {
		rec.TweetedAt = t
	}
	return rec
}

// Close terminates the underlying connection.
func (s *Stream) Close() error {
	s.cancel()
	return s.resp.Body.Close()
}

var _ feeds.TweetStream = (*Stream)(nil)

// oauth1Header signs the request per OAuth 1.0a (HMAC-SHA1). The
// filter stream accepts nothing else, and no OAuth1 client exists in
// this module's dependency set, so the base-string construction and
// signature live here.
func oauth1Header(method, baseURL string, form url.Values, creds Credentials) string {
	oauth := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            newNonce(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(time.Now().Unix(), 10),
		"oauth_token":            creds.AccessKey,
		"oauth_version":          "1.0",
	}

	params := make(map[string]string, len(oauth)+len(form))
	for k, v := range oauth {
		params[k] = v
	}
	for k := range form {
		params[k] = form.Get(k)
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(params[k]))
	}
	base := strings.ToUpper(method) + "&" + percentEncode(baseURL) + "&" + percentEncode(strings.Join(pairs, "&"))

	signingKey := percentEncode(creds.ConsumerSecret) + "&" + percentEncode(creds.AccessSecret)
	mac := hmac.New(sha1.New, []byte(signingKey))
	mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	headerKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)
	headerPairs := make([]string, 0, len(headerKeys))
	for _, k := range headerKeys {
		headerPairs = append(headerPairs, fmt.Sprintf(`%s="%s"`, percentEncode(k), percentEncode(oauth[k])))
	}
	return "OAuth " + strings.Join(headerPairs, ", ")
}

func newNonce() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(b)
}

// percentEncode applies RFC 3986 encoding, which OAuth1 requires in
// place of the looser application/x-www-form-urlencoded rules.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
