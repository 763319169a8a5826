package twitterstream

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"testing"
	"time"
)

func testStream(input string) *Stream {
	return &Stream{
		scanner: bufio.NewScanner(strings.NewReader(input)),
		limiter: newRateLimiter(1000, time.Second, slog.Default()),
		logger:  slog.Default(),
	}
}

func TestNextDecodesTweet(t *testing.T) {
	line := `{"id_str":"123","text":"hello world","lang":"en","created_at":"Mon Jan 02 15:04:05 -0700 2006","user":{"screen_name":"somebody"},"favorite_count":3,"retweet_count":1,"coordinates":{"coordinates":[-122.4,37.7]}}`
	s := testStream(line + "\n")

	rec, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.TwitterID != "123" || rec.Text != "hello world" {
		t.Errorf("rec = %+v", rec)
	}
	if rec.User == nil || *rec.User != "somebody" {
		t.Errorf("user = %v", rec.User)
	}
	if rec.Lang == nil || *rec.Lang != "en" {
		t.Errorf("lang = %v", rec.Lang)
	}
	if rec.Lat == nil || *rec.Lat != 37.7 || rec.Lon == nil || *rec.Lon != -122.4 {
		t.Errorf("coordinates = %v,%v", rec.Lat, rec.Lon)
	}
	if rec.Favorites != 3 || rec.Retweets != 1 {
		t.Errorf("counts = %d/%d", rec.Favorites, rec.Retweets)
	}
	if rec.TweetedAt.IsZero() {
		t.Error("tweeted_at not parsed")
	}
}

func TestNextSkipsHeartbeatsAndControlMessages(t *testing.T) {
	input := "\n" + `{"limit":{"track":5}}` + "\n" + `{"id_str":"9","text":"real tweet"}` + "\n"
	s := testStream(input)

	rec, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.TwitterID != "9" {
		t.Errorf("got %q, want the tweet after the control messages", rec.TwitterID)
	}
}

func TestNextSkipsUndecodableLines(t *testing.T) {
	s := testStream("garbage{{{\n" + `{"id_str":"5","text":"ok"}` + "\n")
	rec, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.TwitterID != "5" {
		t.Errorf("got %q", rec.TwitterID)
	}
}

func TestNextReturnsEOFWhenStreamEnds(t *testing.T) {
	s := testStream("")
	if _, err := s.Next(context.Background()); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestNextHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := testStream(`{"id_str":"1","text":"t"}` + "\n")
	if _, err := s.Next(ctx); err != context.Canceled {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestPercentEncode(t *testing.T) {
	tests := []struct{ in, want string }{
		{"abcXYZ019", "abcXYZ019"},
		{"-._~", "-._~"},
		{"a b", "a%20b"},
		{"golang,gopher", "golang%2Cgopher"},
		{"100%", "100%25"},
	}
	for _, tt := range tests {
		if got := percentEncode(tt.in); got != tt.want {
			t.Errorf("percentEncode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOAuth1HeaderCarriesSignature(t *testing.T) {
	form := url.Values{}
	form.Set("track", "golang,gopher")
	form.Set("language", "en")
	creds := Credentials{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		AccessKey:      "ak",
		AccessSecret:   "as",
	}

	header := oauth1Header("POST", "https://example.com/stream", form, creds)
	if !strings.HasPrefix(header, "OAuth ") {
		t.Fatalf("header = %q", header)
	}
	for _, want := range []string{
		`oauth_consumer_key="ck"`,
		`oauth_token="ak"`,
		`oauth_signature_method="HMAC-SHA1"`,
		`oauth_version="1.0"`,
		"oauth_signature=",
		"oauth_nonce=",
		"oauth_timestamp=",
	} {
		if !strings.Contains(header, want) {
			t.Errorf("header missing %q: %s", want, header)
		}
	}
}

func TestOAuth1HeaderNonceVaries(t *testing.T) {
	form := url.Values{}
	creds := Credentials{ConsumerKey: "ck"}
	a := oauth1Header("POST", "https://example.com/", form, creds)
	b := oauth1Header("POST", "https://example.com/", form, creds)
	if a == b {
		t.Error("two headers share a nonce")
	}
}

func TestRateLimiterCountsOverage(t *testing.T) {
	rl := newRateLimiter(2, time.Minute, slog.Default())
	if !rl.allow() || !rl.allow() {
		t.Fatal("first two calls should be allowed")
	}
	if rl.allow() {
		t.Error("third call should exceed the limit")
	}
	if got := rl.over.Load(); got != 1 {
		t.Errorf("over = %d, want 1", got)
	}
}
