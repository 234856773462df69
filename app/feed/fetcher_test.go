package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"regwatch/app/catalog"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Regulatory News</title>
    <item>
      <guid>entry-b</guid>
      <title>Second item</title>
      <link>https://example.com/b</link>
      <description>Sanctions announced</description>
      <pubDate>Mon, 02 Jan 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <guid>entry-a</guid>
      <title>First item</title>
      <link>https://example.com/a</link>
      <description>License granted</description>
      <pubDate>Sun, 01 Jan 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

const sampleChannelHTML = `<!DOCTYPE html>
<html><body>
  <div class="tgme_widget_message">
    <div class="tgme_widget_message_text">New AML guidance published by the regulator today.</div>
    <a class="tgme_widget_message_date" href="https://t.me/reg_channel/42">
      <time datetime="2023-01-03T12:00:00+00:00">12:00</time>
    </a>
  </div>
  <div class="tgme_widget_message">
    <div class="tgme_widget_message_text"></div>
    <a class="tgme_widget_message_date" href="https://t.me/reg_channel/41"></a>
  </div>
</body></html>`

func newTestFetcher(client *http.Client) *SourceFetcher {
	return NewSourceFetcher(client, nil, "Test Agent", 5*time.Second, false)
}

func TestSourceFetcher_FetchFeed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleRSS))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.Client())
	source := catalog.Source{ID: server.URL, Kind: catalog.SourceKindFeed, Address: server.URL}

	entries, err := fetcher.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	// Source-native order is newest-first; normalized output must be chronological
	if entries[0].EntryID != "entry-a" || entries[1].EntryID != "entry-b" {
		t.Errorf("Entries not normalized by published_at: got %s, %s", entries[0].EntryID, entries[1].EntryID)
	}
	if entries[0].SourceID != server.URL {
		t.Errorf("Expected source ID %s, got %s", server.URL, entries[0].SourceID)
	}
	if entries[0].Body != "License granted" {
		t.Errorf("Expected description as body, got %q", entries[0].Body)
	}
}

func TestSourceFetcher_FetchChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleChannelHTML))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.Client())
	source := catalog.Source{ID: "https://t.me/s/reg_channel", Kind: catalog.SourceKindChannel, Address: server.URL}

	entries, err := fetcher.Fetch(context.Background(), source)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	// The second message has no text and must be skipped
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	if entries[0].EntryID != "https://t.me/reg_channel/42" {
		t.Errorf("Expected message permalink as entry ID, got %s", entries[0].EntryID)
	}
	if entries[0].PublishedAt.IsZero() {
		t.Error("Expected published time parsed from the datetime attribute")
	}
	if entries[0].Title == "" || entries[0].Body == "" {
		t.Error("Expected message text mapped to title and body")
	}
}

func TestSourceFetcher_HTTPErrorIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.Client())
	source := catalog.Source{ID: server.URL, Kind: catalog.SourceKindFeed, Address: server.URL}

	_, err := fetcher.Fetch(context.Background(), source)
	if err == nil {
		t.Fatal("Fetch should fail on HTTP 500")
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError, got %T", err)
	}
	if fetchErr.SourceID != server.URL {
		t.Errorf("FetchError should carry the source ID, got %s", fetchErr.SourceID)
	}
}

func TestSourceFetcher_ParseFailureIsFetchError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed at all"))
	}))
	defer server.Close()

	fetcher := newTestFetcher(server.Client())
	source := catalog.Source{ID: server.URL, Kind: catalog.SourceKindFeed, Address: server.URL}

	_, err := fetcher.Fetch(context.Background(), source)
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Expected FetchError on parse failure, got %v", err)
	}
}

func TestNormalize_MissingTimestamps(t *testing.T) {
	observed := time.Date(2023, 1, 5, 12, 0, 0, 0, time.UTC)
	entries := Normalize([]Entry{
		{EntryID: "no-timestamp"},
		{EntryID: "dated", PublishedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}, observed)

	if entries[0].EntryID != "dated" {
		t.Errorf("Dated entry should sort before the just-observed one, got %s first", entries[0].EntryID)
	}
	if !entries[1].PublishedAt.Equal(observed) {
		t.Errorf("Missing timestamp should be set to observation time, got %v", entries[1].PublishedAt)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	first := Normalize([]Entry{{EntryID: "b", PublishedAt: ts}, {EntryID: "a", PublishedAt: ts}}, ts)
	second := Normalize([]Entry{{EntryID: "a", PublishedAt: ts}, {EntryID: "b", PublishedAt: ts}}, ts)

	if first[0].EntryID != second[0].EntryID {
		t.Error("Normalize should order equal timestamps deterministically")
	}
}

func TestFetchURL_ChannelRewrite(t *testing.T) {
	src := catalog.NewSource("https://t.me/reg_channel")
	if got := fetchURL(src); got != "https://t.me/s/reg_channel" {
		t.Errorf("Expected preview URL, got %s", got)
	}

	already := catalog.NewSource("https://t.me/s/reg_channel")
	if got := fetchURL(already); got != "https://t.me/s/reg_channel" {
		t.Errorf("Preview URL should pass through unchanged, got %s", got)
	}

	feed := catalog.NewSource("https://example.com/rss")
	if got := fetchURL(feed); got != "https://example.com/rss" {
		t.Errorf("Feed URL should pass through unchanged, got %s", got)
	}
}
