package acquire

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/lensview/insight/internal/resilience"
)

func TestHostOf(t *testing.T) {
	cases := map[string]string{
		"https://www.Example.com/path": "example.com",
		"https://open.spotify.com/ep":  "open.spotify.com",
		"://bad":                       "",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsNoAudioHost(t *testing.T) {
	yes := []string{
		"https://open.spotify.com/episode/abc",
		"https://www.audible.com/pd/xyz",
		"https://music.amazon.com/podcasts/1",
	}
	for _, u := range yes {
		if !isNoAudioHost(u) {
			t.Errorf("%s should be a no-audio host", u)
		}
	}
	no := []string{
		"https://podcasts.apple.com/us/podcast/id123",
		"https://example.com/spotify.com/fake",
	}
	for _, u := range no {
		if isNoAudioHost(u) {
			t.Errorf("%s should not be a no-audio host", u)
		}
	}
}

func TestHasAudioExtension(t *testing.T) {
	if !hasAudioExtension("https://cdn.example.com/ep/42.mp3?token=x") {
		t.Error("query string must not hide the extension")
	}
	if hasAudioExtension("https://example.com/episodes/42") {
		t.Error("plain page URL is not audio")
	}
}

func TestPlatformRewrite(t *testing.T) {
	var s platformRewrite

	buzz := "https://www.buzzsprout.com/123456/episodes/7891011-great-show"
	if !s.CanHandle(buzz) {
		t.Fatal("buzzsprout URL should be handled")
	}
	got, err := s.Resolve(t.Context(), episodeTarget{PageURL: buzz})
	if err != nil {
		t.Fatal(err)
	}
	if got != buzz+".mp3" {
		t.Errorf("got %q", got)
	}

	libsyn := "https://myshow.libsyn.com/episode-12"
	got, err = s.Resolve(t.Context(), episodeTarget{PageURL: libsyn})
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://traffic.libsyn.com/episode-12.mp3" {
		t.Errorf("got %q", got)
	}

	if s.CanHandle("https://example.com/ep") {
		t.Error("unknown host should not be handled")
	}
}

func TestDirectExtension(t *testing.T) {
	var s directExtension
	if !s.CanHandle("https://cdn.example.com/a.m4a") {
		t.Error("audio URL should be handled")
	}
	got, err := s.Resolve(t.Context(), episodeTarget{PageURL: "https://cdn.example.com/a.m4a"})
	if err != nil || got != "https://cdn.example.com/a.m4a" {
		t.Errorf("got %q, %v", got, err)
	}
}

func scrapeTestPolicy(attempts int) resilience.Policy {
	return resilience.Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func TestPageScrape_RetriesTransientStatus(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		if hits == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`<html><body><audio src="/ep.mp3"></audio></body></html>`))
	}))
	defer srv.Close()

	s := pageScrape{http: srv.Client(), retry: scrapeTestPolicy(2)}
	got, err := s.Resolve(t.Context(), episodeTarget{PageURL: srv.URL + "/episode"})
	if err != nil {
		t.Fatal(err)
	}
	if got != srv.URL+"/ep.mp3" {
		t.Errorf("got %q", got)
	}
	if hits != 2 {
		t.Errorf("server hits %d, want a retry after the 503", hits)
	}
}

func TestPageScrape_DoesNotRetryClientError(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := pageScrape{http: srv.Client(), retry: scrapeTestPolicy(3)}
	if _, err := s.Resolve(t.Context(), episodeTarget{PageURL: srv.URL + "/episode"}); err == nil {
		t.Fatal("missing page must fail")
	}
	if hits != 1 {
		t.Errorf("server hits %d, a 404 must not be retried", hits)
	}
}

func TestTitleSimilarity(t *testing.T) {
	if got := titleSimilarity("The Future of Rail", "The Future of Rail"); got != 1 {
		t.Errorf("identical titles: got %v", got)
	}
	if got := titleSimilarity("apples oranges", "trains planes"); got != 0 {
		t.Errorf("disjoint titles: got %v", got)
	}
	// Stop-length tokens ("of", "a") are ignored entirely.
	if got := titleSimilarity("of a", "of a"); got != 0 {
		t.Errorf("short-token-only titles: got %v", got)
	}
	partial := titleSimilarity("deep dive quantum computing", "quantum computing explained")
	if partial <= 0 || partial >= 1 {
		t.Errorf("partial overlap should land strictly between 0 and 1: %v", partial)
	}
}

func TestProximityScore(t *testing.T) {
	tol := time.Hour
	if got := proximityScore(0, tol); got != 1 {
		t.Errorf("zero diff: %v", got)
	}
	if got := proximityScore(tol, tol); got != 0.5 {
		t.Errorf("at tolerance: %v", got)
	}
	if got := proximityScore(2*tol, tol); got != 0 {
		t.Errorf("at twice tolerance: %v", got)
	}
	if got := proximityScore(-30*time.Minute, tol); got != proximityScore(30*time.Minute, tol) {
		t.Error("score must be symmetric in sign")
	}
}

func TestParseFeedDuration(t *testing.T) {
	cases := map[string]time.Duration{
		"1:01:05": 3665 * time.Second,
		"45:30":   2730 * time.Second,
		"90":      90 * time.Second,
		"abc":     0,
	}
	for in, want := range cases {
		if got := parseFeedDuration(in); got != want {
			t.Errorf("parseFeedDuration(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSlugTitle(t *testing.T) {
	got := slugTitle("https://show.example.com/episodes/the-future-of-rail")
	if got != "the future of rail" {
		t.Errorf("got %q", got)
	}
}

func TestBestEpisodeMatch_PicksClosest(t *testing.T) {
	published := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	wrongDate := published.AddDate(0, -6, 0)
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{
			Title:           "Episode 41: Container Shipping",
			PublishedParsed: &wrongDate,
			ITunesExt:       &ext.ITunesItemExtension{Duration: "30:00"},
		},
		{
			Title:           "Episode 42: The Future of Rail",
			PublishedParsed: &published,
			ITunesExt:       &ext.ITunesItemExtension{Duration: "44:10"},
		},
	}}

	target := episodeTarget{
		TitleHint: "The Future of Rail",
		Published: published,
		Duration:  44 * time.Minute,
	}
	item, score := bestEpisodeMatch(feed, target)
	if item == nil {
		t.Fatalf("no match, best score %v", score)
	}
	if item.Title != "Episode 42: The Future of Rail" {
		t.Errorf("matched %q", item.Title)
	}
	if score < minEpisodeScore {
		t.Errorf("score %v below floor", score)
	}
}

func TestBestEpisodeMatch_RejectsBelowFloor(t *testing.T) {
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "Completely Unrelated Episode"},
	}}
	item, _ := bestEpisodeMatch(feed, episodeTarget{TitleHint: "quantum gravity primer"})
	if item != nil {
		t.Errorf("weak match must be rejected, got %q", item.Title)
	}
}

func TestBestEpisodeMatch_FallsBackToURLSlug(t *testing.T) {
	feed := &gofeed.Feed{Items: []*gofeed.Item{
		{Title: "The Future of Rail"},
	}}
	target := episodeTarget{PageURL: "https://show.example.com/episodes/the-future-of-rail"}
	item, _ := bestEpisodeMatch(feed, target)
	if item == nil {
		t.Fatal("slug-derived title hint should carry the match")
	}
}
