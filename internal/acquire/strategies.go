package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lensview/insight/internal/resilience"
)

// episodeTarget describes the podcast episode whose audio we are resolving.
// Hints beyond the page URL are best-effort and may be zero.
type episodeTarget struct {
	PageURL   string
	TitleHint string
	Published time.Time
	Duration  time.Duration
}

// audioStrategy is one way of resolving an episode page to a direct audio
// URL. Strategies run in order under a shared deadline; the first verified
// candidate wins.
type audioStrategy interface {
	Name() string
	CanHandle(pageURL string) bool
	Resolve(ctx context.Context, target episodeTarget) (string, error)
}

// noAudioHosts never expose downloadable audio. Hitting one is a terminal,
// user-actionable failure rather than a strategy miss.
var noAudioHosts = []string{
	"open.spotify.com",
	"spotify.com",
	"audible.com",
	"music.amazon.com",
	"music.youtube.com",
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isNoAudioHost(rawURL string) bool {
	host := hostOf(rawURL)
	for _, h := range noAudioHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

var audioExtensions = []string{".mp3", ".m4a", ".aac", ".ogg", ".wav", ".flac"}

func hasAudioExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// directExtension accepts URLs that already point at an audio file.
type directExtension struct{}

func (directExtension) Name() string { return "direct_extension" }

func (directExtension) CanHandle(pageURL string) bool { return hasAudioExtension(pageURL) }

func (directExtension) Resolve(_ context.Context, target episodeTarget) (string, error) {
	return target.PageURL, nil
}

// platformRewrite maps known hosting platforms' episode-page URLs onto
// their predictable direct-audio form.
type platformRewrite struct{}

func (platformRewrite) Name() string { return "platform_rewrite" }

var rewriteRules = []struct {
	host    string
	pattern *regexp.Regexp
	rewrite func(m []string) string
}{
	{
		host:    "buzzsprout.com",
		pattern: regexp.MustCompile(`^(https://www\.buzzsprout\.com/\d+/episodes/\d+[\w-]*)$`),
		rewrite: func(m []string) string { return m[1] + ".mp3" },
	},
	{
		host:    "libsyn.com",
		pattern: regexp.MustCompile(`^https://(?:\w+\.)?libsyn\.com/(.+)$`),
		rewrite: func(m []string) string { return "https://traffic.libsyn.com/" + m[1] + ".mp3" },
	},
}

func (platformRewrite) CanHandle(pageURL string) bool {
	host := hostOf(pageURL)
	for _, rule := range rewriteRules {
		if host == rule.host || strings.HasSuffix(host, "."+rule.host) {
			return true
		}
	}
	return false
}

func (platformRewrite) Resolve(_ context.Context, target episodeTarget) (string, error) {
	for _, rule := range rewriteRules {
		if m := rule.pattern.FindStringSubmatch(target.PageURL); m != nil {
			return rule.rewrite(m), nil
		}
	}
	return "", eris.Errorf("acquire: no rewrite rule matched %s", target.PageURL)
}

// directoryLookup resolves directory episode pages (Apple Podcasts) through
// the directory's lookup API to the show's RSS feed, then fuzzy-matches the
// episode inside it.
type directoryLookup struct {
	http  *http.Client
	feeds *gofeed.Parser
}

func (directoryLookup) Name() string { return "directory_lookup" }

var applePodcastID = regexp.MustCompile(`/id(\d+)`)

func (directoryLookup) CanHandle(pageURL string) bool {
	return hostOf(pageURL) == "podcasts.apple.com" && applePodcastID.MatchString(pageURL)
}

func (d directoryLookup) Resolve(ctx context.Context, target episodeTarget) (string, error) {
	m := applePodcastID.FindStringSubmatch(target.PageURL)
	if m == nil {
		return "", eris.Errorf("acquire: no directory id in %s", target.PageURL)
	}

	feedURL, err := d.lookupFeedURL(ctx, m[1])
	if err != nil {
		return "", err
	}
	return resolveFromFeed(ctx, d.feeds, feedURL, target)
}

func (d directoryLookup) lookupFeedURL(ctx context.Context, showID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		"https://itunes.apple.com/lookup?id="+showID, nil)
	if err != nil {
		return "", eris.Wrap(err, "acquire: create lookup request")
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "acquire: directory lookup")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("acquire: directory lookup status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "acquire: read lookup response")
	}

	var wire struct {
		Results []struct {
			FeedURL string `json:"feedUrl"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return "", eris.Wrap(err, "acquire: unmarshal lookup response")
	}
	if len(wire.Results) == 0 || wire.Results[0].FeedURL == "" {
		return "", eris.Errorf("acquire: directory has no feed for show %s", showID)
	}
	return wire.Results[0].FeedURL, nil
}

// pageScrape fetches the episode page itself and hunts for audio sources:
// <audio>/<source> elements, og:audio meta tags, or an RSS alternate link
// that leads back into feed matching.
type pageScrape struct {
	http  *http.Client
	feeds *gofeed.Parser
	retry resilience.Policy
}

func (pageScrape) Name() string { return "page_scrape" }

func (pageScrape) CanHandle(string) bool { return true }

func (p pageScrape) Resolve(ctx context.Context, target episodeTarget) (string, error) {
	doc, err := resilience.Do(ctx, p.retry, func(ctx context.Context) (*goquery.Document, error) {
		return p.fetchPage(ctx, target.PageURL)
	})
	if err != nil {
		return "", err
	}

	if src := firstAudioSource(doc, target.PageURL); src != "" {
		return src, nil
	}

	if feedURL, ok := doc.Find(`link[rel="alternate"][type="application/rss+xml"]`).Attr("href"); ok {
		return resolveFromFeed(ctx, p.feeds, absoluteURL(target.PageURL, feedURL), target)
	}

	return "", eris.Errorf("acquire: no audio source on %s", target.PageURL)
}

// fetchPage fetches and parses one episode page. Non-200 statuses carry the
// status code so transient server errors are retried and client errors fail
// fast.
func (p pageScrape) fetchPage(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: create scrape request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; insight/1.0)")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: fetch episode page")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.NewStatusError(resp.StatusCode,
			eris.Errorf("acquire: episode page status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "acquire: parse episode page")
	}
	return doc, nil
}

func firstAudioSource(doc *goquery.Document, pageURL string) string {
	var found string
	doc.Find("audio[src], audio source[src], video source[type^='audio']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok && src != "" {
			found = absoluteURL(pageURL, src)
			return false
		}
		return true
	})
	if found != "" {
		return found
	}
	if og, ok := doc.Find(`meta[property="og:audio"]`).Attr("content"); ok && og != "" {
		return absoluteURL(pageURL, og)
	}
	if og, ok := doc.Find(`meta[property="og:audio:url"]`).Attr("content"); ok && og != "" {
		return absoluteURL(pageURL, og)
	}
	return ""
}

func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// resolveFromFeed parses the show feed and picks the enclosure of the
// best-matching episode.
func resolveFromFeed(ctx context.Context, parser *gofeed.Parser, feedURL string, target episodeTarget) (string, error) {
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return "", eris.Wrapf(err, "acquire: parse feed %s", feedURL)
	}

	item, score := bestEpisodeMatch(feed, target)
	if item == nil {
		return "", eris.Errorf("acquire: no episode in feed %s matched (best score %.2f)", feedURL, score)
	}

	zap.L().Debug("feed episode matched",
		zap.String("feed", feedURL),
		zap.String("episode", item.Title),
		zap.Float64("score", score),
	)

	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "audio/") || hasAudioExtension(enc.URL) {
			return enc.URL, nil
		}
	}
	return "", eris.Errorf("acquire: matched episode %q has no audio enclosure", item.Title)
}

// minEpisodeScore is the floor below which a feed match is rejected as a
// different episode.
const minEpisodeScore = 0.45

// bestEpisodeMatch scores every feed item against the target on title
// similarity, publish-date proximity and duration proximity.
func bestEpisodeMatch(feed *gofeed.Feed, target episodeTarget) (*gofeed.Item, float64) {
	var best *gofeed.Item
	var bestScore float64

	titleHint := target.TitleHint
	if titleHint == "" {
		titleHint = slugTitle(target.PageURL)
	}

	for _, item := range feed.Items {
		score := 0.6 * titleSimilarity(titleHint, item.Title)
		if target.Published.IsZero() || item.PublishedParsed == nil {
			score += 0.2 * 0.5 // unknown date neither helps nor kills the match
		} else {
			score += 0.2 * proximityScore(target.Published.Sub(*item.PublishedParsed), 7*24*time.Hour)
		}
		if target.Duration <= 0 {
			score += 0.2 * 0.5
		} else {
			score += 0.2 * proximityScore(target.Duration-itemDuration(item), 5*time.Minute)
		}

		if score > bestScore {
			best = item
			bestScore = score
		}
	}

	if bestScore < minEpisodeScore {
		return nil, bestScore
	}
	return best, bestScore
}

// titleSimilarity is the token Jaccard overlap of two titles.
func titleSimilarity(a, b string) float64 {
	ta := titleTokens(a)
	tb := titleTokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for tok := range ta {
		if tb[tok] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func titleTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	}) {
		if len(tok) > 2 {
			tokens[tok] = true
		}
	}
	return tokens
}

// proximityScore maps an absolute difference onto [0,1], hitting zero at
// twice the tolerance.
func proximityScore(diff, tolerance time.Duration) float64 {
	if diff < 0 {
		diff = -diff
	}
	if tolerance <= 0 {
		return 0
	}
	score := 1 - float64(diff)/float64(2*tolerance)
	if score < 0 {
		return 0
	}
	return score
}

func itemDuration(item *gofeed.Item) time.Duration {
	if item.ITunesExt == nil || item.ITunesExt.Duration == "" {
		return 0
	}
	return parseFeedDuration(item.ITunesExt.Duration)
}

// parseFeedDuration accepts "hh:mm:ss", "mm:ss" or plain seconds.
func parseFeedDuration(raw string) time.Duration {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	total := 0
	for _, p := range parts {
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}

// slugTitle recovers a title hint from the episode page URL's last path
// segment.
func slugTitle(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return strings.ReplaceAll(segments[len(segments)-1], "-", " ")
}
