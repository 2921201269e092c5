package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/3cpo-dev/teatime/internal/telemetry"
	"github.com/3cpo-dev/teatime/pkg/api"
)

// maxBody bounds how much of a page is read.
const maxBody = 10 << 20

var wordRe = regexp.MustCompile(`[\p{L}\p{N}_']+`)

// ErrNoURLs is returned when no usable URL was given.
var ErrNoURLs = errors.New("at least one URL must be provided")

// Options tunes a Scraper. Zero values mean one request at a time, no rate limit.
type Options struct {
	Concurrency       int
	RequestsPerSecond float64
	Logger            zerolog.Logger
	Metrics           *telemetry.Collector
}

// Scraper fetches pages concurrently and aggregates their word counts.
type Scraper struct {
	client  *http.Client
	urls    []string
	limiter *rate.Limiter
	workers int
	logger  zerolog.Logger
	metrics *telemetry.Collector
}

// New creates a scraper for the non-blank urls.
func New(client *http.Client, urls []string, opts Options) (*Scraper, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	var keep []string
	for _, u := range urls {
		if strings.TrimSpace(u) != "" {
			keep = append(keep, strings.TrimSpace(u))
		}
	}
	if len(keep) == 0 {
		return nil, ErrNoURLs
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}

	return &Scraper{
		client:  client,
		urls:    keep,
		limiter: rate.NewLimiter(limit, 1),
		workers: workers,
		logger:  opts.Logger.With().Str("component", "WebScraper").Logger(),
		metrics: opts.Metrics,
	}, nil
}

type page struct {
	url    string
	counts map[string]int
	err    error
}

// ScrapeAndAggregate fetches every URL and returns the per-page summary plus
// all words ordered by count descending, then word ascending. A page that
// fails to load is reported and contributes no words; only cancellation of
// ctx fails the whole scrape.
func (s *Scraper) ScrapeAndAggregate(ctx context.Context) (api.ScrapeReport, error) {
	start := time.Now()
	s.logger.Info().Int("urls", len(s.urls)).Int("workers", s.workers).Msg("ScrapeAndAggregate - START")

	pages := make([]page, len(s.urls))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, u := range s.urls {
		g.Go(func() error {
			pages[i] = s.scrapeURL(ctx, u)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return api.ScrapeReport{}, fmt.Errorf("scrape: %w", err)
	}
	s.logger.Info().Msg("ScrapeAndAggregate - all URLs scraped")

	report := api.ScrapeReport{Pages: make([]api.PageReport, 0, len(pages))}
	var all []map[string]int
	for _, p := range pages {
		pr := api.PageReport{URL: p.url, UniqueWords: len(p.counts)}
		for _, n := range p.counts {
			pr.TotalWords += n
		}
		if p.err != nil {
			pr.Error = p.err.Error()
		}
		report.Pages = append(report.Pages, pr)
		all = append(all, p.counts)
	}
	report.Top = Aggregate(all...)
	report.DurationMS = time.Since(start).Milliseconds()

	s.metrics.Timer("teatime_scrape_duration", time.Since(start), map[string]string{"urls": fmt.Sprint(len(s.urls))})
	s.logger.Info().Int("unique_words", len(report.Top)).Msg("ScrapeAndAggregate - aggregation complete")
	return report, nil
}

func (s *Scraper) scrapeURL(ctx context.Context, url string) page {
	s.logger.Info().Str("url", url).Msg("ScrapeURL - START")
	counts, err := s.fetch(ctx, url)
	if err != nil {
		s.metrics.Counter("teatime_scrape_pages", 1, map[string]string{"status": "error"})
		s.logger.Error().Str("url", url).Err(err).Msg("ScrapeURL - ERROR")
		return page{url: url, counts: map[string]int{}, err: err}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	s.metrics.Counter("teatime_scrape_pages", 1, map[string]string{"status": "ok"})
	s.logger.Info().Str("url", url).Int("total_words", total).Int("unique_words", len(counts)).Msg("ScrapeURL - END")
	return page{url: url, counts: counts}
}

func (s *Scraper) fetch(ctx context.Context, url string) (map[string]int, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return CountWords(io.LimitReader(resp.Body, maxBody))
}

// CountWords counts the lower-cased words of the visible text of an HTML
// document. Script and style contents are ignored; entities are decoded.
func CountWords(r io.Reader) (map[string]int, error) {
	counts := map[string]int{}
	z := html.NewTokenizer(r)
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return counts, nil
			}
			return counts, z.Err()
		case html.StartTagToken:
			if isHidden(z) {
				hidden++
			}
		case html.EndTagToken:
			if isHidden(z) && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if hidden == 0 {
				countText(counts, string(z.Text()))
			}
		}
	}
}

func isHidden(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	tag := string(name)
	return tag == "script" || tag == "style"
}

func countText(counts map[string]int, text string) {
	for _, m := range wordRe.FindAllString(text, -1) {
		w := strings.ToLower(strings.Trim(m, "'"))
		if w != "" {
			counts[w]++
		}
	}
}

// Aggregate merges word counts and orders them by count descending, then word ascending.
func Aggregate(counts ...map[string]int) []api.WordCount {
	merged := map[string]int{}
	for _, c := range counts {
		for w, n := range c {
			merged[w] += n
		}
	}
	out := make([]api.WordCount, 0, len(merged))
	for w, n := range merged {
		out = append(out, api.WordCount{Word: w, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Word < out[j].Word
	})
	return out
}
