// Package poller periodically fetches the configured RSS/Atom sources and
// hands their items to the ingestion pipeline.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"

	"newsrank/internal/models"
)

const DefaultFetchTimeout = 30 * time.Second

// ErrUnknownSource is returned by ForcePoll for a source that is not configured.
var ErrUnknownSource = errors.New("unknown feed source")

// Ingester receives the normalized articles of one poll.
type Ingester interface {
	IngestBatch(ctx context.Context, articles []models.Article) ([]models.IngestResult, error)
}

type Poller struct {
	ingester     Ingester
	feeds        map[string]string
	pollInterval time.Duration
	fetchTimeout time.Duration
	logger       *slog.Logger
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	mu           sync.RWMutex
	lastPolled   map[string]time.Time
	isPolling    bool
}

// New creates a poller for feeds, a map of source name to feed url.
func New(ingester Ingester, feeds map[string]string, pollInterval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		ingester:     ingester,
		feeds:        feeds,
		pollInterval: pollInterval,
		fetchTimeout: DefaultFetchTimeout,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
		lastPolled:   make(map[string]time.Time),
	}
}

func (p *Poller) Start() {
	p.mu.Lock()
	if p.isPolling {
		p.mu.Unlock()
		return
	}
	p.isPolling = true
	p.mu.Unlock()

	p.logger.Info("starting feed poller", "interval", p.pollInterval, "sources", len(p.feeds))

	p.wg.Add(1)
	go p.pollLoop()
}

func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.isPolling {
		p.mu.Unlock()
		return
	}
	p.isPolling = false
	p.mu.Unlock()

	p.logger.Info("stopping feed poller")
	p.cancel()
	p.wg.Wait()
	p.logger.Info("feed poller stopped")
}

func (p *Poller) pollLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	// Poll immediately on start
	p.pollAllFeeds()

	for {
		select {
		case <-ticker.C:
			p.pollAllFeeds()
		case <-p.ctx.Done():
			return
		}
	}
}

func (p *Poller) pollAllFeeds() {
	start := time.Now()

	var wg sync.WaitGroup
	for source := range p.feeds {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := p.pollSource(p.ctx, name); err != nil {
				p.logger.Warn("feed poll failed", "source", name, "error", err)
			}
		}(source)
	}

	wg.Wait()
	p.logger.Info("feed polling completed", "sources", len(p.feeds), "duration", time.Since(start))
}

func (p *Poller) pollSource(ctx context.Context, source string) error {
	defer p.markPolled(source)

	url := p.feeds[source]
	articles, err := p.fetchFeed(ctx, source, url)
	if err != nil {
		return err
	}
	if len(articles) == 0 {
		p.logger.Debug("no items in feed", "source", source)
		return nil
	}

	results, err := p.ingester.IngestBatch(ctx, articles)
	stored := 0
	for _, r := range results {
		if r.Status == models.StatusInserted || r.Status == models.StatusUpdated {
			stored++
		}
	}
	p.logger.Info("polled feed", "source", source, "items", len(articles), "stored", stored)
	return err
}

func (p *Poller) markPolled(source string) {
	p.mu.Lock()
	p.lastPolled[source] = time.Now()
	p.mu.Unlock()
}

// fetchFeed downloads one feed and maps its items into articles attributed
// to source. Each call gets its own parser since gofeed.Parser is not safe
// for concurrent use.
func (p *Poller) fetchFeed(ctx context.Context, source, url string) ([]models.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	feed, err := gofeed.NewParser().ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", url, err)
	}

	fetchedAt := time.Now().UTC()
	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		if article, ok := toArticle(item, source, fetchedAt); ok {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

func toArticle(item *gofeed.Item, source string, fetchedAt time.Time) (models.Article, bool) {
	link := strings.TrimSpace(item.Link)
	if link == "" && strings.HasPrefix(item.GUID, "http") {
		link = item.GUID
	}
	if link == "" || strings.TrimSpace(item.Title) == "" {
		return models.Article{}, false
	}

	// Safely get author name
	author := ""
	if item.Author != nil {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	content := item.Content
	if strings.TrimSpace(content) == "" {
		content = item.Description
	}

	article := models.Article{
		URL:       link,
		Title:     item.Title,
		Content:   content,
		Author:    author,
		Source:    source,
		FetchedAt: fetchedAt,
	}
	switch {
	case item.PublishedParsed != nil:
		published := item.PublishedParsed.UTC()
		article.PublishedAt = &published
	case item.UpdatedParsed != nil:
		updated := item.UpdatedParsed.UTC()
		article.PublishedAt = &updated
	}
	return article, true
}

func (p *Poller) GetLastPolledTime() map[string]time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make(map[string]time.Time)
	for source, polled := range p.lastPolled {
		result[source] = polled
	}
	return result
}

func (p *Poller) IsPolling() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.isPolling
}

// Sources lists the configured source names in alphabetical order.
func (p *Poller) Sources() []string {
	sources := make([]string, 0, len(p.feeds))
	for name := range p.feeds {
		sources = append(sources, name)
	}
	sort.Strings(sources)
	return sources
}

// ForcePoll polls one source synchronously.
func (p *Poller) ForcePoll(source string) error {
	if _, exists := p.feeds[source]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownSource, source)
	}
	p.logger.Info("force polling source", "source", source)
	return p.pollSource(p.ctx, source)
}
