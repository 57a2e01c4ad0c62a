// Copyright (c) 2024 cblomart
// Licensed under the MIT License

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"newsrank/internal/analyzer"
	"newsrank/internal/api"
	"newsrank/internal/cache"
	"newsrank/internal/config"
	"newsrank/internal/engine"
	"newsrank/internal/lexicon"
	"newsrank/internal/logging"
	"newsrank/internal/models"
	"newsrank/internal/poller"
	"newsrank/internal/ranking"
	"newsrank/internal/storage"
)

func main() {
	app := &cli.App{
		Name:  "newsrank",
		Usage: "AI news relevance scoring, deduplication and search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "data-dir",
				Usage:   "Directory holding the database",
				EnvVars: []string{"DATA_DIR"},
			},
			&cli.StringFlag{
				Name:    "lexicon",
				Usage:   "Path to a lexicon YAML file (embedded default when empty)",
				EnvVars: []string{"LEXICON_PATH"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the background feed poller",
				Action: serveCommand,
			},
			{
				Name:      "search",
				Usage:     "Search stored articles",
				ArgsUsage: "[query]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "source", Aliases: []string{"s"}, Usage: "Restrict to sources"},
					&cli.StringSliceFlag{Name: "topic", Aliases: []string{"t"}, Usage: "Restrict to topics (any of)"},
					&cli.Float64Flag{Name: "min-relevance", Usage: "Minimum relevance score", Value: -1},
					&cli.IntFlag{Name: "days", Usage: "Only articles from the last N days"},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 20},
					&cli.IntFlag{Name: "offset", Usage: "Number of results to skip"},
				},
			},
			{
				Name:   "trending",
				Usage:  "Show trending topics",
				Action: trendingCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "Window in days", Value: 7},
				},
			},
			{
				Name:   "top",
				Usage:  "Show the most relevant recent articles",
				Action: topCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "hours", Usage: "Window in hours", Value: 24},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 10},
				},
			},
			{
				Name:   "quality",
				Usage:  "Show recent articles ordered by composite quality",
				Action: qualityCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "hours", Usage: "Window in hours", Value: 24},
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 10},
				},
			},
			{
				Name:      "similar",
				Usage:     "Find articles with a similar title",
				ArgsUsage: "<title>",
				Action:    similarCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum number of results", Value: 10},
				},
			},
			{
				Name:      "analyze",
				Usage:     "Score a title and optional content without storing it",
				ArgsUsage: "<title> [content]",
				Action:    analyzeCommand,
			},
			{
				Name:   "stats",
				Usage:  "Print corpus and database statistics",
				Action: statsCommand,
			},
			{
				Name:   "migrate",
				Usage:  "Upgrade the database schema and re-score legacy rows",
				Action: migrateCommand,
			},
			{
				Name:   "rebuild-index",
				Usage:  "Rebuild the full text index from the articles table",
				Action: rebuildIndexCommand,
			},
			{
				Name:   "reprocess",
				Usage:  "Re-analyze articles scored with another lexicon version",
				Action: reprocessCommand,
			},
			{
				Name:   "cleanup",
				Usage:  "Delete old articles and optimize the database",
				Action: cleanupCommand,
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "older-than", Usage: "Retention age (defaults to ARTICLE_RETENTION)"},
					&cli.BoolFlag{Name: "optimize", Usage: "Run VACUUM and ANALYZE afterwards", Value: true},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  storage.Storage
	engine *engine.Engine
}

func (r *runtime) Close() {
	r.engine.Close()
	if err := r.store.Close(); err != nil {
		r.logger.Warn("failed to close storage", "error", err)
	}
}

func setup(c *cli.Context) (*runtime, error) {
	cfg := config.Load()
	if c.IsSet("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = c.String("log-level")
	}
	if v := c.String("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v := c.String("lexicon"); v != "" {
		cfg.LexiconPath = v
	}

	logger := logging.New(cfg.LogLevel)
	slog.SetDefault(logger)

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, err
	}
	an := analyzer.New(lex,
		analyzer.WithRelevanceFloor(cfg.RelevanceFloor),
		analyzer.WithMaxKeywords(cfg.MaxKeywords),
	)

	store, err := storage.NewStorage(cfg.DataDir, lex.StopWords(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	scorer := ranking.NewScorer(
		ranking.WithWeights(ranking.Weights{
			Relevance: cfg.QualityWeights.Relevance,
			Recency:   cfg.QualityWeights.Recency,
			Source:    cfg.QualityWeights.Source,
		}),
		ranking.WithDecay(cfg.RecencyDecay),
		ranking.WithReputation(cfg.SourceReputation),
	)

	eng, err := engine.New(store, an,
		engine.WithLogger(logger),
		engine.WithDuplicatePolicy(models.ParseDuplicatePolicy(cfg.DuplicateURLPolicy)),
		engine.WithDedupThreshold(cfg.DedupThreshold),
		engine.WithDedupWindow(cfg.DedupWindow),
		engine.WithDedupPoolSize(cfg.DedupPoolSize),
		engine.WithSimilarMinScore(cfg.SimilarMinScore),
		engine.WithQueryTimeout(cfg.QueryTimeout),
		engine.WithMaxSearchLimit(cfg.MaxSearchLimit),
		engine.WithScorer(scorer),
		engine.WithCache(cache.NewManager(cfg.CacheTTL)),
		engine.WithCacheTTL(cfg.CacheTTL),
		engine.WithDropUnrelated(cfg.DropUnrelated),
		engine.WithPoolSize(cfg.WorkerPoolSize),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize engine: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, store: store, engine: eng}, nil
}

// prepare verifies the text index and re-scores rows from older lexicon
// versions. A failed rebuild is fatal.
func (r *runtime) prepare(ctx context.Context) error {
	health, rebuilt, err := r.engine.VerifyIndex(ctx)
	if err != nil {
		return err
	}
	if rebuilt {
		r.logger.Warn("text index was inconsistent and has been rebuilt",
			"missing", health.Missing, "orphans", health.Orphans)
	}

	version, ok, err := r.engine.LastReprocessedVersion(ctx)
	if err != nil {
		return err
	}
	if ok && version == r.engine.LexiconVersion() {
		return nil
	}
	n, err := r.engine.Reprocess(ctx)
	if err != nil {
		return err
	}
	r.logger.Info("re-analyzed articles", "count", n, "lexicon_version", r.engine.LexiconVersion())
	return nil
}

func serveCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()
	cfg, logger := rt.cfg, rt.logger

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("cleaning up old articles", "retention", cfg.ArticleRetention)
	if n, err := rt.engine.Cleanup(ctx, cfg.ArticleRetention); err != nil {
		logger.Warn("failed to cleanup old articles", "error", err)
	} else if n > 0 {
		logger.Info("removed old articles", "count", n)
	}

	if err := rt.prepare(ctx); err != nil {
		return err
	}

	var backgroundPoller *poller.Poller
	if cfg.EnablePoller && len(cfg.Feeds) > 0 {
		backgroundPoller = poller.New(rt.engine, cfg.Feeds, cfg.PollInterval, logger)
		backgroundPoller.Start()
		defer backgroundPoller.Stop()
	}

	server := api.NewServer(rt.engine, backgroundPoller, cfg, logger)

	logger.Info("starting newsrank server",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"lexicon_version", rt.engine.LexiconVersion(),
		"feeds", len(cfg.Feeds),
		"poll_interval", cfg.PollInterval,
		"cache_ttl", cfg.CacheTTL)

	if err := server.StartWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server failed: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

func searchCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	filter := models.SearchFilter{
		Query:   strings.Join(c.Args().Slice(), " "),
		Sources: c.StringSlice("source"),
		Topics:  c.StringSlice("topic"),
		Limit:   c.Int("limit"),
		Offset:  c.Int("offset"),
	}
	if v := c.Float64("min-relevance"); v >= 0 {
		filter.MinRelevance = &v
	}
	if days := c.Int("days"); days > 0 {
		start := time.Now().UTC().AddDate(0, 0, -days)
		filter.StartDate = &start
	}

	hits, err := rt.engine.Search(c.Context, filter)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No articles found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSOURCE\tDATE\tTITLE")
	for _, h := range hits {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\n",
			models.RoundScore(h.RelevanceScore), h.Source,
			h.EffectiveTime().Format("2006-01-02"), h.Title)
	}
	return w.Flush()
}

func trendingCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	trending, err := rt.engine.TrendingTopics(c.Context, c.Int("days"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tARTICLES")
	for _, tc := range trending {
		fmt.Fprintf(w, "%s\t%d\n", tc.Topic, tc.Count)
	}
	return w.Flush()
}

func topCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	articles, err := rt.engine.TopArticles(c.Context, c.Int("hours"), c.Int("limit"))
	if err != nil {
		return err
	}
	printArticles(articles)
	return nil
}

func qualityCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	ranked, err := rt.engine.TopByQuality(c.Context, c.Int("hours"), c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "QUALITY\tSCORE\tSOURCE\tTITLE")
	for _, r := range ranked {
		fmt.Fprintf(w, "%.3f\t%.1f\t%s\t%s\n", r.Quality, models.RoundScore(r.RelevanceScore), r.Source, r.Title)
	}
	return w.Flush()
}

func similarCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a title is required", 1)
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	similar, err := rt.engine.FindSimilar(c.Context, strings.Join(c.Args().Slice(), " "), c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIMILARITY\tSOURCE\tTITLE")
	for _, s := range similar {
		fmt.Fprintf(w, "%.2f\t%s\t%s\n", s.Similarity, s.Source, s.Title)
	}
	return w.Flush()
}

func analyzeCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("a title is required", 1)
	}
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	analysis := rt.engine.Analyze(c.Args().Get(0), strings.Join(c.Args().Tail(), " "))
	analysis.Score = analysis.DisplayScore()
	return printJSON(analysis)
}

func statsCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	stats, err := rt.engine.Stats(c.Context)
	if err != nil {
		return err
	}
	dbStats, err := rt.engine.DatabaseStats(c.Context)
	if err != nil {
		return err
	}
	health, err := rt.engine.IndexHealth(c.Context)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{
		"corpus":   stats,
		"database": dbStats,
		"index":    health,
	})
}

func migrateCommand(c *cli.Context) error {
	// Opening the storage applies pending schema migrations.
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.prepare(c.Context); err != nil {
		return err
	}
	fmt.Printf("Database is up to date (lexicon %s).\n", rt.engine.LexiconVersion())
	return nil
}

func rebuildIndexCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.engine.RebuildIndex(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Rebuilt text index for %d articles.\n", n)
	return nil
}

func reprocessCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	n, err := rt.engine.Reprocess(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Re-analyzed %d articles with lexicon %s.\n", n, rt.engine.LexiconVersion())
	return nil
}

func cleanupCommand(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	age := rt.cfg.ArticleRetention
	if c.IsSet("older-than") {
		age = c.Duration("older-than")
	}

	n, err := rt.engine.Cleanup(c.Context, age)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d articles older than %v.\n", n, age)

	if c.Bool("optimize") {
		if err := rt.engine.Optimize(c.Context); err != nil {
			return err
		}
		fmt.Println("Database optimized.")
	}
	return nil
}

func printArticles(articles []models.Article) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tSOURCE\tTOPICS\tTITLE")
	for _, a := range articles {
		fmt.Fprintf(w, "%.1f\t%s\t%s\t%s\n",
			models.RoundScore(a.RelevanceScore), a.Source, strings.Join(a.Topics, ", "), a.Title)
	}
	w.Flush()
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
