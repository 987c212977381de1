package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/newsrank"
	"github.com/poiesic/newsrank/config"
	"github.com/poiesic/newsrank/core"
	"github.com/poiesic/newsrank/indexstore"
	"github.com/poiesic/newsrank/ingestion"
	"github.com/poiesic/newsrank/search"
	"github.com/poiesic/newsrank/server"
)

var _ server.Engine = (*newsrank.Engine)(nil)

// loadConfig reads the config file and applies the global flag overrides.
func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dir := c.String("index-dir"); dir != "" {
		cfg.Index.Dir = dir
	}
	if host := c.String("embedding-host"); host != "" {
		cfg.Embedding.Host = host
	}
	if model := c.String("embedding-model"); model != "" {
		cfg.Embedding.Model = model
	}
	return cfg, nil
}

// openEngine opens the engine described by cfg. Progress bars go to progress
// when it is not nil.
func openEngine(ctx context.Context, cfg *config.AppConfig, progress io.Writer) (*newsrank.Engine, error) {
	aiConfig := cfg.AIConfig()
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	params, err := cfg.IndexParams()
	if err != nil {
		return nil, err
	}

	opts := []newsrank.EngineOption{
		newsrank.WithAIConfig(aiConfig),
		newsrank.WithEmbedderConfig(cfg.EmbedderConfig()),
		newsrank.WithIndexParams(params),
		newsrank.WithKeywordOptions(cfg.KeywordOptions()),
		newsrank.WithRankingOptions(cfg.RankingOptions()),
		newsrank.WithGrowthBuffer(cfg.Index.GrowthBuffer),
		newsrank.WithExactThreshold(cfg.Index.ExactThreshold),
		newsrank.WithSummaryGrowth(cfg.Index.SummaryGrowth),
	}
	if progress != nil {
		opts = append(opts, newsrank.WithProgress(progress))
	}

	engine, err := newsrank.Open(ctx, cfg.Index.Dir, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", cfg.Index.Dir, err)
	}
	return engine, nil
}

func setup(c *cli.Context, progress io.Writer) (*newsrank.Engine, *config.AppConfig, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	engine, err := openEngine(c.Context, cfg, progress)
	if err != nil {
		return nil, nil, err
	}
	return engine, cfg, nil
}

func loadInputs(c *cli.Context) ([]string, error) {
	paths := c.StringSlice("input")
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
	}
	return paths, nil
}

func buildCommand(c *cli.Context) error {
	paths, err := loadInputs(c)
	if err != nil {
		return err
	}
	docs, err := ingestion.LoadFiles(c.Context, paths...)
	if err != nil {
		return fmt.Errorf("failed to load articles: %w", err)
	}

	engine, cfg, err := setup(c, os.Stderr)
	if err != nil {
		return err
	}
	defer engine.Close()

	capacity := c.Int("capacity")
	if capacity <= 0 {
		capacity = cfg.Index.Capacity
	}

	fmt.Fprintf(os.Stderr, "Index: %s\n", cfg.Index.Dir)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintf(os.Stderr, "Articles read: %d\n\n", len(docs))

	res, err := engine.Build(c.Context, docs, capacity)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	fmt.Printf("Indexed %d articles (%d duplicates, %d without usable text), capacity %d, dimension %d\n",
		res.Documents, res.Duplicates, res.Skipped, res.Capacity, res.Dimension)
	return nil
}

func updateCommand(c *cli.Context) error {
	paths, err := loadInputs(c)
	if err != nil {
		return err
	}
	docs, err := ingestion.LoadFiles(c.Context, paths...)
	if err != nil {
		return fmt.Errorf("failed to load articles: %w", err)
	}

	engine, _, err := setup(c, os.Stderr)
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.Update(c.Context, docs)
	if err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Printf("Added %d articles, %d already indexed, %d without usable text", res.Added, res.Duplicates, res.Skipped)
	if res.Resized {
		fmt.Printf(", index grown to %d", res.Capacity)
	}
	fmt.Println()
	return nil
}

func rebuildCommand(c *cli.Context) error {
	paths, err := loadInputs(c)
	if err != nil {
		return err
	}
	docs, err := ingestion.LoadFiles(c.Context, paths...)
	if err != nil {
		return fmt.Errorf("failed to load articles: %w", err)
	}

	engine, _, err := setup(c, os.Stderr)
	if err != nil {
		return err
	}
	defer engine.Close()

	res, err := engine.Rebuild(c.Context, docs, c.Int("capacity"))
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	fmt.Printf("Rebuilt index with %d articles, capacity %d\n", res.Documents, res.Capacity)
	return nil
}

func infoCommand(c *cli.Context) error {
	engine, _, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	info, err := engine.Info()
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, info)
}

func sourcesCommand(c *cli.Context) error {
	engine, _, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	sources, err := engine.Sources()
	if err != nil {
		return err
	}
	for _, s := range sources {
		fmt.Println(s)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	engine, cfg, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(c.Context, cfg.RequestTimeout())
	defer cancel()

	resp, err := engine.Search(ctx, search.Request{
		Query:  query,
		TopK:   c.Int("topk"),
		Mode:   c.String("mode"),
		Sort:   c.String("sort"),
		Source: c.String("source"),
	})
	if err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(os.Stdout, resp)
	}
	printResults(os.Stdout, resp)
	return nil
}

func printResults(w io.Writer, resp *search.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "No results (%d ms)\n", resp.TookMS)
		return
	}
	for i, r := range resp.Results {
		fmt.Fprintf(w, "%2d. [%.4f] %s\n", i+1, r.Score, r.Title)
		meta := []string{r.Source}
		if r.Category != "" {
			meta = append(meta, r.Category)
		}
		if r.Published != "" {
			meta = append(meta, r.Published)
		}
		fmt.Fprintf(w, "    %s\n", strings.Join(meta, " | "))
		if r.Link != "" {
			fmt.Fprintf(w, "    %s\n", r.Link)
		}
	}
	fmt.Fprintf(w, "%d results in %d ms\n", len(resp.Results), resp.TookMS)
}

func serveCommand(c *cli.Context) error {
	engine, cfg, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	addr := c.String("addr")
	if addr == "" {
		addr = cfg.Server.Addr
	}
	srv := server.New(engine,
		server.WithAddr(addr),
		server.WithTimeouts(
			time.Duration(cfg.Server.ReadTimeoutSecs)*time.Second,
			time.Duration(cfg.Server.WriteTimeoutSecs)*time.Second),
		server.WithRequestTimeout(cfg.RequestTimeout()))

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.ListenAndServe(ctx)
}

func compareCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("a query is required")
	}

	engine, _, err := setup(c, nil)
	if err != nil {
		return err
	}
	defer engine.Close()

	cmp, err := engine.Compare(c.Context, query, c.Int("k"))
	if err != nil {
		return err
	}

	snap := engine.Snapshot()
	fmt.Printf("Approximate (%s):\n", cmp.ApproximateTime)
	for _, hit := range cmp.Approximate {
		printHit(os.Stdout, snap, hit)
	}
	fmt.Printf("Exact (%s):\n", cmp.ExactTime)
	for _, hit := range cmp.Exact {
		printHit(os.Stdout, snap, hit)
	}
	fmt.Printf("Recall@%d: %.4f\n", len(cmp.Exact), cmp.Recall)
	return nil
}

func printHit(w io.Writer, snap *indexstore.Snapshot, hit core.SearchHit) {
	title := "?"
	if doc, ok := snap.Document(hit.Label); ok {
		title = doc.Title
	}
	fmt.Fprintf(w, "  %5d  %.4f  %s\n", hit.Label, hit.Distance, title)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
