// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/newsrank/config"
	"github.com/poiesic/newsrank/search"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "newsrank",
		Usage: "Hybrid semantic and keyword search over news articles",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   config.DefaultPath,
			},
			&cli.StringFlag{
				Name:    "index-dir",
				Aliases: []string{"d"},
				Usage:   "Index directory (overrides index.dir)",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL (overrides embedding.host)",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name (overrides embedding.model)",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "build",
				Usage:  "Build a new index from article files",
				Action: buildCommand,
				Flags: []cli.Flag{
					inputFlag(true),
					&cli.IntFlag{
						Name:  "capacity",
						Usage: "Initial index capacity (0 uses index.capacity)",
					},
				},
			},
			{
				Name:   "update",
				Usage:  "Merge new articles into the index",
				Action: updateCommand,
				Flags:  []cli.Flag{inputFlag(true)},
			},
			{
				Name:   "rebuild",
				Usage:  "Rebuild the index from stored articles plus optional new files",
				Action: rebuildCommand,
				Flags: []cli.Flag{
					inputFlag(false),
					&cli.IntFlag{
						Name:  "capacity",
						Usage: "Index capacity (0 sizes from the corpus)",
					},
				},
			},
			{
				Name:   "info",
				Usage:  "Describe the loaded index",
				Action: infoCommand,
			},
			{
				Name:   "sources",
				Usage:  "List article sources in the index",
				Action: sourcesCommand,
			},
			{
				Name:      "search",
				Usage:     "Run one search and print the results",
				ArgsUsage: "QUERY...",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Ranking mode (hybrid, semantic, keyword)",
						Value: search.ModeHybrid.String(),
					},
					&cli.StringFlag{
						Name:  "sort",
						Usage: "Result order (relevance, newest)",
						Value: search.SortRelevance.String(),
					},
					&cli.IntFlag{
						Name:  "topk",
						Usage: "Number of results",
						Value: search.DefaultTopK,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Only return articles from this source",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the raw JSON response",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the search API over HTTP",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:   "bench",
				Usage:  "Benchmark exact heap, exact vectorized and approximate search over stored vectors",
				Action: benchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "queries",
						Usage: "Number of stored vectors used as queries",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "k",
						Usage: "Neighbors per query",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Queries per worker task",
						Value: 32,
					},
				},
			},
			{
				Name:      "compare",
				Usage:     "Compare approximate and exact neighbors for one query",
				ArgsUsage: "QUERY...",
				Action:    compareCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "k",
						Usage: "Neighbors to compare",
						Value: 10,
					},
				},
			},
		},
	}
}

func inputFlag(required bool) cli.Flag {
	return &cli.StringSliceFlag{
		Name:     "input",
		Aliases:  []string{"i"},
		Usage:    "Article file (JSON list, {\"articles\": [...]} or JSONL); repeatable",
		Required: required,
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
