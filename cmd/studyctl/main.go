// Command studyctl is the operator CLI: it validates catalog files, runs
// offline searches and maintains the Redis caches.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/redis"
	"github.com/MrSnakeDoc/studybot/internal/sources/material"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "Path to the catalog yaml",
		EnvVars:  []string{"STUDYBOT_CATALOG_FILE"},
		Required: true,
	}
	botFlag := &cli.StringFlag{
		Name:    "bot",
		Usage:   "Bot username used for deep links (overrides the file)",
		EnvVars: []string{"STUDYBOT_BOT_USERNAME"},
	}
	redisFlags := []cli.Flag{
		&cli.StringFlag{
			Name:    "redis-addr",
			Usage:   "Redis address",
			EnvVars: []string{"STUDYBOT_REDIS_ADDR"},
			Value:   "localhost:6379",
		},
		&cli.StringFlag{
			Name:    "redis-password",
			Usage:   "Redis password",
			EnvVars: []string{"STUDYBOT_REDIS_PASSWORD"},
		},
		&cli.IntFlag{
			Name:    "redis-db",
			Usage:   "Redis DB number",
			EnvVars: []string{"STUDYBOT_REDIS_DB"},
		},
	}

	return &cli.App{
		Name:    "studyctl",
		Usage:   "Operate the study material bot",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "error",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "catalog",
				Usage: "Catalog file tools",
				Subcommands: []*cli.Command{
					{
						Name:   "validate",
						Usage:  "Parse the catalog and report skipped or conflicting entries",
						Flags:  []cli.Flag{fileFlag, botFlag},
						Action: validateCommand,
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Rank the catalog against a query, offline",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					fileFlag,
					botFlag,
					&cli.Float64Flag{
						Name:  "min-score",
						Usage: "Drop items scoring below this",
						Value: domain.DefaultMinScore,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Show at most this many items (0 = all)",
						Value: 20,
					},
					&cli.StringFlag{
						Name:  "category",
						Usage: "Only show items of this category (case-insensitive)",
					},
				},
				Action: searchCommand,
			},
			{
				Name:      "purchases",
				Usage:     "List the item keys a user paid for",
				ArgsUsage: "<telegram user id>",
				Flags:     redisFlags,
				Action:    purchasesCommand,
			},
			{
				Name:  "links",
				Usage: "Shortened link cache tools",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "Print the cached shortened links",
						Flags:  redisFlags,
						Action: linksListCommand,
					},
					{
						Name:   "flush",
						Usage:  "Delete every cached shortened link",
						Flags:  redisFlags,
						Action: linksFlushCommand,
					},
				},
			},
			{
				Name:  "version",
				Usage: "Print build information",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintln(c.App.Writer, "studyctl", version.String())
					return err
				},
			},
		},
	}
}

func loadCatalog(c *cli.Context) (material.File, []domain.CatalogItem, []material.Issue, error) {
	file, err := material.NewLoader(c.String("file")).Load()
	if err != nil {
		return material.File{}, nil, nil, err
	}
	snap, issues, err := material.NewMapper(c.String("bot")).Map(file)
	if err != nil {
		return file, nil, issues, err
	}
	return file, snap.Items, issues, nil
}

func validateCommand(c *cli.Context) error {
	file, items, issues, err := loadCatalog(c)
	w := c.App.Writer
	for _, is := range issues {
		fmt.Fprintf(w, "skipped %s\n", is)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid catalog: %v", err), 1)
	}

	gated := 0
	for _, it := range items {
		if it.Gated() {
			gated++
		}
	}
	fmt.Fprintf(w, "ok: %d categories, %d items (%d paid), %d skipped\n",
		len(file.Categories), len(items), gated, len(issues))
	return nil
}

func searchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	q := domain.ParseQuery(query)
	if q.IsEmpty() {
		return cli.Exit("a query is required", 2)
	}

	_, items, _, err := loadCatalog(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid catalog: %v", err), 1)
	}

	ranked := domain.Rank(q, items, c.Float64("min-score"))
	if cat := c.String("category"); cat != "" {
		ranked = ranked.Filter(func(s domain.ScoredItem) bool {
			return strings.EqualFold(s.Item.Category, cat)
		})
	}
	printRanked(c.App.Writer, q, ranked.Limit(c.Int("limit")), ranked.Total())
	return nil
}

func printRanked(w io.Writer, q domain.SearchQuery, ranked domain.Ranked, total int) {
	if ranked.Empty() {
		fmt.Fprintf(w, "no materials found for %q\n", q.Normalized)
		return
	}
	fmt.Fprintf(w, "%d matches for %q\n", total, q.Normalized)
	for _, g := range ranked.Groups {
		fmt.Fprintf(w, "\n%s %s\n", g.Tier.Emoji(), g.Tier)
		for _, it := range g.Items {
			price := "free"
			if it.Item.Gated() {
				price = fmt.Sprintf("₹%d", it.Item.Price)
			}
			fmt.Fprintf(w, "  %.2f  %-30s %-12s %-6s %s\n",
				it.Score, it.Item.Label, it.Item.Category, price, it.Item.Key)
		}
	}
}

func connect(c *cli.Context) (*goredis.Client, error) {
	log := logger.New(c.String("log-level"), false)
	return redis.New(redis.ConnectOptions{
		Addr:           c.String("redis-addr"),
		Password:       c.String("redis-password"),
		RedisDB:        c.Int("redis-db"),
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		PoolSize:       2,
		ConnectTimeout: 10 * time.Second,
		RetryInterval:  time.Second,
		MaxWait:        3 * time.Second,
		PingTimeout:    2 * time.Second,
		WarnThreshold:  2,
	}, log)
}

func linksListCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	links, err := redisstore.NewStore(client).AllShortLinks(context.Background())
	if err != nil {
		return err
	}
	for key, url := range links {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", key, url)
	}
	fmt.Fprintf(c.App.Writer, "%d cached links\n", len(links))
	return nil
}

func linksFlushCommand(c *cli.Context) error {
	client, err := connect(c)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := redisstore.NewStore(client).FlushShortLinks(context.Background()); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "short link cache flushed")
	return nil
}

func purchasesCommand(c *cli.Context) error {
	userID, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil {
		return cli.Exit("a numeric telegram user id is required", 2)
	}

	client, err := connect(c)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	keys, err := redisstore.NewStore(client).PaidItems(context.Background(), userID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		fmt.Fprintln(c.App.Writer, k)
	}
	fmt.Fprintf(c.App.Writer, "%d paid items for user %d\n", len(keys), userID)
	return nil
}
