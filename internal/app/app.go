package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/studybot/internal/bot"
	"github.com/MrSnakeDoc/studybot/internal/config"
	"github.com/MrSnakeDoc/studybot/internal/httpserver"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/index"
	"github.com/MrSnakeDoc/studybot/internal/links"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
	"github.com/MrSnakeDoc/studybot/internal/ocr"
	"github.com/MrSnakeDoc/studybot/internal/payment"
	"github.com/MrSnakeDoc/studybot/internal/redis"
	"github.com/MrSnakeDoc/studybot/internal/retry"
	"github.com/MrSnakeDoc/studybot/internal/scheduler"
	"github.com/MrSnakeDoc/studybot/internal/search"
	"github.com/MrSnakeDoc/studybot/internal/shortener"
	"github.com/MrSnakeDoc/studybot/internal/sources/material"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
	"github.com/MrSnakeDoc/studybot/internal/telegraph"
	"github.com/MrSnakeDoc/studybot/internal/translate"
	"github.com/MrSnakeDoc/studybot/internal/utils"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	api         *tgbotapi.BotAPI
	bot         *bot.Bot
	catalog     *index.Catalog
	reloader    *scheduler.CatalogReloader
	janitor     *scheduler.LogJanitor
	syncer      *scheduler.LinkSyncer
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.New(redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	store := redisstore.NewStore(redisClient)

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		loggerClient.Errorf("Failed to reach Telegram: %v", err)
		os.Exit(1)
	}
	username := cfg.BotUsername
	if username == "" {
		username = api.Self.UserName
	}
	loggerClient.Info("telegram bot authorized", logger.String("username", username))

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	policy := retry.DefaultPolicy
	policy.Attempts = cfg.RetryAttempts
	policy.Initial = cfg.RetryInitial
	policy.Max = cfg.RetryMax

	// Catalog, lazily loaded from the yaml file
	source := material.NewSource(cfg.CatalogFile, username, loggerClient)
	catalog := index.NewCatalog(source, cfg.LinkTTL)

	resolver := links.NewResolver(links.Options{
		Bot:       username,
		Memory:    catalog,
		Shared:    store,
		Shortener: shortener.New(httpClient, cfg.ShortenerURL, cfg.ShortenerAPIKey, policy),
		TTL:       cfg.LinkTTL,
		Fanout:    cfg.LinkFanout,
	}, loggerClient.With(logger.String("component", "links")))

	publisher := telegraph.NewPublisher(
		telegraph.NewClient(httpClient, cfg.TelegraphURL, policy),
		cfg.TelegraphAuthor,
		cfg.TelegraphToken,
		loggerClient.With(logger.String("component", "telegraph")),
	)

	gateOpts := payment.Options{
		Store:    store,
		Catalog:  catalog,
		BaseURL:  cfg.PublicBaseURL,
		OrderTTL: cfg.OrderTTL,
	}
	if cfg.PaymentsEnabled() {
		gateOpts.Provider = payment.NewCashfree(httpClient, payment.CashfreeOptions{
			BaseURL:      cfg.CashfreeBaseURL,
			ClientID:     cfg.CashfreeClientID,
			ClientSecret: cfg.CashfreeClientSecret,
			APIVersion:   cfg.CashfreeAPIVersion,
		}, policy)
		gateOpts.LinkSecret = cfg.CashfreeClientSecret
	} else {
		loggerClient.Info("payments not configured, cashstudy disabled")
	}
	gate := payment.NewGate(gateOpts, loggerClient.With(logger.String("component", "payment")))

	searchSvc := search.NewService(search.Options{
		Catalog:    catalog,
		Links:      resolver,
		Publisher:  publisher,
		Gate:       gate,
		MinScore:   cfg.MinScore,
		MaxResults: cfg.MaxResults,
	}, loggerClient.With(logger.String("component", "search")))

	reloadTrigger := make(chan struct{}, 1)
	reloader := scheduler.NewCatalogReloader(source, catalog, loggerClient, cfg.ReloadInterval, reloadTrigger)

	var extractor ocr.Extractor
	if cfg.OCRAPIKey != "" {
		extractor = ocr.New(httpClient, cfg.OCRURL, cfg.OCRAPIKey, policy)
	}

	defaultMode := search.ModeFree
	if cfg.DefaultMode == config.ModePaid {
		defaultMode = search.ModePaid
	}

	b, err := bot.New(api, bot.Options{
		Username:         username,
		AdminID:          cfg.AdminID,
		DefaultMode:      defaultMode,
		Workers:          cfg.UpdateWorkers,
		BroadcastWorkers: cfg.BroadcastPool,
		SearchBurst:      cfg.SearchBurst,
		SearchPerMinute:  cfg.SearchPerMinute,
		Store:            store,
		Search:           searchSvc,
		Translator:       translate.New(httpClient, cfg.TranslateURL, policy),
		OCR:              extractor,
		Reloader:         reloader,
		Links:            resolver,
		HTTPClient:       httpClient,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to create bot: %v", err)
		os.Exit(1)
	}
	gate.SetNotifier(b)

	metrics.Init(prometheus.DefaultRegisterer, catalog, store)

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:        loggerClient,
		StartTime:     time.Now(),
		Version:       version.Version,
		Commit:        version.Commit,
		BuildDate:     version.BuildDate,
		GoVersion:     version.GoVersion,
		TimeNow:       time.Now,
		AllowedHosts:  cfg.AllowedHosts,
		AllowedCIDRS:  cfg.AllowedCIDRS,
		TrustProxy:    cfg.TrustProxy,
		Store:         store,
		Catalog:       catalog,
		Payments:      gate,
		CashfreeMode:  cfg.CashfreeEnv,
		WebhookSecret: cfg.WebhookSecret,
		Metrics:       promhttp.Handler(),
		ReloadTrigger: reloadTrigger,
		BotUsername:   username,
	}
	if cfg.UpdatesMode == config.UpdatesWebhook {
		d.Telegram = b.WebhookHandler()
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		api:         api,
		bot:         b,
		catalog:     catalog,
		reloader:    reloader,
		janitor:     scheduler.NewLogJanitor(store, loggerClient, cfg.JanitorEvery, cfg.LogRetention),
		syncer:      scheduler.NewLinkSyncer(store, catalog, loggerClient),
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Study Bot v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("Study Bot %s", version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load the catalog and start periodic refresh. A missing file is not
	// fatal: the catalog retries on the next search.
	if err := a.reloader.Start(ctx); err != nil {
		a.logger.Warn("initial catalog load failed, will retry lazily", logger.Error(err))
	}
	a.logger.Info("catalog reloader started",
		logger.Duration("interval", a.cfg.ReloadInterval))

	if a.cfg.WarmLinkCaches && a.catalog.Count() > 0 {
		if _, err := a.syncer.Sync(ctx); err != nil {
			a.logger.Warn("failed to warm link cache from redis", logger.Error(err))
		}
	}

	a.janitor.Start(ctx)
	a.logger.Info("log janitor started",
		logger.Duration("interval", a.cfg.JanitorEvery),
		logger.Duration("retention", a.cfg.LogRetention))

	errCh := make(chan error, 2)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	if err := a.startUpdates(ctx, errCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.reloader.Stop()
	a.janitor.Stop()
	if a.cfg.UpdatesMode == config.UpdatesPolling {
		a.api.StopReceivingUpdates()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if err := a.bot.Close(a.cfg.ShutdownTimeout); err != nil {
		a.logger.Warn("update workers did not finish in time", logger.Error(err))
	}

	if a.redisClient != nil {
		utils.MustClose(a.redisClient, "redis", a.logger)
		a.logger.Info("✅ Redis closed")
	}

	a.logger.Info("✅ Study Bot stopped cleanly")
	return nil
}

// startUpdates registers the webhook or starts long polling.
func (a *App) startUpdates(ctx context.Context, errCh chan<- error) error {
	if a.cfg.UpdatesMode == config.UpdatesWebhook {
		wh, err := tgbotapi.NewWebhook(a.cfg.PublicBaseURL + "/telegram/" + a.cfg.WebhookSecret)
		if err != nil {
			return fmt.Errorf("failed to build webhook: %w", err)
		}
		if _, err := a.api.Request(wh); err != nil {
			return fmt.Errorf("failed to register webhook: %w", err)
		}
		a.logger.Info("telegram webhook registered")
		return nil
	}

	if _, err := a.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.logger.Warn("failed to delete telegram webhook", logger.Error(err))
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.PollTimeout
	updates := a.api.GetUpdatesChan(u)

	go func() {
		if err := a.bot.Run(ctx, updates); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("telegram polling stopped: %w", err)
		}
	}()
	a.logger.Info("telegram long polling started", logger.Int("timeout", a.cfg.PollTimeout))
	return nil
}
