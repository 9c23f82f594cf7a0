package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tomcat/internal/appstate"
	"tomcat/internal/bot"
	"tomcat/internal/catalog"
	"tomcat/internal/config"
	"tomcat/internal/contextbuf"
	"tomcat/internal/dates"
	"tomcat/internal/dispatch"
	"tomcat/internal/dues"
	"tomcat/internal/entity"
	"tomcat/internal/feeding"
	"tomcat/internal/fetcher"
	"tomcat/internal/intent"
	"tomcat/internal/metrics"
	"tomcat/internal/nlp"
	"tomcat/internal/pending"
	"tomcat/internal/router"
	"tomcat/internal/scheduler"
	"tomcat/internal/storage"
	"tomcat/internal/vision"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	vocab, err := config.LoadVocab(cfg.VocabPath)
	if err != nil {
		log.Error("load vocabulary", "path", cfg.VocabPath, "error", err)
		os.Exit(1)
	}
	names := vocab.Vocabulary()
	loc := cfg.Location()
	clock := dates.New(loc)

	var (
		predictor intent.Model
		scorer    entity.Scorer
	)
	if cfg.NLPAPIKey != "" {
		c := nlp.New(cfg.NLPAPIKey, cfg.NLPBaseURL, cfg.NLPModel, log)
		predictor, scorer = c, c
		log.Info("semantic fallback enabled", "model", cfg.NLPModel)
	}

	state := appstate.New(cfg.SilentMode, log)
	deps := bot.Deps{
		Store:   store,
		State:   state,
		Catalog: catalog.New(store, log),
		Feeding: feeding.New(store, vocab.StationNames(), vocab.RosterMap(), vocab.Users, clock, log),
		Vision:  vision.New(http.DefaultClient, cfg.CVEndpoint, cfg.CVTimeout),
		Fetcher: fetcher.New(http.DefaultClient, cfg.MaxDownloadBytes()),
		Clock:   clock,
		Cats:    names.Cats,
	}

	b, err := bot.New(cfg.DiscordToken, cfg, deps, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	buf := contextbuf.New(contextbuf.DefaultCapacity)
	cls := intent.New(intent.Config{
		WakeWords:         cfg.WakeWords,
		FeedingChannels:   cfg.FeedingChannels,
		ImageLookback:     cfg.ImageLookback,
		FeedImageLookback: cfg.FeedImageLookback,
		PendingTTL:        cfg.PendingTTL,
	}, entity.New(names, scorer, entity.Thresholds{}, log), clock, buf, pending.New(), predictor, log)

	disp := dispatch.New(b.Handlers(), state, b, log)
	disp.SetClarifyTimeout(cfg.ClarifyTimeout)
	disp.SetToday(clock.Today)
	defer disp.Close()

	b.Bind(router.New(buf, cls, disp, log), disp)

	var poller scheduler.Poller
	if cfg.DuesMailDir != "" {
		poller = dues.NewIngester(store, vocab.Members, cfg.DuesMailDir, log)
	}
	sched := scheduler.New(poller, b, loc, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting bot", "silent", state.SilentMode(), "timezone", loc.String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	g.Go(func() error { return sched.Run(ctx) })
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, log) })
	}

	if err := g.Wait(); err != nil {
		log.Error("bot stopped", "error", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
