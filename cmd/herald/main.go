package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/herald/internal/alerts"
	"github.com/ternarybob/herald/internal/browser"
	"github.com/ternarybob/herald/internal/common"
	"github.com/ternarybob/herald/internal/models"
	"github.com/ternarybob/herald/internal/reliability"
	badgerstore "github.com/ternarybob/herald/internal/storage/badger"

	"github.com/ternarybob/herald/internal/services/engine"
	"github.com/ternarybob/herald/internal/services/extractor"
	"github.com/ternarybob/herald/internal/services/jobs"
	"github.com/ternarybob/herald/internal/services/recovery"
	"github.com/ternarybob/herald/internal/services/resolver"
	"github.com/ternarybob/herald/internal/services/scheduler"
	"github.com/ternarybob/herald/internal/services/search"
)

// configFlags collects repeatable -config arguments; later files override
// earlier ones.
type configFlags []string

func (c *configFlags) String() string { return fmt.Sprint(*c) }

func (c *configFlags) Set(value string) error {
	*c = append(*c, value)
	return nil
}

func main() {
	var configs configFlags
	flag.Var(&configs, "config", "Path to a TOML config file (repeatable; later files override earlier ones)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	categoryName := flag.String("category", "", "Run one crawl for the named category and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(common.GetFullVersion())
		return
	}

	config, err := common.LoadFromFiles(configs...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Msg("Starting herald")

	store, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
		return
	}
	defer store.Close()

	alertManager := alerts.NewManager(config.Alerts, logger)
	retrier := reliability.NewRetrier(logger)
	breakers := reliability.NewBreakerManager(logger, alertManager)

	var launcher browser.Launcher
	if config.Browser.Enabled {
		launcher = browser.NewChromeLauncher(logger)
	}

	source := search.NewGNewsSource(config.Search.Endpoint, logger)
	searchClient := search.NewClient(source, retrier, breakers, config.Search, logger)
	urlResolver := resolver.New(config.Resolver, config.Browser, launcher, logger)
	articleExtractor := extractor.New(config.Extractor, config.Browser, retrier, breakers, launcher, logger)

	crawlEngine := engine.New(searchClient, urlResolver, articleExtractor, store.Articles, config, logger)
	runner := jobs.NewRunner(crawlEngine, store.Jobs, store.Categories, alertManager, config.Scheduler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *categoryName != "" {
		if err := runOnce(ctx, runner, store, *categoryName); err != nil {
			logger.Error().Err(err).Str("category", *categoryName).Msg("Crawl failed")
			os.Exit(1)
		}
		return
	}

	recoveryEngine := recovery.NewEngine(store.Jobs, store.Categories, alertManager, config.Recovery, logger)

	sched := scheduler.New(runner, store.Jobs, store.Categories, alertManager, config.Scheduler, logger)
	if config.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start scheduler")
			return
		}
	}

	go runRecoveryLoop(ctx, recoveryEngine)

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	if config.Scheduler.Enabled {
		sched.Stop()
	}
	logger.Info().Msg("Herald stopped")
}

// runOnce executes a single on-demand crawl for a category by name.
func runOnce(ctx context.Context, runner *jobs.Runner, store *badgerstore.Manager, name string) error {
	category, err := store.Categories.GetByName(ctx, name)
	if err != nil {
		return err
	}

	job := &models.CrawlJob{
		ID:            common.NewJobID(),
		CategoryID:    category.ID,
		JobType:       models.JobTypeOnDemand,
		Status:        models.JobStatusPending,
		CorrelationID: common.NewCorrelationID(),
		CreatedAt:     time.Now(),
	}
	if err := store.Jobs.Create(ctx, job); err != nil {
		return err
	}

	return runner.Run(ctx, category.ID, job.ID)
}

// runRecoveryLoop analyzes failed jobs once an hour until shutdown.
func runRecoveryLoop(ctx context.Context, eng *recovery.Engine) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = eng.Run(ctx)
		}
	}
}
