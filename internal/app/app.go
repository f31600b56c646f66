package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vigil/internal/classify"
	"github.com/ternarybob/vigil/internal/common"
	"github.com/ternarybob/vigil/internal/cookies"
	"github.com/ternarybob/vigil/internal/httpclient"
	"github.com/ternarybob/vigil/internal/notify"
	"github.com/ternarybob/vigil/internal/poller"
	"github.com/ternarybob/vigil/internal/resolver"
	"github.com/ternarybob/vigil/internal/scheduler"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Store     *cookies.Store
	Resolver  *resolver.Resolver
	Notifier  *notify.Notifier
	Poller    *poller.Poller
	Scheduler *scheduler.Scheduler
}

// New constructs the application from a validated configuration. The
// cookie store is created once here and threaded into the resolver and
// poller; both mutate it as the session rotates.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	origins := common.Origins(config.Target.PageURL, config.Target.URL)

	store, err := cookies.NewStore(config.Target.Cookie, origins, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cookie store: %w", err)
	}

	headerTimeout, err := config.HeaderTimeout()
	if err != nil {
		return nil, err
	}
	requestTimeout, err := config.RequestTimeout()
	if err != nil {
		return nil, err
	}
	retryDelay, err := config.RetryDelay()
	if err != nil {
		return nil, err
	}
	interval, err := config.PollInterval()
	if err != nil {
		return nil, err
	}

	client := httpclient.New(headerTimeout, requestTimeout)

	res := resolver.New(
		config.Target.PageURL,
		config.Target.URL,
		config.Target.ExpectedCodes,
		store,
		client,
		logger,
	)

	notifier := notify.New(config.Monitor.PushURL, config.Monitor.Enabled, logger)

	markers := config.Poll.FailureMarkers
	if len(markers) == 0 {
		markers = classify.DefaultMarkers
	}

	p := poller.New(res, store, client, notifier, poller.Options{
		ExpectedCodes: config.Target.ExpectedCodes,
		Markers:       markers,
		MaxRetries:    config.Poll.MaxRetries,
		RetryDelay:    retryDelay,
		PaceInterval:  time.Second,
	}, logger)

	sched := scheduler.New(p, interval, logger)

	logger.Info().
		Str("page_url", config.Target.PageURL).
		Str("target_url", config.Target.URL).
		Dur("interval", interval).
		Int("max_retries", config.Poll.MaxRetries).
		Bool("monitor_enabled", config.Monitor.Enabled).
		Msg("Application initialized")

	return &App{
		Config:    config,
		Logger:    logger,
		Store:     store,
		Resolver:  res,
		Notifier:  notifier,
		Poller:    p,
		Scheduler: sched,
	}, nil
}

// Start begins the poll schedule.
func (a *App) Start() error {
	return a.Scheduler.Start()
}

// Close stops the scheduler, waiting briefly for an in-flight cycle.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.Scheduler.Stop(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduler did not stop cleanly")
	}
}
