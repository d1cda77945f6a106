package main

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lildude/lastactivity/internal/activity"
	"github.com/lildude/lastactivity/internal/cache"
	"github.com/lildude/lastactivity/internal/client"
	"github.com/lildude/lastactivity/internal/config"
	"github.com/lildude/lastactivity/internal/database"
	"github.com/lildude/lastactivity/internal/handlers/auth"
	"github.com/lildude/lastactivity/internal/handlers/widget"
	"github.com/lildude/lastactivity/internal/middleware"
	"github.com/lildude/lastactivity/internal/scheduler"
	"github.com/lildude/lastactivity/internal/sessions"
	"github.com/lildude/lastactivity/internal/strava"
	"github.com/lildude/lastactivity/internal/token"
	"github.com/lildude/lastactivity/internal/tokenstore"
	"github.com/sirupsen/logrus"
)

type App struct {
	ListenAddr string
	Handler    http.Handler

	log       *logrus.Logger
	fetcher   *activity.Fetcher
	state     *widget.State
	scheduler *scheduler.Scheduler
	close     func() error
}

func NewApp(ctx context.Context, c *config.Config, log *logrus.Logger) (*App, error) {
	store, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(c.BaseURL)
	if err != nil {
		closeStore() //nolint:errcheck
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	hc := &http.Client{Timeout: c.HTTPTimeout}

	manager := token.NewManager(token.Credentials{
		TokenURL:     c.TokenURL,
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RefreshToken: c.RefreshToken,
	}, store, token.WithLogger(log), token.WithHTTPClient(hc))

	fetcher := activity.NewFetcher(manager, client.NewClient(baseURL, hc), activity.Options{
		DaysToQuery:  c.DaysToQuery,
		BeforeOffset: c.BeforeOffset,
		Units:        c.Units,
		Locale:       c.Locale,
		Logger:       log,
	})

	state := &widget.State{}
	mux := http.NewServeMux()
	widget.NewHandler(state, log).Register(mux)
	key, err := sessionKey(c.SessionKey)
	if err != nil {
		closeStore() //nolint:errcheck
		return nil, err
	}
	oauthCfg := strava.NewOAuthConfig(c.ClientID, c.ClientSecret, c.AuthURL, c.TokenURL, c.RedirectURL)
	sess := sessions.NewStore(key, c.Env == "dev")
	mux.Handle("GET /auth", auth.NewHandler(oauthCfg, c.StateToken, sess, manager, log))

	return &App{
		ListenAddr: c.ListenAddr(),
		Handler:    middleware.Logging(log)(middleware.CORS(mux)),
		log:        log,
		fetcher:    fetcher,
		state:      state,
		scheduler:  &scheduler.Scheduler{InitialDelay: c.InitialLoadDelay, Interval: c.UpdateInterval, Log: log},
		close:      closeStore,
	}, nil
}

// openStore returns the configured token store and a func releasing its connection.
func openStore(ctx context.Context, c *config.Config) (token.Store, func() error, error) {
	noop := func() error { return nil }

	switch c.TokenStore {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, c.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return tokenstore.NewRedis(rc, ""), rc.Close, nil
	case "database":
		db, err := database.Open(c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, fmt.Errorf("getting database handle: %w", err)
		}
		return tokenstore.NewDatabase(db), sqlDB.Close, nil
	case "file", "":
		return tokenstore.NewFile(c.TokenFile), noop, nil
	}
	return nil, nil, fmt.Errorf("unknown token store %q", c.TokenStore)
}

// sessionKey returns the configured key or, when unset, a random one. A random
// key means a login started before a restart has to be started again.
func sessionKey(configured string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating session key: %w", err)
	}
	return key, nil
}

// cycle runs one fetch cycle and publishes the outcome to the widget.
func (a *App) cycle(ctx context.Context) {
	summary, err := a.fetcher.FetchCycle(ctx)
	if errors.Is(err, activity.ErrCycleInProgress) {
		a.log.Warn("skipping fetch cycle, previous one still running")
		return
	}
	if errors.Is(err, context.Canceled) {
		return
	}
	a.state.Update(summary, err, time.Now())
}

// Run starts the scheduler and the HTTP server and shuts both down gracefully
// on context cancellation.
func (a *App) Run(ctx context.Context) error {
	defer a.close() //nolint:errcheck

	httpServer := &http.Server{
		Addr:              a.ListenAddr,
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	schedulerDone := make(chan struct{})
	go func() {
		a.scheduler.Run(srvCtx, a.cycle)
		close(schedulerDone)
	}()

	idleConnsClosed := make(chan struct{})
	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			a.log.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		a.log.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	a.log.WithField("addr", a.ListenAddr).Info("starting server")
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-schedulerDone

	return err
}
