// Package app wires the one-car server runtime: config, logging, storage,
// the authentication and OAuth linking services, and HTTP routes.
package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Hana-Open-Banking/one-car/cmd/identity"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth"
	authapi "github.com/Hana-Open-Banking/one-car/cmd/internal/auth/api"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/auth/session"
	oauthapi "github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/api"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/correlation"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/linking"
	"github.com/Hana-Open-Banking/one-car/cmd/internal/oauth/provider"
)

// App owns the server and the services behind it.
type App struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	store   *backend
	sweeper *sweeper

	auth    *auth.Service
	linking *linking.Service

	authAPI  *authapi.Handler
	oauthAPI *oauthapi.Handler
}

// New builds a fully wired App. The caller must Run it or Close it.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	now := time.Now

	hasher, err := newTokenHasher(cfg.Server)
	if err != nil {
		return nil, err
	}
	codec, err := session.NewCodec(cfg.Session)
	if err != nil {
		return nil, err
	}

	store, err := openBackend(ctx, cfg.Server, log)
	if err != nil {
		return nil, err
	}

	ledger := session.NewLedger(store.pairs, hasher)
	sessions := session.NewService(codec, ledger, now)
	authSvc := auth.NewService(log, store.accounts, identity.NewPasswords(cfg.Password), sessions, store.tx)

	correlations := correlation.NewManager(store.correlations, store.tx, cfg.Correlation, now)
	remote := provider.NewClient(log, cfg.Provider, now)
	linkSvc := linking.NewService(log, authSvc, correlations, remote, store.credentials, store.tx, now)

	log.Info("app.wired",
		"engine", store.name,
		"token_format", string(cfg.Session.Format),
		"token_hmac", hasher.HMACEnabled(),
		"provider", cfg.Provider.BaseURL,
	)

	return &App{
		cfg:   cfg,
		log:   log,
		now:   now,
		store: store,
		sweeper: &sweeper{
			log:      log,
			sessions: correlations,
			ledger:   ledger,
			interval: cfg.Correlation.SweepInterval,
			grace:    cfg.Server.PairPurgeGrace,
			now:      now,
		},
		auth:     authSvc,
		linking:  linkSvc,
		authAPI:  authapi.NewHandler(log, cfg.AuthAPI, authSvc, now),
		oauthAPI: oauthapi.NewHandler(log, cfg.OAuthAPI, linkSvc),
	}, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.routes() }

// Close releases storage resources.
func (a *App) Close() {
	if a.store != nil && a.store.close != nil {
		a.store.close()
	}
}

// Run serves HTTP and runs the sweeper until ctx is done or the listener fails.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	s := a.cfg.Server
	srv := &http.Server{
		Addr:              s.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(s.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(s.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(s.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(s.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(s.MaxHeaderBytes, 1<<20),
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweeper.run(sweepCtx)

	a.log.Info("server.start", "addr", s.HTTPAddr, "engine", a.store.name)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
