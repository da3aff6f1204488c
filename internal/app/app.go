// Package app wires configuration, storage, the sync engine and the debug
// HTTP listener into one runnable unit.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/QuilibriumNetwork/quorum-shared/internal/cleanup"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/api"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/config"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/logger"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/store"
	syncpkg "github.com/QuilibriumNetwork/quorum-shared/pkg/sync"
	"github.com/QuilibriumNetwork/quorum-shared/pkg/utils"
)

// App encapsulates the node components and lifecycle.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	inboxAddress string

	store  *store.Store
	engine *syncpkg.Engine
	srv    *http.Server
}

// New opens the store, reloads persisted tombstones into the engine and
// prepares the debug listener. It does not start anything; call Run.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	if eff.DBPath == "" {
		return nil, fmt.Errorf("db path not configured")
	}
	st, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	sc := eff.Config.Sync
	engine := syncpkg.New(st, syncpkg.Options{
		MaxMessages:           sc.MaxMessages,
		RequestExpiry:         sc.RequestExpiry.Duration(),
		AggressiveSyncTimeout: sc.AggressiveSyncTimeout.Duration(),
		MaxChunkSize:          int(sc.MaxChunkSize.Bytes()),
		TombstoneMaxAge:       sc.TombstoneMaxAge.Duration(),
		OnInitiateSync: func(spaceID string, target syncpkg.Candidate) {
			logger.Info("sync_target_selected", "space", spaceID, "target", target.InboxAddress)
		},
	})

	ts, err := st.ListTombstones(context.Background())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to reload tombstones: %w", err)
	}
	engine.Tombstones().Load(ts)

	inbox := eff.Config.Server.InboxAddress
	if inbox == "" {
		inbox = utils.GenID()
		logger.Info("inbox_address_generated", "inbox", inbox)
	}

	a := &App{eff: eff, version: version, inboxAddress: inbox, store: st, engine: engine}
	rl := eff.Config.Server.RateLimit
	a.srv = &http.Server{
		Addr:    eff.Addr,
		Handler: api.New(engine, rl.RPS, rl.Burst, version).Router(),
	}
	return a, nil
}

// Engine exposes the sync engine to the host.
func (a *App) Engine() *syncpkg.Engine { return a.engine }

// InboxAddress is this node's routing identifier, handed to peers inside
// control payloads.
func (a *App) InboxAddress() string { return a.inboxAddress }

// Run starts the cleanup scheduler and the debug listener, blocking until
// ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancelCleanup, err := cleanup.Start(ctx, a.engine, a.store,
		a.eff.Config.Cleanup.Enabled, a.eff.Config.Cleanup.Cron)
	if err != nil {
		return err
	}
	defer cancelCleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("debug_http_listening", "addr", a.srv.Addr)
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(shutCtx)
		return a.store.Close()
	case err := <-errCh:
		_ = a.store.Close()
		return err
	}
}
