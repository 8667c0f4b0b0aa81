// Package host wires together every Trinity component into a running
// process: it is the public entry point cmd/trinity builds against,
// analogous to how the teacher's pkg/server exposed the control
// plane's bootstrap so both OSS and downstream binaries could share it.
package host

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/trinitybot/trinity/internal/adminapi"
	"github.com/trinitybot/trinity/internal/adminkv"
	"github.com/trinitybot/trinity/internal/capabilities"
	"github.com/trinitybot/trinity/internal/config"
	"github.com/trinitybot/trinity/internal/dispatch"
	"github.com/trinitybot/trinity/internal/matrixtransport"
	"github.com/trinitybot/trinity/internal/modulekv"
	"github.com/trinitybot/trinity/internal/registry"
	"github.com/trinitybot/trinity/internal/roomresolve"
	"github.com/trinitybot/trinity/internal/runtime"
	"github.com/trinitybot/trinity/internal/telemetry"
	"github.com/trinitybot/trinity/internal/watcher"
	"github.com/trinitybot/trinity/pkg/models"
)

// Host holds every live component of a running Trinity instance. It is
// exposed from pkg/ rather than internal/ so an embedder can build a
// Host and mount its admin HTTP handler into a larger process.
type Host struct {
	cfg models.Config

	db       *bbolt.DB
	admin    *adminkv.Table
	moduleKV *modulekv.Store
	rooms    *roomresolve.Resolver
	matrix   *matrixtransport.Client

	watcher    *watcher.Watcher
	dispatcher *dispatch.Dispatcher

	// AdminHandler serves the read-only introspection surface
	// (/healthz, /metrics, /modules). nil if disabled in config.
	AdminHandler http.Handler

	shutdownTelemetry func(context.Context) error
}

// New builds a Host from a fully-resolved configuration. It opens the
// admin+module KV database, runs any pending schema migration,
// connects to the homeserver, discovers and compiles every configured
// module, and creates the hot-reload watcher. The returned Host has not
// started serving or watching yet; call Run.
func New(ctx context.Context, result *config.Result) (*Host, error) {
	cfg := result.Host

	shutdownTelemetry, err := telemetry.Init(result.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("host: init telemetry: %w", err)
	}

	db, err := bbolt.Open(cfg.AdminKVPath, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("host: open admin kv %s: %w", cfg.AdminKVPath, err)
	}

	adminTable, err := adminkv.Open(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("host: open admin table: %w", err)
	}
	if err := adminkv.Migrate(adminTable, cfg.TransportStore); err != nil {
		db.Close()
		return nil, fmt.Errorf("host: migrate admin table: %w", err)
	}

	moduleStore := modulekv.Open(db)

	deviceID, err := stableDeviceID(adminTable)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("host: resolve device id: %w", err)
	}

	matrix, err := matrixtransport.Connect(ctx, matrixtransport.Config{
		Homeserver: cfg.Homeserver,
		UserID:     cfg.BotUserID,
		Password:   cfg.BotPassword,
		StorePath:  cfg.TransportStore,
		DeviceID:   deviceID,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("host: connect to homeserver: %w", err)
	}

	rooms := roomresolve.New(matrix.ResolveAlias)

	h := &Host{
		cfg:               cfg,
		db:                db,
		admin:             adminTable,
		moduleKV:          moduleStore,
		rooms:             rooms,
		matrix:            matrix,
		dispatcher:        dispatch.New(cfg.AdminUserID, rooms),
		shutdownTelemetry: shutdownTelemetry,
	}

	initial, err := h.buildRegistry(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("host: initial module build: %w", err)
	}

	w, err := watcher.New(cfg.ModuleDirs, h.buildRegistry, initial)
	if err != nil {
		initial.Close()
		db.Close()
		return nil, fmt.Errorf("host: start module watcher: %w", err)
	}
	h.watcher = w

	if result.AdminAPI.Enabled {
		h.AdminHandler = adminapi.NewRouter(func() *registry.Registry { return h.watcher.Current() })
	}

	return h, nil
}

// stableDeviceID returns the device id this host logs in as, generating
// and persisting a new one on first run. Reusing the same device id
// across restarts, rather than letting the homeserver mint a fresh one
// every time, keeps the bot's end-to-end-crypto identity (and other
// devices' trust of it) stable — the same problem adminkv.KeyDeviceID
// exists to solve.
func stableDeviceID(table *adminkv.Table) (string, error) {
	existing, ok, err := table.ReadString(adminkv.KeyDeviceID)
	if err != nil {
		return "", err
	}
	if ok {
		return existing, nil
	}

	id := uuid.NewString()
	if err := table.WriteString(adminkv.KeyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

// buildRegistry compiles every module currently on disk into a fresh
// registry, wiring a per-module capability Set over the shared admin
// KV database and room resolver. Used both for the initial load and
// every subsequent hot-reload.
func (h *Host) buildRegistry(ctx context.Context) (*registry.Registry, error) {
	compile := func(ctx context.Context, name, path string, initConfig map[string]string) (runtime.GuestModule, error) {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		caps := capabilities.NewSet(name, log.Logger, h.rooms, h.moduleKV.Scoped(name))
		guest, err := runtime.Compile(ctx, name, wasmBytes, caps)
		if err != nil {
			return nil, err
		}
		if err := guest.Init(initConfig); err != nil {
			guest.Close()
			return nil, err
		}
		return guest, nil
	}

	return registry.Build(ctx, h.cfg.ModuleDirs, h.cfg.ModuleInitConfig, compile)
}

// Run starts the hot-reload watcher and the transport sync loop. It
// blocks until ctx is cancelled or the transport connection fails
// fatally.
func (h *Host) Run(ctx context.Context) error {
	go h.watcher.Run(ctx)

	return h.matrix.Run(ctx, func(event models.InboundEvent) {
		actions := h.dispatcher.Handle(h.watcher.Current(), event)
		if len(actions) == 0 {
			return
		}
		if err := h.matrix.Send(ctx, event.RoomID, event.EventID, actions); err != nil {
			log.Error().Err(err).Str("room", event.RoomID).Msg("host: failed to send actions")
		}
	})
}

// Close releases every resource the Host holds: the live module
// registry, the admin+module KV database, and flushes telemetry.
func (h *Host) Close(ctx context.Context) error {
	if h.watcher != nil {
		h.watcher.Current().Close()
	}
	if h.shutdownTelemetry != nil {
		h.shutdownTelemetry(ctx)
	}
	return h.db.Close()
}
