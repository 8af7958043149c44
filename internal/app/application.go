// Package app assembles the wallet core: state, navigation guard,
// reconciliation engine and their lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/oysy/walletcore/internal/app/domain/events"
	"github.com/oysy/walletcore/internal/app/domain/route"
	"github.com/oysy/walletcore/internal/app/services/navigation"
	"github.com/oysy/walletcore/internal/app/services/reconcile"
	"github.com/oysy/walletcore/internal/app/state"
	"github.com/oysy/walletcore/internal/app/storage"
	"github.com/oysy/walletcore/internal/app/system"
	"github.com/oysy/walletcore/pkg/logger"
)

// Config wires an Application. Zero values fall back to sensible defaults;
// endpoints left empty disable the corresponding balance source.
type Config struct {
	Store  storage.Store
	Routes []route.Policy

	LedgerURL         string
	GatewayURL        string
	ReconcileSchedule string

	Notify         events.Dispatcher
	System         events.SystemNotifier
	Navigator      navigation.Navigator
	ResetIndicator func()
	// FocusAccounts runs when a system notification is activated. Defaults
	// to marking the accounts view active and visible.
	FocusAccounts func()

	Logger *logger.Logger
}

// Application ties the wallet core together and manages its lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	State  *state.State
	Guard  *navigation.Guard
	Engine *reconcile.Engine

	// Events is set when no dispatcher was supplied; the embedding shell
	// drains it to render alerts.
	Events *events.ChannelDispatcher
}

// New builds a fully initialised application. Persisted state is restored
// before any service can observe it.
func New(cfg Config) (*Application, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("app")
	}

	appState := state.New(cfg.Store, log.WithField("module", "state"))
	appState.Restore()

	notify := cfg.Notify
	var channel *events.ChannelDispatcher
	if notify == nil {
		channel = events.NewChannelDispatcher(32)
		notify = channel
	}

	table := route.NewTable(cfg.Routes)

	guard := navigation.NewGuard(navigation.Config{
		Table:          table,
		Session:        appState.Session,
		Offline:        appState.Offline,
		Navigator:      cfg.Navigator,
		Notify:         notify,
		ResetIndicator: cfg.ResetIndicator,
		Logger:         log.WithField("module", "navigation"),
	})

	var ledger reconcile.BalanceSource
	if cfg.LedgerURL != "" {
		src, err := reconcile.NewLedgerSource(cfg.LedgerURL, log.WithField("module", "ledger-source"))
		if err != nil {
			return nil, fmt.Errorf("configure ledger source: %w", err)
		}
		ledger = src
	} else {
		log.Warn("ledger URL not set; ledger balance source disabled")
	}

	var gateway reconcile.BalanceSource
	if cfg.GatewayURL != "" {
		httpClient := &http.Client{Timeout: 10 * time.Second}
		src, err := reconcile.NewGatewaySource(httpClient, cfg.GatewayURL, log.WithField("module", "gateway-source"))
		if err != nil {
			return nil, fmt.Errorf("configure gateway source: %w", err)
		}
		gateway = src
	} else {
		log.Warn("gateway URL not set; gateway balance source disabled")
	}

	focus := cfg.FocusAccounts
	if focus == nil {
		focus = func() {
			appState.SetVisible(true)
			appState.SetActiveView(reconcile.AccountsView)
		}
	}

	engine := reconcile.New(reconcile.Config{
		Registry:      appState.Registry(),
		Ledger:        ledger,
		Gateway:       gateway,
		Notify:        notify,
		System:        cfg.System,
		View:          appState,
		FocusAccounts: focus,
		Logger:        log.WithField("module", "reconcile"),
	})

	manager := system.NewManager()
	scheduler := reconcile.NewScheduler(engine, appState.Offline, cfg.ReconcileSchedule, log.WithField("module", "scheduler"))
	if err := manager.Register(scheduler); err != nil {
		return nil, fmt.Errorf("register scheduler: %w", err)
	}

	return &Application{
		manager: manager,
		log:     log,
		State:   appState,
		Guard:   guard,
		Engine:  engine,
		Events:  channel,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before
// Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
