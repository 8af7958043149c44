// Package reconcile keeps tracked account balances synchronized against two
// independent remote sources and raises typed mutation events.
package reconcile

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oysy/walletcore/internal/app/domain/account"
	"github.com/oysy/walletcore/internal/app/domain/events"
	"github.com/oysy/walletcore/internal/app/metrics"
	"github.com/oysy/walletcore/internal/app/registry"
	"github.com/oysy/walletcore/pkg/logger"
)

// BalanceSource asynchronously resolves the balance of a single address.
// Implementations are external collaborators; each call is independent and
// timeouts, if any, belong to the underlying transport.
type BalanceSource interface {
	Name() string
	FetchBalance(ctx context.Context, address string) (float64, error)
}

// URLPreferrer is implemented by sources whose endpoint can be overridden
// for a single pass.
type URLPreferrer interface {
	WithPreferredURL(url string) BalanceSource
}

// ViewState reports whether the process is in the foreground and which view
// is active, so the engine can decide between in-app and system-level
// notification.
type ViewState interface {
	Visible() bool
	ActiveView() string
}

// Options controls a single reconciliation pass.
type Options struct {
	// Silent suppresses all in-app events for this pass; balances are still
	// written.
	Silent bool
	// PreferredURL overrides the gateway endpoint for this pass only.
	PreferredURL string
}

// AccountsView is the view whose visibility suppresses the system-level
// mutation notification.
const AccountsView = "accounts"

const systemNotifyTitle = "OySy Wallet"

// Engine fans out balance queries across the ledger and gateway sources for
// every tracked account and merges results back into the registry.
//
// Overlapping Reconcile calls run independently; writes are serialized per
// address by the registry's pass sequence numbers, so a slow early pass can
// never clobber a value a later pass already wrote.
type Engine struct {
	reg     *registry.Registry
	ledger  BalanceSource
	gateway BalanceSource

	notify        events.Dispatcher
	system        events.SystemNotifier
	view          ViewState
	focusAccounts func()

	log *logger.Logger
	seq atomic.Uint64
}

// Config wires an Engine.
type Config struct {
	Registry *registry.Registry
	Ledger   BalanceSource
	Gateway  BalanceSource
	Notify   events.Dispatcher
	System   events.SystemNotifier
	View     ViewState
	// FocusAccounts brings the accounts view into focus when a system
	// notification is activated.
	FocusAccounts func()
	Logger        *logger.Logger
}

// New constructs a reconciliation engine.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("reconcile")
	}
	return &Engine{
		reg:           cfg.Registry,
		ledger:        cfg.Ledger,
		gateway:       cfg.Gateway,
		notify:        cfg.Notify,
		system:        cfg.System,
		view:          cfg.View,
		focusAccounts: cfg.FocusAccounts,
		log:           log,
	}
}

// Reconcile runs one pass across all tracked accounts and all sources. It
// returns once every query of the pass has settled; the completion and error
// events fire as soon as the gateway batch settles, without waiting for the
// ledger queries. A pass over an empty registry issues no queries and emits
// no events.
func (e *Engine) Reconcile(ctx context.Context, opts Options) {
	addresses := e.reg.Addresses()
	if len(addresses) == 0 {
		return
	}

	seq := e.seq.Add(1)
	metrics.ObserveReconcilePass()

	var mutated atomic.Bool

	var all sync.WaitGroup

	if e.ledger != nil {
		for _, addr := range addresses {
			all.Add(1)
			go func(addr string) {
				defer all.Done()
				e.queryLedger(ctx, addr, seq, &mutated)
			}(addr)
		}
	}

	gateway := e.gateway
	if gateway != nil {
		if opts.PreferredURL != "" {
			if p, ok := gateway.(URLPreferrer); ok {
				gateway = p.WithPreferredURL(opts.PreferredURL)
			}
		}

		var batch sync.WaitGroup
		var failures atomic.Int64
		for _, addr := range addresses {
			batch.Add(1)
			all.Add(1)
			go func(addr string) {
				defer batch.Done()
				defer all.Done()
				if !e.queryGateway(ctx, gateway, addr, seq, &mutated) {
					failures.Add(1)
				}
			}(addr)
		}

		batch.Wait()
		e.settleGatewayBatch(opts, len(addresses), int(failures.Load()), mutated.Load())
	}

	all.Wait()
}

func (e *Engine) queryLedger(ctx context.Context, addr string, seq uint64, mutated *atomic.Bool) {
	value, err := e.ledger.FetchBalance(ctx, addr)
	if err != nil {
		metrics.ObserveQuery(e.ledger.Name(), false)
		e.log.WithError(err).
			WithField("source", e.ledger.Name()).
			WithField("address", addr).
			Warn("balance query failed")
		return
	}
	metrics.ObserveQuery(e.ledger.Name(), true)
	e.compareAndWrite(addr, value, seq, mutated)
}

// queryGateway reports whether the query succeeded.
func (e *Engine) queryGateway(ctx context.Context, src BalanceSource, addr string, seq uint64, mutated *atomic.Bool) bool {
	value, err := src.FetchBalance(ctx, addr)
	if err != nil {
		metrics.ObserveQuery(src.Name(), false)
		e.log.WithError(err).
			WithField("source", src.Name()).
			WithField("address", addr).
			Warn("balance query failed")
		// Mark never-fetched accounts as errored; a balance some source
		// already confirmed stays untouched.
		if current, ok := e.reg.Find(addr); ok && current.Balance.State == account.BalanceUnconfirmed {
			e.reg.SetBalance(addr, account.Balance{State: account.BalanceErrored}, seq)
		}
		return false
	}
	metrics.ObserveQuery(src.Name(), true)
	e.compareAndWrite(addr, value, seq, mutated)
	return true
}

func (e *Engine) compareAndWrite(addr string, value float64, seq uint64, mutated *atomic.Bool) {
	next := account.Confirmed(value)
	if current, ok := e.reg.Find(addr); ok && !current.Balance.Equal(next) {
		mutated.Store(true)
		metrics.ObserveMutation()
	}
	e.reg.SetBalance(addr, next, seq)
}

// settleGatewayBatch runs the completion side effects once every address of
// the pass has responded from the gateway source.
func (e *Engine) settleGatewayBatch(opts Options, total, failures int, mutated bool) {
	if failures == total {
		// Nothing from the gateway at all: connectivity-level failure.
		// Balances already fetched from the ledger stay as written.
		if !opts.Silent {
			e.emit(events.KindError, events.CodeConnectionFailed)
		}
		return
	}

	e.reg.TouchUpdated()

	if opts.Silent {
		return
	}

	if mutated {
		e.emit(events.KindSuccess, events.CodeBalancesChanged)
		e.systemNotify()
	}
	e.emit(events.KindSuccess, events.CodeQueryComplete)
}

func (e *Engine) emit(kind events.Kind, code string) {
	if e.notify == nil {
		return
	}
	e.notify.Emit(events.Event{Kind: kind, Code: code, Message: code, Duration: 4 * time.Second})
}

// systemNotify raises an OS-level notification for a detected mutation when
// the accounts view is not on screen. The capability is probed explicitly;
// a notifier failure is logged and never reaches the in-app path.
func (e *Engine) systemNotify() {
	if e.system == nil || !e.system.Supported() {
		return
	}
	if e.view != nil && e.view.Visible() && e.view.ActiveView() == AccountsView {
		return
	}
	err := e.system.Notify(systemNotifyTitle, events.CodeBalancesChanged, e.focusAccounts)
	if err != nil {
		e.log.WithError(err).Warn("system notification failed")
	}
}
