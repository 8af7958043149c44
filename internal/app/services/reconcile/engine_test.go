package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/oysy/walletcore/internal/app/domain/account"
	"github.com/oysy/walletcore/internal/app/domain/events"
	"github.com/oysy/walletcore/internal/app/registry"
)

type stubSource struct {
	name  string
	calls atomic.Int64
	fetch func(address string) (float64, error)
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchBalance(_ context.Context, address string) (float64, error) {
	s.calls.Add(1)
	return s.fetch(address)
}

type recordingNotifier struct {
	supported bool
	calls     int
	activate  func()
	fail      bool
}

func (n *recordingNotifier) Supported() bool { return n.supported }

func (n *recordingNotifier) Notify(_, _ string, onActivate func()) error {
	n.calls++
	n.activate = onActivate
	if n.fail {
		return fmt.Errorf("notifier broken")
	}
	return nil
}

type stubView struct {
	visible bool
	view    string
}

func (v stubView) Visible() bool      { return v.visible }
func (v stubView) ActiveView() string { return v.view }

type engineFixture struct {
	reg     *registry.Registry
	ledger  *stubSource
	gateway *stubSource
	emitted []events.Event
	engine  *Engine
}

func newEngineFixture(t *testing.T, cfg Config) *engineFixture {
	t.Helper()
	f := &engineFixture{
		reg: registry.New(),
		ledger: &stubSource{name: "ledger", fetch: func(string) (float64, error) {
			return 0, fmt.Errorf("no ledger stub")
		}},
		gateway: &stubSource{name: "gateway", fetch: func(string) (float64, error) {
			return 0, fmt.Errorf("no gateway stub")
		}},
	}
	cfg.Registry = f.reg
	if cfg.Ledger == nil {
		cfg.Ledger = f.ledger
	}
	if cfg.Gateway == nil {
		cfg.Gateway = f.gateway
	}
	if cfg.Notify == nil {
		cfg.Notify = events.DispatcherFunc(func(ev events.Event) {
			f.emitted = append(f.emitted, ev)
		})
	}
	f.engine = New(cfg)
	return f
}

func (f *engineFixture) codes() []string {
	out := make([]string, len(f.emitted))
	for i, ev := range f.emitted {
		out[i] = ev.Code
	}
	return out
}

func TestReconcile_EmptyRegistryIsNoOp(t *testing.T) {
	f := newEngineFixture(t, Config{})

	f.engine.Reconcile(context.Background(), Options{})

	if got := f.ledger.calls.Load() + f.gateway.calls.Load(); got != 0 {
		t.Fatalf("expected zero queries, got %d", got)
	}
	if len(f.emitted) != 0 {
		t.Fatalf("expected zero events, got %v", f.codes())
	}
}

func TestReconcile_MutationEmitsOnce(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.reg.Add("addr-2", "second", false)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("ledger down") }
	f.gateway.fetch = func(addr string) (float64, error) { return 7, nil }

	f.engine.Reconcile(context.Background(), Options{})

	for _, addr := range []string{"addr-1", "addr-2"} {
		acct, _ := f.reg.Find(addr)
		if !acct.Balance.Equal(account.Confirmed(7)) {
			t.Fatalf("%s balance not written: %#v", addr, acct.Balance)
		}
	}
	want := []string{events.CodeBalancesChanged, events.CodeQueryComplete}
	got := f.codes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if f.reg.LastUpdated().IsZero() {
		t.Fatal("timestamp not touched after gateway batch")
	}
}

func TestReconcile_NoMutationNoChangeEvent(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.reg.SetBalance("addr-1", account.Confirmed(7), 0)
	f.gateway.fetch = func(string) (float64, error) { return 7, nil }
	f.ledger.fetch = func(string) (float64, error) { return 7, nil }

	f.engine.Reconcile(context.Background(), Options{})

	got := f.codes()
	if len(got) != 1 || got[0] != events.CodeQueryComplete {
		t.Fatalf("expected only query-complete, got %v", got)
	}
}

func TestReconcile_SilentSuppressesAllEvents(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("ledger down") }
	f.gateway.fetch = func(string) (float64, error) { return 42, nil }

	f.engine.Reconcile(context.Background(), Options{Silent: true})

	acct, _ := f.reg.Find("addr-1")
	if !acct.Balance.Equal(account.Confirmed(42)) {
		t.Fatalf("silent pass must still write, got %#v", acct.Balance)
	}
	if len(f.emitted) != 0 {
		t.Fatalf("silent pass must emit nothing, got %v", f.codes())
	}
}

func TestReconcile_GatewayBatchFailure(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.reg.Add("addr-2", "second", false)
	f.ledger.fetch = func(addr string) (float64, error) {
		if addr == "addr-1" {
			return 5, nil
		}
		return 0, fmt.Errorf("ledger miss")
	}
	f.gateway.fetch = func(string) (float64, error) { return 0, fmt.Errorf("no connectivity") }

	f.engine.Reconcile(context.Background(), Options{})

	got := f.codes()
	if len(got) != 1 || got[0] != events.CodeConnectionFailed {
		t.Fatalf("expected single connection-failed event, got %v", got)
	}
	if !f.reg.LastUpdated().IsZero() {
		t.Fatal("failed batch must not touch the timestamp")
	}
	// The ledger-fetched balance survives the gateway failure.
	acct, _ := f.reg.Find("addr-1")
	if !acct.Balance.Equal(account.Confirmed(5)) {
		t.Fatalf("ledger balance clobbered: %#v", acct.Balance)
	}
}

func TestReconcile_GatewayBatchFailureSilent(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }

	f.engine.Reconcile(context.Background(), Options{Silent: true})

	if len(f.emitted) != 0 {
		t.Fatalf("silent batch failure must emit nothing, got %v", f.codes())
	}
}

func TestReconcile_PartialGatewayFailure(t *testing.T) {
	f := newEngineFixture(t, Config{})
	f.reg.Add("addr-1", "first", true)
	f.reg.Add("addr-2", "second", false)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(addr string) (float64, error) {
		if addr == "addr-2" {
			return 0, fmt.Errorf("single miss")
		}
		return 3, nil
	}

	f.engine.Reconcile(context.Background(), Options{})

	// One success keeps the batch alive: timestamp and completion fire.
	if f.reg.LastUpdated().IsZero() {
		t.Fatal("partial failure must still complete the batch")
	}
	got := f.codes()
	if len(got) != 2 || got[0] != events.CodeBalancesChanged || got[1] != events.CodeQueryComplete {
		t.Fatalf("unexpected events: %v", got)
	}
	// The never-fetched account is marked errored.
	acct, _ := f.reg.Find("addr-2")
	if acct.Balance.State != account.BalanceErrored {
		t.Fatalf("expected errored state, got %#v", acct.Balance)
	}
}

func TestReconcile_SystemNotification(t *testing.T) {
	notifier := &recordingNotifier{supported: true}
	focused := false
	f := newEngineFixture(t, Config{
		System:        notifier,
		View:          stubView{visible: false},
		FocusAccounts: func() { focused = true },
	})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(string) (float64, error) { return 9, nil }

	f.engine.Reconcile(context.Background(), Options{})

	if notifier.calls != 1 {
		t.Fatalf("expected one system notification, got %d", notifier.calls)
	}
	notifier.activate()
	if !focused {
		t.Fatal("activation must focus the accounts view")
	}
}

func TestReconcile_SystemNotificationSkippedOnAccountsView(t *testing.T) {
	notifier := &recordingNotifier{supported: true}
	f := newEngineFixture(t, Config{
		System: notifier,
		View:   stubView{visible: true, view: AccountsView},
	})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(string) (float64, error) { return 9, nil }

	f.engine.Reconcile(context.Background(), Options{})

	if notifier.calls != 0 {
		t.Fatalf("accounts view on screen must suppress system notification, got %d", notifier.calls)
	}
	// The in-app events still fire.
	got := f.codes()
	if len(got) != 2 {
		t.Fatalf("expected in-app events, got %v", got)
	}
}

func TestReconcile_NotifierFailureKeepsInAppEvents(t *testing.T) {
	notifier := &recordingNotifier{supported: true, fail: true}
	f := newEngineFixture(t, Config{
		System: notifier,
		View:   stubView{visible: false},
	})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(string) (float64, error) { return 9, nil }

	f.engine.Reconcile(context.Background(), Options{})

	got := f.codes()
	if len(got) != 2 || got[0] != events.CodeBalancesChanged {
		t.Fatalf("notifier failure must not reach in-app events, got %v", got)
	}
}

func TestReconcile_UnsupportedNotifierNeverCalled(t *testing.T) {
	notifier := &recordingNotifier{supported: false}
	f := newEngineFixture(t, Config{
		System: notifier,
		View:   stubView{visible: false},
	})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }
	f.gateway.fetch = func(string) (float64, error) { return 9, nil }

	f.engine.Reconcile(context.Background(), Options{})

	if notifier.calls != 0 {
		t.Fatalf("unsupported capability must never be invoked, got %d calls", notifier.calls)
	}
}

func TestReconcile_PreferredURLOverride(t *testing.T) {
	// URLPreferrer sources get swapped for the pass; plain sources are
	// used as-is.
	var used atomic.Int64
	base := &overridableSource{hits: &used}
	f := newEngineFixture(t, Config{Gateway: base})
	f.reg.Add("addr-1", "first", true)
	f.ledger.fetch = func(string) (float64, error) { return 0, fmt.Errorf("down") }

	f.engine.Reconcile(context.Background(), Options{PreferredURL: "https://example.org/api"})

	if base.overriddenWith != "https://example.org/api" {
		t.Fatalf("override not applied: %q", base.overriddenWith)
	}
	if used.Load() != 1 {
		t.Fatalf("expected one query through override, got %d", used.Load())
	}
}

type overridableSource struct {
	hits           *atomic.Int64
	overriddenWith string
}

func (s *overridableSource) Name() string { return "gateway" }

func (s *overridableSource) FetchBalance(context.Context, string) (float64, error) {
	s.hits.Add(1)
	return 1, nil
}

func (s *overridableSource) WithPreferredURL(url string) BalanceSource {
	s.overriddenWith = url
	return s
}
