package navigation

import (
	"net/url"
	"time"

	"github.com/oysy/walletcore/internal/app/domain/events"
	"github.com/oysy/walletcore/internal/app/domain/route"
	"github.com/oysy/walletcore/internal/app/domain/session"
	"github.com/oysy/walletcore/internal/app/metrics"
	"github.com/oysy/walletcore/pkg/logger"
)

// indicatorResetDelay matches the short grace period after which a stuck
// loading indicator is cleared following a redirect.
const indicatorResetDelay = 100 * time.Millisecond

// Navigator performs the actual transition to a decided target. The guard
// cancels the original transition implicitly by redirecting.
type Navigator interface {
	Redirect(path string)
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Redirect(path string) {
	if f != nil {
		f(path)
	}
}

// Guard applies access-control decisions to navigation attempts. Evaluation
// is synchronous and single-threaded; the only deferred work is the
// fire-and-forget indicator cleanup timer, whose effect is idempotent.
type Guard struct {
	table   *route.Table
	sess    func() session.Session
	offline func() bool

	nav            Navigator
	notify         events.Dispatcher
	resetIndicator func()
	schedule       func(d time.Duration, fn func())

	homePath  string
	loginName string
	loginPath string
	log       *logger.Logger
}

// Config wires a Guard.
type Config struct {
	Table     *route.Table
	Session   func() session.Session
	Offline   func() bool
	Navigator Navigator
	Notify    events.Dispatcher
	// ResetIndicator clears the in-progress loading indicator. Called once
	// per redirect, after a short fixed delay, regardless of what else
	// happened meanwhile.
	ResetIndicator func()
	HomePath       string
	LoginName      string
	LoginPath      string
	Logger         *logger.Logger
}

// NewGuard builds the guard chain for the given policy table.
func NewGuard(cfg Config) *Guard {
	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("navigation")
	}
	home := cfg.HomePath
	if home == "" {
		home = "/"
	}
	loginPath := cfg.LoginPath
	if loginPath == "" {
		loginPath = "/login"
	}
	loginName := cfg.LoginName
	if loginName == "" {
		loginName = "login"
	}
	g := &Guard{
		table:          cfg.Table,
		sess:           cfg.Session,
		offline:        cfg.Offline,
		nav:            cfg.Navigator,
		notify:         cfg.Notify,
		resetIndicator: cfg.ResetIndicator,
		homePath:       home,
		loginName:      loginName,
		loginPath:      loginPath,
		log:            log,
	}
	g.schedule = func(d time.Duration, fn func()) {
		time.AfterFunc(d, fn)
	}
	return g
}

// Attempt evaluates a transition to the named route and applies the
// decision. from is the full path of the route the user is leaving; it is
// preserved across login redirects. The returned decision reflects what was
// applied.
func (g *Guard) Attempt(name, from string) route.Decision {
	sess := g.sess()
	offline := g.offline()

	policy, found := g.table.Resolve(name)

	var decision route.Decision
	switch {
	case name == g.loginName:
		decision = EvaluateLogin(policy, found, sess, offline, from)
	case !found && !offline:
		decision = EvaluateUnmatched()
	default:
		decision = Evaluate(policy, found, sess, offline)
	}

	g.apply(name, decision)
	return decision
}

func (g *Guard) apply(name string, decision route.Decision) {
	metrics.ObserveDecision(string(decision.Kind))

	switch decision.Kind {
	case route.DecisionAllow:
		return

	case route.DecisionRedirectLogin:
		g.emit(events.KindWarn, events.CodeUnauthorized, 6*time.Second)
		g.redirect(g.loginPath + "?redirect=" + url.QueryEscape(decision.Target))

	case route.DecisionRedirectHome:
		code := events.CodeOfflineNoAccess
		if decision.Reason == route.ReasonForbidden {
			code = events.CodeForbidden
		}
		g.emit(events.KindWarn, code, 6*time.Second)
		g.redirect(g.homePath)

	case route.DecisionRedirectBack:
		target := decision.Target
		if target == "" {
			target = g.homePath
		}
		g.redirect(target)

	case route.DecisionRedirectNF:
		g.emit(events.KindError, events.CodePageNotFound, 8*time.Second)
		g.redirect(g.homePath)
	}

	g.log.WithField("route", name).
		WithField("decision", string(decision.Kind)).
		Debug("navigation redirected")
}

func (g *Guard) redirect(path string) {
	if g.nav != nil {
		g.nav.Redirect(path)
	}
	// A redirect landing on the route that was already current never
	// completes a transition, which would leave the loading indicator
	// spinning forever. The deferred reset always fires and is idempotent.
	if g.resetIndicator != nil {
		g.schedule(indicatorResetDelay, g.resetIndicator)
	}
}

func (g *Guard) emit(kind events.Kind, code string, d time.Duration) {
	if g.notify == nil {
		return
	}
	g.notify.Emit(events.Event{Kind: kind, Code: code, Message: code, Duration: d})
}
