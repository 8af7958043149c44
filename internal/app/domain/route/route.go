// Package route defines navigable destinations, their access policies and
// the decisions the access-control evaluator can produce.
package route

import "github.com/oysy/walletcore/internal/app/domain/session"

// Policy is the static access metadata of a single route. The table of
// policies is authored by application configuration and immutable after
// startup.
type Policy struct {
	Name              string       `yaml:"name"`
	Path              string       `yaml:"path"`
	RequiresAuth      bool         `yaml:"requires_auth"`
	RequiredRole      session.Role `yaml:"required_role"`
	OfflineAccessible bool         `yaml:"offline_accessible"`
}

// Table resolves policies by exact route name. There is no pattern fallback;
// a failed lookup is an explicit miss.
type Table struct {
	byName map[string]Policy
	order  []Policy
}

// NewTable builds the lookup map once. Later entries win on duplicate names.
func NewTable(policies []Policy) *Table {
	t := &Table{byName: make(map[string]Policy, len(policies))}
	for _, p := range policies {
		t.byName[p.Name] = p
		t.order = append(t.order, p)
	}
	return t
}

// Resolve returns the policy for the named route and whether it exists.
func (t *Table) Resolve(name string) (Policy, bool) {
	p, ok := t.byName[name]
	return p, ok
}

// Policies returns the table entries in registration order.
func (t *Table) Policies() []Policy {
	out := make([]Policy, len(t.order))
	copy(out, t.order)
	return out
}

// DecisionKind discriminates evaluator outcomes.
type DecisionKind string

const (
	DecisionAllow         DecisionKind = "allow"
	DecisionRedirectLogin DecisionKind = "redirect-login"
	DecisionRedirectHome  DecisionKind = "redirect-home"
	DecisionRedirectBack  DecisionKind = "redirect-back"
	DecisionRedirectNF    DecisionKind = "redirect-not-found"
)

// Redirect reasons announced by the surrounding UI.
const (
	ReasonOfflineUnavailable = "offline-unavailable"
	ReasonForbidden          = "forbidden"
)

// Decision is the outcome of evaluating a navigation attempt. Redirects are
// normal outcomes, not errors.
type Decision struct {
	Kind DecisionKind
	// Target is the preserved originating path for a login redirect, or the
	// path to return to when an authenticated user hits the login route.
	Target string
	// Reason is the user-facing cause of a home redirect.
	Reason string
}

// Allow is the pass-through decision.
func Allow() Decision {
	return Decision{Kind: DecisionAllow}
}

// RedirectLogin sends the user to the login route, preserving the path they
// were trying to reach.
func RedirectLogin(target string) Decision {
	return Decision{Kind: DecisionRedirectLogin, Target: target}
}

// RedirectHome sends the user to the home route with a reason.
func RedirectHome(reason string) Decision {
	return Decision{Kind: DecisionRedirectHome, Reason: reason}
}

// RedirectBack returns an already-authenticated user to where they came
// from instead of entering the login route.
func RedirectBack(target string) Decision {
	return Decision{Kind: DecisionRedirectBack, Target: target}
}

// RedirectNotFound is the unconditional catch-all decision.
func RedirectNotFound() Decision {
	return Decision{Kind: DecisionRedirectNF}
}
