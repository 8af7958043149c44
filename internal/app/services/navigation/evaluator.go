// Package navigation gates every navigation attempt against the route
// policy table, the current session and the connectivity state.
package navigation

import (
	"github.com/oysy/walletcore/internal/app/domain/route"
	"github.com/oysy/walletcore/internal/app/domain/session"
)

// Evaluate decides a navigation attempt. It is a pure function; found
// reports whether the policy table resolved the target route.
//
// The check order is fixed. Offline always wins: a route that is unknown or
// not offline-accessible is unreachable while offline, before any auth
// consideration. Then authentication, then role.
func Evaluate(policy route.Policy, found bool, sess session.Session, offline bool) route.Decision {
	if offline && (!found || !policy.OfflineAccessible) {
		return route.RedirectHome(route.ReasonOfflineUnavailable)
	}

	if policy.RequiresAuth && !sess.Authenticated {
		return route.RedirectLogin(policy.Path)
	}

	if policy.RequiredRole != session.RoleNone && sess.Role != policy.RequiredRole {
		if !sess.Authenticated {
			return route.RedirectLogin(policy.Path)
		}
		return route.RedirectHome(route.ReasonForbidden)
	}

	return route.Allow()
}

// EvaluateLogin decides an attempt to enter the login route. The offline
// rule applies first, unchanged; after that the auth rule is reversed: an
// authenticated user is sent back to the path they came from.
func EvaluateLogin(policy route.Policy, found bool, sess session.Session, offline bool, from string) route.Decision {
	if offline && (!found || !policy.OfflineAccessible) {
		return route.RedirectHome(route.ReasonOfflineUnavailable)
	}

	if sess.Authenticated {
		return route.RedirectBack(from)
	}

	return route.Allow()
}

// EvaluateUnmatched decides a transition that matched no route at all. It is
// unconditional: auth and offline state do not change the outcome.
func EvaluateUnmatched() route.Decision {
	return route.RedirectNotFound()
}
