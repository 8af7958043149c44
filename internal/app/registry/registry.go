// Package registry owns the set of tracked wallet accounts. It is safe for
// concurrent use and maintains the primacy invariant: exactly one account is
// primary whenever the set is non-empty.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/oysy/walletcore/internal/app/domain/account"
)

var (
	// ErrValidation is returned by Add when a required field is missing.
	ErrValidation = errors.New("account validation failed")
	// ErrNotFound is returned when an operation names an unknown address.
	ErrNotFound = errors.New("account not found")
	// ErrExists is returned by Add on a duplicate address.
	ErrExists = errors.New("account already tracked")
)

// ChangeFunc is invoked after every successful mutation so the surrounding
// application can write the registry through to its persistence boundary.
type ChangeFunc func()

// Registry is the in-memory account set. Accounts keep their insertion
// order; the first remaining account is promoted when the primary one is
// deleted.
type Registry struct {
	mu          sync.RWMutex
	accounts    []account.Account
	lastUpdated time.Time

	// appliedSeq tracks, per address, the highest reconcile-pass sequence
	// whose write has been applied. Stale writes from slower passes are
	// discarded (last-call-wins, not last-completion-wins).
	appliedSeq map[string]uint64

	onChange ChangeFunc
	now      func() time.Time
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		appliedSeq: make(map[string]uint64),
		now:        time.Now,
	}
}

// OnChange installs the write-through hook. Call before concurrent use.
func (r *Registry) OnChange(fn ChangeFunc) {
	r.onChange = fn
}

func (r *Registry) notify() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *Registry) indexOfLocked(address string) int {
	for i := range r.accounts {
		if r.accounts[i].Address == address {
			return i
		}
	}
	return -1
}

// Add inserts a new tracked account. Address and label are required. When
// primary is requested all existing accounts are demoted first; otherwise
// the new account is not primary, even if it is the only one.
func (r *Registry) Add(address, label string, primary bool) (account.Account, error) {
	if address == "" || label == "" {
		return account.Account{}, ErrValidation
	}

	r.mu.Lock()
	if r.indexOfLocked(address) >= 0 {
		r.mu.Unlock()
		return account.Account{}, ErrExists
	}

	if primary {
		for i := range r.accounts {
			r.accounts[i].Primary = false
		}
	}
	acct := account.Account{
		Address: address,
		Label:   label,
		Primary: primary,
		Balance: account.Unconfirmed(),
	}
	r.accounts = append(r.accounts, acct)
	r.mu.Unlock()

	r.notify()
	return acct, nil
}

// Delete removes the account with the given address. If it was primary the
// first remaining account is promoted.
func (r *Registry) Delete(address string) error {
	r.mu.Lock()
	idx := r.indexOfLocked(address)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}

	wasPrimary := r.accounts[idx].Primary
	r.accounts = append(r.accounts[:idx], r.accounts[idx+1:]...)
	delete(r.appliedSeq, address)

	if wasPrimary && len(r.accounts) > 0 {
		r.accounts[0].Primary = true
	}
	r.mu.Unlock()

	r.notify()
	return nil
}

// SetPrimary demotes all accounts and promotes the named one.
func (r *Registry) SetPrimary(address string) error {
	r.mu.Lock()
	idx := r.indexOfLocked(address)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotFound
	}
	for i := range r.accounts {
		r.accounts[i].Primary = i == idx
	}
	r.mu.Unlock()

	r.notify()
	return nil
}

// SetBalance overwrites the balance of a tracked account. Unknown addresses
// are a silent no-op: the reconciliation engine only writes addresses it
// enumerated itself, so a miss means the account was deleted mid-pass.
// The write is discarded when a later pass has already written this address.
func (r *Registry) SetBalance(address string, balance account.Balance, seq uint64) {
	r.mu.Lock()
	idx := r.indexOfLocked(address)
	if idx < 0 {
		r.mu.Unlock()
		return
	}
	if seq < r.appliedSeq[address] {
		r.mu.Unlock()
		return
	}
	r.appliedSeq[address] = seq
	r.accounts[idx].Balance = balance
	r.mu.Unlock()

	r.notify()
}

// TouchUpdated sets the registry-wide last-updated timestamp to now.
func (r *Registry) TouchUpdated() {
	r.mu.Lock()
	r.lastUpdated = r.now()
	r.mu.Unlock()

	r.notify()
}

// LastUpdated returns the registry-wide timestamp of the last completed
// gateway batch. Zero when no batch has completed yet.
func (r *Registry) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdated
}

// Accounts returns a snapshot of all accounts in insertion order.
func (r *Registry) Accounts() []account.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]account.Account, len(r.accounts))
	copy(out, r.accounts)
	return out
}

// Addresses returns the tracked addresses in insertion order.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.accounts))
	for i := range r.accounts {
		out[i] = r.accounts[i].Address
	}
	return out
}

// Find returns the account with the given address.
func (r *Registry) Find(address string) (account.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOfLocked(address)
	if idx < 0 {
		return account.Account{}, false
	}
	return r.accounts[idx], true
}

// Configured reports whether any account is tracked.
func (r *Registry) Configured() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.accounts) > 0
}

// Primary returns the primary account, if any.
func (r *Registry) Primary() (account.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.accounts {
		if r.accounts[i].Primary {
			return r.accounts[i], true
		}
	}
	return account.Account{}, false
}

// SumOfBalances adds up all confirmed balances; unconfirmed, unknown and
// errored accounts contribute nothing.
func (r *Registry) SumOfBalances() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var sum float64
	for i := range r.accounts {
		if r.accounts[i].Balance.State == account.BalanceConfirmed {
			sum += r.accounts[i].Balance.Value
		}
	}
	return sum
}

// Restore replaces the registry contents with a persisted snapshot. Intended
// for process start only; the sequence history restarts from zero.
func (r *Registry) Restore(accounts []account.Account, lastUpdated time.Time) {
	r.mu.Lock()
	r.accounts = make([]account.Account, len(accounts))
	copy(r.accounts, accounts)
	r.lastUpdated = lastUpdated
	r.appliedSeq = make(map[string]uint64)
	r.mu.Unlock()
}
