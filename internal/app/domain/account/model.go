package account

import "strconv"

// BalanceState describes what the stored balance of an account represents.
type BalanceState string

const (
	// BalanceConfirmed means Value holds the latest fetched balance.
	BalanceConfirmed BalanceState = "confirmed"
	// BalanceUnconfirmed is the initial state of a freshly added account
	// before any reconciliation pass has touched it.
	BalanceUnconfirmed BalanceState = "unconfirmed"
	// BalanceUnknown means no source could report a value.
	BalanceUnknown BalanceState = "unknown"
	// BalanceErrored means the last fetch for this account failed.
	BalanceErrored BalanceState = "error"
)

// Balance is the tagged balance value of an account. Value is meaningful
// only while State is BalanceConfirmed.
type Balance struct {
	State BalanceState `json:"state"`
	Value float64      `json:"value"`
}

// Confirmed builds a confirmed balance holding v.
func Confirmed(v float64) Balance {
	return Balance{State: BalanceConfirmed, Value: v}
}

// Unconfirmed is the balance assigned to new accounts.
func Unconfirmed() Balance {
	return Balance{State: BalanceUnconfirmed}
}

// Equal reports whether two balances carry the same state and, when
// confirmed, the same value.
func (b Balance) Equal(other Balance) bool {
	if b.State != other.State {
		return false
	}
	if b.State != BalanceConfirmed {
		return true
	}
	return b.Value == other.Value
}

// String renders the balance for display; non-confirmed states render as
// their state name.
func (b Balance) String() string {
	if b.State == BalanceConfirmed {
		return strconv.FormatFloat(b.Value, 'f', -1, 64)
	}
	return string(b.State)
}

// Account is a tracked wallet account. Address is the unique key.
type Account struct {
	Address string  `json:"address"`
	Label   string  `json:"label"`
	Primary bool    `json:"primary"`
	Balance Balance `json:"balance"`
}
