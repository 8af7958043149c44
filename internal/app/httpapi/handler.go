// Package httpapi exposes the wallet core over a small REST surface for the
// embedding shell and for debugging.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	app "github.com/oysy/walletcore/internal/app"
	"github.com/oysy/walletcore/internal/app/metrics"
	"github.com/oysy/walletcore/internal/app/registry"
	"github.com/oysy/walletcore/internal/app/services/reconcile"
	"github.com/oysy/walletcore/pkg/paymenturi"
)

// handler bundles HTTP endpoints for the wallet core.
type handler struct {
	app *app.Application
	// reconcileLimit throttles manual reconcile triggers; scheduled passes
	// are not affected.
	reconcileLimit *rate.Limiter
}

// NewHandler returns a mux exposing the wallet REST API.
func NewHandler(application *app.Application) http.Handler {
	h := &handler{
		app:            application,
		reconcileLimit: rate.NewLimiter(rate.Limit(1), 3),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/accounts", h.accounts)
	mux.HandleFunc("/accounts/", h.accountResources)
	mux.HandleFunc("/reconcile", h.reconcile)
	mux.HandleFunc("/state", h.state)
	mux.HandleFunc("/offline", h.offline)
	mux.HandleFunc("/session/login", h.login)
	mux.HandleFunc("/session/logout", h.logout)
	mux.HandleFunc("/navigate", h.navigate)
	mux.HandleFunc("/payment/decode", h.decodePayment)
	mux.HandleFunc("/payment/encode", h.encodePayment)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (h *handler) accounts(w http.ResponseWriter, r *http.Request) {
	reg := h.app.State.Registry()

	switch r.Method {
	case http.MethodPost:
		var payload struct {
			Address string `json:"address"`
			Label   string `json:"label"`
			Primary bool   `json:"primary"`
		}
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		acct, err := reg.Add(payload.Address, payload.Label, payload.Primary)
		if err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusCreated, acct)

	case http.MethodGet:
		writeJSON(w, http.StatusOK, reg.Accounts())

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (h *handler) accountResources(w http.ResponseWriter, r *http.Request) {
	reg := h.app.State.Registry()

	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/accounts"), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) == 0 || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	address := parts[0]

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			acct, ok := reg.Find(address)
			if !ok {
				writeError(w, http.StatusNotFound, registry.ErrNotFound)
				return
			}
			writeJSON(w, http.StatusOK, acct)

		case http.MethodDelete:
			if err := reg.Delete(address); err != nil {
				writeError(w, statusFor(err), err)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
		return
	}

	if len(parts) == 2 && parts[1] == "primary" && r.Method == http.MethodPost {
		if err := reg.SetPrimary(address); err != nil {
			writeError(w, statusFor(err), err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.WriteHeader(http.StatusNotFound)
}

func (h *handler) reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !h.reconcileLimit.Allow() {
		writeError(w, http.StatusTooManyRequests, fmt.Errorf("reconcile rate limit exceeded"))
		return
	}
	if h.app.State.Offline() {
		writeError(w, http.StatusConflict, fmt.Errorf("offline; reconciliation unavailable"))
		return
	}

	var payload struct {
		Silent bool `json:"silent"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSON(r.Body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	opts := reconcile.Options{Silent: payload.Silent}
	if settings := h.app.State.Settings(); settings.UseCustomHost {
		opts.PreferredURL = settings.CustomURL
	}

	go h.app.Engine.Reconcile(context.Background(), opts)
	w.WriteHeader(http.StatusAccepted)
}

func (h *handler) state(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st := h.app.State
	reg := st.Registry()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"configured":   reg.Configured(),
		"sum":          reg.SumOfBalances(),
		"last_updated": reg.LastUpdated(),
		"offline":      st.Offline(),
		"language":     st.Language(),
		"settings":     st.Settings(),
		"session":      st.Session(),
		"requests":     st.AccountRequests(),
	})
}

func (h *handler) offline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Offline bool `json:"offline"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	h.app.State.SetOffline(payload.Offline)
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Token string `json:"token"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.State.Login(payload.Token); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.app.State.Session())
}

func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.app.State.Logout()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) navigate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Route string `json:"route"`
		From  string `json:"from"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	decision := h.app.Guard.Attempt(payload.Route, payload.From)
	writeJSON(w, http.StatusOK, map[string]string{
		"decision": string(decision.Kind),
		"target":   decision.Target,
		"reason":   decision.Reason,
	})
}

func (h *handler) decodePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		URI string `json:"uri"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	payment, err := paymenturi.Decode(payload.URI)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"address": payment.Address,
		"options": payment.Options,
		"amount":  payment.Amount,
	})
}

func (h *handler) encodePayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var payload struct {
		Address string            `json:"address"`
		Options map[string]string `json:"options"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	uri, err := paymenturi.Encode(payload.Address, payload.Options)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"uri": uri})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, registry.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
