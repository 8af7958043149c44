// Package state holds the explicit process-wide application state: the
// account registry, the session, settings, connectivity and view state.
// All mutation goes through named commands; every change is written through
// to the persistence boundary under its own key.
package state

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oysy/walletcore/internal/app/domain/account"
	"github.com/oysy/walletcore/internal/app/domain/session"
	"github.com/oysy/walletcore/internal/app/registry"
	"github.com/oysy/walletcore/internal/app/storage"
	"github.com/oysy/walletcore/pkg/logger"
)

// Persistence keys. Each section of the state is stored as its own blob.
const (
	KeyConfig   = "config"
	KeySettings = "settings"
	KeySession  = "session"
	KeyLanguage = "language"
	KeyRequests = "requests"
)

// DefaultGatewayURL is the stock balance gateway endpoint.
const DefaultGatewayURL = "https://csg.uzh.ch/bazo/api"

// Settings are the user-tunable preferences of the wallet.
type Settings struct {
	AdvancedOptionsShown bool   `json:"advanced_options_shown"`
	UseCustomHost        bool   `json:"use_custom_host"`
	CustomURL            string `json:"custom_url"`
}

// DefaultSettings returns the initial settings of a fresh profile.
func DefaultSettings() Settings {
	return Settings{CustomURL: DefaultGatewayURL}
}

// AccountRequest is a pending inbound request to track a new account.
type AccountRequest struct {
	Address     string    `json:"address"`
	Label       string    `json:"label"`
	RequestedAt time.Time `json:"requested_at"`
}

type configSnapshot struct {
	Accounts    []account.Account `json:"accounts"`
	LastUpdated time.Time         `json:"last_updated"`
}

// State is the single mutable state object of the process, created once at
// startup.
type State struct {
	reg   *registry.Registry
	store storage.Store
	log   *logger.Logger

	offline atomic.Bool

	mu       sync.RWMutex
	sess     session.Session
	settings Settings
	language string
	requests []AccountRequest

	visible    atomic.Bool
	activeView atomic.Value // string
}

// New creates the application state backed by the given store. A nil store
// disables persistence.
func New(store storage.Store, log *logger.Logger) *State {
	if log == nil {
		log = logger.NewDefault("state")
	}
	s := &State{
		reg:      registry.New(),
		store:    store,
		log:      log,
		settings: DefaultSettings(),
	}
	s.visible.Store(true)
	s.activeView.Store("")
	s.reg.OnChange(s.persistConfig)
	return s
}

// Registry exposes the account registry.
func (s *State) Registry() *registry.Registry {
	return s.reg
}

// Restore loads every persisted section. Missing keys keep their documented
// initial values; corrupt sections are logged and skipped.
func (s *State) Restore() {
	if s.store == nil {
		return
	}

	var cfg configSnapshot
	if s.load(KeyConfig, &cfg) {
		s.reg.Restore(cfg.Accounts, cfg.LastUpdated)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(KeySettings, &s.settings)
	s.load(KeySession, &s.sess)
	s.load(KeyLanguage, &s.language)
	s.load(KeyRequests, &s.requests)
}

func (s *State) load(key string, dst interface{}) bool {
	raw, ok, err := s.store.Load(key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("restore failed")
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("restore skipped corrupt section")
		return false
	}
	return true
}

func (s *State) persist(key string, value interface{}) {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("persist encode failed")
		return
	}
	if err := s.store.Save(key, raw); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("persist failed")
	}
}

func (s *State) persistConfig() {
	s.persist(KeyConfig, configSnapshot{
		Accounts:    s.reg.Accounts(),
		LastUpdated: s.reg.LastUpdated(),
	})
}

// Login derives an authenticated session from the token. Role and token are
// set together or not at all.
func (s *State) Login(token string) error {
	sess, err := session.FromToken(token)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sess = sess
	s.mu.Unlock()
	s.persist(KeySession, sess)
	return nil
}

// Logout clears the session; role and token go together.
func (s *State) Logout() {
	s.mu.Lock()
	s.sess = session.Anonymous()
	s.mu.Unlock()
	s.persist(KeySession, session.Anonymous())
}

// Session returns the current session.
func (s *State) Session() session.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

// SetOffline records the connectivity signal.
func (s *State) SetOffline(offline bool) {
	s.offline.Store(offline)
}

// Offline reports whether the process is offline.
func (s *State) Offline() bool {
	return s.offline.Load()
}

// UpdateLanguage sets the display language.
func (s *State) UpdateLanguage(lang string) {
	s.mu.Lock()
	s.language = lang
	s.mu.Unlock()
	s.persist(KeyLanguage, lang)
}

// Language returns the display language.
func (s *State) Language() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.language
}

// SetAdvancedOptionsShown toggles the advanced options panel preference.
func (s *State) SetAdvancedOptionsShown(shown bool) {
	s.mu.Lock()
	s.settings.AdvancedOptionsShown = shown
	settings := s.settings
	s.mu.Unlock()
	s.persist(KeySettings, settings)
}

// SetCustomHostUsed toggles the custom gateway host preference.
func (s *State) SetCustomHostUsed(used bool) {
	s.mu.Lock()
	s.settings.UseCustomHost = used
	settings := s.settings
	s.mu.Unlock()
	s.persist(KeySettings, settings)
}

// SetCustomURL sets the custom gateway endpoint.
func (s *State) SetCustomURL(url string) {
	s.mu.Lock()
	s.settings.CustomURL = url
	settings := s.settings
	s.mu.Unlock()
	s.persist(KeySettings, settings)
}

// Settings returns the current settings.
func (s *State) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// GatewayURL resolves the gateway endpoint honoring the custom host
// preference.
func (s *State) GatewayURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.settings.UseCustomHost && s.settings.CustomURL != "" {
		return s.settings.CustomURL
	}
	return DefaultGatewayURL
}

// AddAccountRequest queues an inbound account request.
func (s *State) AddAccountRequest(req AccountRequest) {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	requests := make([]AccountRequest, len(s.requests))
	copy(requests, s.requests)
	s.mu.Unlock()
	s.persist(KeyRequests, requests)
}

// AccountRequests returns the queued requests.
func (s *State) AccountRequests() []AccountRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AccountRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// SetVisible records whether the process is focused/visible.
func (s *State) SetVisible(visible bool) {
	s.visible.Store(visible)
}

// Visible reports whether the process is focused/visible.
func (s *State) Visible() bool {
	return s.visible.Load()
}

// SetActiveView records the currently displayed view.
func (s *State) SetActiveView(view string) {
	s.activeView.Store(view)
}

// ActiveView returns the currently displayed view name.
func (s *State) ActiveView() string {
	v, _ := s.activeView.Load().(string)
	return v
}
