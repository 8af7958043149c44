package state

import (
	"encoding/json"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oysy/walletcore/internal/app/domain/account"
	"github.com/oysy/walletcore/internal/app/domain/session"
	"github.com/oysy/walletcore/internal/app/storage"
)

func signedToken(t *testing.T, role string) string {
	t.Helper()
	claims := session.Claims{Role: role}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestLoginDerivesRole(t *testing.T) {
	s := New(nil, nil)

	if err := s.Login(signedToken(t, "ROLE_ADMIN")); err != nil {
		t.Fatalf("login: %v", err)
	}
	sess := s.Session()
	if !sess.Authenticated || sess.Role != session.RoleAdmin {
		t.Fatalf("unexpected session: %#v", sess)
	}

	s.Logout()
	sess = s.Session()
	if sess.Authenticated || sess.Role != session.RoleNone || sess.Token != "" {
		t.Fatalf("logout must clear role and token together: %#v", sess)
	}
}

func TestLoginRejectsGarbage(t *testing.T) {
	s := New(nil, nil)
	if err := s.Login("not-a-jwt"); err == nil {
		t.Fatal("expected parse error")
	}
	if s.Session().Authenticated {
		t.Fatal("failed login must not authenticate")
	}
}

func TestWriteThroughKeys(t *testing.T) {
	store := storage.NewMemory()
	s := New(store, nil)

	s.Registry().Add("addr-1", "savings", true)
	s.UpdateLanguage("de")
	s.SetCustomURL("https://example.org/api")
	s.AddAccountRequest(AccountRequest{Address: "addr-2", Label: "request"})
	s.Login(signedToken(t, "ROLE_USER"))

	for _, key := range []string{KeyConfig, KeyLanguage, KeySettings, KeyRequests, KeySession} {
		if _, ok, _ := store.Load(key); !ok {
			t.Fatalf("key %s not written through", key)
		}
	}

	raw, _, _ := store.Load(KeyConfig)
	var cfg configSnapshot
	if err := json.Unmarshal(raw, &cfg); err != nil {
		t.Fatalf("decode config blob: %v", err)
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Address != "addr-1" {
		t.Fatalf("unexpected persisted config: %#v", cfg)
	}
}

func TestRestore(t *testing.T) {
	store := storage.NewMemory()

	first := New(store, nil)
	first.Registry().Add("addr-1", "savings", true)
	first.Registry().SetBalance("addr-1", account.Confirmed(12), 1)
	first.UpdateLanguage("fr")
	first.SetAdvancedOptionsShown(true)
	first.Login(signedToken(t, "ROLE_USER"))

	second := New(store, nil)
	second.Restore()

	acct, ok := second.Registry().Find("addr-1")
	if !ok || !acct.Balance.Equal(account.Confirmed(12)) || !acct.Primary {
		t.Fatalf("registry not restored: %#v", acct)
	}
	if second.Language() != "fr" {
		t.Fatalf("language not restored: %q", second.Language())
	}
	if !second.Settings().AdvancedOptionsShown {
		t.Fatal("settings not restored")
	}
	sess := second.Session()
	if !sess.Authenticated || sess.Role != session.RoleUser {
		t.Fatalf("session not restored: %#v", sess)
	}
}

func TestRestoreSkipsCorruptSection(t *testing.T) {
	store := storage.NewMemory()
	store.Save(KeySettings, []byte("{not json"))

	s := New(store, nil)
	s.Restore()

	if s.Settings().CustomURL != DefaultGatewayURL {
		t.Fatalf("corrupt section must keep defaults: %#v", s.Settings())
	}
}

func TestGatewayURL(t *testing.T) {
	s := New(nil, nil)

	if got := s.GatewayURL(); got != DefaultGatewayURL {
		t.Fatalf("expected default gateway, got %q", got)
	}

	s.SetCustomURL("https://example.org/api")
	if got := s.GatewayURL(); got != DefaultGatewayURL {
		t.Fatal("custom URL must not apply until the custom host flag is set")
	}

	s.SetCustomHostUsed(true)
	if got := s.GatewayURL(); got != "https://example.org/api" {
		t.Fatalf("expected custom gateway, got %q", got)
	}
}

func TestOfflineAndViewState(t *testing.T) {
	s := New(nil, nil)

	if s.Offline() {
		t.Fatal("fresh state must be online")
	}
	s.SetOffline(true)
	if !s.Offline() {
		t.Fatal("offline flag not set")
	}

	if !s.Visible() {
		t.Fatal("fresh state must be visible")
	}
	s.SetVisible(false)
	s.SetActiveView("accounts")
	if s.Visible() || s.ActiveView() != "accounts" {
		t.Fatalf("view state not tracked: visible=%v view=%q", s.Visible(), s.ActiveView())
	}
}
