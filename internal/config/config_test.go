package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oysy/walletcore/internal/app/domain/session"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wallet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
log_level: debug
ledger:
  url: wss://ledger.example.org:51233
gateway:
  url: https://gateway.example.org/api
reconcile_schedule: "@every 30s"
routes:
  - name: home
    path: /
    offline_accessible: true
  - name: vault
    path: /auth/vault
    requires_auth: true
    required_role: ROLE_ADMIN
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddr)
	require.Equal(t, "wss://ledger.example.org:51233", cfg.Ledger.URL)
	require.Equal(t, "https://gateway.example.org/api", cfg.Gateway.URL)
	require.Equal(t, "@every 30s", cfg.ReconcileSchedule)

	require.Len(t, cfg.Routes, 2)
	require.True(t, cfg.Routes[0].OfflineAccessible)
	require.True(t, cfg.Routes[1].RequiresAuth)
	require.Equal(t, session.RoleAdmin, cfg.Routes[1].RequiredRole)
}

func TestLoadKeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `log_level: warn`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "warn", cfg.LogLevel)
	require.Equal(t, ":8710", cfg.ListenAddr)
	require.Equal(t, Default().Gateway.URL, cfg.Gateway.URL)
	require.Equal(t, DefaultRoutes(), cfg.Routes)
}

func TestLoadRejectsBadRoutes(t *testing.T) {
	for name, contents := range map[string]string{
		"empty name": "routes:\n  - path: /x\n",
		"duplicate":  "routes:\n  - name: home\n    path: /\n  - name: home\n    path: /again\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, contents))
			require.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(writeConfig(t, "routes: {not a list}"))
	require.Error(t, err)
}

func TestDefaultRouteTableShape(t *testing.T) {
	routes := DefaultRoutes()

	byName := make(map[string]int, len(routes))
	for i, r := range routes {
		byName[r.Name] = i
	}

	require.Contains(t, byName, "login")
	require.Contains(t, byName, "home")

	for _, r := range routes {
		if r.RequiredRole != session.RoleNone {
			require.True(t, r.RequiresAuth, "role-gated route %s must require auth", r.Name)
		}
		if r.OfflineAccessible {
			require.False(t, r.RequiresAuth, "offline route %s must be public", r.Name)
		}
	}
}
