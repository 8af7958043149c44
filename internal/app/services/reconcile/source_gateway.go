package reconcile

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/oysy/walletcore/pkg/logger"
)

// GatewaySource fetches balances from the HTTP block-explorer gateway.
type GatewaySource struct {
	client  *http.Client
	baseURL string
	log     *logger.Logger
}

var _ BalanceSource = (*GatewaySource)(nil)
var _ URLPreferrer = (*GatewaySource)(nil)

// NewGatewaySource constructs a gateway source for the given base URL.
func NewGatewaySource(client *http.Client, baseURL string, log *logger.Logger) (*GatewaySource, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse gateway URL: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("gateway-source")
	}
	return &GatewaySource{client: client, baseURL: baseURL, log: log}, nil
}

func (s *GatewaySource) Name() string { return "gateway" }

// WithPreferredURL returns a source hitting the override endpoint instead of
// the configured one. The receiver is not modified.
func (s *GatewaySource) WithPreferredURL(override string) BalanceSource {
	override = strings.TrimRight(strings.TrimSpace(override), "/")
	if override == "" {
		return s
	}
	return &GatewaySource{client: s.client, baseURL: override, log: s.log}
}

// FetchBalance queries the gateway for a single account.
func (s *GatewaySource) FetchBalance(ctx context.Context, address string) (float64, error) {
	endpoint := s.baseURL + "/account/" + url.PathEscape(address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build gateway request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("gateway status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read gateway response: %w", err)
	}

	balance := gjson.GetBytes(body, "balance")
	if !balance.Exists() {
		return 0, fmt.Errorf("gateway response missing balance for %s", address)
	}
	return balance.Float(), nil
}
