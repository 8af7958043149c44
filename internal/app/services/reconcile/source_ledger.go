package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oysy/walletcore/pkg/logger"
)

// LedgerSource fetches balances from the ledger node over a JSON-RPC
// websocket connection. The connection is established lazily and requests
// are serialized; the node answers each command with its ref echoed back.
type LedgerSource struct {
	url string
	log *logger.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	ref  int
}

var _ BalanceSource = (*LedgerSource)(nil)

type ledgerRequest struct {
	Ref     string `json:"ref"`
	Command string `json:"command"`
	Address string `json:"address"`
}

type ledgerResponse struct {
	Ref     string  `json:"ref"`
	Status  string  `json:"status"`
	Balance float64 `json:"balance"`
	Error   string  `json:"error,omitempty"`
}

// NewLedgerSource constructs a ledger source for the given websocket URL.
func NewLedgerSource(url string, log *logger.Logger) (*LedgerSource, error) {
	if url == "" {
		return nil, fmt.Errorf("ledger URL required")
	}
	if log == nil {
		log = logger.NewDefault("ledger-source")
	}
	return &LedgerSource{url: url, log: log}, nil
}

func (s *LedgerSource) Name() string { return "ledger" }

func (s *LedgerSource) connectLocked(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial ledger: %w", err)
	}
	s.conn = conn
	s.log.WithField("url", s.url).Debug("ledger connection established")
	return nil
}

// FetchBalance asks the ledger node for the current balance of an address.
func (s *LedgerSource) FetchBalance(ctx context.Context, address string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connectLocked(ctx); err != nil {
		return 0, err
	}

	s.ref++
	ref := strconv.Itoa(s.ref)
	req := ledgerRequest{Ref: ref, Command: "account_balance", Address: address}

	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(deadline)
		_ = s.conn.SetWriteDeadline(deadline)
	}

	if err := s.conn.WriteJSON(req); err != nil {
		s.resetLocked()
		return 0, fmt.Errorf("ledger write: %w", err)
	}

	// Responses come back in request order on this connection; skip any
	// stray frames with a mismatched ref.
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.resetLocked()
			return 0, fmt.Errorf("ledger read: %w", err)
		}
		var resp ledgerResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			return 0, fmt.Errorf("decode ledger response: %w", err)
		}
		if resp.Ref != ref {
			continue
		}
		if resp.Status != "" && resp.Status != "success" {
			return 0, fmt.Errorf("ledger error: %s", resp.Error)
		}
		return resp.Balance, nil
	}
}

// Close tears down the websocket connection.
func (s *LedgerSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *LedgerSource) resetLocked() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}
