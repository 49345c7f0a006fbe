package datapath

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/portgrant/portgrantd/internal/rules"
)

// rulesPath is the datapath manager's rule change endpoint.
const rulesPath = "/v1/port-rules"

// ManagerClient sends rule changes to the external datapath manager as JSON
// over HTTP across its Unix socket. The HTTP client is built per call; no
// connection state survives between rule changes.
type ManagerClient struct {
	cfg    Config
	logger *slog.Logger
}

// NewManagerClient creates a ManagerClient. Config defaults are applied
// automatically.
func NewManagerClient(cfg Config, logger *slog.Logger) *ManagerClient {
	cfg.ApplyDefaults()
	return &ManagerClient{
		cfg:    cfg,
		logger: logger.With("component", "datapath"),
	}
}

// ModifyPortRule sends one rule change and returns nil iff the manager
// accepted it. An unreachable manager is reported the same way as a
// rejected change.
func (c *ManagerClient) ModifyPortRule(ctx context.Context, op Operation, rule rules.PortRule) error {
	body, err := json.Marshal(NewRequest(op, rule))
	if err != nil {
		return fmt.Errorf("datapath: encode request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://localhost"+rulesPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("datapath: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.newSocketClient().Do(req)
	if err != nil {
		return fmt.Errorf("datapath: manager unreachable at %s: %w", c.cfg.SocketPath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("datapath: manager returned status %d", resp.StatusCode)
	}

	var reply Response
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return fmt.Errorf("datapath: decode response: %w", err)
	}
	if !reply.OK {
		if reply.Error != "" {
			return fmt.Errorf("datapath: manager rejected %s for %v: %s", op, rule, reply.Error)
		}
		return fmt.Errorf("datapath: manager rejected %s for %v", op, rule)
	}

	c.logger.Debug("rule change accepted", "op", string(op), "rule", rule.String())
	return nil
}

// newSocketClient returns a fresh HTTP client that dials the manager's
// Unix socket.
func (c *ManagerClient) newSocketClient() *http.Client {
	socketPath := c.cfg.SocketPath
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", socketPath)
			},
		},
	}
}
