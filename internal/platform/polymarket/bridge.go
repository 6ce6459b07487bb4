package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// BridgeClient talks to the Polymarket bridge relayer, which issues a
// per-wallet deposit address on Base. USDC sent to that address is
// forwarded to the wallet's Polygon balance by the relayer; there is no
// attestation step, only balance arrival.
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridgeClient creates a bridge relayer client.
func NewBridgeClient(baseURL string) *BridgeClient {
	return &BridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// DepositAddress returns the Base-side deposit address assigned to the
// given Polygon wallet. The relayer issues the address on first request
// and returns the same one thereafter, so this is safe to call every run.
func (c *BridgeClient) DepositAddress(ctx context.Context, wallet string) (string, error) {
	u := fmt.Sprintf("%s/deposit-address?address=%s", c.baseURL, wallet)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("polymarket/bridge: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("polymarket/bridge: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("polymarket/bridge: read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return "", fmt.Errorf("polymarket/bridge: deposit address for %s: %w", wallet, err)
	}

	var out struct {
		DepositAddress string `json:"depositAddress"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("polymarket/bridge: decode response: %w", err)
	}
	if out.DepositAddress == "" {
		return "", fmt.Errorf("polymarket/bridge: relayer returned empty deposit address for %s", wallet)
	}

	return out.DepositAddress, nil
}
