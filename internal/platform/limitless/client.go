// Package limitless is the REST client for the Limitless Exchange AMM on
// Base. Trades execute against the pool in a single on-chain transaction
// relayed by the API, so every accepted trade is already settled when the
// response arrives.
package limitless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
)

// Client is the Limitless REST client for one signing wallet.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
}

// NewClient creates a Limitless client.
//
// baseURL is the API root, e.g. "https://api.limitless.exchange".
// signer must target Base; its signature authenticates every trade.
func NewClient(baseURL string, signer *crypto.Signer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		signer: signer,
	}
}

// Wallet returns the address of the signing wallet behind this client.
func (c *Client) Wallet() string {
	return c.signer.Address().Hex()
}

// GetMarket fetches one market by slug, including its current AMM quote.
func (c *Client) GetMarket(ctx context.Context, slug string) (APIMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(slug))

	body, err := c.doSignedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return APIMarket{}, fmt.Errorf("limitless: get market %s: %w", slug, err)
	}

	var market APIMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return APIMarket{}, fmt.Errorf("limitless: decode market: %w", err)
	}

	return market, nil
}

// Buy spends the given collateral amount on outcome shares. slippageBps
// bounds how far the realized average price may move from the quote; the
// API rejects the trade rather than exceeding it.
func (c *Client) Buy(ctx context.Context, slug string, outcome domain.Outcome, collateral decimal.Decimal, slippageBps int) (APITradeReceipt, error) {
	return c.trade(ctx, slug, "buy", outcome, collateral, slippageBps)
}

// Sell liquidates the given number of outcome shares back into the pool.
func (c *Client) Sell(ctx context.Context, slug string, outcome domain.Outcome, shares decimal.Decimal, slippageBps int) (APITradeReceipt, error) {
	return c.trade(ctx, slug, "sell", outcome, shares, slippageBps)
}

func (c *Client) trade(ctx context.Context, slug, side string, outcome domain.Outcome, amount decimal.Decimal, slippageBps int) (APITradeReceipt, error) {
	body := map[string]any{
		"slug":        slug,
		"side":        side,
		"outcome":     string(outcome),
		"amount":      amount.String(),
		"slippageBps": slippageBps,
	}

	respBody, err := c.doSignedRequest(ctx, http.MethodPost, "/trades", body)
	if err != nil {
		return APITradeReceipt{}, fmt.Errorf("limitless: %s %s: %w", side, slug, err)
	}

	var receipt APITradeReceipt
	if err := json.Unmarshal(respBody, &receipt); err != nil {
		return APITradeReceipt{}, fmt.Errorf("limitless: decode trade receipt: %w", err)
	}
	if receipt.TxHash == "" {
		return receipt, fmt.Errorf("limitless: %w: trade returned no settlement transaction", domain.ErrVenueRejected)
	}

	return receipt, nil
}

// doSignedRequest sends a request authenticated with a signed message.
// Limitless authenticates EOAs by having the wallet sign the request
// timestamp; the API recovers the address from the signature.
func (c *Client) doSignedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	timestamp := time.Now().Unix()
	sig, err := c.signer.SignAuthMessage(c.signer.Address().Hex(), timestamp, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSigningFailed, err)
	}
	req.Header.Set("x-account", c.signer.Address().Hex())
	req.Header.Set("x-timestamp", fmt.Sprintf("%d", timestamp))
	req.Header.Set("x-signature", sig)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrVenueRejected, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
