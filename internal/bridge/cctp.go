package bridge

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// PolygonDomain is Polygon's CCTP domain identifier.
const PolygonDomain uint32 = 7

// ErrAttestationPending is returned while Circle's attestation service
// has not yet signed the burn message.
var ErrAttestationPending = errors.New("bridge: attestation pending")

// Attestation is a signed CCTP message ready for destination submission.
type Attestation struct {
	Message     []byte
	Attestation []byte
}

// IrisClient polls Circle's Iris API for CCTP attestations.
type IrisClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIrisClient creates an Iris API client.
func NewIrisClient(baseURL string) *IrisClient {
	return &IrisClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Attestation looks up the attestation for a burn transaction on the
// given source domain. ErrAttestationPending means keep polling.
func (c *IrisClient) Attestation(ctx context.Context, sourceDomain uint32, burnTx string) (Attestation, error) {
	u := fmt.Sprintf("%s/v1/messages/%d/%s", c.baseURL, sourceDomain, burnTx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: read response: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		// Iris has not indexed the burn yet.
		return Attestation{}, ErrAttestationPending
	}
	if resp.StatusCode != http.StatusOK {
		return Attestation{}, fmt.Errorf("bridge/iris: HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Messages []struct {
			Message     string `json:"message"`
			Attestation string `json:"attestation"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: decode response: %w", err)
	}
	if len(out.Messages) == 0 {
		return Attestation{}, ErrAttestationPending
	}

	msg := out.Messages[0]
	if msg.Attestation == "" || strings.EqualFold(msg.Attestation, "PENDING") {
		return Attestation{}, ErrAttestationPending
	}

	message, err := hex.DecodeString(strings.TrimPrefix(msg.Message, "0x"))
	if err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: decode message hex: %w", err)
	}
	attestation, err := hex.DecodeString(strings.TrimPrefix(msg.Attestation, "0x"))
	if err != nil {
		return Attestation{}, fmt.Errorf("bridge/iris: decode attestation hex: %w", err)
	}

	return Attestation{Message: message, Attestation: attestation}, nil
}

func selector(signature string) []byte {
	return gethcrypto.Keccak256([]byte(signature))[:4]
}

func padUint(n *big.Int) []byte {
	out := make([]byte, 32)
	n.FillBytes(out)
	return out
}

// addressToBytes32 left-pads an EVM address to the bytes32 recipient form
// CCTP uses.
func addressToBytes32(addr common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out
}

// PackDepositForBurn encodes
// depositForBurn(uint256,uint32,bytes32,address) for TokenMessenger.
func PackDepositForBurn(amount *big.Int, destDomain uint32, mintRecipient common.Address, burnToken common.Address) []byte {
	data := selector("depositForBurn(uint256,uint32,bytes32,address)")
	data = append(data, padUint(amount)...)
	data = append(data, padUint(big.NewInt(int64(destDomain)))...)
	data = append(data, addressToBytes32(mintRecipient)...)
	data = append(data, addressToBytes32(burnToken)...)
	return data
}

// PackReceiveMessage encodes receiveMessage(bytes,bytes) for
// MessageTransmitter. Both arguments are dynamic, so the head carries two
// offsets followed by length-prefixed, 32-byte-padded payloads.
func PackReceiveMessage(message, attestation []byte) []byte {
	data := selector("receiveMessage(bytes,bytes)")

	messageWords := paddedLen(message)
	// First offset points past the two head words; second points past the
	// message's length word and padded payload.
	data = append(data, padUint(big.NewInt(64))...)
	data = append(data, padUint(big.NewInt(int64(64+32+messageWords)))...)
	data = append(data, packBytes(message)...)
	data = append(data, packBytes(attestation)...)
	return data
}

func packBytes(b []byte) []byte {
	out := padUint(big.NewInt(int64(len(b))))
	out = append(out, b...)
	if pad := paddedLen(b) - len(b); pad > 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

func paddedLen(b []byte) int {
	return (len(b) + 31) / 32 * 32
}
