// Package chain wraps JSON-RPC access to the two EVM chains the trader
// operates on. Calldata for the handful of contract calls we make is
// packed by hand from 4-byte selectors; the call surface is too small to
// justify generated bindings.
package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
)

// usdcDecimals is the token precision for USDC on both Base and Polygon.
const usdcDecimals = 6

var usdcUnit = decimal.New(1, usdcDecimals)

const receiptPollInterval = 3 * time.Second

// Client is a single-chain RPC client bound to one USDC token contract.
type Client struct {
	eth     *ethclient.Client
	chain   domain.Chain
	chainID *big.Int
	usdc    common.Address
	logger  *slog.Logger
}

// NewClient dials the RPC endpoint and verifies the advertised chain ID
// matches the configured one, so a swapped endpoint fails at startup
// rather than at signing time.
func NewClient(ctx context.Context, ch domain.Chain, rpcURL string, chainID int64, usdcAddr string, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", ch, err)
	}

	remote, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("chain: chain id %s: %w", ch, err)
	}
	if remote.Int64() != chainID {
		eth.Close()
		return nil, fmt.Errorf("chain: %s endpoint reports chain id %d, want %d", ch, remote.Int64(), chainID)
	}

	return &Client{
		eth:     eth,
		chain:   ch,
		chainID: big.NewInt(chainID),
		usdc:    common.HexToAddress(usdcAddr),
		logger:  logger.With(slog.String("component", "chain"), slog.String("chain", string(ch))),
	}, nil
}

// Chain returns which chain this client talks to.
func (c *Client) Chain() domain.Chain { return c.chain }

// USDCAddress returns the bound token contract address.
func (c *Client) USDCAddress() common.Address { return c.usdc }

// Close releases the underlying RPC connection.
func (c *Client) Close() { c.eth.Close() }

// USDCBalance reads balanceOf(owner) on the USDC contract and returns a
// whole-token decimal amount.
func (c *Client) USDCBalance(ctx context.Context, owner string) (decimal.Decimal, error) {
	data := PackBalanceOf(common.HexToAddress(owner))
	out, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &c.usdc, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("chain: balanceOf on %s: %w", c.chain, err)
	}
	return FromBaseUnits(new(big.Int).SetBytes(out)), nil
}

// TransferUSDC sends an ERC-20 transfer of the given whole-token amount
// and returns the transaction hash without waiting for inclusion.
func (c *Client) TransferUSDC(ctx context.Context, signer *crypto.Signer, to string, amount decimal.Decimal) (string, error) {
	data := PackTransfer(common.HexToAddress(to), ToBaseUnits(amount))
	return c.SendContractTx(ctx, signer, c.usdc, data)
}

// ApproveUSDC grants an allowance to a spender contract. Used before CCTP
// burns so TokenMessenger can pull the collateral.
func (c *Client) ApproveUSDC(ctx context.Context, signer *crypto.Signer, spender common.Address, amount decimal.Decimal) (string, error) {
	data := PackApprove(spender, ToBaseUnits(amount))
	return c.SendContractTx(ctx, signer, c.usdc, data)
}

// SendContractTx builds, signs, and broadcasts a dynamic-fee transaction
// calling the given contract with the given calldata.
func (c *Client) SendContractTx(ctx context.Context, signer *crypto.Signer, to common.Address, data []byte) (string, error) {
	from := signer.Address()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("chain: nonce on %s: %w", c.chain, err)
	}

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("chain: gas tip on %s: %w", c.chain, err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("chain: head on %s: %w", c.chain, err)
	}
	// baseFee*2 + tip survives two consecutive max base fee increases.
	feeCap := new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tipCap)

	gasLimit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return "", fmt.Errorf("chain: estimate gas on %s: %w", c.chain, err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit + gasLimit/5,
		To:        &to,
		Data:      data,
	})

	signed, err := signer.SignTx(tx)
	if err != nil {
		return "", fmt.Errorf("chain: sign tx on %s: %w", c.chain, err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send tx on %s: %w", c.chain, err)
	}

	hash := signed.Hash().Hex()
	c.logger.Info("transaction broadcast",
		slog.String("tx", hash),
		slog.String("to", to.Hex()),
		slog.Uint64("nonce", nonce))
	return hash, nil
}

// WaitMined polls for the receipt of a transaction until the context
// expires. A reverted transaction is an error carrying the hash.
func (c *Client) WaitMined(ctx context.Context, txHash string) (*types.Receipt, error) {
	hash := common.HexToHash(txHash)
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("chain: tx %s reverted on %s", txHash, c.chain)
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: waiting for tx %s on %s: %w", txHash, c.chain, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ConfirmTx waits for the transaction to be mined successfully,
// discarding the receipt.
func (c *Client) ConfirmTx(ctx context.Context, txHash string) error {
	_, err := c.WaitMined(ctx, txHash)
	return err
}

// ToBaseUnits converts a whole-token USDC amount to 6-decimal base units,
// truncating sub-unit dust.
func ToBaseUnits(amount decimal.Decimal) *big.Int {
	return amount.Mul(usdcUnit).Truncate(0).BigInt()
}

// FromBaseUnits converts 6-decimal base units to a whole-token amount.
func FromBaseUnits(units *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(units, -usdcDecimals)
}

func selector(signature string) []byte {
	return gethcrypto.Keccak256([]byte(signature))[:4]
}

func padAddress(addr common.Address) []byte {
	out := make([]byte, 32)
	copy(out[12:], addr.Bytes())
	return out
}

func padUint(n *big.Int) []byte {
	out := make([]byte, 32)
	n.FillBytes(out)
	return out
}

// PackBalanceOf encodes balanceOf(address).
func PackBalanceOf(owner common.Address) []byte {
	data := selector("balanceOf(address)")
	return append(data, padAddress(owner)...)
}

// PackTransfer encodes transfer(address,uint256).
func PackTransfer(to common.Address, amount *big.Int) []byte {
	data := selector("transfer(address,uint256)")
	data = append(data, padAddress(to)...)
	return append(data, padUint(amount)...)
}

// PackApprove encodes approve(address,uint256).
func PackApprove(spender common.Address, amount *big.Int) []byte {
	data := selector("approve(address,uint256)")
	data = append(data, padAddress(spender)...)
	return append(data, padUint(amount)...)
}
