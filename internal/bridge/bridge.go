// Package bridge moves USDC between Base and Polygon over two asymmetric
// pathways: deposits ride the venue-operated relayer bridge and confirm
// by destination balance arrival; withdrawals ride Circle's CCTP and
// confirm by cryptographic attestation. The two protocols have genuinely
// different completion semantics, so each is its own state machine rather
// than two cases of a shared one.
package bridge

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/agentrader/internal/crypto"
)

// ChainClient is the slice of the chain RPC client both pathways need.
// *chain.Client satisfies it.
type ChainClient interface {
	USDCBalance(ctx context.Context, owner string) (decimal.Decimal, error)
	TransferUSDC(ctx context.Context, signer *crypto.Signer, to string, amount decimal.Decimal) (string, error)
	ApproveUSDC(ctx context.Context, signer *crypto.Signer, spender common.Address, amount decimal.Decimal) (string, error)
	SendContractTx(ctx context.Context, signer *crypto.Signer, to common.Address, data []byte) (string, error)
	ConfirmTx(ctx context.Context, txHash string) error
}
