package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Chain identifies one of the two supported chains.
type Chain string

const (
	ChainBase    Chain = "base"
	ChainPolygon Chain = "polygon"
)

// BridgeState is the lifecycle state of a bridge transfer.
type BridgeState string

const (
	// BridgeStateInitiated: the source-chain transfer has been sent but
	// arrival on the destination is unconfirmed. A deposit that exhausts
	// its polling budget stays in this state; funds may still arrive.
	BridgeStateInitiated BridgeState = "initiated"

	// BridgeStateAttested: a withdrawal has its attestation but the
	// destination completion transaction has not landed yet.
	BridgeStateAttested BridgeState = "attested"

	BridgeStateCompleted BridgeState = "completed"

	// BridgeStateTimeout is terminal for withdrawals: the attestation
	// never arrived within budget. The source tx reference is retained so
	// the transfer can be completed manually. Never auto-retried, since
	// resubmitting the source-side transfer would double-spend.
	BridgeStateTimeout BridgeState = "timeout"

	BridgeStateFailed BridgeState = "failed"
)

// BridgeTransfer is the ephemeral process state of one bridge operation.
type BridgeTransfer struct {
	ID          string
	AgentID     string
	SourceChain Chain
	DestChain   Chain
	Amount      decimal.Decimal // canonical USDC units
	SourceTx    string
	DestTx      string // empty until completion
	State       BridgeState
	StartedAt   time.Time
	CompletedAt *time.Time
}
