// Package wallet resolves per-agent signing capabilities from a private
// key registry. The registry is built once at startup and is read-only at
// workflow time; it is passed into the orchestrator explicitly so tests
// can substitute fake signers without environment mutation.
package wallet

import (
	"fmt"

	"github.com/alanyoungcy/agentrader/internal/config"
	"github.com/alanyoungcy/agentrader/internal/crypto"
	"github.com/alanyoungcy/agentrader/internal/domain"
)

// CapabilitySet is one agent's signing identity on both chains. The same
// secp256k1 key backs both signers; they differ only in chain ID, and
// therefore in transaction and EIP-712 domains.
type CapabilitySet struct {
	AgentID string
	Model   string
	Base    *crypto.Signer
	Polygon *crypto.Signer
}

// BaseAddress returns the agent's address on Base.
func (c CapabilitySet) BaseAddress() string {
	return c.Base.Address().Hex()
}

// PolygonAddress returns the agent's address on Polygon.
func (c CapabilitySet) PolygonAddress() string {
	return c.Polygon.Address().Hex()
}

// Registry maps agent series to signing capabilities. Capabilities are
// never persisted beyond process memory.
type Registry struct {
	agents map[string]CapabilitySet
}

// NewRegistry resolves every configured agent key and builds its
// capability set. A key that fails to load aborts construction: a
// registry with silently missing agents would surface much later as an
// unexplained workflow failure.
func NewRegistry(agents []config.AgentKey, baseChainID, polygonChainID int64) (*Registry, error) {
	r := &Registry{agents: make(map[string]CapabilitySet, len(agents))}

	for _, a := range agents {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    a.PrivateKey,
			EncryptedKeyPath: a.EncryptedKeyPath,
			KeyPassword:      a.KeyPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("wallet: load key for agent %s: %w", a.Series, err)
		}

		baseSigner, err := crypto.NewSigner(keyHex, baseChainID)
		if err != nil {
			return nil, fmt.Errorf("wallet: base signer for agent %s: %w", a.Series, err)
		}
		polygonSigner, err := crypto.NewSigner(keyHex, polygonChainID)
		if err != nil {
			return nil, fmt.Errorf("wallet: polygon signer for agent %s: %w", a.Series, err)
		}

		if _, dup := r.agents[a.Series]; dup {
			return nil, fmt.Errorf("wallet: duplicate agent series %q", a.Series)
		}
		r.agents[a.Series] = CapabilitySet{
			AgentID: a.Series,
			Model:   a.Model,
			Base:    baseSigner,
			Polygon: polygonSigner,
		}
	}

	return r, nil
}

// Capabilities returns the capability set for the given agent series.
func (r *Registry) Capabilities(agentID string) (CapabilitySet, error) {
	caps, ok := r.agents[agentID]
	if !ok {
		return CapabilitySet{}, fmt.Errorf("wallet: agent %s: %w", agentID, domain.ErrUnknownAgent)
	}
	return caps, nil
}

// AgentIDs returns every registered agent series, for iteration by the
// scheduler.
func (r *Registry) AgentIDs() []string {
	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}
