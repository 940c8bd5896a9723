// Package chain provides deterministic simulations of the settlement rail and
// the rights registry. Receipts are derived from request content so replays
// and tests see stable values; production deployments swap in real chain
// clients behind the same ports.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

const (
	baseSettleUnits  = int64(21000)
	perTransferUnits = int64(8500)
	simUnitPrice     = 0.000001
	simBaseBlock     = int64(4_200_000)
)

type SettlementSimulator struct {
	nonce atomic.Int64
}

func NewSettlementSimulator() *SettlementSimulator {
	return &SettlementSimulator{}
}

func (s *SettlementSimulator) Settle(_ context.Context, req ports.SettlementRequest) (ports.SettlementReceipt, error) {
	nonce := s.nonce.Add(1)
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%.8f|%s|%d", req.BuyerID, req.RecipientID, req.Amount, req.Currency, nonce)))
	units := baseSettleUnits + perTransferUnits*int64(len(req.Transfers))
	return ports.SettlementReceipt{
		TransactionRef: "0x" + hex.EncodeToString(digest[:]),
		BlockNumber:    simBaseBlock + nonce,
		UnitsUsed:      units,
		UnitPrice:      simUnitPrice,
	}, nil
}

func (s *SettlementSimulator) EstimateCost(_ context.Context, amount float64, currency string) (domain.CostEstimate, error) {
	if amount <= 0 {
		return domain.CostEstimate{}, domain.ErrInvalidInput
	}
	return domain.CostEstimate{
		UnitsEstimate: baseSettleUnits,
		UnitPrice:     simUnitPrice,
		TotalCost:     float64(baseSettleUnits) * simUnitPrice,
		CostCurrency:  strings.ToUpper(strings.TrimSpace(currency)),
	}, nil
}

func (s *SettlementSimulator) Confirmations(_ context.Context, transactionRef string) (int, error) {
	digest := sha256.Sum256([]byte(transactionRef))
	// 1..12, stable per transaction ref.
	return int(binary.BigEndian.Uint16(digest[:2]))%12 + 1, nil
}

type TokenSimulator struct {
	contractRef string
}

func NewTokenSimulator(contractRef string) *TokenSimulator {
	return &TokenSimulator{contractRef: contractRef}
}

func (s *TokenSimulator) Mint(_ context.Context, tokenID, assetID, ownerID string) (ports.TokenMintReceipt, error) {
	if strings.TrimSpace(tokenID) == "" || strings.TrimSpace(assetID) == "" || strings.TrimSpace(ownerID) == "" {
		return ports.TokenMintReceipt{}, domain.ErrInvalidInput
	}
	return ports.TokenMintReceipt{
		ContractRef: s.contractRef,
		MetadataURI: "ipfs://QmLicense" + strings.ReplaceAll(tokenID, "-", ""),
	}, nil
}

func (s *TokenSimulator) Transfer(_ context.Context, tokenID, fromID, toID string) error {
	if strings.TrimSpace(tokenID) == "" || strings.TrimSpace(fromID) == "" || strings.TrimSpace(toID) == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

func (s *TokenSimulator) Burn(_ context.Context, tokenID string) error {
	if strings.TrimSpace(tokenID) == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

// EscrowSimulator mirrors custodial fund movements. The ledger in this
// service is authoritative, so the simulator only validates inputs.
type EscrowSimulator struct{}

func NewEscrowSimulator() *EscrowSimulator {
	return &EscrowSimulator{}
}

func (s *EscrowSimulator) Lock(_ context.Context, escrowID string, amount float64, currency string) error {
	if strings.TrimSpace(escrowID) == "" || amount <= 0 || len(strings.TrimSpace(currency)) != 3 {
		return domain.ErrInvalidInput
	}
	return nil
}

func (s *EscrowSimulator) Release(_ context.Context, escrowID string) error {
	if strings.TrimSpace(escrowID) == "" {
		return domain.ErrInvalidInput
	}
	return nil
}

func (s *EscrowSimulator) Refund(_ context.Context, escrowID string) error {
	if strings.TrimSpace(escrowID) == "" {
		return domain.ErrInvalidInput
	}
	return nil
}
