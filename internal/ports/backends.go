package ports

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

// SettlementRequest describes one value transfer handed to the payment rail.
// Transfers is populated for split settlements; Amount always carries the
// full settled value.
type SettlementRequest struct {
	Amount      float64
	Currency    string
	RecipientID string
	BuyerID     string
	Transfers   []domain.SplitRecipient
}

type SettlementReceipt struct {
	TransactionRef string
	BlockNumber    int64
	UnitsUsed      int64
	UnitPrice      float64
}

// SettlementBackend is the payment rail. The reference implementation is a
// deterministic simulation; a production adapter would drive the real chain
// client behind the same calls.
type SettlementBackend interface {
	Settle(ctx context.Context, req SettlementRequest) (SettlementReceipt, error)
	EstimateCost(ctx context.Context, amount float64, currency string) (domain.CostEstimate, error)
	Confirmations(ctx context.Context, transactionRef string) (int, error)
}

type TokenMintReceipt struct {
	ContractRef string
	MetadataURI string
}

// TokenBackend mints and retires license tokens on the rights registry.
type TokenBackend interface {
	Mint(ctx context.Context, tokenID, assetID, ownerID string) (TokenMintReceipt, error)
	Transfer(ctx context.Context, tokenID, fromID, toID string) error
	Burn(ctx context.Context, tokenID string) error
}

// EscrowBackend moves custodial funds for an escrow. Ledger state stays in
// this service; the backend only mirrors the fund movements.
type EscrowBackend interface {
	Lock(ctx context.Context, escrowID string, amount float64, currency string) error
	Release(ctx context.Context, escrowID string) error
	Refund(ctx context.Context, escrowID string) error
}
