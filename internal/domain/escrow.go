package domain

import (
	"strings"
	"time"
)

const (
	EscrowStatusPending   = "pending"
	EscrowStatusFunded    = "funded"
	EscrowStatusCompleted = "completed"
	EscrowStatusReleased  = "released"
	EscrowStatusRefunded  = "refunded"
)

// ReleaseConditions are recorded on the escrow for audit; they do not gate
// release or refund in this service.
type ReleaseConditions struct {
	MinSellerRating      *float64       `json:"min_seller_rating,omitempty"`
	TimeLock             *time.Duration `json:"time_lock,omitempty"`
	VerificationRequired bool           `json:"verification_required"`
}

type Escrow struct {
	EscrowID          string            `json:"escrow_id"`
	Amount            float64           `json:"amount"`
	Currency          string            `json:"currency"`
	BuyerID           string            `json:"buyer_id"`
	SellerID          string            `json:"seller_id"`
	AssetID           string            `json:"asset_id"`
	Status            string            `json:"status"`
	ReleaseConditions ReleaseConditions `json:"release_conditions"`
	CloseReason       string            `json:"close_reason,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Closed reports whether the escrow has reached a terminal status. No
// transition leaves released or refunded.
func (e Escrow) Closed() bool {
	return e.Status == EscrowStatusReleased || e.Status == EscrowStatusRefunded
}

func ValidateCreateEscrowInput(amount float64, currency, buyerID, sellerID, assetID string) error {
	if amount <= 0 {
		return ErrInvalidInput
	}
	if len(strings.TrimSpace(currency)) != 3 {
		return ErrInvalidInput
	}
	if strings.TrimSpace(buyerID) == "" || strings.TrimSpace(sellerID) == "" || strings.TrimSpace(assetID) == "" {
		return ErrInvalidInput
	}
	return nil
}
