package domain

import "time"

const (
	PurchaseStatusCompleted = "completed"
	PurchaseStatusFailed    = "failed"
	// PurchaseStatusReleasePending marks a purchase whose license minted but
	// whose escrow release failed; the escrow stays funded until manual
	// reconciliation.
	PurchaseStatusReleasePending = "release_pending"
)

// Purchase is the durable receipt of one orchestration attempt, successful
// or not.
type Purchase struct {
	PurchaseID     string    `json:"purchase_id"`
	BuyerID        string    `json:"buyer_id"`
	SellerID       string    `json:"seller_id"`
	AssetID        string    `json:"asset_id"`
	TemplateID     string    `json:"template_id"`
	TokenID        string    `json:"token_id,omitempty"`
	EscrowID       string    `json:"escrow_id,omitempty"`
	TransactionRef string    `json:"transaction_ref,omitempty"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	Status         string    `json:"status"`
	FailureStage   string    `json:"failure_stage,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Asset is the slice of catalog data this service needs; the catalog itself
// is an external collaborator.
type Asset struct {
	AssetID  string  `json:"asset_id"`
	Title    string  `json:"title"`
	SellerID string  `json:"seller_id"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
}
