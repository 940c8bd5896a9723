package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type EscrowFundedPayload struct {
	EscrowID string  `json:"escrow_id"`
	AssetID  string  `json:"asset_id"`
	Amount   float64 `json:"amount"`
	FundedAt string  `json:"funded_at"`
}

type EscrowClosedPayload struct {
	EscrowID string  `json:"escrow_id"`
	Amount   float64 `json:"amount"`
	Reason   string  `json:"reason,omitempty"`
	ClosedAt string  `json:"closed_at"`
}

type PaymentSettledPayload struct {
	PaymentID      string  `json:"payment_id"`
	TransactionRef string  `json:"transaction_ref"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	RecipientID    string  `json:"recipient_id"`
	SettledAt      string  `json:"settled_at"`
}

type LicenseMintedPayload struct {
	TokenID    string `json:"token_id"`
	AssetID    string `json:"asset_id"`
	TemplateID string `json:"template_id"`
	OwnerID    string `json:"owner_id"`
	MintedAt   string `json:"minted_at"`
}

type LicenseTransferredPayload struct {
	TokenID       string `json:"token_id"`
	AssetID       string `json:"asset_id"`
	FromID        string `json:"from_id"`
	ToID          string `json:"to_id"`
	TransferredAt string `json:"transferred_at"`
}

type LicenseBurnedPayload struct {
	TokenID  string `json:"token_id"`
	OwnerID  string `json:"owner_id"`
	BurnedAt string `json:"burned_at"`
}

type PurchaseCompletedPayload struct {
	PurchaseID  string  `json:"purchase_id"`
	BuyerID     string  `json:"buyer_id"`
	AssetID     string  `json:"asset_id"`
	TokenID     string  `json:"token_id"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	CompletedAt string  `json:"completed_at"`
}

type PurchaseFailedPayload struct {
	PurchaseID string `json:"purchase_id"`
	BuyerID    string `json:"buyer_id"`
	AssetID    string `json:"asset_id"`
	Stage      string `json:"stage"`
	Reason     string `json:"reason"`
	FailedAt   string `json:"failed_at"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
