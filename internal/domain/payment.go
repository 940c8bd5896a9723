package domain

import (
	"math"
	"strings"
	"time"
)

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	HistoryDirectionSent     = "sent"
	HistoryDirectionReceived = "received"
	HistoryDirectionAll      = "all"
)

// PaymentResult is the immutable record of one settlement attempt.
type PaymentResult struct {
	PaymentID      string            `json:"payment_id"`
	TransactionRef string            `json:"transaction_ref"`
	BlockNumber    *int64            `json:"block_number,omitempty"`
	UnitsUsed      int64             `json:"units_used"`
	UnitPrice      float64           `json:"unit_price"`
	Amount         float64           `json:"amount"`
	Currency       string            `json:"currency"`
	RecipientID    string            `json:"recipient_id"`
	BuyerID        string            `json:"buyer_id"`
	AssetID        string            `json:"asset_id,omitempty"`
	EscrowID       string            `json:"escrow_id,omitempty"`
	Split          []SplitRecipient  `json:"split,omitempty"`
	Status         string            `json:"status"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

type SplitRecipient struct {
	Address    string  `json:"address"`
	Percentage float64 `json:"percentage"`
	Amount     float64 `json:"amount"`
}

type PaymentVerification struct {
	IsValid       bool    `json:"is_valid"`
	Status        string  `json:"status"`
	Confirmations int     `json:"confirmations"`
	Amount        float64 `json:"amount"`
	RecipientID   string  `json:"recipient_id"`
}

type CostEstimate struct {
	UnitsEstimate int64   `json:"units_estimate"`
	UnitPrice     float64 `json:"unit_price"`
	TotalCost     float64 `json:"total_cost"`
	CostCurrency  string  `json:"cost_currency"`
}

// splitTolerance is the allowed drift when recipient percentages are summed.
const splitTolerance = 0.01

func ValidateSplit(recipients []SplitRecipient) error {
	if len(recipients) == 0 {
		return ErrInvalidSplit
	}
	total := 0.0
	for _, r := range recipients {
		if strings.TrimSpace(r.Address) == "" || r.Percentage <= 0 {
			return ErrInvalidSplit
		}
		total += r.Percentage
	}
	if math.Abs(total-100) > splitTolerance {
		return ErrInvalidSplit
	}
	return nil
}

// ComputeSplitAmounts fills in each recipient's settled amount as
// total × percentage / 100, rounded half-up to the currency's minor unit.
func ComputeSplitAmounts(recipients []SplitRecipient, totalAmount float64, currency string) []SplitRecipient {
	out := make([]SplitRecipient, len(recipients))
	for i, r := range recipients {
		r.Amount = RoundToMinorUnit(totalAmount*r.Percentage/100, currency)
		out[i] = r
	}
	return out
}

// zeroDecimalCurrencies have no minor unit; everything else settles in
// hundredths.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
}

func RoundToMinorUnit(amount float64, currency string) float64 {
	factor := 100.0
	if zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))] {
		factor = 1.0
	}
	return math.Floor(amount*factor+0.5) / factor
}

func ValidatePaymentInput(amount float64, currency, recipientID, buyerID string) error {
	if amount <= 0 {
		return ErrInvalidInput
	}
	if len(strings.TrimSpace(currency)) != 3 {
		return ErrInvalidInput
	}
	if strings.TrimSpace(recipientID) == "" || strings.TrimSpace(buyerID) == "" {
		return ErrInvalidInput
	}
	return nil
}
