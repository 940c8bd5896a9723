package contracts

// Request bodies for the public HTTP surface. Responses use a
// `{success: bool, ...}` envelope assembled by the HTTP adapter; errors are
// `{error: string}`.

type EscrowActionRequest struct {
	Action   string   `json:"action"`
	EscrowID string   `json:"escrowId"`
	Amount   *float64 `json:"amount,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

type CreateEscrowRequest struct {
	Amount               float64  `json:"amount"`
	Currency             string   `json:"currency"`
	BuyerID              string   `json:"buyerId"`
	SellerID             string   `json:"sellerId"`
	AssetID              string   `json:"assetId"`
	MinSellerRating      *float64 `json:"minSellerRating,omitempty"`
	TimeLockSeconds      *int64   `json:"timeLockSeconds,omitempty"`
	VerificationRequired bool     `json:"verificationRequired,omitempty"`
}

type SplitRecipientDTO struct {
	Address    string  `json:"address"`
	Percentage float64 `json:"percentage"`
}

type PaymentPostRequest struct {
	Type            string              `json:"type"`
	Amount          float64             `json:"amount"`
	Currency        string              `json:"currency"`
	AssetID         string              `json:"assetId,omitempty"`
	LicenseID       string              `json:"licenseId,omitempty"`
	BuyerID         string              `json:"buyerId"`
	SellerID        string              `json:"sellerId,omitempty"`
	EscrowID        string              `json:"escrowId,omitempty"`
	TransactionRef  string              `json:"transactionRef,omitempty"`
	SplitRecipients []SplitRecipientDTO `json:"splitRecipients,omitempty"`
	Metadata        map[string]string   `json:"metadata,omitempty"`
}

type LicensePostRequest struct {
	Action     string            `json:"action"`
	TokenID    string            `json:"tokenId,omitempty"`
	AssetID    string            `json:"assetId,omitempty"`
	TemplateID string            `json:"licenseTemplateId,omitempty"`
	Purchaser  string            `json:"purchaser,omitempty"`
	From       string            `json:"from,omitempty"`
	To         string            `json:"to,omitempty"`
	User       string            `json:"user,omitempty"`
	Duration   *int              `json:"duration,omitempty"`
	MaxUses    *int              `json:"maxUses,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type PurchaseRequest struct {
	BuyerID    string `json:"buyerId"`
	AssetID    string `json:"assetId"`
	SellerID   string `json:"sellerId"`
	TemplateID string `json:"licenseTemplateId"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
	Pages  int `json:"pages"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
