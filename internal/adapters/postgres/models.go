package postgres

import "time"

type escrowModel struct {
	EscrowID          string    `gorm:"column:escrow_id;primaryKey"`
	Amount            float64   `gorm:"column:amount"`
	Currency          string    `gorm:"column:currency"`
	BuyerID           string    `gorm:"column:buyer_id"`
	SellerID          string    `gorm:"column:seller_id"`
	AssetID           string    `gorm:"column:asset_id"`
	Status            string    `gorm:"column:status"`
	ReleaseConditions *string   `gorm:"column:release_conditions;type:jsonb"`
	CloseReason       string    `gorm:"column:close_reason"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func (escrowModel) TableName() string { return "escrows" }

type paymentModel struct {
	PaymentID      string    `gorm:"column:payment_id;primaryKey"`
	TransactionRef string    `gorm:"column:transaction_ref"`
	BlockNumber    *int64    `gorm:"column:block_number"`
	UnitsUsed      int64     `gorm:"column:units_used"`
	UnitPrice      float64   `gorm:"column:unit_price"`
	Amount         float64   `gorm:"column:amount"`
	Currency       string    `gorm:"column:currency"`
	RecipientID    string    `gorm:"column:recipient_id"`
	BuyerID        string    `gorm:"column:buyer_id"`
	AssetID        string    `gorm:"column:asset_id"`
	EscrowID       string    `gorm:"column:escrow_id"`
	Split          *string   `gorm:"column:split;type:jsonb"`
	Status         string    `gorm:"column:status"`
	Metadata       *string   `gorm:"column:metadata;type:jsonb"`
	IdempotencyKey string    `gorm:"column:idempotency_key"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (paymentModel) TableName() string { return "payments" }

type licenseTokenModel struct {
	TokenID      string     `gorm:"column:token_id;primaryKey"`
	ContractRef  string     `gorm:"column:contract_ref"`
	AssetID      string     `gorm:"column:asset_id"`
	TemplateID   string     `gorm:"column:template_id"`
	OwnerID      string     `gorm:"column:owner_id"`
	IssuerID     string     `gorm:"column:issuer_id"`
	MintedAt     time.Time  `gorm:"column:minted_at"`
	ExpiresAt    *time.Time `gorm:"column:expires_at"`
	MaxUses      *int       `gorm:"column:max_uses"`
	UsedCount    int        `gorm:"column:used_count"`
	Permissions  *string    `gorm:"column:permissions;type:jsonb"`
	Restrictions *string    `gorm:"column:restrictions;type:jsonb"`
	Transferable bool       `gorm:"column:transferable"`
	Resellable   bool       `gorm:"column:resellable"`
	MetadataURI  string     `gorm:"column:metadata_uri"`
	Metadata     *string    `gorm:"column:metadata;type:jsonb"`
	BurnedAt     *time.Time `gorm:"column:burned_at"`
}

func (licenseTokenModel) TableName() string { return "license_tokens" }

type purchaseModel struct {
	PurchaseID     string    `gorm:"column:purchase_id;primaryKey"`
	BuyerID        string    `gorm:"column:buyer_id"`
	SellerID       string    `gorm:"column:seller_id"`
	AssetID        string    `gorm:"column:asset_id"`
	TemplateID     string    `gorm:"column:template_id"`
	TokenID        string    `gorm:"column:token_id"`
	EscrowID       string    `gorm:"column:escrow_id"`
	TransactionRef string    `gorm:"column:transaction_ref"`
	Amount         float64   `gorm:"column:amount"`
	Currency       string    `gorm:"column:currency"`
	Status         string    `gorm:"column:status"`
	FailureStage   string    `gorm:"column:failure_stage"`
	FailureReason  string    `gorm:"column:failure_reason"`
	CreatedAt      time.Time `gorm:"column:created_at"`
}

func (purchaseModel) TableName() string { return "purchases" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   *string   `gorm:"column:response_body;type:jsonb"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time `gorm:"column:created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at"`
}

func (idempotencyModel) TableName() string { return "purchase_idempotency" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "purchase_outbox" }
