package ports

import (
	"context"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

type EscrowRepository interface {
	Create(ctx context.Context, row domain.Escrow) error
	GetByID(ctx context.Context, escrowID string) (domain.Escrow, error)
	Update(ctx context.Context, row domain.Escrow) error
}

type PaymentListQuery struct {
	Address   string
	Direction string
	Limit     int
	Offset    int
}

type PaymentRepository interface {
	Create(ctx context.Context, row domain.PaymentResult) error
	GetByTransactionRef(ctx context.Context, transactionRef string) (domain.PaymentResult, error)
	GetByIdempotencyKey(ctx context.Context, key string) (domain.PaymentResult, error)
	// List returns settlement records newest-first together with the total
	// count matching the query.
	List(ctx context.Context, query PaymentListQuery) ([]domain.PaymentResult, int, error)
}

type TokenRepository interface {
	Create(ctx context.Context, row domain.LicenseToken) error
	GetByID(ctx context.Context, tokenID string) (domain.LicenseToken, error)
	Update(ctx context.Context, row domain.LicenseToken) error
	ListByOwner(ctx context.Context, ownerID string) ([]domain.LicenseToken, error)
	ListByAsset(ctx context.Context, assetID string) ([]domain.LicenseToken, error)
}

type PurchaseListQuery struct {
	BuyerID string
	Limit   int
	Offset  int
}

type PurchaseRepository interface {
	Create(ctx context.Context, row domain.Purchase) error
	GetByID(ctx context.Context, purchaseID string) (domain.Purchase, error)
	List(ctx context.Context, query PurchaseListQuery) ([]domain.Purchase, int, error)
}

type IdempotencyRecord struct {
	Key          string
	RequestHash  string
	ResponseCode int
	ResponseBody []byte
	ExpiresAt    time.Time
}

type IdempotencyRepository interface {
	Get(ctx context.Context, key string, now time.Time) (*IdempotencyRecord, error)
	Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error
	Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error
}

type OutboxRecord struct {
	RecordID   string
	EventClass string
	Envelope   contracts.EventEnvelope
	CreatedAt  time.Time
	SentAt     *time.Time
}

type OutboxRepository interface {
	Enqueue(ctx context.Context, record OutboxRecord) error
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, recordID string, at time.Time) error
}
