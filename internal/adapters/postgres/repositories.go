package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Escrows     ports.EscrowRepository
	Payments    ports.PaymentRepository
	Tokens      ports.TokenRepository
	Purchases   ports.PurchaseRepository
	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Escrows:     &escrowRepository{db: db},
		Payments:    &paymentRepository{db: db},
		Tokens:      &tokenRepository{db: db},
		Purchases:   &purchaseRepository{db: db},
		Idempotency: &idempotencyRepository{db: db},
		Outbox:      &outboxRepository{db: db},
	}
}

type escrowRepository struct {
	db *gorm.DB
}

func (r *escrowRepository) Create(ctx context.Context, row domain.Escrow) error {
	rec := toEscrowModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *escrowRepository) GetByID(ctx context.Context, escrowID string) (domain.Escrow, error) {
	var rec escrowModel
	if err := r.db.WithContext(ctx).Where("escrow_id = ?", escrowID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Escrow{}, domain.ErrNotFound
		}
		return domain.Escrow{}, err
	}
	return toDomainEscrow(rec), nil
}

func (r *escrowRepository) Update(ctx context.Context, row domain.Escrow) error {
	rec := toEscrowModel(row)
	res := r.db.WithContext(ctx).
		Model(&escrowModel{}).
		Where("escrow_id = ?", row.EscrowID).
		Updates(map[string]any{
			"status":       rec.Status,
			"close_reason": rec.CloseReason,
			"updated_at":   rec.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type paymentRepository struct {
	db *gorm.DB
}

func (r *paymentRepository) Create(ctx context.Context, row domain.PaymentResult) error {
	rec := toPaymentModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *paymentRepository) GetByTransactionRef(ctx context.Context, transactionRef string) (domain.PaymentResult, error) {
	var rec paymentModel
	if err := r.db.WithContext(ctx).Where("transaction_ref = ?", transactionRef).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PaymentResult{}, domain.ErrNotFound
		}
		return domain.PaymentResult{}, err
	}
	return toDomainPayment(rec), nil
}

func (r *paymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (domain.PaymentResult, error) {
	var rec paymentModel
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PaymentResult{}, domain.ErrNotFound
		}
		return domain.PaymentResult{}, err
	}
	return toDomainPayment(rec), nil
}

func (r *paymentRepository) List(ctx context.Context, query ports.PaymentListQuery) ([]domain.PaymentResult, int, error) {
	base := r.db.WithContext(ctx).Model(&paymentModel{})
	switch query.Direction {
	case domain.HistoryDirectionSent:
		base = base.Where("buyer_id = ?", query.Address)
	case domain.HistoryDirectionReceived:
		base = base.Where("recipient_id = ?", query.Address)
	default:
		base = base.Where("buyer_id = ? OR recipient_id = ?", query.Address, query.Address)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []paymentModel
	if err := base.Order("created_at DESC").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.PaymentResult, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPayment(row))
	}
	return out, int(total), nil
}

type tokenRepository struct {
	db *gorm.DB
}

func (r *tokenRepository) Create(ctx context.Context, row domain.LicenseToken) error {
	rec := toTokenModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *tokenRepository) GetByID(ctx context.Context, tokenID string) (domain.LicenseToken, error) {
	var rec licenseTokenModel
	if err := r.db.WithContext(ctx).Where("token_id = ?", tokenID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.LicenseToken{}, domain.ErrNotFound
		}
		return domain.LicenseToken{}, err
	}
	return toDomainToken(rec), nil
}

func (r *tokenRepository) Update(ctx context.Context, row domain.LicenseToken) error {
	rec := toTokenModel(row)
	res := r.db.WithContext(ctx).
		Model(&licenseTokenModel{}).
		Where("token_id = ?", row.TokenID).
		Updates(map[string]any{
			"owner_id":   rec.OwnerID,
			"used_count": rec.UsedCount,
			"burned_at":  rec.BurnedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *tokenRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.LicenseToken, error) {
	var rows []licenseTokenModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("minted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LicenseToken, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainToken(row))
	}
	return out, nil
}

func (r *tokenRepository) ListByAsset(ctx context.Context, assetID string) ([]domain.LicenseToken, error) {
	var rows []licenseTokenModel
	if err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("minted_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.LicenseToken, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainToken(row))
	}
	return out, nil
}

type purchaseRepository struct {
	db *gorm.DB
}

func (r *purchaseRepository) Create(ctx context.Context, row domain.Purchase) error {
	rec := toPurchaseModel(row)
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *purchaseRepository) GetByID(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	var rec purchaseModel
	if err := r.db.WithContext(ctx).Where("purchase_id = ?", purchaseID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Purchase{}, domain.ErrNotFound
		}
		return domain.Purchase{}, err
	}
	return toDomainPurchase(rec), nil
}

func (r *purchaseRepository) List(ctx context.Context, query ports.PurchaseListQuery) ([]domain.Purchase, int, error) {
	base := r.db.WithContext(ctx).Model(&purchaseModel{}).Where("buyer_id = ?", query.BuyerID)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []purchaseModel
	if err := base.Order("created_at DESC").Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	out := make([]domain.Purchase, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainPurchase(row))
	}
	return out, int(total), nil
}

type idempotencyRepository struct {
	db *gorm.DB
}

func (r *idempotencyRepository) Get(ctx context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	var rec idempotencyModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Where("expires_at > ?", now).
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := ports.IdempotencyRecord{
		Key:          rec.IdempotencyKey,
		RequestHash:  rec.RequestHash,
		ResponseCode: rec.ResponseCode,
		ExpiresAt:    rec.ExpiresAt,
	}
	if rec.ResponseBody != nil {
		out.ResponseBody = []byte(*rec.ResponseBody)
	}
	return &out, nil
}

func (r *idempotencyRepository) Reserve(ctx context.Context, key, requestHash string, expiresAt time.Time) error {
	now := time.Now().UTC()
	rec := idempotencyModel{
		IdempotencyKey: key,
		RequestHash:    requestHash,
		ExpiresAt:      expiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *idempotencyRepository) Complete(ctx context.Context, key string, responseCode int, responseBody []byte, at time.Time) error {
	var body *string
	if len(responseBody) > 0 {
		raw := string(responseBody)
		body = &raw
	}
	return r.db.WithContext(ctx).
		Model(&idempotencyModel{}).
		Where("idempotency_key = ?", key).
		Updates(map[string]any{
			"response_code": responseCode,
			"response_body": body,
			"updated_at":    at,
		}).Error
}

type outboxRepository struct {
	db *gorm.DB
}

func (r *outboxRepository) Enqueue(ctx context.Context, record ports.OutboxRecord) error {
	envelope, err := json.Marshal(record.Envelope)
	if err != nil {
		return err
	}
	rec := outboxModel{
		RecordID:   record.RecordID,
		EventClass: record.EventClass,
		Envelope:   string(envelope),
		CreatedAt:  record.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *outboxRepository) ListPending(ctx context.Context, limit int) ([]ports.OutboxRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	if err := r.db.WithContext(ctx).
		Where("sent_at IS NULL").
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]ports.OutboxRecord, 0, len(rows))
	for _, row := range rows {
		var envelope contracts.EventEnvelope
		if err := json.Unmarshal([]byte(row.Envelope), &envelope); err != nil {
			return nil, err
		}
		out = append(out, ports.OutboxRecord{
			RecordID:   row.RecordID,
			EventClass: row.EventClass,
			Envelope:   envelope,
			CreatedAt:  row.CreatedAt,
			SentAt:     row.SentAt,
		})
	}
	return out, nil
}

func (r *outboxRepository) MarkSent(ctx context.Context, recordID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&outboxModel{}).
		Where("record_id = ?", recordID).
		Update("sent_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
