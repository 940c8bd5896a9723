package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

type Repositories struct {
	Escrows     *EscrowRepository
	Payments    *PaymentRepository
	Tokens      *TokenRepository
	Purchases   *PurchaseRepository
	Idempotency *IdempotencyRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Escrows:     &EscrowRepository{rows: map[string]domain.Escrow{}},
		Payments:    &PaymentRepository{rows: map[string]domain.PaymentResult{}},
		Tokens:      &TokenRepository{rows: map[string]domain.LicenseToken{}},
		Purchases:   &PurchaseRepository{rows: map[string]domain.Purchase{}},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		Outbox:      &OutboxRepository{rows: map[string]ports.OutboxRecord{}, order: []string{}},
	}
}

type EscrowRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Escrow
}
func (r *EscrowRepository) Create(_ context.Context, row domain.Escrow) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.EscrowID]; ok { return domain.ErrConflict }; r.rows[row.EscrowID] = row; return nil
}
func (r *EscrowRepository) GetByID(_ context.Context, escrowID string) (domain.Escrow, error) {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[strings.TrimSpace(escrowID)]; if !ok { return domain.Escrow{}, domain.ErrNotFound }; return row, nil
}
func (r *EscrowRepository) Update(_ context.Context, row domain.Escrow) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.EscrowID]; !ok { return domain.ErrNotFound }; r.rows[row.EscrowID] = row; return nil
}

type PaymentRepository struct {
	mu   sync.Mutex
	rows map[string]domain.PaymentResult
}
func (r *PaymentRepository) Create(_ context.Context, row domain.PaymentResult) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.PaymentID]; ok { return domain.ErrConflict }; r.rows[row.PaymentID] = row; return nil
}
func (r *PaymentRepository) GetByTransactionRef(_ context.Context, transactionRef string) (domain.PaymentResult, error) {
	r.mu.Lock(); defer r.mu.Unlock(); ref := strings.TrimSpace(transactionRef)
	for _, row := range r.rows { if row.TransactionRef == ref { return row, nil } }
	return domain.PaymentResult{}, domain.ErrNotFound
}
func (r *PaymentRepository) GetByIdempotencyKey(_ context.Context, key string) (domain.PaymentResult, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	for _, row := range r.rows { if row.IdempotencyKey == key { return row, nil } }
	return domain.PaymentResult{}, domain.ErrNotFound
}
func (r *PaymentRepository) List(_ context.Context, query ports.PaymentListQuery) ([]domain.PaymentResult, int, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	address := strings.TrimSpace(query.Address)
	matched := make([]domain.PaymentResult, 0)
	for _, row := range r.rows {
		sent := row.BuyerID == address
		received := row.RecipientID == address
		switch query.Direction {
		case domain.HistoryDirectionSent:
			if !sent { continue }
		case domain.HistoryDirectionReceived:
			if !received { continue }
		default:
			if !sent && !received { continue }
		}
		matched = append(matched, row)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if query.Offset >= total { return []domain.PaymentResult{}, total, nil }
	end := query.Offset + query.Limit
	if end > total { end = total }
	return matched[query.Offset:end], total, nil
}

type TokenRepository struct {
	mu   sync.Mutex
	rows map[string]domain.LicenseToken
}
func (r *TokenRepository) Create(_ context.Context, row domain.LicenseToken) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.TokenID]; ok { return domain.ErrConflict }; r.rows[row.TokenID] = row; return nil
}
func (r *TokenRepository) GetByID(_ context.Context, tokenID string) (domain.LicenseToken, error) {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[strings.TrimSpace(tokenID)]; if !ok { return domain.LicenseToken{}, domain.ErrNotFound }; return row, nil
}
func (r *TokenRepository) Update(_ context.Context, row domain.LicenseToken) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.TokenID]; !ok { return domain.ErrNotFound }; r.rows[row.TokenID] = row; return nil
}
func (r *TokenRepository) ListByOwner(_ context.Context, ownerID string) ([]domain.LicenseToken, error) {
	r.mu.Lock(); defer r.mu.Unlock(); id := strings.TrimSpace(ownerID); out := make([]domain.LicenseToken, 0)
	for _, row := range r.rows { if row.OwnerID == id { out = append(out, row) } }
	sort.Slice(out, func(i, j int) bool { return out[i].MintedAt.Before(out[j].MintedAt) })
	return out, nil
}
func (r *TokenRepository) ListByAsset(_ context.Context, assetID string) ([]domain.LicenseToken, error) {
	r.mu.Lock(); defer r.mu.Unlock(); id := strings.TrimSpace(assetID); out := make([]domain.LicenseToken, 0)
	for _, row := range r.rows { if row.AssetID == id { out = append(out, row) } }
	sort.Slice(out, func(i, j int) bool { return out[i].MintedAt.Before(out[j].MintedAt) })
	return out, nil
}

type PurchaseRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Purchase
}
func (r *PurchaseRepository) Create(_ context.Context, row domain.Purchase) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.PurchaseID]; ok { return domain.ErrConflict }; r.rows[row.PurchaseID] = row; return nil
}
func (r *PurchaseRepository) GetByID(_ context.Context, purchaseID string) (domain.Purchase, error) {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[strings.TrimSpace(purchaseID)]; if !ok { return domain.Purchase{}, domain.ErrNotFound }; return row, nil
}
func (r *PurchaseRepository) List(_ context.Context, query ports.PurchaseListQuery) ([]domain.Purchase, int, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	matched := make([]domain.Purchase, 0)
	for _, row := range r.rows { if row.BuyerID == query.BuyerID { matched = append(matched, row) } }
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	total := len(matched)
	if query.Offset >= total { return []domain.Purchase{}, total, nil }
	end := query.Offset + query.Limit
	if end > total { end = total }
	return matched[query.Offset:end], total, nil
}

// IdempotencyRepository judges liveness of an existing reservation with its
// own clock; nowFn overrides it in tests.
type IdempotencyRepository struct { mu sync.Mutex; rows map[string]ports.IdempotencyRecord; nowFn func() time.Time }
func (r *IdempotencyRepository) now() time.Time { if r.nowFn != nil { return r.nowFn() }; return time.Now().UTC() }
func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[key]; if !ok { return nil, nil }; if now.After(row.ExpiresAt) { delete(r.rows, key); return nil, nil }; c := row; c.ResponseBody = append([]byte(nil), row.ResponseBody...); return &c, nil
}
func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, expiresAt time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock(); if row, ok := r.rows[key]; ok && r.now().Before(row.ExpiresAt) { return domain.ErrConflict }; r.rows[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}; return nil
}
func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[key]; if !ok { return domain.ErrNotFound }; row.ResponseCode = responseCode; row.ResponseBody = append([]byte(nil), responseBody...); r.rows[key] = row; return nil
}

type OutboxRepository struct { mu sync.Mutex; rows map[string]ports.OutboxRecord; order []string }
func (r *OutboxRepository) Enqueue(_ context.Context, row ports.OutboxRecord) error { r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.RecordID]; ok { return domain.ErrConflict }; r.rows[row.RecordID] = row; r.order = append(r.order, row.RecordID); return nil }
func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock(); if limit <= 0 { limit = 100 }; out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order { row, ok := r.rows[id]; if !ok || row.SentAt != nil { continue }; out = append(out, row); if len(out) >= limit { break } }
	return out, nil
}
func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error { r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[recordID]; if !ok { return domain.ErrNotFound }; row.SentAt = &at; r.rows[recordID] = row; return nil }
