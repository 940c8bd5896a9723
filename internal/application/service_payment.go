package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

// Pay executes exactly one settlement attempt. Retries are the caller's
// responsibility and must present a fresh idempotency key; a replayed key
// returns the original result.
func (s *Service) Pay(ctx context.Context, actor Actor, input PayInput) (domain.PaymentResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PaymentResult{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.PaymentResult{}, domain.ErrIdempotencyRequired
	}
	if err := domain.ValidatePaymentInput(input.Amount, input.Currency, input.RecipientID, input.BuyerID); err != nil {
		return domain.PaymentResult{}, err
	}
	requestHash := hashJSON(input)
	var cached domain.PaymentResult
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return domain.PaymentResult{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.PaymentResult{}, err
	}

	callCtx, cancel := s.callCtx(ctx)
	receipt, err := s.settlement.Settle(callCtx, ports.SettlementRequest{
		Amount:      input.Amount,
		Currency:    input.Currency,
		RecipientID: input.RecipientID,
		BuyerID:     input.BuyerID,
	})
	cancel()
	if err != nil {
		return domain.PaymentResult{}, err
	}

	now := s.nowFn()
	block := receipt.BlockNumber
	row := domain.PaymentResult{
		PaymentID:      uuid.NewString(),
		TransactionRef: receipt.TransactionRef,
		BlockNumber:    &block,
		UnitsUsed:      receipt.UnitsUsed,
		UnitPrice:      receipt.UnitPrice,
		Amount:         input.Amount,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		RecipientID:    strings.TrimSpace(input.RecipientID),
		BuyerID:        strings.TrimSpace(input.BuyerID),
		AssetID:        strings.TrimSpace(input.AssetID),
		EscrowID:       strings.TrimSpace(input.EscrowID),
		Status:         domain.PaymentStatusCompleted,
		Metadata:       input.Metadata,
		IdempotencyKey: actor.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := s.payments.Create(ctx, row); err != nil {
		return domain.PaymentResult{}, err
	}
	if err := s.enqueuePaymentSettled(ctx, row, actor.RequestID, now); err != nil {
		return domain.PaymentResult{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, row)
	return row, nil
}

func (s *Service) PayAsSplit(ctx context.Context, actor Actor, input SplitPayInput) (domain.PaymentResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.PaymentResult{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.PaymentResult{}, domain.ErrIdempotencyRequired
	}
	if input.TotalAmount <= 0 || len(strings.TrimSpace(input.Currency)) != 3 {
		return domain.PaymentResult{}, domain.ErrInvalidInput
	}
	if err := domain.ValidateSplit(input.Recipients); err != nil {
		return domain.PaymentResult{}, err
	}
	requestHash := hashJSON(input)
	var cached domain.PaymentResult
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return domain.PaymentResult{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.PaymentResult{}, err
	}

	transfers := domain.ComputeSplitAmounts(input.Recipients, input.TotalAmount, input.Currency)
	callCtx, cancel := s.callCtx(ctx)
	receipt, err := s.settlement.Settle(callCtx, ports.SettlementRequest{
		Amount:    input.TotalAmount,
		Currency:  input.Currency,
		BuyerID:   input.BuyerID,
		Transfers: transfers,
	})
	cancel()
	if err != nil {
		return domain.PaymentResult{}, err
	}

	now := s.nowFn()
	block := receipt.BlockNumber
	row := domain.PaymentResult{
		PaymentID:      uuid.NewString(),
		TransactionRef: receipt.TransactionRef,
		BlockNumber:    &block,
		UnitsUsed:      receipt.UnitsUsed,
		UnitPrice:      receipt.UnitPrice,
		Amount:         input.TotalAmount,
		Currency:       strings.ToUpper(strings.TrimSpace(input.Currency)),
		BuyerID:        strings.TrimSpace(input.BuyerID),
		Split:          transfers,
		Status:         domain.PaymentStatusCompleted,
		IdempotencyKey: actor.IdempotencyKey,
		CreatedAt:      now,
	}
	if err := s.payments.Create(ctx, row); err != nil {
		return domain.PaymentResult{}, err
	}
	if err := s.enqueuePaymentSettled(ctx, row, actor.RequestID, now); err != nil {
		return domain.PaymentResult{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, row)
	return row, nil
}

func (s *Service) VerifyPayment(ctx context.Context, transactionRef string) (domain.PaymentVerification, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return domain.PaymentVerification{}, domain.ErrInvalidInput
	}
	row, err := s.payments.GetByTransactionRef(ctx, transactionRef)
	if err != nil {
		return domain.PaymentVerification{}, err
	}
	confirmations := 0
	if s.settlement != nil {
		callCtx, cancel := s.callCtx(ctx)
		if n, err := s.settlement.Confirmations(callCtx, transactionRef); err == nil {
			confirmations = n
		}
		cancel()
	}
	return domain.PaymentVerification{
		IsValid:       row.Status == domain.PaymentStatusCompleted,
		Status:        row.Status,
		Confirmations: confirmations,
		Amount:        row.Amount,
		RecipientID:   row.RecipientID,
	}, nil
}

// EstimateCost is a pure estimation call with no side effect.
func (s *Service) EstimateCost(ctx context.Context, amount float64, currency string) (domain.CostEstimate, error) {
	if amount <= 0 || len(strings.TrimSpace(currency)) != 3 {
		return domain.CostEstimate{}, domain.ErrInvalidInput
	}
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.settlement.EstimateCost(callCtx, amount, currency)
}

func (s *Service) PaymentHistory(ctx context.Context, query ports.PaymentListQuery) ([]domain.PaymentResult, contracts.Pagination, error) {
	query.Address = strings.TrimSpace(query.Address)
	if query.Address == "" {
		return nil, contracts.Pagination{}, domain.ErrInvalidInput
	}
	switch query.Direction {
	case "":
		query.Direction = domain.HistoryDirectionAll
	case domain.HistoryDirectionSent, domain.HistoryDirectionReceived, domain.HistoryDirectionAll:
	default:
		return nil, contracts.Pagination{}, domain.ErrInvalidInput
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	items, total, err := s.payments.List(ctx, query)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	pages := 0
	if query.Limit > 0 {
		pages = (total + query.Limit - 1) / query.Limit
	}
	return items, contracts.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total, Pages: pages}, nil
}
