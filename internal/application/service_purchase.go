package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

// Purchase drives the full acquisition saga: escrow create+fund, settlement
// to the seller, license mint, escrow release. Each step is a commit point;
// a payment or mint failure refunds the escrow and surfaces the original
// error annotated with the compensation outcome. There is no global
// transaction across the three subsystems, so compensation only runs
// forward: a settled payment is never reversed here.
func (s *Service) Purchase(ctx context.Context, actor Actor, input PurchaseInput) (domain.Purchase, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Purchase{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.Purchase{}, domain.ErrIdempotencyRequired
	}
	input.BuyerID = strings.TrimSpace(input.BuyerID)
	input.SellerID = strings.TrimSpace(input.SellerID)
	input.TemplateID = strings.TrimSpace(input.TemplateID)
	if input.BuyerID == "" || input.SellerID == "" || input.TemplateID == "" || input.Asset.AssetID == "" {
		return domain.Purchase{}, domain.ErrInvalidInput
	}
	if input.BasePrice <= 0 {
		return domain.Purchase{}, domain.ErrInvalidInput
	}
	template, ok := s.templateByID(input.TemplateID)
	if !ok {
		return domain.Purchase{}, domain.ErrTemplateNotFound
	}
	if input.Asset.SellerID != input.SellerID {
		return domain.Purchase{}, domain.ErrSellerMismatch
	}

	requestHash := hashJSON(input)
	var cached domain.Purchase
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return domain.Purchase{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.Purchase{}, err
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.cfg.DefaultCurrency
	}
	finalPrice := domain.RoundToMinorUnit(input.BasePrice*template.PriceMultiplier, currency)

	minRating := 3.0
	timeLock := 24 * time.Hour
	escrow, err := s.CreateEscrow(ctx, actor, CreateEscrowInput{
		Amount:   finalPrice,
		Currency: currency,
		BuyerID:  input.BuyerID,
		SellerID: input.SellerID,
		AssetID:  input.Asset.AssetID,
		ReleaseConditions: domain.ReleaseConditions{
			MinSellerRating: &minRating,
			TimeLock:        &timeLock,
		},
	})
	if err != nil {
		return domain.Purchase{}, err
	}
	if _, err := s.FundEscrow(ctx, actor, escrow.EscrowID, finalPrice); err != nil {
		return domain.Purchase{}, err
	}

	// Funding is the point of no return: the saga must run to full success
	// or a compensated failure, so the caller's cancellation no longer
	// applies to the remaining steps.
	ctx = context.WithoutCancel(ctx)

	payActor := actor
	payActor.IdempotencyKey = actor.IdempotencyKey + ":payment"
	payment, err := s.Pay(ctx, payActor, PayInput{
		Amount:      finalPrice,
		Currency:    currency,
		RecipientID: input.SellerID,
		BuyerID:     input.BuyerID,
		AssetID:     input.Asset.AssetID,
		EscrowID:    escrow.EscrowID,
		Metadata: map[string]string{
			"assetTitle":  input.Asset.Title,
			"licenseType": template.TemplateID,
		},
	})
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		// A settlement timeout is ambiguous: re-query by idempotency key
		// before deciding to compensate.
		if settled, qErr := s.payments.GetByIdempotencyKey(ctx, payActor.IdempotencyKey); qErr == nil && settled.Status == domain.PaymentStatusCompleted {
			payment, err = settled, nil
		}
	}
	if err != nil {
		return s.failPurchase(ctx, actor, input, template, finalPrice, currency, escrow.EscrowID, "", "payment", err)
	}

	mintActor := actor
	mintActor.IdempotencyKey = actor.IdempotencyKey + ":mint"
	token, err := s.MintLicense(ctx, mintActor, MintInput{
		AssetID:     input.Asset.AssetID,
		TemplateID:  template.TemplateID,
		PurchaserID: input.BuyerID,
		Metadata: map[string]string{
			"assetTitle":     input.Asset.Title,
			"escrowId":       escrow.EscrowID,
			"transactionRef": payment.TransactionRef,
		},
	})
	if err != nil {
		// The payment already settled and is not reversed here; only the
		// escrow is compensated. See DESIGN.md for the reconciliation gap.
		receipt, cErr := s.failPurchase(ctx, actor, input, template, finalPrice, currency, escrow.EscrowID, payment.TransactionRef, "mint", err)
		return receipt, cErr
	}

	status := domain.PurchaseStatusCompleted
	if _, err := s.ReleaseEscrow(ctx, actor, escrow.EscrowID, "license issued"); err != nil {
		// Mint succeeded, so the purchase stands; the escrow is stuck in
		// funded and needs manual reconciliation.
		s.logger.ErrorContext(ctx, "escrow release failed after mint",
			"operation", "purchase",
			"outcome", "release_pending",
			"escrow_id", escrow.EscrowID,
			"token_id", token.TokenID,
			"error", err,
		)
		status = domain.PurchaseStatusReleasePending
	}

	now := s.nowFn()
	receipt := domain.Purchase{
		PurchaseID:     uuid.NewString(),
		BuyerID:        input.BuyerID,
		SellerID:       input.SellerID,
		AssetID:        input.Asset.AssetID,
		TemplateID:     template.TemplateID,
		TokenID:        token.TokenID,
		EscrowID:       escrow.EscrowID,
		TransactionRef: payment.TransactionRef,
		Amount:         finalPrice,
		Currency:       currency,
		Status:         status,
		CreatedAt:      now,
	}
	if err := s.purchases.Create(ctx, receipt); err != nil {
		return domain.Purchase{}, err
	}
	if err := s.enqueuePurchaseCompleted(ctx, receipt, actor.RequestID, now); err != nil {
		return domain.Purchase{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, receipt)
	return receipt, nil
}

// failPurchase refunds the escrow, persists the failed receipt and wraps the
// original step error with the compensation outcome.
func (s *Service) failPurchase(ctx context.Context, actor Actor, input PurchaseInput, template domain.LicenseTemplate, amount float64, currency, escrowID, transactionRef, stage string, cause error) (domain.Purchase, error) {
	_, refundErr := s.RefundEscrow(ctx, actor, escrowID, stage+" failed")
	if refundErr != nil {
		s.logger.ErrorContext(ctx, "escrow refund failed during compensation",
			"operation", "purchase",
			"outcome", "failure",
			"stage", stage,
			"escrow_id", escrowID,
			"error", refundErr,
		)
	}
	now := s.nowFn()
	receipt := domain.Purchase{
		PurchaseID:     uuid.NewString(),
		BuyerID:        input.BuyerID,
		SellerID:       input.SellerID,
		AssetID:        input.Asset.AssetID,
		TemplateID:     template.TemplateID,
		EscrowID:       escrowID,
		TransactionRef: transactionRef,
		Amount:         amount,
		Currency:       currency,
		Status:         domain.PurchaseStatusFailed,
		FailureStage:   stage,
		FailureReason:  cause.Error(),
		CreatedAt:      now,
	}
	if err := s.purchases.Create(ctx, receipt); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist purchase failure receipt",
			"operation", "purchase", "outcome", "failure", "error", err)
	}
	if err := s.enqueuePurchaseFailed(ctx, receipt, actor.RequestID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue purchase failure event",
			"operation", "purchase", "outcome", "failure", "error", err)
	}
	return receipt, &domain.CompensatedError{
		Stage:           stage,
		Cause:           cause,
		CompensationOK:  refundErr == nil,
		CompensationErr: refundErr,
	}
}

func (s *Service) GetPurchase(ctx context.Context, purchaseID string) (domain.Purchase, error) {
	purchaseID = strings.TrimSpace(purchaseID)
	if purchaseID == "" {
		return domain.Purchase{}, domain.ErrInvalidInput
	}
	return s.purchases.GetByID(ctx, purchaseID)
}

func (s *Service) ListPurchases(ctx context.Context, query ports.PurchaseListQuery) ([]domain.Purchase, contracts.Pagination, error) {
	query.BuyerID = strings.TrimSpace(query.BuyerID)
	if query.BuyerID == "" {
		return nil, contracts.Pagination{}, domain.ErrInvalidInput
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Offset < 0 {
		query.Offset = 0
	}
	items, total, err := s.purchases.List(ctx, query)
	if err != nil {
		return nil, contracts.Pagination{}, err
	}
	pages := 0
	if query.Limit > 0 {
		pages = (total + query.Limit - 1) / query.Limit
	}
	return items, contracts.Pagination{Limit: query.Limit, Offset: query.Offset, Total: total, Pages: pages}, nil
}

// ResolveAsset loads catalog metadata for a purchase. The catalog is a
// read-only collaborator; it is consulted once, before the saga starts.
func (s *Service) ResolveAsset(ctx context.Context, assetID string) (domain.Asset, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return domain.Asset{}, domain.ErrInvalidInput
	}
	callCtx, cancel := s.callCtx(ctx)
	defer cancel()
	return s.catalog.GetAsset(callCtx, assetID)
}
