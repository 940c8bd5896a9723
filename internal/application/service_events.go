package application

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

// HandleCanonicalEvent is the consumer entry point. This service subscribes
// to no upstream topics yet; a well-formed envelope of an unknown type is
// rejected rather than silently dropped.
func (s *Service) HandleCanonicalEvent(_ context.Context, envelope contracts.EventEnvelope) error {
	if err := validateEnvelope(envelope); err != nil {
		return err
	}
	if !domain.IsCanonicalInputEvent(envelope.EventType) {
		return domain.ErrUnsupportedEventType
	}
	return nil
}

// FlushOutbox drains up to one batch of pending records. Domain events that
// fail to publish stop the flush and land in the DLQ; analytics publishes
// are best effort.
func (s *Service) FlushOutbox(ctx context.Context) error {
	if s.outbox == nil {
		return nil
	}
	pending, err := s.outbox.ListPending(ctx, s.cfg.OutboxFlushBatchSize)
	if err != nil {
		return err
	}
	for _, rec := range pending {
		now := s.nowFn()
		switch rec.EventClass {
		case domain.CanonicalEventClassDomain:
			if s.domainEvents != nil {
				if err := s.domainEvents.PublishDomain(ctx, rec.Envelope); err != nil {
					if s.dlq != nil {
						n := s.nowFn()
						_ = s.dlq.PublishDLQ(ctx, contracts.DLQRecord{
							OriginalEvent: rec.Envelope,
							ErrorSummary:  err.Error(),
							RetryCount:    1,
							FirstSeenAt:   n,
							LastErrorAt:   n,
							SourceTopic:   rec.Envelope.EventType,
							DLQTopic:      "asset-purchase-service.dlq",
							TraceID:       rec.Envelope.TraceID,
						})
					}
					return err
				}
			}
		case domain.CanonicalEventClassAnalyticsOnly:
			if s.analytics != nil {
				_ = s.analytics.PublishAnalytics(ctx, rec.Envelope)
			}
		default:
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedEventClass, rec.EventClass)
		}
		if err := s.outbox.MarkSent(ctx, rec.RecordID, now); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enqueueEvent(ctx context.Context, eventType, traceID string, data any, partitionKey string, now time.Time) error {
	if s.outbox == nil {
		return nil
	}
	if !domain.IsCanonicalEmittedEvent(eventType) {
		return domain.ErrUnsupportedEventType
	}
	b, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidInput
	}
	if strings.TrimSpace(traceID) == "" {
		traceID = uuid.NewString()
	}
	env := contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClass(eventType),
		OccurredAt:       now,
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		TraceID:          traceID,
		SchemaVersion:    "v1",
		Data:             b,
	}
	return s.outbox.Enqueue(ctx, ports.OutboxRecord{
		RecordID:   uuid.NewString(),
		EventClass: env.EventClass,
		Envelope:   env,
		CreatedAt:  now,
	})
}

func (s *Service) enqueueEscrowFunded(ctx context.Context, escrow domain.Escrow, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventEscrowFunded, traceID, contracts.EscrowFundedPayload{
		EscrowID: escrow.EscrowID,
		AssetID:  escrow.AssetID,
		Amount:   escrow.Amount,
		FundedAt: now.UTC().Format(time.RFC3339),
	}, escrow.EscrowID, now)
}

func (s *Service) enqueueEscrowClosed(ctx context.Context, escrow domain.Escrow, traceID string, now time.Time) error {
	eventType := domain.EventEscrowReleased
	if escrow.Status == domain.EscrowStatusRefunded {
		eventType = domain.EventEscrowRefunded
	}
	return s.enqueueEvent(ctx, eventType, traceID, contracts.EscrowClosedPayload{
		EscrowID: escrow.EscrowID,
		Amount:   escrow.Amount,
		Reason:   escrow.CloseReason,
		ClosedAt: now.UTC().Format(time.RFC3339),
	}, escrow.EscrowID, now)
}

func (s *Service) enqueuePaymentSettled(ctx context.Context, payment domain.PaymentResult, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventPaymentSettled, traceID, contracts.PaymentSettledPayload{
		PaymentID:      payment.PaymentID,
		TransactionRef: payment.TransactionRef,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		RecipientID:    payment.RecipientID,
		SettledAt:      now.UTC().Format(time.RFC3339),
	}, payment.PaymentID, now)
}

func (s *Service) enqueueLicenseMinted(ctx context.Context, token domain.LicenseToken, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventLicenseMinted, traceID, contracts.LicenseMintedPayload{
		TokenID:    token.TokenID,
		AssetID:    token.AssetID,
		TemplateID: token.TemplateID,
		OwnerID:    token.OwnerID,
		MintedAt:   now.UTC().Format(time.RFC3339),
	}, token.TokenID, now)
}

func (s *Service) enqueueLicenseTransferred(ctx context.Context, token domain.LicenseToken, fromID, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventLicenseTransferred, traceID, contracts.LicenseTransferredPayload{
		TokenID:       token.TokenID,
		AssetID:       token.AssetID,
		FromID:        fromID,
		ToID:          token.OwnerID,
		TransferredAt: now.UTC().Format(time.RFC3339),
	}, token.TokenID, now)
}

func (s *Service) enqueueLicenseBurned(ctx context.Context, token domain.LicenseToken, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventLicenseBurned, traceID, contracts.LicenseBurnedPayload{
		TokenID:  token.TokenID,
		OwnerID:  token.OwnerID,
		BurnedAt: now.UTC().Format(time.RFC3339),
	}, token.TokenID, now)
}

func (s *Service) enqueuePurchaseCompleted(ctx context.Context, purchase domain.Purchase, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventPurchaseCompleted, traceID, contracts.PurchaseCompletedPayload{
		PurchaseID:  purchase.PurchaseID,
		BuyerID:     purchase.BuyerID,
		AssetID:     purchase.AssetID,
		TokenID:     purchase.TokenID,
		Amount:      purchase.Amount,
		Currency:    purchase.Currency,
		CompletedAt: now.UTC().Format(time.RFC3339),
	}, purchase.PurchaseID, now)
}

func (s *Service) enqueuePurchaseFailed(ctx context.Context, purchase domain.Purchase, traceID string, now time.Time) error {
	return s.enqueueEvent(ctx, domain.EventPurchaseFailed, traceID, contracts.PurchaseFailedPayload{
		PurchaseID: purchase.PurchaseID,
		BuyerID:    purchase.BuyerID,
		AssetID:    purchase.AssetID,
		Stage:      purchase.FailureStage,
		Reason:     purchase.FailureReason,
		FailedAt:   now.UTC().Format(time.RFC3339),
	}, purchase.PurchaseID, now)
}

func validateEnvelope(event contracts.EventEnvelope) error {
	if strings.TrimSpace(event.EventID) == "" || strings.TrimSpace(event.EventType) == "" || event.OccurredAt.IsZero() {
		return domain.ErrInvalidEnvelope
	}
	if strings.TrimSpace(event.SourceService) == "" || strings.TrimSpace(event.TraceID) == "" || strings.TrimSpace(event.SchemaVersion) == "" {
		return domain.ErrInvalidEnvelope
	}
	if len(event.Data) == 0 {
		return domain.ErrInvalidEnvelope
	}
	return nil
}
