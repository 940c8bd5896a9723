package application_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/contracts"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

type failingDomainPublisher struct{ err error }

func (p failingDomainPublisher) PublishDomain(context.Context, contracts.EventEnvelope) error {
	return p.err
}

type capturingDLQ struct{ records []contracts.DLQRecord }

func (d *capturingDLQ) PublishDLQ(_ context.Context, record contracts.DLQRecord) error {
	d.records = append(d.records, record)
	return nil
}

func validEnvelope(eventType string) contracts.EventEnvelope {
	return contracts.EventEnvelope{
		EventID:       "evt_1",
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		SourceService: "some-upstream",
		TraceID:       "trace_1",
		SchemaVersion: "v1",
		Data:          []byte(`{}`),
	}
}

func TestHandleCanonicalEventRejectsMalformedEnvelope(t *testing.T) {
	fx := newFixture(nil)
	env := validEnvelope(domain.EventPurchaseCompleted)
	env.TraceID = ""
	if err := fx.svc.HandleCanonicalEvent(context.Background(), env); !errors.Is(err, domain.ErrInvalidEnvelope) {
		t.Fatalf("expected ErrInvalidEnvelope, got %v", err)
	}
}

func TestHandleCanonicalEventRejectsUnknownType(t *testing.T) {
	fx := newFixture(nil)
	if err := fx.svc.HandleCanonicalEvent(context.Background(), validEnvelope("campaign.launched")); !errors.Is(err, domain.ErrUnsupportedEventType) {
		t.Fatalf("expected ErrUnsupportedEventType, got %v", err)
	}
}

func TestFlushOutboxDeadLettersFailedDomainPublish(t *testing.T) {
	publishErr := errors.New("broker unreachable")
	dlq := &capturingDLQ{}
	fx := newFixture(func(deps *application.Dependencies) {
		deps.DomainEvents = failingDomainPublisher{err: publishErr}
		deps.DLQ = dlq
	})
	ctx := context.Background()
	actor := buyerActor("req_ev_1", "idem-ev-1")
	if _, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 10, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"}); err != nil {
		t.Fatalf("Pay: %v", err)
	}

	err := fx.svc.FlushOutbox(ctx)
	if !errors.Is(err, publishErr) { t.Fatalf("expected publish error to stop the flush, got %v", err) }
	if len(dlq.records) != 1 { t.Fatalf("expected 1 dead-lettered record, got %d", len(dlq.records)) }
	if dlq.records[0].OriginalEvent.EventType != domain.EventPaymentSettled { t.Fatalf("unexpected dead-lettered event: %+v", dlq.records[0]) }

	// The record stays pending so a later flush can retry it.
	pending, listErr := fx.repos.Outbox.ListPending(ctx, 10)
	if listErr != nil { t.Fatalf("ListPending: %v", listErr) }
	if len(pending) != 1 { t.Fatalf("expected 1 record still pending, got %d", len(pending)) }
}

func TestTransferEnqueuesLicenseTransferred(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_ev_3", "idem-ev-3")
	token, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_ev_1", TemplateID: "extended", PurchaserID: "user_buyer"})
	if err != nil { t.Fatalf("MintLicense: %v", err) }
	if _, err := fx.svc.TransferLicense(ctx, actor, token.TokenID, "user_buyer", "user_other"); err != nil {
		t.Fatalf("TransferLicense: %v", err)
	}

	pending, err := fx.repos.Outbox.ListPending(ctx, 10)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	var found bool
	for _, rec := range pending {
		if rec.Envelope.EventType == domain.EventLicenseTransferred {
			found = true
			if rec.EventClass != domain.CanonicalEventClassAnalyticsOnly { t.Fatalf("transfer event must be analytics_only, got %s", rec.EventClass) }
			if rec.Envelope.PartitionKey != token.TokenID { t.Fatalf("unexpected partition key %s", rec.Envelope.PartitionKey) }
		}
	}
	if !found { t.Fatalf("no license.transferred event in outbox: %+v", pending) }
}

func TestEmittedEnvelopesCarryCanonicalFields(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_ev_2", "idem-ev-2")
	if _, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 8, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"}); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	pending, err := fx.repos.Outbox.ListPending(ctx, 10)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	if len(pending) != 1 { t.Fatalf("expected 1 pending record, got %d", len(pending)) }
	env := pending[0].Envelope
	if env.EventType != domain.EventPaymentSettled { t.Fatalf("unexpected event type %s", env.EventType) }
	if env.EventClass != domain.CanonicalEventClassDomain { t.Fatalf("payment.settled must be a domain event, got %s", env.EventClass) }
	if env.SchemaVersion != "v1" || env.EventID == "" || env.PartitionKey == "" { t.Fatalf("incomplete envelope: %+v", env) }
	if env.TraceID != "req_ev_2" { t.Fatalf("trace id should carry the request id, got %s", env.TraceID) }
}
