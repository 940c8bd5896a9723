package application_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/chain"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/events"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

type fixture struct {
	svc       *application.Service
	repos     *memory.Repositories
	published *eventadapter.MemoryPublisher
}

func newFixture(mod func(*application.Dependencies)) fixture {
	repos := memory.NewRepositories()
	publisher := eventadapter.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := application.Dependencies{
		Escrows:      repos.Escrows,
		Payments:     repos.Payments,
		Tokens:       repos.Tokens,
		Purchases:    repos.Purchases,
		Idempotency:  repos.Idempotency,
		Outbox:       repos.Outbox,
		Settlement:   chain.NewSettlementSimulator(),
		TokenChain:   chain.NewTokenSimulator("0xcontract"),
		EscrowChain:  chain.NewEscrowSimulator(),
		DomainEvents: publisher,
		Analytics:    publisher,
		DLQ:          eventadapter.NewLoggingDLQPublisher(logger),
		Logger:       logger,
	}
	if mod != nil {
		mod(&deps)
	}
	return fixture{svc: application.NewService(deps), repos: repos, published: publisher}
}

func buyerActor(requestID, idemKey string) application.Actor {
	return application.Actor{SubjectID: "user_buyer", Role: "buyer", RequestID: requestID, IdempotencyKey: idemKey}
}

type failingSettlement struct {
	*chain.SettlementSimulator
	err error
}

func (f failingSettlement) Settle(ctx context.Context, req ports.SettlementRequest) (ports.SettlementReceipt, error) {
	return ports.SettlementReceipt{}, f.err
}

type failingTokenChain struct {
	*chain.TokenSimulator
	err error
}

func (f failingTokenChain) Mint(ctx context.Context, tokenID, assetID, ownerID string) (ports.TokenMintReceipt, error) {
	return ports.TokenMintReceipt{}, f.err
}

type timeoutSettlement struct {
	*chain.SettlementSimulator
}

func (timeoutSettlement) Settle(context.Context, ports.SettlementRequest) (ports.SettlementReceipt, error) {
	return ports.SettlementReceipt{}, context.DeadlineExceeded
}

type stuckReleaseEscrow struct {
	*chain.EscrowSimulator
	err error
}

func (f stuckReleaseEscrow) Release(context.Context, string) error { return f.err }

func TestFundBeforeCreateFails(t *testing.T) {
	fx := newFixture(nil)
	_, err := fx.svc.FundEscrow(context.Background(), buyerActor("req_1", ""), "escrow_missing", 10)
	if !errors.Is(err, domain.ErrNotFound) { t.Fatalf("expected ErrNotFound, got %v", err) }
}

func TestEscrowLifecycle(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_2", "")
	escrow, err := fx.svc.CreateEscrow(ctx, actor, application.CreateEscrowInput{Amount: 30, Currency: "USD", BuyerID: "user_buyer", SellerID: "user_seller", AssetID: "asset_1"})
	if err != nil { t.Fatalf("CreateEscrow: %v", err) }
	if escrow.Status != domain.EscrowStatusPending { t.Fatalf("expected pending, got %s", escrow.Status) }

	if _, err := fx.svc.ReleaseEscrow(ctx, actor, escrow.EscrowID, "too early"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("release before fund: expected ErrInvalidState, got %v", err)
	}
	if _, err := fx.svc.FundEscrow(ctx, actor, escrow.EscrowID, 29); !errors.Is(err, domain.ErrAmountMismatch) {
		t.Fatalf("wrong amount: expected ErrAmountMismatch, got %v", err)
	}
	escrow, err = fx.svc.FundEscrow(ctx, actor, escrow.EscrowID, 30)
	if err != nil { t.Fatalf("FundEscrow: %v", err) }
	if escrow.Status != domain.EscrowStatusFunded { t.Fatalf("expected funded, got %s", escrow.Status) }
	if _, err := fx.svc.FundEscrow(ctx, actor, escrow.EscrowID, 30); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("double fund: expected ErrInvalidState, got %v", err)
	}

	escrow, err = fx.svc.ReleaseEscrow(ctx, actor, escrow.EscrowID, "delivered")
	if err != nil { t.Fatalf("ReleaseEscrow: %v", err) }
	if escrow.Status != domain.EscrowStatusReleased { t.Fatalf("expected released, got %s", escrow.Status) }
	if _, err := fx.svc.RefundEscrow(ctx, actor, escrow.EscrowID, "changed my mind"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("refund after release: expected ErrInvalidState, got %v", err)
	}
	if _, err := fx.svc.ReleaseEscrow(ctx, actor, escrow.EscrowID, "again"); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("second release: expected ErrInvalidState, got %v", err)
	}
}

func TestPayIdempotentReplay(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_3", "idem-pay-1")
	input := application.PayInput{Amount: 12.5, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"}
	first, err := fx.svc.Pay(ctx, actor, input)
	if err != nil { t.Fatalf("Pay first: %v", err) }
	second, err := fx.svc.Pay(ctx, actor, input)
	if err != nil { t.Fatalf("Pay second: %v", err) }
	if first.PaymentID != second.PaymentID || first.TransactionRef != second.TransactionRef {
		t.Fatalf("replay mismatch: first=%+v second=%+v", first, second)
	}
}

func TestPayIdempotencyKeyConflict(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_4", "idem-pay-2")
	if _, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 10, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"}); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	_, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 11, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"})
	if !errors.Is(err, domain.ErrIdempotencyConflict) { t.Fatalf("expected ErrIdempotencyConflict, got %v", err) }
}

func TestPayAsSplitValidation(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	under := []domain.SplitRecipient{{Address: "user_a", Percentage: 49}, {Address: "user_b", Percentage: 50}}
	over := []domain.SplitRecipient{{Address: "user_a", Percentage: 51}, {Address: "user_b", Percentage: 50}}
	if _, err := fx.svc.PayAsSplit(ctx, buyerActor("req_5", "idem-split-1"), application.SplitPayInput{Recipients: under, TotalAmount: 100, Currency: "USD", BuyerID: "user_buyer"}); !errors.Is(err, domain.ErrInvalidSplit) {
		t.Fatalf("sum 99: expected ErrInvalidSplit, got %v", err)
	}
	if _, err := fx.svc.PayAsSplit(ctx, buyerActor("req_5", "idem-split-2"), application.SplitPayInput{Recipients: over, TotalAmount: 100, Currency: "USD", BuyerID: "user_buyer"}); !errors.Is(err, domain.ErrInvalidSplit) {
		t.Fatalf("sum 101: expected ErrInvalidSplit, got %v", err)
	}

	exact := []domain.SplitRecipient{{Address: "user_a", Percentage: 70}, {Address: "user_b", Percentage: 20}, {Address: "user_c", Percentage: 10}}
	result, err := fx.svc.PayAsSplit(ctx, buyerActor("req_5", "idem-split-3"), application.SplitPayInput{Recipients: exact, TotalAmount: 99.99, Currency: "USD", BuyerID: "user_buyer"})
	if err != nil { t.Fatalf("PayAsSplit: %v", err) }
	if len(result.Split) != 3 { t.Fatalf("expected 3 transfers, got %d", len(result.Split)) }
	sum := 0.0
	for _, tr := range result.Split {
		sum += tr.Amount
	}
	if math.Abs(sum-99.99) > 0.01 { t.Fatalf("split amounts sum %.4f, want within one cent of 99.99", sum) }
}

func TestMintUseAndExhaust(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_6", "idem-mint-1")
	maxUses := 3
	token, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_7", TemplateID: "standard", PurchaserID: "user_buyer", MaxUses: &maxUses})
	if err != nil { t.Fatalf("MintLicense: %v", err) }
	for i := 0; i < maxUses; i++ {
		result, err := fx.svc.UseLicense(ctx, actor, token.TokenID, "user_buyer")
		if err != nil { t.Fatalf("UseLicense %d: %v", i+1, err) }
		if !result.Success { t.Fatalf("use %d: expected success, got %q", i+1, result.Message) }
	}
	result, err := fx.svc.UseLicense(ctx, actor, token.TokenID, "user_buyer")
	if err != nil { t.Fatalf("UseLicense exhausted: %v", err) }
	if result.Success || result.Message != domain.UseMessageExhausted { t.Fatalf("expected %q, got success=%v message=%q", domain.UseMessageExhausted, result.Success, result.Message) }

	verification, err := fx.svc.VerifyLicense(ctx, token.TokenID, "user_buyer")
	if err != nil { t.Fatalf("VerifyLicense: %v", err) }
	if verification.RemainingUses == nil || *verification.RemainingUses != 0 { t.Fatalf("expected 0 remaining uses, got %v", verification.RemainingUses) }
}

func TestUseExpiredLicense(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_7", "idem-mint-2")
	zeroDays := 0
	token, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_8", TemplateID: "standard", PurchaserID: "user_buyer", DurationDays: &zeroDays})
	if err != nil { t.Fatalf("MintLicense: %v", err) }
	result, err := fx.svc.UseLicense(ctx, actor, token.TokenID, "user_buyer")
	if err != nil { t.Fatalf("UseLicense: %v", err) }
	if result.Success || result.Message != domain.UseMessageExpired { t.Fatalf("expected %q, got success=%v message=%q", domain.UseMessageExpired, result.Success, result.Message) }
}

func TestTransferRespectsTemplateTerms(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_8", "idem-mint-3")
	standard, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_9", TemplateID: "standard", PurchaserID: "user_buyer"})
	if err != nil { t.Fatalf("mint standard: %v", err) }
	if _, err := fx.svc.TransferLicense(ctx, actor, standard.TokenID, "user_buyer", "user_other"); !errors.Is(err, domain.ErrNotTransferable) {
		t.Fatalf("standard transfer: expected ErrNotTransferable, got %v", err)
	}

	actor.IdempotencyKey = "idem-mint-4"
	extended, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_9", TemplateID: "extended", PurchaserID: "user_buyer"})
	if err != nil { t.Fatalf("mint extended: %v", err) }
	if _, err := fx.svc.TransferLicense(ctx, actor, extended.TokenID, "user_stranger", "user_other"); !errors.Is(err, domain.ErrNotOwned) {
		t.Fatalf("transfer by non-owner: expected ErrNotOwned, got %v", err)
	}
	moved, err := fx.svc.TransferLicense(ctx, actor, extended.TokenID, "user_buyer", "user_other")
	if err != nil { t.Fatalf("TransferLicense: %v", err) }
	if moved.OwnerID != "user_other" { t.Fatalf("expected new owner user_other, got %s", moved.OwnerID) }
}

func TestBurnedLicenseFailsVerification(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_9", "idem-mint-5")
	token, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_10", TemplateID: "exclusive", PurchaserID: "user_buyer"})
	if err != nil { t.Fatalf("MintLicense: %v", err) }
	if err := fx.svc.BurnLicense(ctx, actor, token.TokenID, "user_buyer"); err != nil { t.Fatalf("BurnLicense: %v", err) }
	verification, err := fx.svc.VerifyLicense(ctx, token.TokenID, "user_buyer")
	if err != nil { t.Fatalf("VerifyLicense: %v", err) }
	if verification.IsValid { t.Fatal("expected burned token to fail verification") }
	if err := fx.svc.BurnLicense(ctx, actor, token.TokenID, "user_buyer"); !errors.Is(err, domain.ErrNotOwned) {
		t.Fatalf("double burn: expected ErrNotOwned, got %v", err)
	}
}

func TestExtendedMintTermsRoundTrip(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_10", "idem-mint-6")
	token, err := fx.svc.MintLicense(ctx, actor, application.MintInput{AssetID: "asset_11", TemplateID: "extended", PurchaserID: "user_buyer"})
	if err != nil { t.Fatalf("MintLicense: %v", err) }
	if token.MaxUses == nil || *token.MaxUses != 5 { t.Fatalf("expected max uses 5, got %v", token.MaxUses) }
	if token.UsedCount != 0 { t.Fatalf("expected used count 0, got %d", token.UsedCount) }
	if token.ExpiresAt == nil { t.Fatal("expected an expiry") }
	wantExpiry := token.MintedAt.AddDate(0, 0, 365)
	if math.Abs(token.ExpiresAt.Sub(wantExpiry).Hours()) > 24 { t.Fatalf("expiry %v, want about %v", token.ExpiresAt, wantExpiry) }
	if !token.Transferable || token.Resellable { t.Fatalf("expected transferable, non-resellable terms, got %+v", token) }
}

func TestPurchaseEndToEnd(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_11", "idem-purchase-1")
	asset := domain.Asset{AssetID: "asset_42", Title: "Skyline Pack", SellerID: "user_seller", Price: 25, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 25, Currency: "USD"})
	if err != nil { t.Fatalf("Purchase: %v", err) }
	if receipt.Status != domain.PurchaseStatusCompleted { t.Fatalf("expected completed, got %s", receipt.Status) }
	if receipt.Amount != 25 { t.Fatalf("expected final price 25, got %.2f", receipt.Amount) }

	escrow, err := fx.svc.GetEscrow(ctx, receipt.EscrowID)
	if err != nil { t.Fatalf("GetEscrow: %v", err) }
	if escrow.Status != domain.EscrowStatusReleased { t.Fatalf("expected released escrow, got %s", escrow.Status) }

	payment, err := fx.svc.VerifyPayment(ctx, receipt.TransactionRef)
	if err != nil { t.Fatalf("VerifyPayment: %v", err) }
	if !payment.IsValid || payment.Status != domain.PaymentStatusCompleted { t.Fatalf("expected completed payment, got %+v", payment) }

	tokens, err := fx.svc.UserLicenses(ctx, "user_buyer")
	if err != nil { t.Fatalf("UserLicenses: %v", err) }
	if len(tokens) != 1 { t.Fatalf("expected 1 token, got %d", len(tokens)) }
	if tokens[0].MaxUses == nil || *tokens[0].MaxUses != 1 { t.Fatalf("expected standard max uses 1, got %v", tokens[0].MaxUses) }
	if tokens[0].TokenID != receipt.TokenID { t.Fatalf("receipt token %s does not match minted %s", receipt.TokenID, tokens[0].TokenID) }
}

func TestPurchaseExtendedDoublesPrice(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_12", "idem-purchase-2")
	asset := domain.Asset{AssetID: "asset_43", Title: "Brush Set", SellerID: "user_seller", Price: 50, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "extended", Asset: asset, BasePrice: 50, Currency: "USD"})
	if err != nil { t.Fatalf("Purchase: %v", err) }
	if receipt.Amount != 100 { t.Fatalf("expected final price 100 for extended, got %.2f", receipt.Amount) }
}

func TestPurchaseCompensatesFailedPayment(t *testing.T) {
	settleErr := errors.New("settlement rail unavailable")
	fx := newFixture(func(deps *application.Dependencies) {
		deps.Settlement = failingSettlement{SettlementSimulator: chain.NewSettlementSimulator(), err: settleErr}
	})
	ctx := context.Background()
	actor := buyerActor("req_13", "idem-purchase-3")
	asset := domain.Asset{AssetID: "asset_44", Title: "Font Family", SellerID: "user_seller", Price: 40, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 40, Currency: "USD"})
	if err == nil { t.Fatal("expected purchase to fail") }
	if !errors.Is(err, settleErr) { t.Fatalf("expected cause to surface, got %v", err) }
	var compensated *domain.CompensatedError
	if !errors.As(err, &compensated) { t.Fatalf("expected CompensatedError, got %T", err) }
	if compensated.Stage != "payment" || !compensated.CompensationOK { t.Fatalf("unexpected compensation outcome: %+v", compensated) }

	escrow, getErr := fx.svc.GetEscrow(ctx, receipt.EscrowID)
	if getErr != nil { t.Fatalf("GetEscrow: %v", getErr) }
	if escrow.Status != domain.EscrowStatusRefunded { t.Fatalf("expected refunded escrow, got %s", escrow.Status) }

	tokens, listErr := fx.svc.UserLicenses(ctx, "user_buyer")
	if listErr != nil { t.Fatalf("UserLicenses: %v", listErr) }
	if len(tokens) != 0 { t.Fatalf("expected no tokens after failed purchase, got %d", len(tokens)) }
	if receipt.Status != domain.PurchaseStatusFailed || receipt.FailureStage != "payment" { t.Fatalf("unexpected failure receipt: %+v", receipt) }
}

func TestPurchaseCompensatesFailedMint(t *testing.T) {
	mintErr := errors.New("registry rejected mint")
	fx := newFixture(func(deps *application.Dependencies) {
		deps.TokenChain = failingTokenChain{TokenSimulator: chain.NewTokenSimulator("0xcontract"), err: mintErr}
	})
	ctx := context.Background()
	actor := buyerActor("req_14", "idem-purchase-4")
	asset := domain.Asset{AssetID: "asset_45", Title: "Sample Pack", SellerID: "user_seller", Price: 15, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 15, Currency: "USD"})
	if !errors.Is(err, mintErr) { t.Fatalf("expected mint cause to surface, got %v", err) }
	if receipt.TransactionRef == "" { t.Fatal("expected the settled payment ref on the failure receipt") }

	escrow, getErr := fx.svc.GetEscrow(ctx, receipt.EscrowID)
	if getErr != nil { t.Fatalf("GetEscrow: %v", getErr) }
	if escrow.Status != domain.EscrowStatusRefunded { t.Fatalf("expected refunded escrow, got %s", escrow.Status) }
}

func TestPurchaseSellerMismatch(t *testing.T) {
	fx := newFixture(nil)
	asset := domain.Asset{AssetID: "asset_46", Title: "Pack", SellerID: "user_actual_seller", Price: 10, Currency: "USD"}
	_, err := fx.svc.Purchase(context.Background(), buyerActor("req_15", "idem-purchase-5"), application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_imposter", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if !errors.Is(err, domain.ErrSellerMismatch) { t.Fatalf("expected ErrSellerMismatch, got %v", err) }
}

func TestPurchaseKeySurvivesRejectedInput(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_19", "idem-purchase-8")
	asset := domain.Asset{AssetID: "asset_49", Title: "Pack", SellerID: "user_actual_seller", Price: 10, Currency: "USD"}

	_, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_imposter", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if !errors.Is(err, domain.ErrSellerMismatch) { t.Fatalf("expected ErrSellerMismatch, got %v", err) }
	_, err = fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_actual_seller", TemplateID: "no-such-template", Asset: asset, BasePrice: 10, Currency: "USD"})
	if !errors.Is(err, domain.ErrTemplateNotFound) { t.Fatalf("expected ErrTemplateNotFound, got %v", err) }

	// The rejected attempts must not have consumed the key.
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_actual_seller", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if err != nil { t.Fatalf("corrected retry on the same key: %v", err) }
	if receipt.Status != domain.PurchaseStatusCompleted { t.Fatalf("expected completed, got %s", receipt.Status) }
}

func TestPurchaseTimeoutRecoversSettledPayment(t *testing.T) {
	fx := newFixture(func(deps *application.Dependencies) {
		deps.Settlement = timeoutSettlement{SettlementSimulator: chain.NewSettlementSimulator()}
	})
	ctx := context.Background()
	actor := buyerActor("req_20", "idem-purchase-9")
	settled := domain.PaymentResult{
		PaymentID:      "pay_settled_1",
		TransactionRef: "0xsettled",
		Amount:         10,
		Currency:       "USD",
		RecipientID:    "user_seller",
		BuyerID:        "user_buyer",
		Status:         domain.PaymentStatusCompleted,
		IdempotencyKey: actor.IdempotencyKey + ":payment",
		CreatedAt:      time.Now().UTC(),
	}
	if err := fx.repos.Payments.Create(ctx, settled); err != nil { t.Fatalf("seed payment: %v", err) }

	asset := domain.Asset{AssetID: "asset_50", Title: "Pack", SellerID: "user_seller", Price: 10, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if err != nil { t.Fatalf("purchase should recover the settled payment: %v", err) }
	if receipt.Status != domain.PurchaseStatusCompleted { t.Fatalf("expected completed, got %s", receipt.Status) }
	if receipt.TransactionRef != "0xsettled" { t.Fatalf("expected the recovered transaction ref, got %s", receipt.TransactionRef) }
}

func TestPurchaseTimeoutWithoutSettlementCompensates(t *testing.T) {
	fx := newFixture(func(deps *application.Dependencies) {
		deps.Settlement = timeoutSettlement{SettlementSimulator: chain.NewSettlementSimulator()}
	})
	ctx := context.Background()
	actor := buyerActor("req_21", "idem-purchase-10")
	asset := domain.Asset{AssetID: "asset_51", Title: "Pack", SellerID: "user_seller", Price: 10, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if !errors.Is(err, context.DeadlineExceeded) { t.Fatalf("expected the timeout to surface, got %v", err) }
	var compensated *domain.CompensatedError
	if !errors.As(err, &compensated) || compensated.Stage != "payment" { t.Fatalf("expected payment-stage compensation, got %v", err) }

	escrow, getErr := fx.svc.GetEscrow(ctx, receipt.EscrowID)
	if getErr != nil { t.Fatalf("GetEscrow: %v", getErr) }
	if escrow.Status != domain.EscrowStatusRefunded { t.Fatalf("expected refunded escrow, got %s", escrow.Status) }
}

func TestPurchaseReleaseFailureStillSucceeds(t *testing.T) {
	releaseErr := errors.New("custody backend unavailable")
	fx := newFixture(func(deps *application.Dependencies) {
		deps.EscrowChain = stuckReleaseEscrow{EscrowSimulator: chain.NewEscrowSimulator(), err: releaseErr}
	})
	ctx := context.Background()
	actor := buyerActor("req_22", "idem-purchase-11")
	asset := domain.Asset{AssetID: "asset_52", Title: "Pack", SellerID: "user_seller", Price: 10, Currency: "USD"}
	receipt, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"})
	if err != nil { t.Fatalf("purchase must stand when only the release fails: %v", err) }
	if receipt.Status != domain.PurchaseStatusReleasePending { t.Fatalf("expected release_pending, got %s", receipt.Status) }
	if receipt.TokenID == "" { t.Fatal("expected a minted token on the receipt") }

	escrow, getErr := fx.svc.GetEscrow(ctx, receipt.EscrowID)
	if getErr != nil { t.Fatalf("GetEscrow: %v", getErr) }
	if escrow.Status != domain.EscrowStatusFunded { t.Fatalf("escrow must stay funded for reconciliation, got %s", escrow.Status) }
}

func TestSecondPurchaseLeavesFirstTokenAlone(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	asset := domain.Asset{AssetID: "asset_53", Title: "Pack", SellerID: "user_seller", Price: 10, Currency: "USD"}
	input := application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 10, Currency: "USD"}

	first, err := fx.svc.Purchase(ctx, buyerActor("req_23", "idem-purchase-12"), input)
	if err != nil { t.Fatalf("first purchase: %v", err) }
	if result, useErr := fx.svc.UseLicense(ctx, buyerActor("req_23", ""), first.TokenID, "user_buyer"); useErr != nil || !result.Success {
		t.Fatalf("use first token: %v %+v", useErr, result)
	}

	second, err := fx.svc.Purchase(ctx, buyerActor("req_24", "idem-purchase-13"), input)
	if err != nil { t.Fatalf("second purchase: %v", err) }
	if second.TokenID == first.TokenID { t.Fatal("second purchase must mint its own token") }

	firstToken, err := fx.repos.Tokens.GetByID(ctx, first.TokenID)
	if err != nil { t.Fatalf("get first token: %v", err) }
	if firstToken.UsedCount != 1 { t.Fatalf("first token used count disturbed: %d", firstToken.UsedCount) }
	secondToken, err := fx.repos.Tokens.GetByID(ctx, second.TokenID)
	if err != nil { t.Fatalf("get second token: %v", err) }
	if secondToken.UsedCount != 0 { t.Fatalf("second token must start unused, got %d", secondToken.UsedCount) }
}

func TestPurchaseIdempotentReplay(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_16", "idem-purchase-6")
	asset := domain.Asset{AssetID: "asset_47", Title: "Preset Bundle", SellerID: "user_seller", Price: 20, Currency: "USD"}
	input := application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 20, Currency: "USD"}
	first, err := fx.svc.Purchase(ctx, actor, input)
	if err != nil { t.Fatalf("Purchase first: %v", err) }
	second, err := fx.svc.Purchase(ctx, actor, input)
	if err != nil { t.Fatalf("Purchase second: %v", err) }
	if first.PurchaseID != second.PurchaseID || first.EscrowID != second.EscrowID { t.Fatalf("replay mismatch: first=%+v second=%+v", first, second) }
}

func TestPaymentHistoryDirections(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_17", "idem-hist-1")
	if _, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 5, Currency: "USD", RecipientID: "user_seller", BuyerID: "user_buyer"}); err != nil {
		t.Fatalf("Pay: %v", err)
	}
	actor.IdempotencyKey = "idem-hist-2"
	if _, err := fx.svc.Pay(ctx, actor, application.PayInput{Amount: 7, Currency: "USD", RecipientID: "user_buyer", BuyerID: "user_seller"}); err != nil {
		t.Fatalf("Pay reverse: %v", err)
	}

	sent, _, err := fx.svc.PaymentHistory(ctx, ports.PaymentListQuery{Address: "user_buyer", Direction: domain.HistoryDirectionSent})
	if err != nil { t.Fatalf("history sent: %v", err) }
	if len(sent) != 1 || sent[0].Amount != 5 { t.Fatalf("expected one sent payment of 5, got %+v", sent) }

	all, pagination, err := fx.svc.PaymentHistory(ctx, ports.PaymentListQuery{Address: "user_buyer"})
	if err != nil { t.Fatalf("history all: %v", err) }
	if len(all) != 2 || pagination.Total != 2 { t.Fatalf("expected two payments, got %d (total %d)", len(all), pagination.Total) }
}

func TestFlushOutboxDrainsPending(t *testing.T) {
	fx := newFixture(nil)
	ctx := context.Background()
	actor := buyerActor("req_18", "idem-purchase-7")
	asset := domain.Asset{AssetID: "asset_48", Title: "Loop Kit", SellerID: "user_seller", Price: 9, Currency: "USD"}
	if _, err := fx.svc.Purchase(ctx, actor, application.PurchaseInput{BuyerID: "user_buyer", SellerID: "user_seller", TemplateID: "standard", Asset: asset, BasePrice: 9, Currency: "USD"}); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
	pending, err := fx.repos.Outbox.ListPending(ctx, 50)
	if err != nil { t.Fatalf("ListPending: %v", err) }
	if len(pending) == 0 { t.Fatal("expected pending outbox records after purchase") }

	if err := fx.svc.FlushOutbox(ctx); err != nil { t.Fatalf("FlushOutbox: %v", err) }
	remaining, err := fx.repos.Outbox.ListPending(ctx, 50)
	if err != nil { t.Fatalf("ListPending after flush: %v", err) }
	if len(remaining) != 0 { t.Fatalf("expected empty outbox, got %d pending", len(remaining)) }
	if len(fx.published.Published()) != len(pending) { t.Fatalf("expected %d published events, got %d", len(pending), len(fx.published.Published())) }
}

func TestTemplatesOrderedByMultiplier(t *testing.T) {
	fx := newFixture(nil)
	templates := fx.svc.Templates()
	if len(templates) != 3 { t.Fatalf("expected 3 templates, got %d", len(templates)) }
	for i := 1; i < len(templates); i++ {
		if templates[i].PriceMultiplier < templates[i-1].PriceMultiplier { t.Fatalf("templates out of order: %+v", templates) }
	}
}
