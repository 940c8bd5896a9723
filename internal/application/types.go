package application

import (
	"log/slog"
	"sort"
	"time"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
)

type Config struct {
	ServiceName          string
	ContractRef          string
	DefaultCurrency      string
	IdempotencyTTL       time.Duration
	CallTimeout          time.Duration
	OutboxFlushBatchSize int
}

type Actor struct {
	SubjectID      string
	Role           string
	RequestID      string
	IdempotencyKey string
}

type CreateEscrowInput struct {
	Amount            float64
	Currency          string
	BuyerID           string
	SellerID          string
	AssetID           string
	ReleaseConditions domain.ReleaseConditions
}

type PayInput struct {
	Amount      float64
	Currency    string
	RecipientID string
	BuyerID     string
	AssetID     string
	EscrowID    string
	Metadata    map[string]string
}

type SplitPayInput struct {
	Recipients  []domain.SplitRecipient
	TotalAmount float64
	Currency    string
	BuyerID     string
}

type MintInput struct {
	AssetID      string
	TemplateID   string
	PurchaserID  string
	DurationDays *int
	MaxUses      *int
	Metadata     map[string]string
}

type PurchaseInput struct {
	BuyerID    string
	SellerID   string
	TemplateID string
	Asset      domain.Asset
	BasePrice  float64
	Currency   string
}

type Service struct {
	cfg Config

	escrows   ports.EscrowRepository
	payments  ports.PaymentRepository
	tokens    ports.TokenRepository
	purchases ports.PurchaseRepository

	idempotency ports.IdempotencyRepository
	outbox      ports.OutboxRepository

	settlement  ports.SettlementBackend
	tokenChain  ports.TokenBackend
	escrowChain ports.EscrowBackend
	catalog     ports.CatalogClient

	domainEvents ports.DomainPublisher
	analytics    ports.AnalyticsPublisher
	dlq          ports.DLQPublisher

	templates []domain.LicenseTemplate

	escrowLocks keyedMutex
	tokenLocks  keyedMutex

	logger *slog.Logger
	nowFn  func() time.Time
}

type Dependencies struct {
	Config Config

	Escrows   ports.EscrowRepository
	Payments  ports.PaymentRepository
	Tokens    ports.TokenRepository
	Purchases ports.PurchaseRepository

	Idempotency ports.IdempotencyRepository
	Outbox      ports.OutboxRepository

	Settlement  ports.SettlementBackend
	TokenChain  ports.TokenBackend
	EscrowChain ports.EscrowBackend
	Catalog     ports.CatalogClient

	DomainEvents ports.DomainPublisher
	Analytics    ports.AnalyticsPublisher
	DLQ          ports.DLQPublisher

	Templates []domain.LicenseTemplate
	Logger    *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "M47-Asset-Purchase-Service"
	}
	if cfg.ContractRef == "" {
		cfg.ContractRef = "0x1234567890abcdef1234567890abcdef12345678"
	}
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = "USD"
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = 7 * 24 * time.Hour
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 30 * time.Second
	}
	if cfg.OutboxFlushBatchSize <= 0 {
		cfg.OutboxFlushBatchSize = 100
	}
	templates := deps.Templates
	if len(templates) == 0 {
		templates = domain.DefaultTemplates()
	}
	sort.SliceStable(templates, func(i, j int) bool {
		return templates[i].PriceMultiplier < templates[j].PriceMultiplier
	})
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:          cfg,
		escrows:      deps.Escrows,
		payments:     deps.Payments,
		tokens:       deps.Tokens,
		purchases:    deps.Purchases,
		idempotency:  deps.Idempotency,
		outbox:       deps.Outbox,
		settlement:   deps.Settlement,
		tokenChain:   deps.TokenChain,
		escrowChain:  deps.EscrowChain,
		catalog:      deps.Catalog,
		domainEvents: deps.DomainEvents,
		analytics:    deps.Analytics,
		dlq:          deps.DLQ,
		templates:    templates,
		logger:       logger,
		nowFn:        func() time.Time { return time.Now().UTC() },
	}
}

// Templates returns the static catalog, ascending by price multiplier.
func (s *Service) Templates() []domain.LicenseTemplate {
	out := make([]domain.LicenseTemplate, len(s.templates))
	copy(out, s.templates)
	return out
}

func (s *Service) templateByID(templateID string) (domain.LicenseTemplate, bool) {
	for _, t := range s.templates {
		if t.TemplateID == templateID {
			return t, true
		}
	}
	return domain.LicenseTemplate{}, false
}
