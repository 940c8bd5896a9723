package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/cache"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/chain"
	eventadapter "github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/http"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/memory"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/adapters/postgres"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/application"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/ports"
	"google.golang.org/grpc"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	worker     *eventadapter.Worker
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		escrows     ports.EscrowRepository
		payments    ports.PaymentRepository
		tokens      ports.TokenRepository
		purchases   ports.PurchaseRepository
		idempotency ports.IdempotencyRepository
		outbox      ports.OutboxRepository
	)
	if cfg.PostgresDSN != "" {
		db, dbErr := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConn)
		if dbErr != nil {
			return nil, dbErr
		}
		if migErr := postgres.RunMigrations(ctx, db); migErr != nil {
			return nil, migErr
		}
		repos := postgres.NewRepositories(db)
		escrows, payments, tokens, purchases = repos.Escrows, repos.Payments, repos.Tokens, repos.Purchases
		idempotency, outbox = repos.Idempotency, repos.Outbox
	} else {
		repos := memory.NewRepositories()
		escrows, payments, tokens, purchases = repos.Escrows, repos.Payments, repos.Tokens, repos.Purchases
		idempotency, outbox = repos.Idempotency, repos.Outbox
	}
	if cfg.RedisURL != "" {
		client, redisErr := cacheadapter.Connect(ctx, cfg.RedisURL)
		if redisErr != nil {
			return nil, redisErr
		}
		idempotency = cacheadapter.NewRedisIdempotencyStore(client)
	}

	domainPublisher := eventadapter.NewMemoryPublisher()
	dlqPublisher := eventadapter.NewLoggingDLQPublisher(logger)

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:          cfg.ServiceID,
			ContractRef:          cfg.ContractRef,
			DefaultCurrency:      cfg.DefaultCurrency,
			IdempotencyTTL:       cfg.IdempotencyTTL,
			CallTimeout:          cfg.CallTimeout,
			OutboxFlushBatchSize: cfg.OutboxFlushBatchSize,
		},
		Escrows:     escrows,
		Payments:    payments,
		Tokens:      tokens,
		Purchases:   purchases,
		Idempotency: idempotency,
		Outbox:      outbox,

		Settlement:  chain.NewSettlementSimulator(),
		TokenChain:  chain.NewTokenSimulator(cfg.ContractRef),
		EscrowChain: chain.NewEscrowSimulator(),
		Catalog:     grpcadapter.NewCatalogClient(cfg.CatalogGRPCURL),

		DomainEvents: domainPublisher,
		Analytics:    domainPublisher,
		DLQ:          dlqPublisher,

		Logger: logger,
	})

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewAssetPurchaseInternalServer(service))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, err
	}

	worker := eventadapter.NewWorker(logger, nil, dlqPublisher, service, cfg.ConsumerPollInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		worker:     worker,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		if err := r.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
