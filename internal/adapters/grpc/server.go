package grpc

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/application"
	"google.golang.org/grpc"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// AssetPurchaseInternalServer currently serves health only; the internal
// read surface moves here once the purchase proto contract is published.
type AssetPurchaseInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewAssetPurchaseInternalServer(service *application.Service) *AssetPurchaseInternalServer {
	return &AssetPurchaseInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *AssetPurchaseInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *AssetPurchaseInternalServer) Check(_ context.Context, _ *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *AssetPurchaseInternalServer) Watch(_ *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
}
