package ports

import (
	"context"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

// CatalogClient resolves asset metadata from the catalog service. Read-only
// from this service's perspective.
type CatalogClient interface {
	GetAsset(ctx context.Context, assetID string) (domain.Asset, error)
}
