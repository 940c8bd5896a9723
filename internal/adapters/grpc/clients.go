package grpc

import (
	"context"
	"strings"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

// CatalogClient fronts the asset catalog service. Until the catalog proto
// contract is wired, it answers with a permissive stub keyed on the asset
// id so the orchestrator's seller check is exercised end to end.
type CatalogClient struct{}

func NewCatalogClient(_ string) *CatalogClient { return &CatalogClient{} }

func (c *CatalogClient) GetAsset(_ context.Context, assetID string) (domain.Asset, error) {
	if strings.TrimSpace(assetID) == "" {
		return domain.Asset{}, domain.ErrInvalidInput
	}
	return domain.Asset{
		AssetID:  assetID,
		Title:    "Asset " + assetID,
		SellerID: "seller_" + assetID,
		Price:    25,
		Currency: "USD",
	}, nil
}
