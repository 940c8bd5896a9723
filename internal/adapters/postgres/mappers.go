package postgres

import (
	"encoding/json"

	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

func jsonColumn(v any) *string {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func fromJSONColumn[T any](col *string) T {
	var out T
	if col != nil {
		_ = json.Unmarshal([]byte(*col), &out)
	}
	return out
}

func toEscrowModel(row domain.Escrow) escrowModel {
	return escrowModel{
		EscrowID:          row.EscrowID,
		Amount:            row.Amount,
		Currency:          row.Currency,
		BuyerID:           row.BuyerID,
		SellerID:          row.SellerID,
		AssetID:           row.AssetID,
		Status:            row.Status,
		ReleaseConditions: jsonColumn(row.ReleaseConditions),
		CloseReason:       row.CloseReason,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func toDomainEscrow(rec escrowModel) domain.Escrow {
	return domain.Escrow{
		EscrowID:          rec.EscrowID,
		Amount:            rec.Amount,
		Currency:          rec.Currency,
		BuyerID:           rec.BuyerID,
		SellerID:          rec.SellerID,
		AssetID:           rec.AssetID,
		Status:            rec.Status,
		ReleaseConditions: fromJSONColumn[domain.ReleaseConditions](rec.ReleaseConditions),
		CloseReason:       rec.CloseReason,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}
}

func toPaymentModel(row domain.PaymentResult) paymentModel {
	m := paymentModel{
		PaymentID:      row.PaymentID,
		TransactionRef: row.TransactionRef,
		BlockNumber:    row.BlockNumber,
		UnitsUsed:      row.UnitsUsed,
		UnitPrice:      row.UnitPrice,
		Amount:         row.Amount,
		Currency:       row.Currency,
		RecipientID:    row.RecipientID,
		BuyerID:        row.BuyerID,
		AssetID:        row.AssetID,
		EscrowID:       row.EscrowID,
		Status:         row.Status,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt,
	}
	if len(row.Split) > 0 {
		m.Split = jsonColumn(row.Split)
	}
	if len(row.Metadata) > 0 {
		m.Metadata = jsonColumn(row.Metadata)
	}
	return m
}

func toDomainPayment(rec paymentModel) domain.PaymentResult {
	return domain.PaymentResult{
		PaymentID:      rec.PaymentID,
		TransactionRef: rec.TransactionRef,
		BlockNumber:    rec.BlockNumber,
		UnitsUsed:      rec.UnitsUsed,
		UnitPrice:      rec.UnitPrice,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		RecipientID:    rec.RecipientID,
		BuyerID:        rec.BuyerID,
		AssetID:        rec.AssetID,
		EscrowID:       rec.EscrowID,
		Split:          fromJSONColumn[[]domain.SplitRecipient](rec.Split),
		Status:         rec.Status,
		Metadata:       fromJSONColumn[map[string]string](rec.Metadata),
		IdempotencyKey: rec.IdempotencyKey,
		CreatedAt:      rec.CreatedAt,
	}
}

func toTokenModel(row domain.LicenseToken) licenseTokenModel {
	m := licenseTokenModel{
		TokenID:      row.TokenID,
		ContractRef:  row.ContractRef,
		AssetID:      row.AssetID,
		TemplateID:   row.TemplateID,
		OwnerID:      row.OwnerID,
		IssuerID:     row.IssuerID,
		MintedAt:     row.MintedAt,
		ExpiresAt:    row.ExpiresAt,
		MaxUses:      row.MaxUses,
		UsedCount:    row.UsedCount,
		Permissions:  jsonColumn(row.Permissions),
		Restrictions: jsonColumn(row.Restrictions),
		Transferable: row.Transferable,
		Resellable:   row.Resellable,
		MetadataURI:  row.MetadataURI,
		BurnedAt:     row.BurnedAt,
	}
	if len(row.Metadata) > 0 {
		m.Metadata = jsonColumn(row.Metadata)
	}
	return m
}

func toDomainToken(rec licenseTokenModel) domain.LicenseToken {
	return domain.LicenseToken{
		TokenID:      rec.TokenID,
		ContractRef:  rec.ContractRef,
		AssetID:      rec.AssetID,
		TemplateID:   rec.TemplateID,
		OwnerID:      rec.OwnerID,
		IssuerID:     rec.IssuerID,
		MintedAt:     rec.MintedAt,
		ExpiresAt:    rec.ExpiresAt,
		MaxUses:      rec.MaxUses,
		UsedCount:    rec.UsedCount,
		Permissions:  fromJSONColumn[[]string](rec.Permissions),
		Restrictions: fromJSONColumn[[]string](rec.Restrictions),
		Transferable: rec.Transferable,
		Resellable:   rec.Resellable,
		MetadataURI:  rec.MetadataURI,
		Metadata:     fromJSONColumn[map[string]string](rec.Metadata),
		BurnedAt:     rec.BurnedAt,
	}
}

func toPurchaseModel(row domain.Purchase) purchaseModel {
	return purchaseModel{
		PurchaseID:     row.PurchaseID,
		BuyerID:        row.BuyerID,
		SellerID:       row.SellerID,
		AssetID:        row.AssetID,
		TemplateID:     row.TemplateID,
		TokenID:        row.TokenID,
		EscrowID:       row.EscrowID,
		TransactionRef: row.TransactionRef,
		Amount:         row.Amount,
		Currency:       row.Currency,
		Status:         row.Status,
		FailureStage:   row.FailureStage,
		FailureReason:  row.FailureReason,
		CreatedAt:      row.CreatedAt,
	}
}

func toDomainPurchase(rec purchaseModel) domain.Purchase {
	return domain.Purchase{
		PurchaseID:     rec.PurchaseID,
		BuyerID:        rec.BuyerID,
		SellerID:       rec.SellerID,
		AssetID:        rec.AssetID,
		TemplateID:     rec.TemplateID,
		TokenID:        rec.TokenID,
		EscrowID:       rec.EscrowID,
		TransactionRef: rec.TransactionRef,
		Amount:         rec.Amount,
		Currency:       rec.Currency,
		Status:         rec.Status,
		FailureStage:   rec.FailureStage,
		FailureReason:  rec.FailureReason,
		CreatedAt:      rec.CreatedAt,
	}
}
