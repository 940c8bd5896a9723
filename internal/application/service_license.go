package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

func (s *Service) MintLicense(ctx context.Context, actor Actor, input MintInput) (domain.LicenseToken, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LicenseToken{}, domain.ErrUnauthorized
	}
	if strings.TrimSpace(actor.IdempotencyKey) == "" {
		return domain.LicenseToken{}, domain.ErrIdempotencyRequired
	}
	if err := domain.ValidateMintInput(input.AssetID, input.TemplateID, input.PurchaserID); err != nil {
		return domain.LicenseToken{}, err
	}
	template, ok := s.templateByID(strings.TrimSpace(input.TemplateID))
	if !ok {
		return domain.LicenseToken{}, domain.ErrTemplateNotFound
	}
	requestHash := hashJSON(input)
	var cached domain.LicenseToken
	if ok, err := s.getIdempotent(ctx, actor.IdempotencyKey, requestHash, &cached); err != nil {
		return domain.LicenseToken{}, err
	} else if ok {
		return cached, nil
	}
	if err := s.reserveIdempotency(ctx, actor.IdempotencyKey, requestHash); err != nil {
		return domain.LicenseToken{}, err
	}

	now := s.nowFn()
	tokenID := uuid.NewString()

	callCtx, cancel := s.callCtx(ctx)
	receipt, err := s.tokenChain.Mint(callCtx, tokenID, input.AssetID, input.PurchaserID)
	cancel()
	if err != nil {
		return domain.LicenseToken{}, err
	}

	// Override-or-template-default for duration and max uses; a nil result
	// means perpetual / unlimited.
	duration := template.DurationDays
	if input.DurationDays != nil {
		duration = input.DurationDays
	}
	maxUses := template.MaxUses
	if input.MaxUses != nil {
		maxUses = input.MaxUses
	}
	var expiresAt *time.Time
	if duration != nil {
		t := now.Add(time.Duration(*duration) * 24 * time.Hour)
		expiresAt = &t
	}

	metadata := map[string]string{}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata["templateName"] = template.Name

	row := domain.LicenseToken{
		TokenID:      tokenID,
		ContractRef:  receipt.ContractRef,
		AssetID:      strings.TrimSpace(input.AssetID),
		TemplateID:   template.TemplateID,
		OwnerID:      strings.TrimSpace(input.PurchaserID),
		IssuerID:     actor.SubjectID,
		MintedAt:     now,
		ExpiresAt:    expiresAt,
		MaxUses:      maxUses,
		Permissions:  append([]string(nil), template.Permissions...),
		Restrictions: append([]string(nil), template.Restrictions...),
		Transferable: template.Transferable,
		Resellable:   template.Resellable,
		MetadataURI:  receipt.MetadataURI,
		Metadata:     metadata,
	}
	if err := s.tokens.Create(ctx, row); err != nil {
		return domain.LicenseToken{}, err
	}
	if err := s.enqueueLicenseMinted(ctx, row, actor.RequestID, now); err != nil {
		return domain.LicenseToken{}, err
	}
	_ = s.completeIdempotencyJSON(ctx, actor.IdempotencyKey, 200, row)
	return row, nil
}

// VerifyLicense never mutates state. A missing or burned token, or an owner
// mismatch, reports isValid=false rather than an error.
func (s *Service) VerifyLicense(ctx context.Context, tokenID, expectedOwner string) (domain.LicenseVerification, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return domain.LicenseVerification{}, domain.ErrInvalidInput
	}
	row, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LicenseVerification{IsValid: false, TokenID: tokenID}, nil
		}
		return domain.LicenseVerification{}, err
	}
	if row.Burned() {
		return domain.LicenseVerification{IsValid: false, TokenID: tokenID}, nil
	}
	expectedOwner = strings.TrimSpace(expectedOwner)
	if expectedOwner != "" && expectedOwner != row.OwnerID {
		return domain.LicenseVerification{IsValid: false, TokenID: tokenID}, nil
	}
	return domain.LicenseVerification{
		IsValid:       true,
		TokenID:       row.TokenID,
		OwnerID:       row.OwnerID,
		AssetID:       row.AssetID,
		LicenseType:   row.TemplateID,
		ExpiresAt:     row.ExpiresAt,
		RemainingUses: row.Remaining(),
		Permissions:   append([]string(nil), row.Permissions...),
	}, nil
}

// UseLicense enforces usage at call time against the current clock and the
// stored used count; there is no background expiry sweep. Preconditions
// produce distinct messages, not errors.
func (s *Service) UseLicense(ctx context.Context, actor Actor, tokenID, userID string) (domain.UseResult, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.UseResult{}, domain.ErrUnauthorized
	}
	tokenID = strings.TrimSpace(tokenID)
	userID = strings.TrimSpace(userID)
	if tokenID == "" || userID == "" {
		return domain.UseResult{}, domain.ErrInvalidInput
	}
	unlock := s.tokenLocks.lock(tokenID)
	defer unlock()

	row, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.UseResult{Success: false, Message: domain.UseMessageInvalid}, nil
		}
		return domain.UseResult{}, err
	}
	if row.Burned() || row.OwnerID != userID {
		return domain.UseResult{Success: false, Message: domain.UseMessageInvalid}, nil
	}
	if row.Expired(s.nowFn()) {
		return domain.UseResult{Success: false, Message: domain.UseMessageExpired}, nil
	}
	if row.Exhausted() {
		return domain.UseResult{Success: false, Message: domain.UseMessageExhausted}, nil
	}
	row.UsedCount++
	if err := s.tokens.Update(ctx, row); err != nil {
		return domain.UseResult{}, err
	}
	return domain.UseResult{Success: true, RemainingUses: row.Remaining(), Message: domain.UseMessageOK}, nil
}

func (s *Service) TransferLicense(ctx context.Context, actor Actor, tokenID, fromID, toID string) (domain.LicenseToken, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.LicenseToken{}, domain.ErrUnauthorized
	}
	tokenID = strings.TrimSpace(tokenID)
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if tokenID == "" || fromID == "" || toID == "" {
		return domain.LicenseToken{}, domain.ErrInvalidInput
	}
	unlock := s.tokenLocks.lock(tokenID)
	defer unlock()

	row, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return domain.LicenseToken{}, err
	}
	if row.Burned() || row.OwnerID != fromID {
		return domain.LicenseToken{}, domain.ErrNotOwned
	}
	if !row.Transferable {
		return domain.LicenseToken{}, domain.ErrNotTransferable
	}
	callCtx, cancel := s.callCtx(ctx)
	err = s.tokenChain.Transfer(callCtx, tokenID, fromID, toID)
	cancel()
	if err != nil {
		return domain.LicenseToken{}, err
	}
	row.OwnerID = toID
	if err := s.tokens.Update(ctx, row); err != nil {
		return domain.LicenseToken{}, err
	}
	if err := s.enqueueLicenseTransferred(ctx, row, fromID, actor.RequestID, s.nowFn()); err != nil {
		return domain.LicenseToken{}, err
	}
	return row, nil
}

func (s *Service) BurnLicense(ctx context.Context, actor Actor, tokenID, ownerID string) error {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.ErrUnauthorized
	}
	tokenID = strings.TrimSpace(tokenID)
	ownerID = strings.TrimSpace(ownerID)
	if tokenID == "" || ownerID == "" {
		return domain.ErrInvalidInput
	}
	unlock := s.tokenLocks.lock(tokenID)
	defer unlock()

	row, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if row.Burned() || row.OwnerID != ownerID {
		return domain.ErrNotOwned
	}
	callCtx, cancel := s.callCtx(ctx)
	err = s.tokenChain.Burn(callCtx, tokenID)
	cancel()
	if err != nil {
		return err
	}
	now := s.nowFn()
	row.BurnedAt = &now
	if err := s.tokens.Update(ctx, row); err != nil {
		return err
	}
	return s.enqueueLicenseBurned(ctx, row, actor.RequestID, now)
}

func (s *Service) UserLicenses(ctx context.Context, userID string) ([]domain.LicenseToken, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.tokens.ListByOwner(ctx, userID)
}

func (s *Service) AssetLicenses(ctx context.Context, assetID string) ([]domain.LicenseToken, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return nil, domain.ErrInvalidInput
	}
	return s.tokens.ListByAsset(ctx, assetID)
}

func (s *Service) LicenseMetadata(ctx context.Context, tokenID string) (domain.LicenseMetadataDoc, error) {
	tokenID = strings.TrimSpace(tokenID)
	if tokenID == "" {
		return domain.LicenseMetadataDoc{}, domain.ErrInvalidInput
	}
	row, err := s.tokens.GetByID(ctx, tokenID)
	if err != nil {
		return domain.LicenseMetadataDoc{}, err
	}
	suffix := row.TokenID
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	duration := "Perpetual"
	if row.ExpiresAt != nil {
		days := int(row.ExpiresAt.Sub(row.MintedAt).Hours() / 24)
		duration = fmt.Sprintf("%d days", days)
	}
	maxUses := "Unlimited"
	if row.MaxUses != nil {
		maxUses = strconv.Itoa(*row.MaxUses)
	}
	commercial := "No"
	for _, p := range row.Permissions {
		if p == "commercial-use" {
			commercial = "Yes"
		}
	}
	return domain.LicenseMetadataDoc{
		Name:        "Digital License #" + suffix,
		Description: "Token-based digital asset license with programmable permissions",
		Attributes: []domain.MetadataAttribute{
			{TraitType: "License Type", Value: row.TemplateID},
			{TraitType: "Duration", Value: duration},
			{TraitType: "Max Uses", Value: maxUses},
			{TraitType: "Commercial Use", Value: commercial},
		},
	}, nil
}
