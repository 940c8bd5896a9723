package application

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/mesh/services/financial-rails/M47-asset-purchase-service/internal/domain"
)

func (s *Service) CreateEscrow(ctx context.Context, actor Actor, input CreateEscrowInput) (domain.Escrow, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Escrow{}, domain.ErrUnauthorized
	}
	if err := domain.ValidateCreateEscrowInput(input.Amount, input.Currency, input.BuyerID, input.SellerID, input.AssetID); err != nil {
		return domain.Escrow{}, err
	}
	now := s.nowFn()
	row := domain.Escrow{
		EscrowID:          "escrow_" + uuid.NewString(),
		Amount:            input.Amount,
		Currency:          strings.ToUpper(strings.TrimSpace(input.Currency)),
		BuyerID:           strings.TrimSpace(input.BuyerID),
		SellerID:          strings.TrimSpace(input.SellerID),
		AssetID:           strings.TrimSpace(input.AssetID),
		Status:            domain.EscrowStatusPending,
		ReleaseConditions: input.ReleaseConditions,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.escrows.Create(ctx, row); err != nil {
		return domain.Escrow{}, err
	}
	return row, nil
}

func (s *Service) FundEscrow(ctx context.Context, actor Actor, escrowID string, amount float64) (domain.Escrow, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Escrow{}, domain.ErrUnauthorized
	}
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" || amount <= 0 {
		return domain.Escrow{}, domain.ErrInvalidInput
	}
	unlock := s.escrowLocks.lock(escrowID)
	defer unlock()

	row, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return domain.Escrow{}, err
	}
	if amount != row.Amount {
		return domain.Escrow{}, domain.ErrAmountMismatch
	}
	if row.Status != domain.EscrowStatusPending {
		return domain.Escrow{}, domain.ErrInvalidState
	}
	if s.escrowChain != nil {
		callCtx, cancel := s.callCtx(ctx)
		err := s.escrowChain.Lock(callCtx, escrowID, amount, row.Currency)
		cancel()
		if err != nil {
			return domain.Escrow{}, err
		}
	}
	now := s.nowFn()
	row.Status = domain.EscrowStatusFunded
	row.UpdatedAt = now
	if err := s.escrows.Update(ctx, row); err != nil {
		return domain.Escrow{}, err
	}
	if err := s.enqueueEscrowFunded(ctx, row, actor.RequestID, now); err != nil {
		return domain.Escrow{}, err
	}
	return row, nil
}

func (s *Service) ReleaseEscrow(ctx context.Context, actor Actor, escrowID, reason string) (domain.Escrow, error) {
	return s.closeEscrow(ctx, actor, escrowID, reason, domain.EscrowStatusReleased)
}

func (s *Service) RefundEscrow(ctx context.Context, actor Actor, escrowID, reason string) (domain.Escrow, error) {
	return s.closeEscrow(ctx, actor, escrowID, reason, domain.EscrowStatusRefunded)
}

// closeEscrow performs one of the two mutually exclusive terminal
// transitions. Only a funded escrow can close; a second close attempt fails
// with ErrInvalidState regardless of direction.
func (s *Service) closeEscrow(ctx context.Context, actor Actor, escrowID, reason, target string) (domain.Escrow, error) {
	if strings.TrimSpace(actor.SubjectID) == "" {
		return domain.Escrow{}, domain.ErrUnauthorized
	}
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" {
		return domain.Escrow{}, domain.ErrInvalidInput
	}
	unlock := s.escrowLocks.lock(escrowID)
	defer unlock()

	row, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		return domain.Escrow{}, err
	}
	if row.Status != domain.EscrowStatusFunded {
		return domain.Escrow{}, domain.ErrInvalidState
	}
	if s.escrowChain != nil {
		callCtx, cancel := s.callCtx(ctx)
		if target == domain.EscrowStatusReleased {
			err = s.escrowChain.Release(callCtx, escrowID)
		} else {
			err = s.escrowChain.Refund(callCtx, escrowID)
		}
		cancel()
		if err != nil {
			return domain.Escrow{}, err
		}
	}
	now := s.nowFn()
	row.Status = target
	row.CloseReason = strings.TrimSpace(reason)
	row.UpdatedAt = now
	if err := s.escrows.Update(ctx, row); err != nil {
		return domain.Escrow{}, err
	}
	if err := s.enqueueEscrowClosed(ctx, row, actor.RequestID, now); err != nil {
		return domain.Escrow{}, err
	}
	return row, nil
}

func (s *Service) GetEscrow(ctx context.Context, escrowID string) (domain.Escrow, error) {
	escrowID = strings.TrimSpace(escrowID)
	if escrowID == "" {
		return domain.Escrow{}, domain.ErrInvalidInput
	}
	return s.escrows.GetByID(ctx, escrowID)
}
