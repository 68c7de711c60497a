package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/KalilovM/topshopes-backend/pkg/db/models"
	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/logger"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
)

// Service exposes payout reads for shops and admins and proof attachment.
type Service interface {
	ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*PayoutList, error)
	ListAll(ctx context.Context, params pagination.Params) (*PayoutList, error)
	AttachProof(ctx context.Context, payoutID uuid.UUID, proofRef string) (*models.Payout, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payouts repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) ListForShop(ctx context.Context, shopID uuid.UUID, params pagination.Params) (*PayoutList, error) {
	if shopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context missing")
	}
	return s.list(ctx, &shopID, params)
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) (*PayoutList, error) {
	return s.list(ctx, nil, params)
}

func (s *service) list(ctx context.Context, shopID *uuid.UUID, params pagination.Params) (*PayoutList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.repo.List(ctx, shopID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payouts")
	}
	return list, nil
}

// AttachProof records the transfer receipt an admin uploaded for a payout.
func (s *service) AttachProof(ctx context.Context, payoutID uuid.UUID, proofRef string) (*models.Payout, error) {
	proof := strings.TrimSpace(proofRef)
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}
	if proof == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "proof reference required")
	}
	if err := s.repo.UpdateProof(ctx, payoutID, proof); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payout proof")
	}
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout")
	}
	s.logg.Info(s.logg.WithField(ctx, "payout_id", payoutID.String()), "payout proof attached")
	return payout, nil
}
