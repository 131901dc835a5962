package promo

import (
	"context"
	"log/slog"
	"time"

	domainpromo "gearyard/internal/domain/promo"
	"gearyard/internal/domain/shared/fault"
)

var ErrNotIssuer = fault.New(fault.Forbidden, "promo: only the issuing seller may manage this code")

type Service struct {
	Promos domainpromo.Repository
	Logger *slog.Logger
}

type CreateParams struct {
	Code           string
	SellerID       string
	PercentOff     int64
	AmountOffCents int64
	MaxRedemptions int
	ExpiresAt      time.Time
}

func (s *Service) Create(ctx context.Context, params CreateParams) (*domainpromo.Code, error) {
	code, err := domainpromo.NewCode(domainpromo.CreateParams{
		Code:           params.Code,
		SellerID:       params.SellerID,
		PercentOff:     params.PercentOff,
		AmountOffCents: params.AmountOffCents,
		MaxRedemptions: params.MaxRedemptions,
		ExpiresAt:      params.ExpiresAt,
		Now:            time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if existing, err := s.Promos.ByCode(ctx, code.Code); err == nil && existing != nil {
		return nil, fault.New(fault.ValidationFailed, "promo: code %q already exists", code.Code)
	}
	if err := s.Promos.Save(ctx, code); err != nil {
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.Info("promo code created", "code", code.Code, "seller_id", code.SellerID, "type", code.Type)
	}
	return code, nil
}

func (s *Service) ListMine(ctx context.Context, sellerID string) ([]*domainpromo.Code, error) {
	return s.Promos.ListBySeller(ctx, sellerID)
}

func (s *Service) Deactivate(ctx context.Context, code, sellerID string) (*domainpromo.Code, error) {
	promo, err := s.Promos.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if promo.SellerID != sellerID {
		return nil, ErrNotIssuer
	}
	promo.Deactivate(time.Now())
	if err := s.Promos.Save(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// Quote applies a code to a price without consuming a redemption. The code
// must belong to the seller of the item being paid for.
func (s *Service) Quote(ctx context.Context, code, sellerID string, priceCents int64) (int64, *domainpromo.Code, error) {
	promo, err := s.Promos.ByCode(ctx, code)
	if err != nil {
		return 0, nil, err
	}
	if promo.SellerID != sellerID {
		return 0, nil, domainpromo.ErrNotFound
	}
	if err := promo.Usable(time.Now()); err != nil {
		return 0, nil, err
	}
	return promo.Apply(priceCents), promo, nil
}

// Redeem consumes one use of the code.
func (s *Service) Redeem(ctx context.Context, code, sellerID string, priceCents int64) (int64, error) {
	discounted, promo, err := s.Quote(ctx, code, sellerID, priceCents)
	if err != nil {
		return 0, err
	}
	if err := promo.Redeem(time.Now()); err != nil {
		return 0, err
	}
	if err := s.Promos.Save(ctx, promo); err != nil {
		return 0, err
	}
	return discounted, nil
}
