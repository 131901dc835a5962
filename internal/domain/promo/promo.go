package promo

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrCodeRequired   = errors.New("promo: code is required")
	ErrInvalidValue   = errors.New("promo: discount value must be positive")
	ErrNotFound       = errors.New("promo: code not found")
	ErrInactive       = errors.New("promo: code is inactive")
	ErrExpired        = errors.New("promo: code has expired")
	ErrExhausted      = errors.New("promo: redemption limit reached")
	ErrPercentBounds  = errors.New("promo: percent must be between 1 and 100")
	ErrDiscountScheme = errors.New("promo: exactly one of percent or amount must be set")
)

// DiscountType selects how the code reduces a price.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountAmount  DiscountType = "amount"
)

// Code is a seller-issued promotional discount applied when a buyer pays for
// a sold listing.
type Code struct {
	Code           string
	SellerID       string
	Type           DiscountType
	PercentOff     int64
	AmountOffCents int64
	MaxRedemptions int // 0 means unlimited
	Redeemed       int
	Active         bool
	ExpiresAt      time.Time // zero means no expiry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Repository interface {
	ByCode(ctx context.Context, code string) (*Code, error)
	Save(ctx context.Context, code *Code) error
	ListBySeller(ctx context.Context, sellerID string) ([]*Code, error)
}

type CreateParams struct {
	Code           string
	SellerID       string
	PercentOff     int64
	AmountOffCents int64
	MaxRedemptions int
	ExpiresAt      time.Time
	Now            time.Time
}

func NewCode(params CreateParams) (*Code, error) {
	code := strings.ToUpper(strings.TrimSpace(params.Code))
	if code == "" {
		return nil, ErrCodeRequired
	}
	if strings.TrimSpace(params.SellerID) == "" {
		return nil, errors.New("promo: seller is required")
	}
	hasPercent := params.PercentOff > 0
	hasAmount := params.AmountOffCents > 0
	if hasPercent == hasAmount {
		return nil, ErrDiscountScheme
	}
	if hasPercent && params.PercentOff > 100 {
		return nil, ErrPercentBounds
	}
	kind := DiscountAmount
	if hasPercent {
		kind = DiscountPercent
	}
	now := params.Now.UTC()
	return &Code{
		Code:           code,
		SellerID:       params.SellerID,
		Type:           kind,
		PercentOff:     params.PercentOff,
		AmountOffCents: params.AmountOffCents,
		MaxRedemptions: params.MaxRedemptions,
		Active:         true,
		ExpiresAt:      params.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Usable checks whether the code can be applied right now.
func (c *Code) Usable(now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if !c.ExpiresAt.IsZero() && !c.ExpiresAt.After(now.UTC()) {
		return ErrExpired
	}
	if c.MaxRedemptions > 0 && c.Redeemed >= c.MaxRedemptions {
		return ErrExhausted
	}
	return nil
}

// Apply returns the discounted price in cents, floored at zero.
func (c *Code) Apply(priceCents int64) int64 {
	var discounted int64
	switch c.Type {
	case DiscountPercent:
		discounted = priceCents - priceCents*c.PercentOff/100
	default:
		discounted = priceCents - c.AmountOffCents
	}
	if discounted < 0 {
		return 0
	}
	return discounted
}

// Redeem consumes one use after re-checking usability.
func (c *Code) Redeem(now time.Time) error {
	if err := c.Usable(now); err != nil {
		return err
	}
	c.Redeemed++
	c.UpdatedAt = now.UTC()
	return nil
}

// Deactivate turns the code off; redeeming afterwards fails with ErrInactive.
func (c *Code) Deactivate(now time.Time) {
	c.Active = false
	c.UpdatedAt = now.UTC()
}
