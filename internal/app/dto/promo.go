package dto

import (
	"time"

	domainpromo "gearyard/internal/domain/promo"
)

type PromoCode struct {
	Code           string     `json:"code"`
	SellerID       string     `json:"seller_id"`
	Type           string     `json:"type"`
	PercentOff     int64      `json:"percent_off,omitempty"`
	AmountOffCents int64      `json:"amount_off_cents,omitempty"`
	MaxRedemptions int        `json:"max_redemptions,omitempty"`
	Redeemed       int        `json:"redeemed"`
	Active         bool       `json:"active"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type PromoCodeList struct {
	Items []PromoCode `json:"items"`
}

// PromoQuote is the result of applying a code to a price without redeeming.
type PromoQuote struct {
	Code            string `json:"code"`
	PriceCents      int64  `json:"price_cents"`
	DiscountedCents int64  `json:"discounted_cents"`
}

func MapPromoCode(code *domainpromo.Code) PromoCode {
	if code == nil {
		return PromoCode{}
	}
	view := PromoCode{
		Code:           code.Code,
		SellerID:       code.SellerID,
		Type:           string(code.Type),
		PercentOff:     code.PercentOff,
		AmountOffCents: code.AmountOffCents,
		MaxRedemptions: code.MaxRedemptions,
		Redeemed:       code.Redeemed,
		Active:         code.Active,
		CreatedAt:      code.CreatedAt,
	}
	if !code.ExpiresAt.IsZero() {
		at := code.ExpiresAt
		view.ExpiresAt = &at
	}
	return view
}

func NewPromoCodeList(items []*domainpromo.Code) *PromoCodeList {
	list := &PromoCodeList{Items: make([]PromoCode, 0, len(items))}
	for _, item := range items {
		list.Items = append(list.Items, MapPromoCode(item))
	}
	return list
}
