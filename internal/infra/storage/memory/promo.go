package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	domainpromo "gearyard/internal/domain/promo"
)

// PromoRepository stores promo codes in memory.
type PromoRepository struct {
	mu    sync.RWMutex
	items map[string]*domainpromo.Code
}

func NewPromoRepository() *PromoRepository {
	return &PromoRepository{items: make(map[string]*domainpromo.Code)}
}

func (r *PromoRepository) ByCode(ctx context.Context, code string) (*domainpromo.Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	promo, ok := r.items[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return nil, domainpromo.ErrNotFound
	}
	copyPromo := *promo
	return &copyPromo, nil
}

func (r *PromoRepository) Save(ctx context.Context, code *domainpromo.Code) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyPromo := *code
	r.items[code.Code] = &copyPromo
	return nil
}

func (r *PromoRepository) ListBySeller(ctx context.Context, sellerID string) ([]*domainpromo.Code, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*domainpromo.Code
	for _, promo := range r.items {
		if promo.SellerID == sellerID {
			copyPromo := *promo
			out = append(out, &copyPromo)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
