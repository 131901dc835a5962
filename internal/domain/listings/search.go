package listings

import "strings"

type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

// SearchParams filter the public catalog. OnlyActive is forced for
// non-seller views by the query layer.
type SearchParams struct {
	Query       string
	Category    string
	Brand       string
	Conditions  []Condition
	MinCents    int64
	MaxCents    int64
	OnlyActive  bool
	AcceptsOnly bool // only listings open to offers
	Sort        SortOrder
	Offset      int
	Limit       int
}

type SearchResult struct {
	Items []*Listing
	Total int
}

// Normalized applies defaults and clamps paging bounds.
func (p SearchParams) Normalized() SearchParams {
	p.Query = strings.TrimSpace(p.Query)
	p.Category = strings.ToLower(strings.TrimSpace(p.Category))
	p.Brand = strings.TrimSpace(p.Brand)
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = 20
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Sort == "" {
		p.Sort = SortNewest
	}
	return p
}

// Matches applies the in-process filters; repositories that can push filters
// into the store use this only as a fallback.
func (p SearchParams) Matches(l *Listing) bool {
	if p.OnlyActive && l.State != ListingActive {
		return false
	}
	if p.AcceptsOnly && !l.Policy.AcceptsOffers {
		return false
	}
	if p.Category != "" && l.Category != p.Category {
		return false
	}
	if p.Brand != "" && !strings.EqualFold(l.Brand, p.Brand) {
		return false
	}
	if len(p.Conditions) > 0 {
		found := false
		for _, c := range p.Conditions {
			if l.Condition == c {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if p.MinCents > 0 && l.PriceCents < p.MinCents {
		return false
	}
	if p.MaxCents > 0 && l.PriceCents > p.MaxCents {
		return false
	}
	if p.Query != "" {
		q := strings.ToLower(p.Query)
		if !strings.Contains(strings.ToLower(l.Title), q) && !strings.Contains(strings.ToLower(l.Description), q) {
			return false
		}
	}
	return true
}
