package listings

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	domainlistings "gearyard/internal/domain/listings"
	"gearyard/internal/domain/shared/fault"
	domainuser "gearyard/internal/domain/user"
	"gearyard/internal/infra/storage/s3"
)

var ErrNotOwner = fault.New(fault.Forbidden, "listings: only the seller may manage this listing")

type Service struct {
	Listings domainlistings.ListingRepository
	Users    domainuser.Repository
	Photos   s3.PhotoStore
	Logger   *slog.Logger
}

type CreateParams struct {
	SellerID        string
	Title           string
	Description     string
	Category        string
	Brand           string
	Condition       string
	PriceCents      int64
	AcceptsOffers   bool
	MinimumCents    int64
	AutoAcceptCents int64
	Photos          []string
	PublishNow      bool
}

// Create registers a new listing and grants the seller role on first use.
func (s *Service) Create(ctx context.Context, params CreateParams) (*domainlistings.Listing, error) {
	now := time.Now()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          domainlistings.ListingID(uuid.NewString()),
		Seller:      domainlistings.SellerID(params.SellerID),
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Brand:       params.Brand,
		Condition:   domainlistings.Condition(params.Condition),
		PriceCents:  params.PriceCents,
		Policy: domainlistings.OfferPolicy{
			AcceptsOffers:   params.AcceptsOffers,
			MinimumCents:    params.MinimumCents,
			AutoAcceptCents: params.AutoAcceptCents,
		},
		Photos: params.Photos,
		Now:    now,
	})
	if err != nil {
		return nil, err
	}
	if params.PublishNow {
		if err := listing.Publish(now); err != nil {
			return nil, err
		}
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	s.grantSellerRole(ctx, params.SellerID, now)
	if s.Logger != nil {
		s.Logger.Info("listing created", "listing_id", listing.ID, "seller_id", listing.Seller, "state", listing.State)
	}
	return listing, nil
}

type UpdateParams struct {
	ListingID       domainlistings.ListingID
	SellerID        string
	Title           string
	Description     string
	Category        string
	Brand           string
	Condition       string
	PriceCents      int64
	AcceptsOffers   bool
	MinimumCents    int64
	AutoAcceptCents int64
	Photos          []string
}

func (s *Service) Update(ctx context.Context, params UpdateParams) (*domainlistings.Listing, error) {
	listing, err := s.owned(ctx, params.ListingID, params.SellerID)
	if err != nil {
		return nil, err
	}
	err = listing.UpdateAttributes(domainlistings.UpdateListingParams{
		Title:       params.Title,
		Description: params.Description,
		Category:    params.Category,
		Brand:       params.Brand,
		Condition:   domainlistings.Condition(params.Condition),
		PriceCents:  params.PriceCents,
		Policy: domainlistings.OfferPolicy{
			AcceptsOffers:   params.AcceptsOffers,
			MinimumCents:    params.MinimumCents,
			AutoAcceptCents: params.AutoAcceptCents,
		},
		Photos: params.Photos,
		Now:    time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) Publish(ctx context.Context, id domainlistings.ListingID, sellerID string) (*domainlistings.Listing, error) {
	listing, err := s.owned(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	if err := listing.Publish(time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) Suspend(ctx context.Context, id domainlistings.ListingID, sellerID, reason string) (*domainlistings.Listing, error) {
	listing, err := s.owned(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	if err := listing.Suspend(reason, time.Now()); err != nil {
		return nil, err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (s *Service) Get(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	return s.Listings.ByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	return s.Listings.Search(ctx, params.Normalized())
}

func (s *Service) ListMine(ctx context.Context, sellerID string) ([]*domainlistings.Listing, error) {
	return s.Listings.ListBySeller(ctx, domainlistings.SellerID(sellerID))
}

// UploadPhoto stores the image and appends its public URL to the listing.
func (s *Service) UploadPhoto(ctx context.Context, id domainlistings.ListingID, sellerID, filename, contentType string, reader io.Reader) (*domainlistings.Listing, string, error) {
	listing, err := s.owned(ctx, id, sellerID)
	if err != nil {
		return nil, "", err
	}
	if s.Photos == nil {
		return nil, "", fault.New(fault.UpstreamFailure, "listings: photo storage is not configured")
	}
	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("listings/%s/%s%s", id, uuid.NewString(), ext)
	url, err := s.Photos.StorePhoto(ctx, key, reader, contentType)
	if err != nil {
		return nil, "", fault.Wrap(fault.UpstreamFailure, err, "listings: photo upload failed")
	}
	if err := listing.AddPhoto(url, time.Now()); err != nil {
		return nil, "", err
	}
	if err := s.Listings.Save(ctx, listing); err != nil {
		return nil, "", err
	}
	return listing, url, nil
}

func (s *Service) owned(ctx context.Context, id domainlistings.ListingID, sellerID string) (*domainlistings.Listing, error) {
	listing, err := s.Listings.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if string(listing.Seller) != sellerID {
		return nil, ErrNotOwner
	}
	return listing, nil
}

func (s *Service) grantSellerRole(ctx context.Context, sellerID string, now time.Time) {
	if s.Users == nil {
		return
	}
	user, err := s.Users.ByID(ctx, domainuser.ID(sellerID))
	if err != nil {
		return
	}
	if user.HasRole(domainuser.RoleSeller) {
		return
	}
	if err := user.EnsureRole(domainuser.RoleSeller, now); err != nil {
		return
	}
	if err := s.Users.Save(ctx, user); err != nil && s.Logger != nil {
		s.Logger.Warn("failed to grant seller role", "user_id", sellerID, "error", err)
	}
}
