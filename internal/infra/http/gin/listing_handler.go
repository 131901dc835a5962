package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"gearyard/internal/app/dto"
	listingsvc "gearyard/internal/app/services/listings"
	domainlistings "gearyard/internal/domain/listings"
)

type ListingHTTP interface {
	Catalog(c *gin.Context)
	Get(c *gin.Context)
}

type SellerListingHTTP interface {
	List(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
	Publish(c *gin.Context)
	Suspend(c *gin.Context)
	UploadPhoto(c *gin.Context)
}

type ListingHandler struct {
	Service *listingsvc.Service
	Logger  *slog.Logger
}

func (h ListingHandler) Catalog(c *gin.Context) {
	params := domainlistings.SearchParams{
		Query:       c.Query("q"),
		Category:    c.Query("category"),
		Brand:       c.Query("brand"),
		MinCents:    parseCents(c.Query("min_cents")),
		MaxCents:    parseCents(c.Query("max_cents")),
		OnlyActive:  true,
		AcceptsOnly: c.Query("accepts_offers") == "true",
		Sort:        domainlistings.SortOrder(c.Query("sort")),
		Offset:      parseLimit(c.Query("offset")),
		Limit:       parseLimit(c.Query("limit")),
	}
	for _, raw := range strings.Split(c.Query("condition"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			params.Conditions = append(params.Conditions, domainlistings.Condition(raw))
		}
	}
	result, err := h.Service.Search(c.Request.Context(), params)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewListingPage(result.Items, result.Total))
}

func (h ListingHandler) Get(c *gin.Context) {
	listing, err := h.Service.Get(c.Request.Context(), domainlistings.ListingID(c.Param("id")))
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	if v, ok := viewerFrom(c); ok && v.ID == string(listing.Seller) {
		c.JSON(http.StatusOK, dto.MapSellerListing(listing))
		return
	}
	if listing.State == domainlistings.ListingDraft {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	c.JSON(http.StatusOK, dto.MapListing(listing))
}

type listingRequest struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Category        string   `json:"category"`
	Brand           string   `json:"brand"`
	Condition       string   `json:"condition"`
	PriceCents      int64    `json:"price_cents"`
	AcceptsOffers   bool     `json:"accepts_offers"`
	MinimumCents    int64    `json:"minimum_offer_cents"`
	AutoAcceptCents int64    `json:"auto_accept_cents"`
	Photos          []string `json:"photos"`
	PublishNow      bool     `json:"publish_now"`
}

func (h ListingHandler) List(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	items, err := h.Service.ListMine(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	out := make([]dto.SellerListing, 0, len(items))
	for _, item := range items {
		out = append(out, dto.MapSellerListing(item))
	}
	c.JSON(http.StatusOK, gin.H{"items": out, "total": len(out)})
}

func (h ListingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	listing, err := h.Service.Create(c.Request.Context(), listingsvc.CreateParams{
		SellerID:        user.ID,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Brand:           req.Brand,
		Condition:       req.Condition,
		PriceCents:      req.PriceCents,
		AcceptsOffers:   req.AcceptsOffers,
		MinimumCents:    req.MinimumCents,
		AutoAcceptCents: req.AutoAcceptCents,
		Photos:          req.Photos,
		PublishNow:      req.PublishNow,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, dto.MapSellerListing(listing))
}

func (h ListingHandler) Update(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	var req listingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	listing, err := h.Service.Update(c.Request.Context(), listingsvc.UpdateParams{
		ListingID:       domainlistings.ListingID(c.Param("id")),
		SellerID:        user.ID,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		Brand:           req.Brand,
		Condition:       req.Condition,
		PriceCents:      req.PriceCents,
		AcceptsOffers:   req.AcceptsOffers,
		MinimumCents:    req.MinimumCents,
		AutoAcceptCents: req.AutoAcceptCents,
		Photos:          req.Photos,
	})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapSellerListing(listing))
}

func (h ListingHandler) Publish(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	listing, err := h.Service.Publish(c.Request.Context(), domainlistings.ListingID(c.Param("id")), user.ID)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapSellerListing(listing))
}

type suspendRequest struct {
	Reason string `json:"reason"`
}

func (h ListingHandler) Suspend(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	var req suspendRequest
	_ = c.ShouldBindJSON(&req)
	listing, err := h.Service.Suspend(c.Request.Context(), domainlistings.ListingID(c.Param("id")), user.ID, req.Reason)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapSellerListing(listing))
}

func (h ListingHandler) UploadPhoto(c *gin.Context) {
	user, ok := requireRole(c, "seller")
	if !ok {
		return
	}
	file, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo"})
		return
	}
	defer src.Close()
	contentType := file.Header.Get("Content-Type")
	listing, url, err := h.Service.UploadPhoto(c.Request.Context(), domainlistings.ListingID(c.Param("id")), user.ID, file.Filename, contentType, src)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url, "listing": dto.MapSellerListing(listing)})
}

func parseCents(raw string) int64 {
	if raw == "" {
		return 0
	}
	cents, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || cents < 0 {
		return 0
	}
	return cents
}

var _ ListingHTTP = ListingHandler{}
var _ SellerListingHTTP = ListingHandler{}
