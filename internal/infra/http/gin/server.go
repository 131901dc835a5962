package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gearyard/internal/infra/config"
	"gearyard/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Offer          OfferHTTP
	Listing        ListingHTTP
	SellerListing  SellerListingHTTP
	Chat           ChatHTTP
	Promo          PromoHTTP
	Payment        PaymentHTTP
	Sweep          gin.HandlerFunc
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, metrics *obs.Metrics, gatherer prometheus.Gatherer, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	if metrics != nil {
		router.Use(metrics.HTTPMiddleware())
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	if h.Sweep != nil {
		router.POST("/internal/offers/sweep", h.Sweep)
	}

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Listing != nil {
		api.GET("/listings", h.Listing.Catalog)
		api.GET("/listings/:id", h.Listing.Get)
	}
	if h.SellerListing != nil {
		sellerGroup := api.Group("/seller/listings")
		sellerGroup.GET("", h.SellerListing.List)
		sellerGroup.POST("", h.SellerListing.Create)
		sellerGroup.PUT("/:id", h.SellerListing.Update)
		sellerGroup.POST("/:id/publish", h.SellerListing.Publish)
		sellerGroup.POST("/:id/suspend", h.SellerListing.Suspend)
		sellerGroup.POST("/:id/photos", h.SellerListing.UploadPhoto)
	}
	if h.Offer != nil {
		api.POST("/offers", h.Offer.Create)
		api.GET("/offers/:id", h.Offer.Get)
		api.POST("/offers/:id/accept", h.Offer.Accept)
		api.POST("/offers/:id/decline", h.Offer.Decline)
		api.POST("/offers/:id/counter", h.Offer.Counter)
		api.POST("/offers/:id/withdraw", h.Offer.Withdraw)
		api.POST("/offers/:id/counter/respond", h.Offer.RespondCounter)
		meGroup := api.Group("/me")
		meGroup.GET("/offers/received", h.Offer.ListReceived)
		meGroup.GET("/offers/sent", h.Offer.ListSent)
	}
	if h.Chat != nil {
		chatGroup := api.Group("/conversations")
		chatGroup.GET("", h.Chat.List)
		chatGroup.POST("", h.Chat.Open)
		chatGroup.GET("/:id/messages", h.Chat.Messages)
		chatGroup.POST("/:id/messages", h.Chat.Send)
		chatGroup.POST("/:id/read", h.Chat.MarkRead)
	}
	if h.Promo != nil {
		promoGroup := api.Group("/seller/promo-codes")
		promoGroup.GET("", h.Promo.List)
		promoGroup.POST("", h.Promo.Create)
		promoGroup.DELETE("/:code", h.Promo.Deactivate)
	}
	if h.Payment != nil {
		api.POST("/payments/checkout", h.Payment.Checkout)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
