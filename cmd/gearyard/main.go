package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"

	"gearyard/internal/app/commands"
	"gearyard/internal/app/dto"
	offerhandlers "gearyard/internal/app/handlers/offers"
	"gearyard/internal/app/middleware"
	appoutbox "gearyard/internal/app/outbox"
	"gearyard/internal/app/queries"
	authsvc "gearyard/internal/app/services/auth"
	chatsvc "gearyard/internal/app/services/chat"
	listingsvc "gearyard/internal/app/services/listings"
	paymentsvc "gearyard/internal/app/services/payments"
	promosvc "gearyard/internal/app/services/promo"
	"gearyard/internal/app/sweep"
	"gearyard/internal/app/uow"
	domainauth "gearyard/internal/domain/auth"
	domainchat "gearyard/internal/domain/chat"
	domainlistings "gearyard/internal/domain/listings"
	domainoffers "gearyard/internal/domain/offers"
	domainpromo "gearyard/internal/domain/promo"
	domainuser "gearyard/internal/domain/user"
	kafka "gearyard/internal/infra/broker/kafka"
	"gearyard/internal/infra/config"
	mongodb "gearyard/internal/infra/db/mongo"
	ginserver "gearyard/internal/infra/http/gin"
	"gearyard/internal/infra/obs"
	infraoutbox "gearyard/internal/infra/outbox"
	"gearyard/internal/infra/payments"
	"gearyard/internal/infra/ratelimit"
	"gearyard/internal/infra/security"
	"gearyard/internal/infra/storage/memory"
	"gearyard/internal/infra/storage/s3"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.close()

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, app.metrics, app.registry, obs.HealthHandlers{
		Ready: app.ready,
	}, app.handlers)

	for _, run := range app.workers {
		go run(ctx)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageMode)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers ginserver.Handlers
	metrics  *obs.Metrics
	registry *prometheus.Registry
	workers  []func(context.Context)
	ready    func() error
	close    func()
}

type storageSet struct {
	offers        domainoffers.Repository
	listings      domainlistings.ListingRepository
	users         domainuser.Repository
	conversations domainchat.Repository
	promos        domainpromo.Repository
	sessions      domainauth.SessionStore
	idempotency   middleware.IdempotencyStore
	outbox        appoutbox.Outbox
	uowFactory    uow.UoWFactory
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewMetrics(registry)

	app := application{
		metrics:  metrics,
		registry: registry,
		ready:    func() error { return nil },
		close:    func() {},
	}

	var store storageSet
	if cfg.StorageMode == config.StorageMemory {
		store = buildMemoryStorage()
	} else {
		mongoStore, teardown, ready, workers, err := buildMongoStorage(cfg, logger)
		if err != nil {
			return application{}, err
		}
		store = mongoStore
		app.close = teardown
		app.ready = ready
		app.workers = append(app.workers, workers...)
	}

	limiter := buildLoginLimiter(cfg, logger)
	photoStore := buildPhotoStore(cfg, logger)

	authService := &authsvc.Service{
		Users:      store.users,
		Sessions:   store.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		Attempts:   limiter,
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	listingService := &listingsvc.Service{
		Listings: store.listings,
		Users:    store.users,
		Photos:   photoStore,
		Logger:   logger,
	}
	chatService := &chatsvc.Service{
		Conversations: store.conversations,
		Listings:      store.listings,
		Logger:        logger,
	}
	promoService := &promosvc.Service{
		Promos: store.promos,
		Logger: logger,
	}
	paymentService := &paymentsvc.Service{
		Listings: store.listings,
		Processor: &payments.Client{
			HTTP:     &http.Client{Timeout: 10 * time.Second},
			Endpoint: cfg.PaymentsURL,
			APIKey:   cfg.PaymentsAPIKey,
			Logger:   logger,
		},
		Promos: promoService,
		Logger: logger,
	}

	commandBus := commands.NewInMemoryBus()
	createHandler := &offerhandlers.CreateOfferHandler{
		UoWFactory: store.uowFactory,
		Outbox:     store.outbox,
		Notifier:   chatService,
		Metrics:    metrics,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, offerhandlers.CreateOfferCommand{}.Key(), createHandler)
	acceptHandler := &offerhandlers.AcceptOfferHandler{
		UoWFactory: store.uowFactory,
		Outbox:     store.outbox,
		Notifier:   chatService,
		Metrics:    metrics,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, offerhandlers.AcceptOfferCommand{}.Key(), acceptHandler)
	respondHandler := &offerhandlers.RespondHandler{
		UoWFactory: store.uowFactory,
		Outbox:     store.outbox,
		Notifier:   chatService,
		Metrics:    metrics,
		Logger:     logger,
	}
	commands.RegisterHandler(commandBus, offerhandlers.DeclineOfferCommand{}.Key(),
		commands.HandlerFunc[offerhandlers.DeclineOfferCommand, *offerhandlers.TransitionResult](respondHandler.HandleDecline))
	commands.RegisterHandler(commandBus, offerhandlers.CounterOfferCommand{}.Key(),
		commands.HandlerFunc[offerhandlers.CounterOfferCommand, *offerhandlers.TransitionResult](respondHandler.HandleCounter))
	commands.RegisterHandler(commandBus, offerhandlers.WithdrawOfferCommand{}.Key(),
		commands.HandlerFunc[offerhandlers.WithdrawOfferCommand, *offerhandlers.TransitionResult](respondHandler.HandleWithdraw))
	commands.RegisterHandler(commandBus, offerhandlers.RespondCounterCommand{}.Key(),
		commands.HandlerFunc[offerhandlers.RespondCounterCommand, *offerhandlers.TransitionResult](respondHandler.HandleRespondCounter))

	queryBus := queries.NewInMemoryBus()
	listHandler := &offerhandlers.ListHandler{UoWFactory: store.uowFactory}
	queries.RegisterHandler(queryBus, offerhandlers.ListReceivedQuery{}.Key(),
		queries.HandlerFunc[offerhandlers.ListReceivedQuery, *dto.OfferList](listHandler.HandleReceived))
	queries.RegisterHandler(queryBus, offerhandlers.ListSentQuery{}.Key(),
		queries.HandlerFunc[offerhandlers.ListSentQuery, *dto.OfferList](listHandler.HandleSent))
	queries.RegisterHandler(queryBus, offerhandlers.GetOfferQuery{}.Key(),
		queries.HandlerFunc[offerhandlers.GetOfferQuery, *dto.Offer](listHandler.HandleGet))

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Idempotency(store.idempotency, nil),
		middleware.Transaction(store.uowFactory, nil),
		middleware.OutboxFlush(store.outbox),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	sweepHandler := &offerhandlers.SweepHandler{
		UoWFactory: store.uowFactory,
		Outbox:     store.outbox,
		Notifier:   chatService,
		Metrics:    metrics,
		Logger:     logger,
	}
	sweeper := &sweep.Worker{
		Handler:  sweepHandler,
		Interval: cfg.SweepInterval,
		Logger:   logger,
	}
	app.workers = append(app.workers, func(ctx context.Context) {
		if err := sweeper.Run(ctx); err != nil {
			logger.Error("offer sweep worker stopped", "error", err)
		}
	})

	listingHandler := ginserver.ListingHandler{Service: listingService, Logger: logger}
	app.handlers = ginserver.Handlers{
		Auth:          ginserver.AuthHandler{Service: authService, Logger: logger},
		Offer:         ginserver.OfferHandler{Commands: commandBusWithMiddleware, Queries: queryBusWithMiddleware, Logger: logger},
		Listing:       listingHandler,
		SellerListing: listingHandler,
		Chat:          ginserver.ChatHandler{Service: chatService, Logger: logger},
		Promo:         ginserver.PromoHandler{Service: promoService, Logger: logger},
		Payment:       ginserver.PaymentHandler{Service: paymentService, Logger: logger},
		Sweep:         ginserver.SweepTrigger{Handler: sweepHandler, Logger: logger}.Trigger,
		AuthMiddleware: ginserver.AuthMiddleware{
			Service: authService,
			Logger:  logger,
		}.Handle,
	}
	return app, nil
}

func buildMemoryStorage() storageSet {
	offersRepo := memory.NewOfferRepository()
	listingsRepo := memory.NewListingRepository()
	usersRepo := memory.NewUserRepository()
	conversationsRepo := memory.NewConversationRepository()
	promosRepo := memory.NewPromoRepository()
	return storageSet{
		offers:        offersRepo,
		listings:      listingsRepo,
		users:         usersRepo,
		conversations: conversationsRepo,
		promos:        promosRepo,
		sessions:      memory.NewSessionStore(),
		idempotency:   memory.NewIdempotencyStore(),
		outbox:        memory.NewOutbox(),
		uowFactory: memory.Factory{
			OffersRepo:        offersRepo,
			ListingsRepo:      listingsRepo,
			UsersRepo:         usersRepo,
			ConversationsRepo: conversationsRepo,
			PromosRepo:        promosRepo,
		},
	}
}

func buildMongoStorage(cfg config.Config, logger *slog.Logger) (storageSet, func(), func() error, []func(context.Context), error) {
	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return storageSet{}, nil, nil, nil, err
	}

	offersRepo := mongodb.NewOfferRepository(client.DB)
	listingsRepo := mongodb.NewListingRepository(client.DB)
	usersRepo := mongodb.NewUserRepository(client.DB)
	conversationsRepo := mongodb.NewConversationRepository(client.DB)
	promosRepo := mongodb.NewPromoRepository(client.DB)
	outboxStore := infraoutbox.NewStore(client.DB)

	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		return storageSet{}, nil, nil, nil, err
	}

	outboxWorker := &infraoutbox.Worker{
		Store:       outboxStore,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	workers := []func(context.Context){func(ctx context.Context) {
		if err := outboxWorker.Run(ctx); err != nil {
			logger.Error("outbox worker stopped", "error", err)
		}
	}}

	store := storageSet{
		offers:        offersRepo,
		listings:      listingsRepo,
		users:         usersRepo,
		conversations: conversationsRepo,
		promos:        promosRepo,
		sessions:      mongodb.NewSessionStore(client.DB),
		idempotency:   mongodb.NewIdempotencyStore(client.DB, cfg.IdempotencyTTL),
		outbox:        outboxStore,
		uowFactory: mongodb.Factory{
			DB:                client.DB,
			OffersRepo:        offersRepo,
			ListingsRepo:      listingsRepo,
			UsersRepo:         usersRepo,
			ConversationsRepo: conversationsRepo,
			PromosRepo:        promosRepo,
		},
	}
	teardown := func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
	ready := func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return client.Ping(pingCtx)
	}
	return store, teardown, ready, workers, nil
}

func buildLoginLimiter(cfg config.Config, logger *slog.Logger) authsvc.AttemptLimiter {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemoryLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	logger.Info("login rate limiting on redis", "addr", cfg.RedisAddr)
	return ratelimit.NewRedisLimiter(client, cfg.LoginRateLimit, cfg.LoginRateWindow)
}

func buildPhotoStore(cfg config.Config, logger *slog.Logger) s3.PhotoStore {
	if cfg.S3Endpoint == "" {
		return s3.Disabled{}
	}
	bucket, err := s3.NewBucket(s3.BucketConfig{
		Endpoint:      cfg.S3Endpoint,
		UseSSL:        cfg.S3UseSSL,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		Bucket:        cfg.S3Bucket,
		PublicBaseURL: cfg.S3PublicEndpoint,
	}, logger)
	if err != nil {
		logger.Warn("object storage unavailable, photo uploads disabled", "error", err)
		return s3.Disabled{}
	}
	return bucket
}
