package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/internal/addressbook"
	"storefront/internal/analytics"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/identity"
	"storefront/internal/logging"
	"storefront/internal/mail"
	"storefront/internal/middleware"
	"storefront/internal/newsletter"
)

func main() {
	config.Load()
	cfg := config.AppEnv

	logger, err := logging.New(cfg.IsDevelopment())
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()
	handlers.SetLogger(logger)

	client, err := database.Connect(cfg.MongoURI)
	if err != nil {
		logger.Fatal("mongo connect failed", zap.Error(err))
	}
	db := client.Database(cfg.DBName)
	logger.Info("MongoDB connected", zap.String("db", db.Name()))

	for collection, err := range database.EnsureIndexes(db, logger) {
		logger.Warn("index warning", zap.String("collection", collection), zap.Error(err))
	}

	rdb, err := database.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Fatal("redis connect failed", zap.Error(err))
	}

	var purchases *analytics.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		purchases = analytics.NewPublisher(analytics.NewKafkaWriter(cfg.PurchaseTopic, cfg.KafkaBrokers...), logger)
	} else {
		logger.Warn("KAFKA_BROKERS not set, purchase events are only logged")
		purchases = analytics.NewPublisher(analytics.NewLogWriter(logger), logger)
	}

	var sender mail.Sender
	if cfg.SendGridAPIKey != "" {
		sender = mail.NewSendGridClient(cfg.SendGridAPIKey, cfg.MailFrom, "Joyería", logger)
	} else {
		logger.Warn("SENDGRID_API_KEY not set, mails are only logged")
		sender = mail.NewLogSender(logger)
	}
	notifier := mail.NewNotifier(sender)

	roles := identity.NewRoles(
		identity.NewRedisRoleCache(rdb, cfg.RoleCacheTTL, time.Now),
		identity.NewMongoRoleStore(db),
		identity.NewRedisRoleFeed(rdb),
		logger,
	)
	publicBase := strings.TrimRight(cfg.PublicBaseURL, "/")
	auth := identity.NewService(identity.NewMongoAccountStore(db), roles, notifier, identity.Options{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
		ResetURL:   publicBase + "/reset-password",
	}, logger)

	products := catalog.NewService(catalog.NewMongoRepository(db), logger)
	carts := cart.NewService(cart.NewRedisStore(rdb, cfg.CartTTL), products, logger)
	book := addressbook.NewService(addressbook.NewMongoStore(db), logger)
	subscriptions := newsletter.NewService(newsletter.NewMongoStore(db), notifier, publicBase+"/newsletter/unsubscribe", logger)
	uploads := handlers.NewUploadStorage(cfg.PublicDir)

	httpClient := &http.Client{}
	wizard := checkout.NewService(
		checkout.NewRedisSessionStore(rdb, cfg.CheckoutSessionTTL),
		carts,
		book,
		checkout.NewHTTPQuoter(httpClient, cfg.QuoteEndpoint, cfg.QuoteTimeout, logger),
		checkout.NewHTTPPaymentGateway(httpClient, cfg.PaymentEndpoint, cfg.PaymentTimeout, logger),
		purchases,
		checkout.Options{ShippingProviderID: cfg.ShippingProviderID},
		logger,
	)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLog(logger))
	r.LoadHTMLGlob(cfg.TemplatesGlob)
	r.Static("/public", cfg.PublicDir)

	userAuth := middleware.UserAuth(cfg.JWTSecret, logger)

	r.GET("/", handlers.Home())
	r.GET("/paginas/:slug", handlers.StaticPage())
	r.GET("/payment/success", handlers.PaymentSuccess())
	r.GET("/payment/cancel", handlers.PaymentCancel())
	r.GET("/admin/login", handlers.AdminLoginPage)
	r.GET("/admin/categories", handlers.AdminCategoriesPage)
	r.GET("/admin/products", handlers.AdminProductsPage)
	r.GET("/admin/orders", handlers.AdminOrdersPage)
	r.GET("/admin/users", handlers.AdminUsersPage)

	r.POST("/auth/register", handlers.Register(auth))
	r.POST("/auth/login", handlers.Login(auth))
	r.POST("/auth/refresh", handlers.Refresh(auth))
	r.POST("/auth/logout", handlers.Logout(auth))
	r.POST("/auth/forgot-password", handlers.ForgotPassword(auth))
	r.POST("/auth/reset-password", handlers.ResetPassword(auth))
	r.GET("/auth/me", userAuth, handlers.GetMe(auth))
	r.GET("/auth/session/events", userAuth, handlers.SessionEvents(auth))

	r.GET("/products", handlers.GetProducts(products))
	r.GET("/products/:id", handlers.GetProduct(products))
	r.GET("/categories", handlers.GetCategories(products))

	r.POST("/newsletter/subscribe", handlers.SubscribeNewsletter(subscriptions))
	r.GET("/newsletter/unsubscribe", handlers.UnsubscribeNewsletter(subscriptions))

	hint := r.Group("/catalog")
	hint.Use(userAuth)
	{
		hint.POST("/category-hint", handlers.SetCategoryHint(rdb))
		hint.GET("/category-hint", handlers.TakeCategoryHint(rdb))
	}

	shopping := r.Group("/cart")
	shopping.Use(userAuth)
	{
		shopping.GET("", handlers.GetCart(carts))
		shopping.POST("/items", handlers.AddCartItem(carts))
		shopping.PUT("/items/:itemId", handlers.UpdateCartItem(carts))
		shopping.DELETE("/items/:itemId", handlers.RemoveCartItem(carts))
		shopping.DELETE("", handlers.ClearCart(carts))
	}

	checkoutGroup := r.Group("/checkout")
	checkoutGroup.Use(userAuth)
	{
		checkoutGroup.POST("/start", handlers.StartCheckout(auth, wizard))
		checkoutGroup.GET("", handlers.GetCheckout(auth, wizard))
		checkoutGroup.POST("/billing", handlers.SubmitBilling(auth, wizard))
		checkoutGroup.POST("/shipping", handlers.SubmitShipping(auth, wizard))
		checkoutGroup.POST("/address", handlers.SelectCheckoutAddress(auth, wizard))
		checkoutGroup.POST("/back", handlers.CheckoutBack(auth, wizard))
		checkoutGroup.POST("/pay", handlers.Pay(auth, wizard))
		checkoutGroup.POST("/complete", handlers.CompleteCheckout(auth, wizard))
	}

	user := r.Group("/user")
	user.Use(userAuth)
	{
		user.GET("/addresses", handlers.GetUserAddresses(book))
		user.POST("/addresses", handlers.CreateUserAddress(book))
		user.PUT("/addresses/:id", handlers.UpdateUserAddress(book))
		user.PUT("/addresses/:id/default", handlers.SetDefaultUserAddress(book))
		user.DELETE("/addresses/:id", handlers.DeleteUserAddress(book))

		user.GET("/favorites", handlers.GetUserFavorites(db))
		user.POST("/favorites", handlers.AddUserFavorite(db))
		user.DELETE("/favorites/:productId", handlers.DeleteUserFavorite(db))

		user.GET("/orders", handlers.GetUserOrders(db))
	}

	admin := r.Group("/admin/api")
	admin.Use(userAuth, middleware.BackOffice(roles, logger))
	{
		admin.GET("/me", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true, "role": c.MustGet(middleware.ContextRole)})
		})

		admin.GET("/products", handlers.GetAllProducts(products))
		admin.POST("/products", handlers.CreateProduct(products))
		admin.PUT("/products/:id", handlers.UpdateProduct(products))
		admin.DELETE("/products/:id", handlers.DeleteProduct(products))
		admin.POST("/products/:id/images", handlers.UploadProductImage(products, uploads))
		admin.DELETE("/products/:id/images", handlers.DeleteProductImage(products, uploads))

		admin.GET("/categories", handlers.GetAllCategories(products))
		admin.POST("/categories", handlers.CreateCategory(products))
		admin.PUT("/categories/:id", handlers.UpdateCategory(products))
		admin.DELETE("/categories/:id", handlers.DeleteCategory(products))

		admin.GET("/orders", handlers.GetAllOrders(db))
		admin.PUT("/orders/:id/status", handlers.UpdateOrderStatus(db, notifier))

		admin.PUT("/users/:id/role", middleware.AdminOnly(roles, logger), handlers.UpdateUserRole(roles))
	}

	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("storefront listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	if err := purchases.Close(); err != nil {
		logger.Warn("purchase publisher close failed", zap.Error(err))
	}
	if err := rdb.Close(); err != nil {
		logger.Warn("redis close failed", zap.Error(err))
	}
	if err := client.Disconnect(ctx); err != nil {
		logger.Warn("mongo disconnect failed", zap.Error(err))
	}
	logger.Info("server exited")
}
