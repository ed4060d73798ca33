package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"
	"ticketing/src/apperr"
	"ticketing/src/audit"
	"ticketing/src/boot"
	"ticketing/src/checkin"
	"ticketing/src/checkout"
	"ticketing/src/config"
	"ticketing/src/discount"
	"ticketing/src/inventory"
	"ticketing/src/issuer"
	"ticketing/src/lib"
	"ticketing/src/middlewares"
	"ticketing/src/notify"
	"ticketing/src/payment"
	"ticketing/src/store"
	"ticketing/src/types"
	"time"

	awslib "ticketing/src/lib/aws"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	apiPrefix string = "/api/v1"
)

var discountCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)

var discountCodeValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	code, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	return discountCodePattern.MatchString(discount.Normalize(code))
}

// application holds the services shared by every handler group.
type application struct {
	cfg      *config.Config
	logger   *logrus.Logger
	store    store.Store
	ledger   *inventory.Ledger
	discount *discount.Engine
	issuer   *issuer.Issuer
	checkout *checkout.Orchestrator
	checkin  *checkin.Machine
	audit    *audit.Log
	assets   *awslib.AssetStore
}

func newApplication(cfg *config.Config, logger *logrus.Logger, st store.Store, cache inventory.StatusCache, notifier notify.Notifier, gateway payment.Gateway) *application {
	ledger := inventory.NewLedger(logger, cache)
	discounts := discount.NewEngine(logger)
	iss := issuer.NewIssuer(issuer.NewSigner(cfg.ScanSecret))
	auditLog := audit.NewLog(logger)
	return &application{
		cfg:      cfg,
		logger:   logger,
		store:    st,
		ledger:   ledger,
		discount: discounts,
		issuer:   iss,
		audit:    auditLog,
		checkout: checkout.NewOrchestrator(st, logger, checkout.Options{
			Ledger:    ledger,
			Discounts: discounts,
			Issuer:    iss,
			Notifier:  notifier,
			Gateway:   gateway,
		}),
		checkin: checkin.NewMachine(st, logger, checkin.Options{
			Signer:   iss.Signer(),
			Audit:    auditLog,
			Ledger:   ledger,
			Notifier: notifier,
		}),
	}
}

func abortWithError(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(apperr.HTTPStatus(err), apperr.Body(err))
}

func badRequest(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(http.StatusBadRequest, apperr.Body(apperr.ErrInvalidInput.Withf("%s", err.Error())))
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("discountcode", discountCodeValidatorFunc)
	}
}

func corsConfig(cfg *config.Config) gin.HandlerFunc {
	if cfg.Env == "local" {
		return cors.Default()
	}
	cc := cors.DefaultConfig()
	cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
	cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization", "Stripe-Signature")
	cc.AllowOrigins = []string{cfg.AppHost}
	cc.AllowCredentials = true
	return cors.New(cc)
}

func (app *application) setupRouter() *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middlewares.SecureHeaders, corsConfig(app.cfg))
	router.Use(middlewares.Maintenance(func() bool { return app.cfg.MaintenanceMode }))
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})

	public := router.Group(apiPrefix)
	app.publicHandlers(public)
	app.stripeWebhookRoute(public)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware(app.cfg.JWTSecret, app.logger))
	{
		app.checkoutHandlers(authorized)

		staff := authorized.Group("")
		staff.Use(middlewares.RequireRole(types.ROLE_ADMIN, types.ROLE_STAFF))
		app.admissionHandlers(staff)
		app.ticketHandlers(staff)

		admin := authorized.Group("")
		admin.Use(middlewares.RequireRole(types.ROLE_ADMIN))
		app.eventHandlers(admin)
		app.orderAdminHandlers(admin)
	}
	return router
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logger := boot.InitLogger(cfg)
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg := boot.AWSConfigLoader(ctx, cfg)
	st := boot.InitStore(cfg, logger)
	notifier, closeNotifier := boot.InitNotifier(ctx, cfg, awsCfg, logger)
	defer closeNotifier()

	var gateway payment.Gateway
	if cfg.StripeSecretKey != "" {
		gateway = payment.NewStripeGateway(lib.GetStripeClient(cfg.StripeSecretKey), cfg.AppHost)
	}

	app := newApplication(cfg, logger, st, boot.InitInventoryCache(ctx, cfg, logger), notifier, gateway)
	if cfg.S3AssetsBucket != "" {
		if ac, err := awsCfg(); err != nil {
			logger.WithError(err).Warn("aws config unavailable, ticket codes are not archived")
		} else {
			app.assets = awslib.NewAssetStore(lib.AWSGetS3Client(ac), cfg.S3AssetsBucket)
		}
	}

	if err := boot.InitScheduler(cfg, app.checkout, logger); err != nil {
		logger.WithError(err).Error("scheduler not started")
	}
	consumers := boot.InitBroker(ctx, cfg, awsCfg, app.checkout, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("port", cfg.Port).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("server shutdown")
	}
	boot.StopScheduler(logger)
	consumers.Wait()
}
