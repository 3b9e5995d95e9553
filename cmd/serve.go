package cmd

import (
	"context"
	"database/sql"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/weed35937/tele-bot-digital/app/controller"
	"github.com/weed35937/tele-bot-digital/app/gateway"
	"github.com/weed35937/tele-bot-digital/app/repository"
	"github.com/weed35937/tele-bot-digital/app/service"
	"github.com/weed35937/tele-bot-digital/app/telegram"
	"github.com/weed35937/tele-bot-digital/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and the Telegram front end",
	Long:  "Start the provider webhook HTTP server and the Telegram long-polling front end.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, services, cleanup := mustCreateServices()
	defer cleanup()

	webhookController := controller.NewWebhookController(services.intake)
	e := setupHTTPServer(webhookController)

	bot := telegram.NewBot(services.api, services.store, services.orders, cfg.Telegram)

	botCtx, stopBot := context.WithCancel(context.Background())
	defer stopBot()

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.Info("Starting Telegram front end")
		bot.Run(botCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	stopBot()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}

	logrus.Info("Server stopped")
}

func setupHTTPServer(webhookController *controller.WebhookController) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())

	e.GET("/health", webhookController.Health)

	webhooks := e.Group("/webhooks/providers")
	webhooks.POST("/:provider", webhookController.HandleProviderEvent)

	return e
}

type appServices struct {
	api    *tgbotapi.BotAPI
	store  *service.StoreService
	orders *service.OrderService
	intake *service.IntakeService
}

func mustCreateServices() (*config.Config, *appServices, func()) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		_ = db.Close()
		logrus.WithError(err).Fatal("Failed to initialize Telegram API")
	}

	customerRepo := repository.NewCustomerRepository(db)
	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	orderEventRepo := repository.NewOrderEventRepository(db)
	providerEventRepo := repository.NewProviderEventRepository(db)

	gateways := gateway.NewRegistry(
		gateway.NewStripeGateway(gateway.StripeConfig{
			SecretKey:                 cfg.Stripe.SecretKey,
			WebhookSecret:             cfg.Stripe.WebhookSecret,
			SuccessURL:                cfg.Stripe.SuccessURL,
			CancelURL:                 cfg.Stripe.CancelURL,
			SignatureToleranceSeconds: cfg.Stripe.SignatureToleranceSeconds,
			HTTPTimeout:               cfg.Stripe.HTTPTimeout,
		}),
		gateway.NewPayPalGateway(gateway.PayPalConfig{
			BaseAPIURL:   cfg.PayPal.BaseAPIURL,
			ClientID:     cfg.PayPal.ClientID,
			ClientSecret: cfg.PayPal.ClientSecret,
			WebhookID:    cfg.PayPal.WebhookID,
			ReturnURL:    cfg.PayPal.ReturnURL,
			CancelURL:    cfg.PayPal.CancelURL,
			HTTPTimeout:  cfg.PayPal.HTTPTimeout,
		}),
		gateway.NewCoinbaseGateway(gateway.CoinbaseConfig{
			APIKey:        cfg.Coinbase.APIKey,
			WebhookSecret: cfg.Coinbase.WebhookSecret,
			HTTPTimeout:   cfg.Coinbase.HTTPTimeout,
		}),
	)

	notifier := telegram.NewNotifier(api)
	fulfillment := service.NewFulfillmentDispatcher(productRepo, customerRepo, notifier)

	orderService := service.NewOrderService(
		orderRepo,
		productRepo,
		customerRepo,
		orderEventRepo,
		gateways,
		fulfillment,
		cfg.Store,
	)
	storeService := service.NewStoreService(
		productRepo,
		customerRepo,
		orderRepo,
		cfg.Telegram.AdminIDs,
		cfg.Store,
	)
	intakeService := service.NewIntakeService(gateways, orderService, providerEventRepo)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close database")
		}
	}

	services := &appServices{
		api:    api,
		store:  storeService,
		orders: orderService,
		intake: intakeService,
	}

	return cfg, services, cleanup
}

func configureLogging(cfg *config.Config) error {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	return nil
}
