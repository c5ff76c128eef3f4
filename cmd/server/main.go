package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace-payments/config"
	"marketplace-payments/internal/api"
	"marketplace-payments/internal/authclient"
	"marketplace-payments/internal/broker"
	"marketplace-payments/internal/mailer"
	"marketplace-payments/internal/redisclient"
	"marketplace-payments/internal/service"
	"marketplace-payments/internal/storage"
	"marketplace-payments/internal/store"
	"marketplace-payments/internal/stripeclient"
	"marketplace-payments/internal/util"
	"marketplace-payments/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting marketplace payments service")

	tp, err := util.InitTracer("marketplace-payments", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	stripeClient := stripeclient.NewClient(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	authClient := authclient.NewClient(cfg.Auth.APIURL, cfg.Auth.APIKey)
	signer := storage.NewHMACSigner(cfg.Server.SiteURL, cfg.Storage.Bucket, cfg.Storage.SigningSecret)

	minWithdrawal, err := decimal.NewFromString(cfg.Business.MinWithdrawalAmount)
	if err != nil {
		log.Fatalf("Invalid MIN_WITHDRAWAL_AMOUNT: %v", err)
	}

	fulfillment := service.NewFulfillment(db, redisClient, int64(cfg.Business.PlatformFeePercent))
	downloadService := service.NewDownloadService(db, signer, redisClient, cfg.Server.SiteURL,
		cfg.Business.DownloadExpiresDays, cfg.Business.DownloadMaxCount)
	couponService := service.NewCouponService(db)
	checkoutService := service.NewCheckoutService(stripeClient, cfg.Server.SiteURL)
	webhookService := service.NewWebhookService(stripeClient, db, fulfillment, downloadService, eventPublisher)
	paymentService := service.NewPaymentService(db, stripeClient, fulfillment)
	withdrawalService := service.NewWithdrawalService(db, eventPublisher, minWithdrawal)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	mailClient := mailer.NewClient(cfg.Mail.APIURL, cfg.Mail.APIKey, cfg.Mail.From)
	notificationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.ConsumerGroup)
	notificationWorker := worker.NewNotificationWorker(notificationConsumer, mailClient)
	go func() {
		if err := notificationWorker.Start(workerCtx); err != nil {
			log.Printf("Notification worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(couponService, checkoutService, webhookService,
		paymentService, downloadService, withdrawalService, authClient)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	notificationWorker.Stop()

	log.Println("Server exited")
}
