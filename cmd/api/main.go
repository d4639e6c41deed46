package main

import (
	"context"
	"log"

	"checkout/internal/config"
	"checkout/internal/handler"
	"checkout/internal/infra/cache"
	"checkout/internal/infra/db"
	"checkout/internal/infra/gateway"
	"checkout/internal/infra/notify"
	infraRepo "checkout/internal/infra/repository"
	"checkout/internal/logger"
	"checkout/internal/middleware"
	"checkout/internal/server"
	"checkout/internal/usecase"

	"github.com/joho/godotenv"
)

func main() {
	//.envは無くてもよい（本番は環境変数）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.GoEnv); err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server stopped", "error", err.Error())
	}
}

func run(cfg config.Config) error {
	//DB接続
	if cfg.AutoMigrate {
		if err := db.MigrateUp(context.Background(), cfg.DSN()); err != nil {
			return err
		}
	}
	gormDB, err := db.Connect(cfg)
	if err != nil {
		return err
	}

	//Repository（GORM実装）生成
	txm := infraRepo.NewTxManagerGorm(gormDB)
	userRepo := infraRepo.NewUserGormRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)

	//外部サービス
	gw := gateway.NewClient(cfg.Gateway)
	logger.Info("payment gateway", "mode", string(cfg.Gateway.Mode), "key_id", gw.KeyID())

	pub, err := newPublisher(cfg.Notify)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(pub, logger.L(), cfg.Notify.Timeout)
	defer dispatcher.Close()

	deduper, err := newDeduper(cfg.RedisAddr)
	if err != nil {
		return err
	}

	//Usecase生成
	checkoutUC := usecase.NewCheckoutUsecase(txm, userRepo, addressRepo, gw, dispatcher, cfg.Currency)
	paymentUC := usecase.NewPaymentUsecase(txm, gw, dispatcher, checkoutUC, cfg.Currency)
	webhookUC := usecase.NewWebhookUsecase(txm, gw, deduper, dispatcher)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	orderUC := usecase.NewOrderUsecase(txm)
	adminOrderUC := usecase.NewAdminOrderUsecase(txm, dispatcher)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	productUC := usecase.NewProductUsecase(txm)

	//Handler生成
	limiter := middleware.NewIPRateLimiter(cfg.WebhookRateRPS, cfg.WebhookRateBurst)
	h := server.Handlers{
		Addresses:     handler.NewAddressHandler(addressUC),
		Products:      handler.NewProductHandler(productUC),
		Cart:          handler.NewCartHandler(cartUC),
		Orders:        handler.NewOrderHandler(orderUC, checkoutUC),
		Payments:      handler.NewPaymentHandler(paymentUC, webhookUC, limiter),
		AdminOrders:   handler.NewAdminOrderHandler(adminOrderUC),
		AdminPayments: handler.NewAdminPaymentHandler(paymentUC),
	}

	//Server起動
	return server.New(cfg, userRepo, limiter, h).Start()
}

func newPublisher(cfg config.NotifyConfig) (notify.Publisher, error) {
	switch cfg.Transport {
	case "rabbitmq":
		return notify.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.Queue)
	case "kafka":
		return notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return notify.NewLogPublisher(logger.L()), nil
	}
}

// REDIS_ADDR が空ならDBの台帳だけで重複を防ぐ
func newDeduper(addr string) (usecase.WebhookDeduper, error) {
	if addr == "" {
		return cache.NoopDeduper{}, nil
	}
	client, err := cache.NewRedisPool(addr)
	if err != nil {
		return nil, err
	}
	return cache.NewWebhookDeduper(client, 0), nil
}
