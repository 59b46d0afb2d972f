package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/paywallet/internal/apikey"
	"github.com/congo-pay/paywallet/internal/config"
	"github.com/congo-pay/paywallet/internal/funding"
	"github.com/congo-pay/paywallet/internal/ledger"
	"github.com/congo-pay/paywallet/internal/middleware"
	"github.com/congo-pay/paywallet/internal/notification"
	"github.com/congo-pay/paywallet/internal/payments"
	"github.com/congo-pay/paywallet/internal/store"
	"github.com/congo-pay/paywallet/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Provider overrides the payment provider chosen from Cfg.
	Provider funding.Provider
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDevelopment() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	var (
		st      store.Store
		keyRepo apikey.Repository
	)
	if d.DB != nil {
		st = store.NewPostgresStore(d.DB, store.Options{
			LockTimeout: d.Cfg.LockTimeout,
			TxTimeout:   d.Cfg.TxTimeout,
		})
		keyRepo = apikey.NewPostgresRepository(d.DB)
	} else {
		st = store.NewInMemory()
		keyRepo = apikey.NewMemoryRepository()
	}

	provider := d.Provider
	if provider == nil {
		if d.Cfg.PaystackSecret != "" {
			provider = funding.NewPaystackClient(d.Cfg.PaystackBaseURL, d.Cfg.PaystackSecret, &http.Client{Timeout: 15 * time.Second})
		} else {
			d.Logger.Warn("PAYSTACK_SECRET not set; deposits use the static provider")
			provider = funding.NewStaticProvider()
		}
	}

	ledgerSvc := ledger.New(st, d.Logger)
	walletSvc := wallet.NewService(st, d.Logger, wallet.WithMaxAttempts(d.Cfg.WalletNumberAttempts))
	notifier := notification.NewLoggerNotifier(d.Logger)
	paymentSvc := payments.NewService(st, ledgerSvc, notifier, d.Logger)
	fundingSvc, err := funding.NewService(st, ledgerSvc, walletSvc, provider, notifier, d.Logger,
		funding.WithAmountCheck(d.Cfg.DepositAmountCheck))
	if err != nil {
		return err
	}
	keySvc := apikey.NewService(keyRepo, d.Logger, apikey.WithMaxActive(d.Cfg.MaxActiveAPIKeys))

	authenticate := middleware.Authenticate([]byte(d.Cfg.JWTSecret), keySvc, d.Logger)
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	keyHandler := apikey.NewHandler(keySvc)

	walletGroup := app.Group("/wallet")
	RegisterFundingRoutes(walletGroup, funding.NewHandler(fundingSvc, d.Cfg.PaystackSecret, d.Logger), authenticate, idempotent)
	RegisterWalletRoutes(walletGroup, wallet.NewHandler(walletSvc), ledger.NewHandler(ledgerSvc), keyHandler, authenticate)
	RegisterPaymentRoutes(walletGroup, payments.NewHandler(paymentSvc, d.Logger), authenticate, idempotent)
	RegisterKeyRoutes(app.Group("/keys", authenticate), keyHandler)

	return nil
}
