package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/config"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/gateway"
	apphttp "github.com/NRagunath/vendor-payments-automation-system-sub001/internal/http"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/mailer"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/batches"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/callbacks"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/notify"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/payments"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/reconciliation"
	"github.com/NRagunath/vendor-payments-automation-system-sub001/internal/modules/vendors"
)

type noopNotifier struct{}

func (noopNotifier) PaymentFinalized(_ context.Context, _ payments.Payment) error { return nil }

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg := config.Load()
	if cfg.DBDSN == "" {
		log.Fatal("DB_DSN environment variable is required")
	}
	if cfg.Callbacks.WebhookSecret == "" {
		logger.Warn("BANK_WEBHOOK_SECRET not set; webhook endpoint will reject all deliveries")
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(
		&vendors.Vendor{},
		&payments.Payment{},
		&payments.Reversal{},
		&batches.Batch{},
		&callbacks.Event{},
	); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	store := payments.NewGormStore(db)
	vendorRepo := vendors.NewRepo(db)

	var notifier payments.Notifier = noopNotifier{}
	if cfg.SMTP.Host != "" {
		notifier = notify.NewEmailNotifier(
			mailer.NewSMTPMailer(cfg.SMTP),
			vendorRepo,
			cfg.SMTP.From,
			cfg.SMTP.FromName,
			logger,
		)
	} else {
		logger.Info("SMTP_HOST not set; remittance advice emails disabled")
	}

	gw := gateway.NewClient(cfg.Gateway, logger)
	svc := payments.NewService(store, gw, vendorRepo, notifier, cfg.DefaultDebitAccount, logger)
	coord := batches.NewCoordinator(batches.NewGormStore(db), svc, store, logger)
	cb := callbacks.NewService(callbacks.NewGormEventStore(db), svc,
		cfg.Callbacks.WebhookSecret, cfg.Callbacks.H2HToken, logger)

	stmts, err := reconciliation.SourceFromEnv(context.Background())
	if err != nil {
		log.Fatalf("statement source: %v", err)
	}
	eng := reconciliation.NewEngine(store, stmts, logger)

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:        logger,
		Payments:      svc,
		PaymentsStore: store,
		Batches:       coord,
		Callbacks:     cb,
		Reconciler:    eng,
	})

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		logger.Info("server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server exited: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", slog.Any("err", err))
	}
	// Drain in-flight remittance notifications before exiting.
	svc.WaitNotifications()
}
