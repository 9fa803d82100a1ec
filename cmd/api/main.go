package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/shopspring/decimal"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/application/verification"
	infraat "github.com/bboa3/mz-compliance/internal/infrastructure/at"
	infrasaft "github.com/bboa3/mz-compliance/internal/infrastructure/saft"
	"github.com/bboa3/mz-compliance/internal/infrastructure/postgres"
	httpRouter "github.com/bboa3/mz-compliance/internal/interfaces/http"
	"github.com/bboa3/mz-compliance/pkg/config"
	"github.com/bboa3/mz-compliance/pkg/logger"
	"github.com/bboa3/mz-compliance/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: "info",
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("a iniciar aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão ao PostgreSQL")
	}
	defer pool.Close()

	// Persistência
	companyRepo := postgres.NewCompanyRepository(pool)
	archiveRepo := postgres.NewArchiveRepository(pool, cfg.Compliance.RetentionYears)
	transmissionRepo := postgres.NewTransmissionRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	documentSource := postgres.NewDocumentSource(pool)
	salesLedger := postgres.NewSalesLedger(pool)
	payrollLedger := postgres.NewPayrollLedger(pool)
	periodCalendar := postgres.NewPeriodCalendar(pool)
	runLock := postgres.NewRunLock(pool)

	// Serviços SAF-T
	xmlBuilder := infrasaft.NewXMLBuilderService()
	sealer := infrasaft.NewSealerService()
	schemaValidator := infrasaft.NewSchemaValidatorService()

	// Cliente AT e política de retry
	atClient := infraat.NewClient(cfg.AT.Endpoint, cfg.AT.APIKey, time.Duration(cfg.AT.TimeoutSeconds)*time.Second)
	policy := retry.Policy{
		MaxAttempts: cfg.AT.MaxAttempts,
		BaseDelay:   time.Duration(cfg.AT.BaseBackoffSec) * time.Second,
		MaxDelay:    time.Duration(cfg.AT.MaxBackoffSec) * time.Second,
		JitterFrac:  0.2,
	}

	verificationSvc := verification.NewService(tokenRepo, companyRepo, documentSource, []byte(cfg.Compliance.HMACMasterSecret))
	transmitter := compliance.NewTransmitter(atClient, schemaValidator, transmissionRepo, policy, log)
	aggregator := compliance.NewAggregator(salesLedger, payrollLedger, periodCalendar)
	runner := compliance.NewRunner(
		aggregator,
		decimal.NewFromFloat(cfg.Compliance.VarianceThreshold),
		xmlBuilder,
		sealer,
		archiveRepo,
		companyRepo,
		transmitter,
		verificationSvc,
		runLock,
		log,
	)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		Runner:           runner,
		Verification:     verificationSvc,
		TransmissionRepo: transmissionRepo,
		ArchiveRepo:      archiveRepo,
		CompanyRepo:      companyRepo,
		JWTSecret:        cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP terminado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de paragem recebido, a encerrar servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("encerramento do servidor")
	}

	log.Info().Msg("aplicação parada")
}
