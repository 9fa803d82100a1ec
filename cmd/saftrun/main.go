// saftrun executa o pipeline SAF-T de um (empresa, período) a partir da
// linha de comandos. Pensado para cron ou invocação manual pelo operador;
// o resultado vai no exit code para o agendador decidir o que fazer.
//
// Exit codes:
//
//	0 execução completa, export aceite (ou arquivado sem envio automático)
//	2 regra de variação reprovada
//	3 envio interrompido, retomável com resubmit
//	4 orçamento de envio esgotado
//	5 export recusado (esquema ou recusa da AT)
//	1 qualquer outro erro
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/application/verification"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	infraat "github.com/bboa3/mz-compliance/internal/infrastructure/at"
	infrasaft "github.com/bboa3/mz-compliance/internal/infrastructure/saft"
	"github.com/bboa3/mz-compliance/internal/infrastructure/postgres"
	"github.com/bboa3/mz-compliance/pkg/config"
	"github.com/bboa3/mz-compliance/pkg/logger"
	"github.com/bboa3/mz-compliance/pkg/retry"
)

const (
	exitOK                  = 0
	exitError               = 1
	exitVarianceFailed      = 2
	exitTransmissionPending = 3
	exitTransmissionFailed  = 4
	exitSchemaRejected      = 5
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		companyID = flag.String("company", "", "ID da empresa")
		year      = flag.Int("year", 0, "ano do período (ex: 2025)")
		month     = flag.Int("month", 0, "mês do período (1-12)")
		override  = flag.Bool("override", false, "prosseguir mesmo com a regra de variação reprovada")
		reason    = flag.String("reason", "", "justificação do override (obrigatória com -override)")
		supersede = flag.Bool("supersede", false, "emitir nova geração para um período já arquivado")
		resubmit  = flag.String("resubmit", "", "reenvia o export com este ID em vez de executar o pipeline")
		timeout   = flag.Duration("timeout", 30*time.Minute, "tempo máximo da execução")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("carregar configuração: " + err.Error() + "\n")
		return exitError
	}

	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "info"})

	if *resubmit == "" {
		if *companyID == "" || *year == 0 || *month == 0 {
			flag.Usage()
			return exitError
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("conexão ao PostgreSQL")
		return exitError
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	archiveRepo := postgres.NewArchiveRepository(pool, cfg.Compliance.RetentionYears)
	transmissionRepo := postgres.NewTransmissionRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)

	atClient := infraat.NewClient(cfg.AT.Endpoint, cfg.AT.APIKey, time.Duration(cfg.AT.TimeoutSeconds)*time.Second)
	policy := retry.Policy{
		MaxAttempts: cfg.AT.MaxAttempts,
		BaseDelay:   time.Duration(cfg.AT.BaseBackoffSec) * time.Second,
		MaxDelay:    time.Duration(cfg.AT.MaxBackoffSec) * time.Second,
		JitterFrac:  0.2,
	}

	verificationSvc := verification.NewService(tokenRepo, companyRepo, postgres.NewDocumentSource(pool), []byte(cfg.Compliance.HMACMasterSecret))
	transmitter := compliance.NewTransmitter(atClient, infrasaft.NewSchemaValidatorService(), transmissionRepo, policy, log)
	aggregator := compliance.NewAggregator(postgres.NewSalesLedger(pool), postgres.NewPayrollLedger(pool), postgres.NewPeriodCalendar(pool))
	runner := compliance.NewRunner(
		aggregator,
		decimal.NewFromFloat(cfg.Compliance.VarianceThreshold),
		infrasaft.NewXMLBuilderService(),
		infrasaft.NewSealerService(),
		archiveRepo,
		companyRepo,
		transmitter,
		verificationSvc,
		postgres.NewRunLock(pool),
		log,
	)

	var result *compliance.RunResult
	if *resubmit != "" {
		result, err = runner.Resubmit(ctx, *resubmit)
	} else {
		period := entity.Period{Year: *year, Month: time.Month(*month)}
		result, err = runner.Run(ctx, *companyID, period, compliance.RunOptions{
			Override:       *override,
			OverrideReason: *reason,
			Supersede:      *supersede,
		})
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSchemaInvalid):
			return exitSchemaRejected
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
			return exitTransmissionPending
		default:
			log.Error().Err(err).Msg("execução falhou")
			return exitError
		}
	}

	log.Info().
		Str("outcome", string(result.Outcome)).
		Msg("execução terminada")

	switch result.Outcome {
	case compliance.OutcomeSucceeded:
		return exitOK
	case compliance.OutcomeVarianceFailed:
		return exitVarianceFailed
	case compliance.OutcomeTransmissionPending:
		return exitTransmissionPending
	case compliance.OutcomeTransmissionFailed:
		return exitTransmissionFailed
	case compliance.OutcomeSchemaRejected:
		return exitSchemaRejected
	default:
		return exitError
	}
}
