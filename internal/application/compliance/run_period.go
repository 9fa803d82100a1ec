package compliance

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/bboa3/mz-compliance/internal/application/verification"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
	domsaft "github.com/bboa3/mz-compliance/internal/domain/saft"
	infrasaft "github.com/bboa3/mz-compliance/internal/infrastructure/saft"
	"github.com/bboa3/mz-compliance/pkg/logger"
)

// Outcome é o resultado terminal de uma execução do pipeline.
type Outcome string

const (
	OutcomeSucceeded           Outcome = "SUCCEEDED"
	OutcomeVarianceFailed      Outcome = "VARIANCE_FAILED"
	OutcomeSchemaRejected      Outcome = "SCHEMA_REJECTED"
	OutcomeTransmissionPending Outcome = "TRANSMISSION_PENDING"
	OutcomeTransmissionFailed  Outcome = "TRANSMISSION_FAILED"
)

// RunOptions controla uma execução do pipeline.
type RunOptions struct {
	// Override constrói o export mesmo com a regra de variação reprovada.
	Override       bool
	OverrideReason string
	// Supersede arquiva uma nova geração quando o período já tem export.
	Supersede bool
}

// RunResult descreve o estado final de uma execução.
type RunResult struct {
	Outcome      Outcome
	Verdict      entity.VarianceVerdict
	Export       *entity.ExportDocument
	ArchiveRef   *entity.ArchiveRef
	Transmission *entity.TransmissionRecord
}

// Runner orquestra o ciclo mensal completo:
//
//	agregar → validar variação (gate) → construir → selar → arquivar → enviar
//
// O arquivo acontece antes do envio; uma falha de transmissão deixa um export
// arquivado e retomável com Resubmit. Execuções concorrentes para o mesmo
// (empresa, período) são serializadas pelo RunLock.
type Runner struct {
	aggregator  *Aggregator
	validator   *domsaft.VarianceValidator
	builder     *infrasaft.XMLBuilderService
	sealer      *infrasaft.SealerService
	archive     repository.ArchiveRepository
	companies   repository.CompanyRepository
	transmitter *Transmitter
	tokens      *verification.Service
	lock        RunLock
	log         *logger.Logger
}

// NewRunner constrói o orquestrador com todas as dependências.
func NewRunner(
	aggregator *Aggregator,
	varianceThreshold decimal.Decimal,
	builder *infrasaft.XMLBuilderService,
	sealer *infrasaft.SealerService,
	archive repository.ArchiveRepository,
	companies repository.CompanyRepository,
	transmitter *Transmitter,
	tokens *verification.Service,
	lock RunLock,
	log *logger.Logger,
) *Runner {
	return &Runner{
		aggregator:  aggregator,
		validator:   domsaft.NewVarianceValidator(varianceThreshold),
		builder:     builder,
		sealer:      sealer,
		archive:     archive,
		companies:   companies,
		transmitter: transmitter,
		tokens:      tokens,
		lock:        lock,
		log:         log,
	}
}

// Run executa o pipeline para um (empresa, período).
// Resultados de negócio (variação reprovada, recusa de esquema, envio
// pendente ou falhado) vêm no Outcome; o erro fica para falhas operacionais.
func (r *Runner) Run(ctx context.Context, companyID string, period entity.Period, opts RunOptions) (*RunResult, error) {
	release, ok, err := r.lock.Acquire(ctx, companyID, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("período %s: %w", period, domain.ErrRunInProgress)
	}
	defer release()

	runLog := r.log.With().Str("company_id", companyID).Str("period", period.String()).Logger()

	company, err := r.companies.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	dataset, err := r.aggregator.Aggregate(ctx, companyID, period)
	if err != nil {
		return nil, err
	}
	runLog.Info().
		Int("sales_records", len(dataset.SalesRecords)).
		Int("payroll_records", len(dataset.PayrollRecords)).
		Msg("período agregado")

	verdict := r.validator.Validate(dataset)
	if !verdict.Passed && !opts.Override {
		runLog.Warn().
			Str("ratio", verdict.Ratio.String()).
			Str("threshold", verdict.Threshold.String()).
			Msg("regra de variação reprovada; execução interrompida")
		return &RunResult{Outcome: OutcomeVarianceFailed, Verdict: verdict}, nil
	}

	doc, err := r.builder.Build(dataset, company, verdict, infrasaft.BuildOptions{
		Override:       opts.Override,
		OverrideReason: opts.OverrideReason,
	})
	if err != nil {
		return nil, err
	}

	sealed, err := r.sealer.Seal(doc)
	if err != nil {
		return nil, err
	}

	// Tokens de validação para documentos ainda sem um; emissão única por documento.
	for i := range dataset.SalesRecords {
		if _, err := r.tokens.EnsureIssued(ctx, company, &dataset.SalesRecords[i]); err != nil {
			return nil, fmt.Errorf("emitir tokens do período %s: %w", period, err)
		}
	}

	ref, err := r.archiveExport(ctx, sealed, opts)
	if err != nil {
		return nil, err
	}
	sealed.Generation = ref.Generation
	sealed.ArchivedAt = ref.ArchivedAt
	runLog.Info().
		Str("export_id", sealed.ID).
		Int("generation", ref.Generation).
		Str("checksum", sealed.Checksum).
		Msg("export selado e arquivado")

	result := &RunResult{Verdict: verdict, Export: sealed, ArchiveRef: ref}

	if !company.AutoSubmit {
		result.Outcome = OutcomeSucceeded
		runLog.Info().Msg("envio automático desativado; export aguarda envio manual")
		return result, nil
	}

	rec, err := r.transmitter.Transmit(ctx, sealed, company)
	if err != nil && !errors.Is(err, domain.ErrSchemaInvalid) {
		result.Transmission = rec
		result.Outcome = OutcomeTransmissionPending
		return result, err
	}
	result.Transmission = rec
	result.Outcome = outcomeFromTransmission(rec)
	return result, nil
}

// Resubmit reenvia um export já arquivado pelo seu ID.
func (r *Runner) Resubmit(ctx context.Context, exportID string) (*RunResult, error) {
	export, err := r.archive.GetByID(ctx, exportID)
	if err != nil {
		return nil, err
	}
	company, err := r.companies.GetByID(ctx, export.CompanyID)
	if err != nil {
		return nil, err
	}

	rec, err := r.transmitter.Resubmit(ctx, export, company)
	if err != nil && !errors.Is(err, domain.ErrSchemaInvalid) {
		return nil, err
	}
	return &RunResult{
		Outcome:      outcomeFromTransmission(rec),
		Export:       export,
		Transmission: rec,
	}, nil
}

func (r *Runner) archiveExport(ctx context.Context, sealed *entity.ExportDocument, opts RunOptions) (*entity.ArchiveRef, error) {
	if opts.Supersede {
		return r.archive.Supersede(ctx, sealed)
	}
	ref, err := r.archive.Store(ctx, sealed)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePeriod) {
			return nil, fmt.Errorf("período já arquivado; use supersede para emitir nova geração: %w", err)
		}
		return nil, err
	}
	return ref, nil
}

func outcomeFromTransmission(rec *entity.TransmissionRecord) Outcome {
	if rec == nil {
		return OutcomeTransmissionPending
	}
	switch rec.Status {
	case entity.TransmissionAccepted:
		return OutcomeSucceeded
	case entity.TransmissionRejected:
		return OutcomeSchemaRejected
	case entity.TransmissionFailed:
		return OutcomeTransmissionFailed
	default:
		return OutcomeTransmissionPending
	}
}
