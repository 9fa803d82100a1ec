package compliance

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
	"github.com/bboa3/mz-compliance/internal/infrastructure/at"
	"github.com/bboa3/mz-compliance/internal/infrastructure/saft"
	"github.com/bboa3/mz-compliance/pkg/logger"
	"github.com/bboa3/mz-compliance/pkg/retry"
)

// Transmitter conduz o envio de um export selado à AT.
//
// Cada tentativa de rede fica registada como TransmissionRecord (append-only).
// Erros transitórios são repetidos segundo a política de retry; respostas
// definitivas da AT (aceite ou recusa) encerram o ciclo. Esgotado o orçamento
// de tentativas, o export fica Failed e o reenvio passa a ser manual.
type Transmitter struct {
	submitter at.Submitter
	validator *saft.SchemaValidatorService
	transRepo repository.TransmissionRepository
	policy    retry.Policy
	log       *logger.Logger

	// sleep é substituível em tests para não esperar backoffs reais.
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// NewTransmitter constrói o transmissor.
func NewTransmitter(
	submitter at.Submitter,
	validator *saft.SchemaValidatorService,
	transRepo repository.TransmissionRepository,
	policy retry.Policy,
	log *logger.Logger,
) *Transmitter {
	return &Transmitter{
		submitter: submitter,
		validator: validator,
		transRepo: transRepo,
		policy:    policy,
		log:       log,
		sleep:     sleepCtx,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Transmit envia o export à AT, validando primeiro o esquema localmente.
// Um ficheiro não conforme é marcado Rejected sem nunca ser enviado.
// Devolve o registo terminal (ou o último Pending com o contexto cancelado).
func (t *Transmitter) Transmit(ctx context.Context, export *entity.ExportDocument, company *entity.Company) (*entity.TransmissionRecord, error) {
	if !export.Sealed() {
		return nil, domain.ErrNotSealed
	}

	// Idempotência: um export já aceite não volta à rede.
	latest, err := t.transRepo.LatestByExport(ctx, export.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.Status == entity.TransmissionAccepted {
		return latest, nil
	}

	if err := t.validator.Validate(export.XML); err != nil {
		rec := t.newRecord(export.ID, t.nextAttempt(latest), entity.TransmissionRejected, "", err.Error())
		if appendErr := t.transRepo.Append(ctx, rec); appendErr != nil {
			return nil, appendErr
		}
		t.log.Warn().Str("export_id", export.ID).Err(err).Msg("export recusado na validação local de esquema")
		return rec, fmt.Errorf("export %s: %w", export.ID, domain.ErrSchemaInvalid)
	}

	requestID := at.RequestID(export)
	attempt := t.nextAttempt(latest)

	for budget := 1; budget <= t.policy.MaxAttempts; budget++ {
		result, submitErr := t.submitter.Submit(ctx, export, company, requestID)

		switch {
		case submitErr == nil && result.Accepted:
			rec := t.newRecord(export.ID, attempt, entity.TransmissionAccepted, result.AuthorityReference, result.Errors)
			if err := t.transRepo.Append(ctx, rec); err != nil {
				return nil, err
			}
			t.log.Info().
				Str("export_id", export.ID).
				Str("authority_reference", result.AuthorityReference).
				Int("attempt", attempt).
				Msg("export aceite pela AT")
			return rec, nil

		case submitErr == nil && result.Rejected:
			rec := t.newRecord(export.ID, attempt, entity.TransmissionRejected, result.AuthorityReference, result.Errors)
			if err := t.transRepo.Append(ctx, rec); err != nil {
				return nil, err
			}
			t.log.Warn().
				Str("export_id", export.ID).
				Str("errors", result.Errors).
				Msg("export recusado pela AT; requer correção manual")
			return rec, nil

		default:
			detail := "resposta indefinida da AT"
			if submitErr != nil {
				detail = submitErr.Error()
			}
			exhausted := budget == t.policy.MaxAttempts || ctx.Err() != nil
			status := entity.TransmissionPending
			if exhausted {
				status = entity.TransmissionFailed
			}
			rec := t.newRecord(export.ID, attempt, status, "", detail)
			if err := t.transRepo.Append(ctx, rec); err != nil {
				return nil, err
			}
			if exhausted {
				// Alerta para o operador: o período continua por entregar.
				t.log.Error().
					Str("export_id", export.ID).
					Int("attempts", budget).
					Str("last_error", detail).
					Msg("envio à AT esgotou as tentativas; reenvio manual necessário")
				if ctx.Err() != nil {
					return rec, ctx.Err()
				}
				return rec, nil
			}
			t.log.Warn().
				Str("export_id", export.ID).
				Int("attempt", attempt).
				Str("error", detail).
				Msg("falha transitória no envio à AT; nova tentativa agendada")

			if err := t.sleep(ctx, t.policy.DelayWithJitter(budget, t.rng)); err != nil {
				return rec, err
			}
			attempt++
		}
	}
	return nil, errors.New("compliance: loop de envio terminou sem registo terminal")
}

// Resubmit reenvia um export já arquivado. No-op sobre exports aceites.
func (t *Transmitter) Resubmit(ctx context.Context, export *entity.ExportDocument, company *entity.Company) (*entity.TransmissionRecord, error) {
	return t.Transmit(ctx, export, company)
}

func (t *Transmitter) nextAttempt(latest *entity.TransmissionRecord) int {
	if latest == nil {
		return 1
	}
	return latest.AttemptNumber + 1
}

func (t *Transmitter) newRecord(exportID string, attempt int, status, reference, detail string) *entity.TransmissionRecord {
	return &entity.TransmissionRecord{
		ID:                 uuid.New().String(),
		ExportID:           exportID,
		AttemptNumber:      attempt,
		SentAt:             time.Now().UTC(),
		Status:             status,
		AuthorityReference: reference,
		ErrorDetail:        detail,
	}
}
