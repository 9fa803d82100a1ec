package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// Garante que ArchiveRepo implementa repository.ArchiveRepository.
var _ repository.ArchiveRepository = (*ArchiveRepo)(nil)

// ArchiveRepo é o arquivo imutável de exports selados sobre PostgreSQL.
// A constraint única (company_id, period, generation) sustenta a semântica
// write-once; gerações nunca são reescritas.
type ArchiveRepo struct {
	pool           *pgxpool.Pool
	retentionYears int
}

// NewArchiveRepository constrói o adaptador do arquivo.
func NewArchiveRepository(pool *pgxpool.Pool, retentionYears int) *ArchiveRepo {
	return &ArchiveRepo{pool: pool, retentionYears: retentionYears}
}

const archiveColumns = `
	id, company_id, period, schema_version, generation, xml,
	sales_total, payroll_total, variance_ratio, variance_override, override_reason,
	checksum, generated_at, archived_at`

// Store persiste um export selado como geração 1.
// Falha fechado: com um export já arquivado para (empresa, período) devolve
// domain.ErrDuplicatePeriod sem escrever nada.
func (r *ArchiveRepo) Store(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error) {
	return r.insert(ctx, doc, 1)
}

// Supersede persiste uma nova geração para um período já arquivado.
// As gerações anteriores permanecem recuperáveis.
func (r *ArchiveRepo) Supersede(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin supersede: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(generation), 0) FROM saft_exports WHERE company_id = $1 AND period = $2 FOR UPDATE`,
		doc.CompanyID, doc.Period.String(),
	).Scan(&current)
	if err != nil {
		return nil, fmt.Errorf("ler geração corrente: %w", err)
	}
	if current == 0 {
		return nil, fmt.Errorf("supersede sem geração anterior para %s: %w", doc.Period, domain.ErrNotFound)
	}

	ref, err := r.insertTx(ctx, tx, doc, current+1)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit supersede: %w", err)
	}
	return ref, nil
}

func (r *ArchiveRepo) insert(ctx context.Context, doc *entity.ExportDocument, generation int) (*entity.ArchiveRef, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin store: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ref, err := r.insertTx(ctx, tx, doc, generation)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit store: %w", err)
	}
	return ref, nil
}

func (r *ArchiveRepo) insertTx(ctx context.Context, tx pgx.Tx, doc *entity.ExportDocument, generation int) (*entity.ArchiveRef, error) {
	if !doc.Sealed() {
		return nil, domain.ErrNotSealed
	}

	archivedAt := time.Now().UTC()
	_, err := tx.Exec(ctx, `
		INSERT INTO saft_exports (`+archiveColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		doc.ID, doc.CompanyID, doc.Period.String(), doc.SchemaVersion, generation, doc.XML,
		doc.SalesTotal, doc.PayrollTotal, doc.VarianceRatio, doc.VarianceOverride, doc.OverrideReason,
		doc.Checksum, doc.GeneratedAt, archivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrDuplicatePeriod
		}
		return nil, fmt.Errorf("insert export: %w", err)
	}

	return &entity.ArchiveRef{
		ExportID:   doc.ID,
		CompanyID:  doc.CompanyID,
		Period:     doc.Period,
		Generation: generation,
		ArchivedAt: archivedAt,
	}, nil
}

// Retrieve devolve a geração mais recente para (empresa, período).
func (r *ArchiveRepo) Retrieve(ctx context.Context, companyID string, period entity.Period) (*entity.ExportDocument, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+archiveColumns+`
		FROM saft_exports
		WHERE company_id = $1 AND period = $2
		ORDER BY generation DESC
		LIMIT 1`,
		companyID, period.String(),
	)
	return scanExport(row)
}

// RetrieveGeneration devolve uma geração específica.
func (r *ArchiveRepo) RetrieveGeneration(ctx context.Context, companyID string, period entity.Period, generation int) (*entity.ExportDocument, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+archiveColumns+`
		FROM saft_exports
		WHERE company_id = $1 AND period = $2 AND generation = $3`,
		companyID, period.String(), generation,
	)
	return scanExport(row)
}

// GetByID devolve um export arquivado pelo seu ID.
func (r *ArchiveRepo) GetByID(ctx context.Context, exportID string) (*entity.ExportDocument, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+archiveColumns+`
		FROM saft_exports
		WHERE id = $1`,
		exportID,
	)
	return scanExport(row)
}

// Delete remove um export cujo horizonte legal de retenção já decorreu.
// Enquanto a retenção estiver em vigor devolve domain.ErrRetentionActive.
func (r *ArchiveRepo) Delete(ctx context.Context, exportID string) error {
	doc, err := r.GetByID(ctx, exportID)
	if err != nil {
		return err
	}
	if horizon, active := retentionActive(doc.ArchivedAt, r.retentionYears, time.Now().UTC()); active {
		return fmt.Errorf("export %s retido até %s: %w", exportID, horizon.Format("2006-01-02"), domain.ErrRetentionActive)
	}
	if _, err := r.pool.Exec(ctx, `DELETE FROM saft_exports WHERE id = $1`, exportID); err != nil {
		return fmt.Errorf("delete export: %w", err)
	}
	return nil
}

// retentionActive calcula o horizonte legal de retenção de um export e se
// ainda está em vigor no instante now.
func retentionActive(archivedAt time.Time, years int, now time.Time) (horizon time.Time, active bool) {
	horizon = archivedAt.AddDate(years, 0, 0)
	return horizon, now.Before(horizon)
}

func scanExport(row pgx.Row) (*entity.ExportDocument, error) {
	var d entity.ExportDocument
	var periodStr string
	err := row.Scan(
		&d.ID, &d.CompanyID, &periodStr, &d.SchemaVersion, &d.Generation, &d.XML,
		&d.SalesTotal, &d.PayrollTotal, &d.VarianceRatio, &d.VarianceOverride, &d.OverrideReason,
		&d.Checksum, &d.GeneratedAt, &d.ArchivedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan export: %w", err)
	}
	period, err := entity.ParsePeriod(periodStr)
	if err != nil {
		return nil, err
	}
	d.Period = period
	return &d, nil
}
