package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// Garante que TransmissionRepo implementa repository.TransmissionRepository.
var _ repository.TransmissionRepository = (*TransmissionRepo)(nil)

// TransmissionRepo guarda o histórico append-only de envios à AT.
// Não expõe UPDATE nem DELETE; cada tentativa é uma linha nova.
type TransmissionRepo struct {
	pool *pgxpool.Pool
}

// NewTransmissionRepository constrói o adaptador de histórico de envios.
func NewTransmissionRepository(pool *pgxpool.Pool) *TransmissionRepo {
	return &TransmissionRepo{pool: pool}
}

// Append regista uma nova tentativa de envio.
func (r *TransmissionRepo) Append(ctx context.Context, rec *entity.TransmissionRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO transmission_records (id, export_id, attempt_number, sent_at, status, authority_reference, error_detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.ExportID, rec.AttemptNumber, rec.SentAt, rec.Status, rec.AuthorityReference, rec.ErrorDetail,
	)
	if err != nil {
		return fmt.Errorf("insert transmission: %w", err)
	}
	return nil
}

// ListByExport devolve todas as tentativas de um export, por AttemptNumber ascendente.
func (r *TransmissionRepo) ListByExport(ctx context.Context, exportID string) ([]entity.TransmissionRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, export_id, attempt_number, sent_at, status, authority_reference, error_detail
		FROM transmission_records
		WHERE export_id = $1
		ORDER BY attempt_number ASC`,
		exportID,
	)
	if err != nil {
		return nil, fmt.Errorf("list transmissions: %w", err)
	}
	defer rows.Close()

	var records []entity.TransmissionRecord
	for rows.Next() {
		var rec entity.TransmissionRecord
		if err := rows.Scan(&rec.ID, &rec.ExportID, &rec.AttemptNumber, &rec.SentAt, &rec.Status, &rec.AuthorityReference, &rec.ErrorDetail); err != nil {
			return nil, fmt.Errorf("scan transmission: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LatestByExport devolve a tentativa mais recente, ou nil se não houver nenhuma.
func (r *TransmissionRepo) LatestByExport(ctx context.Context, exportID string) (*entity.TransmissionRecord, error) {
	var rec entity.TransmissionRecord
	err := r.pool.QueryRow(ctx, `
		SELECT id, export_id, attempt_number, sent_at, status, authority_reference, error_detail
		FROM transmission_records
		WHERE export_id = $1
		ORDER BY attempt_number DESC
		LIMIT 1`,
		exportID,
	).Scan(&rec.ID, &rec.ExportID, &rec.AttemptNumber, &rec.SentAt, &rec.Status, &rec.AuthorityReference, &rec.ErrorDetail)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest transmission: %w", err)
	}
	return &rec, nil
}
