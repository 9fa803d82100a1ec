package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// Garante que CompanyRepo implementa repository.CompanyRepository.
var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo lê dados mestres de empresas sobre PostgreSQL.
type CompanyRepo struct {
	pool *pgxpool.Pool
}

// NewCompanyRepository constrói o adaptador de empresas.
func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepo {
	return &CompanyRepo{pool: pool}
}

// GetByID devolve a empresa pelo ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	var c entity.Company
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, nuit, address, currency, auto_submit, created_at, updated_at
		FROM companies WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Name, &c.NUIT, &c.Address, &c.Currency, &c.AutoSubmit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("empresa %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get company: %w", err)
	}
	return &c, nil
}
