package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Garante que PeriodCalendar implementa o porto do calendário fiscal.
var _ compliance.PeriodCalendar = (*PeriodCalendar)(nil)

// PeriodCalendar consulta o estado de encerramento dos períodos contabilísticos.
type PeriodCalendar struct {
	pool *pgxpool.Pool
}

// NewPeriodCalendar constrói o adaptador do calendário fiscal.
func NewPeriodCalendar(pool *pgxpool.Pool) *PeriodCalendar {
	return &PeriodCalendar{pool: pool}
}

// IsClosed devolve true se o período contabilístico estiver encerrado.
// Período sem registo no calendário conta como aberto.
func (c *PeriodCalendar) IsClosed(ctx context.Context, companyID string, period entity.Period) (bool, error) {
	var closed bool
	err := c.pool.QueryRow(ctx, `
		SELECT closed FROM fiscal_periods
		WHERE company_id = $1 AND period = $2`,
		companyID, period.String(),
	).Scan(&closed)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("calendário fiscal: %v: %w", err, domain.ErrSourceUnavailable)
	}
	return closed, nil
}
