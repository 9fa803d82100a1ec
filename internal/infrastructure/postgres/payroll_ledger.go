package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Garante que PayrollLedger implementa o porto de leitura da folha.
var _ compliance.PayrollLedger = (*PayrollLedger)(nil)

// PayrollLedger lê o processamento salarial lançado de um período.
type PayrollLedger struct {
	pool *pgxpool.Pool
}

// NewPayrollLedger constrói o leitor da folha de pagamento.
func NewPayrollLedger(pool *pgxpool.Pool) *PayrollLedger {
	return &PayrollLedger{pool: pool}
}

// FetchPayroll devolve a folha lançada do período, ordenada por employee_ref.
// Os benefícios em espécie vêm agregados por trabalhador.
func (l *PayrollLedger) FetchPayroll(ctx context.Context, companyID string, period entity.Period) ([]entity.PayrollRecord, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT p.employee_ref, p.employee_name, p.gross_amount,
		       p.employer_contribution, p.employee_contribution,
		       COALESCE(SUM(b.amount), 0)
		FROM payroll_entries p
		LEFT JOIN benefits_in_kind b
		       ON b.company_id = p.company_id AND b.employee_ref = p.employee_ref AND b.period = p.period
		WHERE p.company_id = $1
		  AND p.period = $2
		  AND p.status = 'POSTED'
		GROUP BY p.employee_ref, p.employee_name, p.gross_amount, p.employer_contribution, p.employee_contribution
		ORDER BY p.employee_ref ASC`,
		companyID, period.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("folha de pagamento: %v: %w", err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	records := []entity.PayrollRecord{}
	for rows.Next() {
		r := entity.PayrollRecord{Period: period}
		if err := rows.Scan(&r.EmployeeRef, &r.EmployeeName, &r.GrossAmount, &r.EmployerContribution, &r.EmployeeContribution, &r.BenefitsInKindAmount); err != nil {
			return nil, fmt.Errorf("scan folha: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("folha de pagamento: %v: %w", err, domain.ErrSourceUnavailable)
	}
	return records, nil
}
