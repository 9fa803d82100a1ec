package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Garante que SalesLedger implementa o porto de leitura de vendas.
var _ compliance.SalesLedger = (*SalesLedger)(nil)

// SalesLedger lê o livro de vendas lançado (posted) de um período.
// Rascunhos e documentos cancelados nunca entram no export.
type SalesLedger struct {
	pool *pgxpool.Pool
}

// NewSalesLedger constrói o leitor do livro de vendas.
func NewSalesLedger(pool *pgxpool.Pool) *SalesLedger {
	return &SalesLedger{pool: pool}
}

// FetchSales devolve as vendas lançadas do período, ordenadas por
// (issue_date, document_id) para agregação determinística.
func (l *SalesLedger) FetchSales(ctx context.Context, companyID string, period entity.Period) ([]entity.SalesRecord, error) {
	start, end := period.Bounds()
	rows, err := l.pool.Query(ctx, `
		SELECT document_id, document_type, issue_date, net_amount, tax_amount, currency,
		       COALESCE(counterpart_tax_id, ''), COALESCE(counterpart_name, '')
		FROM sales_documents
		WHERE company_id = $1
		  AND issue_date >= $2 AND issue_date <= $3
		  AND status = 'POSTED'
		ORDER BY issue_date ASC, document_id ASC`,
		companyID, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("livro de vendas: %v: %w", err, domain.ErrSourceUnavailable)
	}
	defer rows.Close()

	records := []entity.SalesRecord{}
	for rows.Next() {
		var r entity.SalesRecord
		if err := rows.Scan(&r.DocumentID, &r.DocumentType, &r.IssueDate, &r.NetAmount, &r.TaxAmount, &r.Currency, &r.CounterpartTaxID, &r.CounterpartName); err != nil {
			return nil, fmt.Errorf("scan venda: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("livro de vendas: %v: %w", err, domain.ErrSourceUnavailable)
	}
	return records, nil
}
