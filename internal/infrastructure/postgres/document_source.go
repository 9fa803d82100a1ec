package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/application/verification"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Garante que DocumentSource implementa o porto de leitura de documentos.
var _ verification.DocumentSource = (*DocumentSource)(nil)

// DocumentSource lê os valores atuais de um documento fiscal para verificação.
type DocumentSource struct {
	pool *pgxpool.Pool
}

// NewDocumentSource constrói o leitor de documentos fiscais.
func NewDocumentSource(pool *pgxpool.Pool) *DocumentSource {
	return &DocumentSource{pool: pool}
}

// GetDocument devolve o documento e o ID da empresa emitente,
// ou nil quando o documento não existe.
func (s *DocumentSource) GetDocument(ctx context.Context, documentID string) (*entity.SalesRecord, string, error) {
	var r entity.SalesRecord
	var companyID string
	err := s.pool.QueryRow(ctx, `
		SELECT document_id, document_type, issue_date, net_amount, tax_amount, currency,
		       COALESCE(counterpart_tax_id, ''), COALESCE(counterpart_name, ''), company_id
		FROM sales_documents
		WHERE document_id = $1`,
		documentID,
	).Scan(&r.DocumentID, &r.DocumentType, &r.IssueDate, &r.NetAmount, &r.TaxAmount, &r.Currency, &r.CounterpartTaxID, &r.CounterpartName, &companyID)
	if err != nil {
		if isNoRows(err) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get documento: %w", err)
	}
	return &r, companyID, nil
}
