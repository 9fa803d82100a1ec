// Package compliance orquestra o ciclo mensal do ficheiro SAF-T:
// agregação, validação de variação, construção, selo, arquivo e envio à AT.
package compliance

import (
	"context"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// SalesLedger é o porto de leitura do livro de vendas.
// Devolve apenas documentos lançados (posted) do período pedido.
type SalesLedger interface {
	FetchSales(ctx context.Context, companyID string, period entity.Period) ([]entity.SalesRecord, error)
}

// PayrollLedger é o porto de leitura do processamento salarial.
// Devolve apenas folhas lançadas (posted) do período pedido.
type PayrollLedger interface {
	FetchPayroll(ctx context.Context, companyID string, period entity.Period) ([]entity.PayrollRecord, error)
}

// PeriodCalendar responde se o período contabilístico já está encerrado.
// Um período aberto nunca é agregado.
type PeriodCalendar interface {
	IsClosed(ctx context.Context, companyID string, period entity.Period) (bool, error)
}

// RunLock serializa execuções concorrentes por (empresa, período).
// Acquire devolve ok=false sem bloquear quando outra execução detém o lock.
type RunLock interface {
	Acquire(ctx context.Context, companyID string, period entity.Period) (release func(), ok bool, err error)
}
