package compliance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Aggregator monta o PeriodDataset de um período fechado a partir dos razões.
//
// As leituras de vendas e folha correm em paralelo com cancelamento partilhado;
// qualquer falha aborta a agregação inteira. O dataset devolvido é uma cópia
// exclusiva da execução: ordenado em memória (vendas por issue_date e
// document_id, folha por employee_ref) independentemente da ordem de chegada,
// para que o resto do pipeline seja determinístico.
type Aggregator struct {
	sales    SalesLedger
	payroll  PayrollLedger
	calendar PeriodCalendar
}

// NewAggregator constrói o agregador com os portos de leitura.
func NewAggregator(sales SalesLedger, payroll PayrollLedger, calendar PeriodCalendar) *Aggregator {
	return &Aggregator{sales: sales, payroll: payroll, calendar: calendar}
}

// Aggregate lê e consolida os dados do período.
// Recusa com domain.ErrPeriodNotClosed se o período ainda estiver aberto;
// falhas de leitura propagam domain.ErrSourceUnavailable sem dataset parcial.
func (a *Aggregator) Aggregate(ctx context.Context, companyID string, period entity.Period) (*entity.PeriodDataset, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("período %s: %w", period, domain.ErrInvalidInput)
	}

	closed, err := a.calendar.IsClosed(ctx, companyID, period)
	if err != nil {
		return nil, err
	}
	if !closed {
		return nil, fmt.Errorf("período %s: %w", period, domain.ErrPeriodNotClosed)
	}

	var salesRecords []entity.SalesRecord
	var payrollRecords []entity.PayrollRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		salesRecords, err = a.sales.FetchSales(gctx, companyID, period)
		return err
	})
	g.Go(func() error {
		var err error
		payrollRecords, err = a.payroll.FetchPayroll(gctx, companyID, period)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if salesRecords == nil {
		salesRecords = []entity.SalesRecord{}
	}
	if payrollRecords == nil {
		payrollRecords = []entity.PayrollRecord{}
	}

	// Ordem canónica própria; nunca confiar na ordem devolvida pela fonte.
	sort.SliceStable(salesRecords, func(i, j int) bool {
		if !salesRecords[i].IssueDate.Equal(salesRecords[j].IssueDate) {
			return salesRecords[i].IssueDate.Before(salesRecords[j].IssueDate)
		}
		return salesRecords[i].DocumentID < salesRecords[j].DocumentID
	})
	sort.SliceStable(payrollRecords, func(i, j int) bool {
		return payrollRecords[i].EmployeeRef < payrollRecords[j].EmployeeRef
	})

	return &entity.PeriodDataset{
		CompanyID:      companyID,
		Period:         period,
		SalesRecords:   salesRecords,
		PayrollRecords: payrollRecords,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
