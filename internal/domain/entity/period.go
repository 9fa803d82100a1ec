package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Period identifica um mês fiscal fechado (ano + mês).
type Period struct {
	Year  int
	Month time.Month
}

// String devolve o identificador canónico do período, ex: "2025-07".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// ParsePeriod lê o identificador canónico "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Period{}, fmt.Errorf("período inválido %q: %w", s, err)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Bounds devolve o primeiro e o último dia do mês.
func (p Period) Bounds() (start, end time.Time) {
	start = time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, -1)
	return start, end
}

// Valid verifica limites básicos de ano e mês.
func (p Period) Valid() bool {
	return p.Year >= 2000 && p.Year <= 2999 && p.Month >= time.January && p.Month <= time.December
}

// SalesRecord é uma venda lançada (posted) tal como lida do razão.
// Montantes em decimal fixo; nunca float64.
type SalesRecord struct {
	DocumentID        string
	DocumentType      string // FT, FR, NC, ND
	IssueDate         time.Time
	NetAmount         decimal.Decimal
	TaxAmount         decimal.Decimal
	Currency          string
	CounterpartTaxID  string // NUIT do adquirente; vazio para consumidor final
	CounterpartName   string
}

// PayrollRecord é um lançamento de folha de pagamento para o período.
// Contribuições INSS: 4% entidade empregadora, 3% trabalhador.
type PayrollRecord struct {
	EmployeeRef          string
	EmployeeName         string
	Period               Period
	GrossAmount          decimal.Decimal
	EmployerContribution decimal.Decimal
	EmployeeContribution decimal.Decimal
	BenefitsInKindAmount decimal.Decimal
}

// PeriodDataset é o conjunto imutável de dados de um período fechado,
// pertencente em exclusivo à execução do pipeline que o criou.
// As sequências nunca são nil (podem ser vazias) e chegam ordenadas:
// vendas por (IssueDate, DocumentID), folha por EmployeeRef.
type PeriodDataset struct {
	CompanyID      string
	Period         Period
	SalesRecords   []SalesRecord
	PayrollRecords []PayrollRecord
	GeneratedAt    time.Time
}

// SalesTotal soma os valores líquidos de todas as vendas do período.
func (d *PeriodDataset) SalesTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.SalesRecords {
		total = total.Add(r.NetAmount)
	}
	return total
}

// PayrollTotal soma os valores brutos de toda a folha do período.
func (d *PeriodDataset) PayrollTotal() decimal.Decimal {
	total := decimal.Zero
	for _, r := range d.PayrollRecords {
		total = total.Add(r.GrossAmount)
	}
	return total
}
