package saft_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/saft"
)

// buildDataset cria um dataset mínimo com os totais pedidos, repartidos por
// dois registos de cada lado para garantir que a soma é exercitada.
func buildDataset(salesTotal, payrollTotal float64) *entity.PeriodDataset {
	period := entity.Period{Year: 2025, Month: time.July}
	half := decimal.NewFromFloat(salesTotal).Div(decimal.NewFromInt(2))
	sales := []entity.SalesRecord{}
	if salesTotal != 0 {
		sales = []entity.SalesRecord{
			{DocumentID: "FT-001", NetAmount: half},
			{DocumentID: "FT-002", NetAmount: decimal.NewFromFloat(salesTotal).Sub(half)},
		}
	}
	payroll := []entity.PayrollRecord{}
	if payrollTotal != 0 {
		payroll = []entity.PayrollRecord{
			{EmployeeRef: "EMP-001", GrossAmount: decimal.NewFromFloat(payrollTotal)},
		}
	}
	return &entity.PeriodDataset{
		CompanyID:      "company-1",
		Period:         period,
		SalesRecords:   sales,
		PayrollRecords: payroll,
	}
}

// Vendas 100.000 e folha 103.500 → rácio 0,035 > 0,03 → reprovado.
func TestVariance_AcimaDoLimiar_Reprova(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	verdict := v.Validate(buildDataset(100_000, 103_500))

	assert.False(t, verdict.Passed)
	assert.True(t, verdict.Ratio.Equal(decimal.NewFromFloat(0.035)),
		"rácio esperado 0.035, obtido %s", verdict.Ratio)
}

// Vendas 100.000 e folha 102.000 → rácio 0,02 ≤ 0,03 → aprovado.
func TestVariance_DentroDoLimiar_Aprova(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	verdict := v.Validate(buildDataset(100_000, 102_000))

	assert.True(t, verdict.Passed)
	assert.True(t, verdict.Ratio.Equal(decimal.NewFromFloat(0.02)))
}

// Exatamente no limiar (rácio 0,03) conta como aprovado.
func TestVariance_NoLimiarExato_Aprova(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	verdict := v.Validate(buildDataset(100_000, 103_000))

	assert.True(t, verdict.Passed)
	assert.True(t, verdict.Ratio.Equal(decimal.NewFromFloat(0.03)))
}

// Vendas a zero com folha diferente de zero → reprovado (guarda do denominador).
func TestVariance_VendasZeroFolhaNaoZero_Reprova(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	verdict := v.Validate(buildDataset(0, 500))

	assert.False(t, verdict.Passed)
	assert.True(t, verdict.Ratio.IsZero())
}

// Período sem movimento nenhum (ambos a zero) → aprovado.
func TestVariance_TudoZero_Aprova(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	verdict := v.Validate(buildDataset(0, 0))

	assert.True(t, verdict.Passed)
}

// O mesmo dataset produz sempre o mesmo veredicto (determinismo).
func TestVariance_Determinista(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)
	ds := buildDataset(250_000.37, 243_110.12)

	v1 := v.Validate(ds)
	v2 := v.Validate(ds)

	assert.True(t, v1.Ratio.Equal(v2.Ratio))
	assert.Equal(t, v1.Passed, v2.Passed)
}

// O arredondamento do rácio é half-even, aplicado só na comparação final:
// 0.03005 arredonda para 0.0300 (dígito anterior par) e aprova;
// 0.03015 arredonda para 0.0302 e reprova.
func TestVariance_ArredondamentoHalfEven(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.Zero)

	aprovado := v.Validate(buildDataset(100_000, 103_005))
	assert.True(t, aprovado.Passed, "0.03005 deve arredondar para 0.0300")
	assert.True(t, aprovado.Ratio.Equal(decimal.RequireFromString("0.03")))

	reprovado := v.Validate(buildDataset(100_000, 103_015))
	assert.False(t, reprovado.Passed, "0.03015 deve arredondar para 0.0302")
	assert.True(t, reprovado.Ratio.Equal(decimal.RequireFromString("0.0302")))
}

// Limiar configurável: com limiar 0,05 o rácio 0,035 passa.
func TestVariance_LimiarConfiguravel(t *testing.T) {
	v := saft.NewVarianceValidator(decimal.NewFromFloat(0.05))
	verdict := v.Validate(buildDataset(100_000, 103_500))

	assert.True(t, verdict.Passed)
}
