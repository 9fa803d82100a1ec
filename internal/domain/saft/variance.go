// Package saft: regras de domínio do ficheiro SAF-T de Moçambique.
// A regra de variação exige que a folha de pagamento e as vendas declaradas
// de um período não difiram mais do que um limiar configurado (3% por defeito).
package saft

import (
	"github.com/shopspring/decimal"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// DefaultVarianceThreshold é o limiar legal por defeito (3%).
var DefaultVarianceThreshold = decimal.NewFromFloat(0.03)

// ratioScale é a escala do rácio na comparação final. O arredondamento
// (half-even) aplica-se uma única vez, aqui; as somas intermédias nunca
// são arredondadas, para evitar oscilações na fronteira do limiar.
const ratioScale = 4

// VarianceValidator avalia a regra de variação folha/vendas.
// Função pura: o mesmo dataset produz sempre o mesmo veredicto.
type VarianceValidator struct {
	threshold decimal.Decimal
}

// NewVarianceValidator cria o validador. threshold <= 0 assume o valor por defeito.
func NewVarianceValidator(threshold decimal.Decimal) *VarianceValidator {
	if threshold.LessThanOrEqual(decimal.Zero) {
		threshold = DefaultVarianceThreshold
	}
	return &VarianceValidator{threshold: threshold}
}

// Validate calcula salesTotal = Σ NetAmount, payrollTotal = Σ GrossAmount e
// ratio = |payrollTotal − salesTotal| / salesTotal, arredondado half-even na
// comparação final.
//
// Guarda de denominador zero: com vendas a zero e folha diferente de zero o
// veredicto é automaticamente reprovado; com ambos a zero, aprovado.
func (v *VarianceValidator) Validate(dataset *entity.PeriodDataset) entity.VarianceVerdict {
	salesTotal := dataset.SalesTotal()
	payrollTotal := dataset.PayrollTotal()

	verdict := entity.VarianceVerdict{
		Period:       dataset.Period,
		SalesTotal:   salesTotal,
		PayrollTotal: payrollTotal,
		Threshold:    v.threshold,
	}

	if salesTotal.IsZero() {
		verdict.Ratio = decimal.Zero
		verdict.Passed = payrollTotal.IsZero()
		return verdict
	}

	ratio := payrollTotal.Sub(salesTotal).Abs().Div(salesTotal).RoundBank(ratioScale)
	verdict.Ratio = ratio
	verdict.Passed = ratio.LessThanOrEqual(v.threshold)
	return verdict
}

// Threshold devolve o limiar configurado.
func (v *VarianceValidator) Threshold() decimal.Decimal {
	return v.threshold
}
