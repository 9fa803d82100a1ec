package entity

import "github.com/shopspring/decimal"

// VarianceVerdict é o resultado da regra de variação folha/vendas de um período.
// Transiente: recalculado em cada execução a partir dos razões, nunca persistido
// como fonte de verdade.
type VarianceVerdict struct {
	Period       Period
	SalesTotal   decimal.Decimal
	PayrollTotal decimal.Decimal
	Ratio        decimal.Decimal
	Threshold    decimal.Decimal
	Passed       bool
}
