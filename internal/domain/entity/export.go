package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchemaVersionCurrent é a versão do esquema SAF-T MZ emitido por esta aplicação.
// Versões anteriores continuam legíveis no arquivo; nunca reescrevemos ficheiros antigos.
const SchemaVersionCurrent = "1.0"

// ExportDocument é o ficheiro SAF-T construído para um (empresa, período).
// Checksum fica vazio até o documento ser selado pelo Sealer; depois de selado
// o documento é imutável; qualquer correção produz uma nova geração.
type ExportDocument struct {
	ID            string
	CompanyID     string
	Period        Period
	SchemaVersion string
	Generation    int // 1 na primeira emissão; incrementa em cada supersede

	XML []byte // serialização canónica (UTF-8, NFC, ordem fixa de elementos)

	SalesTotal       decimal.Decimal
	PayrollTotal     decimal.Decimal
	VarianceRatio    decimal.Decimal
	VarianceOverride bool   // true se a regra de variação foi ultrapassada com override auditado
	OverrideReason   string // obrigatório quando VarianceOverride é true

	Checksum    string // SHA-256 hex do XML canonicalizado; vazio até selar
	GeneratedAt time.Time
	ArchivedAt  time.Time // zero até persistir no arquivo
}

// Sealed indica se o documento já tem checksum atribuído.
func (d *ExportDocument) Sealed() bool {
	return d.Checksum != ""
}

// ArchiveRef referencia um export persistido no arquivo imutável.
type ArchiveRef struct {
	ExportID   string
	CompanyID  string
	Period     Period
	Generation int
	ArchivedAt time.Time
}
