// Package saft: construção, selagem e validação do ficheiro SAF-T MZ.
package saft

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	pkgfiscal "github.com/bboa3/mz-compliance/pkg/fiscal"
)

// Namespace oficial do SAF-T de Moçambique.
const (
	NsSAFT = "urn:OECD:StandardAuditFile-Tax:Mozambique"

	softwareVersion = "mz-compliance 1.0.0"
)

// BuildOptions controla a construção do export.
type BuildOptions struct {
	// Override permite construir mesmo com a regra de variação reprovada.
	// Fica registado no Header como flag auditável; nunca é silencioso.
	Override       bool
	OverrideReason string
}

// XMLBuilderService constrói o documento SAF-T a partir de um PeriodDataset.
//
// Regras de serialização: ordem fixa de elementos por versão de esquema,
// montantes com a precisão da moeda (2 casas, sem arredondamento implícito
// adicional), texto normalizado para UTF-8 NFC, e identificadores de registo
// estáveis derivados do document_id de origem. Reconstruções do mesmo
// período com os mesmos dados são byte a byte idênticas.
type XMLBuilderService struct{}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build gera o ExportDocument (não selado; Checksum vazio até passar pelo Sealer).
// Recusa com domain.ErrVarianceExceeded se o veredicto reprovou e não há override.
func (s *XMLBuilderService) Build(
	dataset *entity.PeriodDataset,
	company *entity.Company,
	verdict entity.VarianceVerdict,
	opts BuildOptions,
) (*entity.ExportDocument, error) {
	if dataset == nil || company == nil {
		return nil, fmt.Errorf("saft: dataset e company são obrigatórios")
	}
	if !verdict.Passed && !opts.Override {
		return nil, domain.ErrVarianceExceeded
	}
	override := !verdict.Passed && opts.Override
	if override && strings.TrimSpace(opts.OverrideReason) == "" {
		return nil, fmt.Errorf("saft: override da regra de variação exige justificação: %w", domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "SAFT"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns"}, Value: NsSAFT},
			{Name: xml.Name{Local: "version"}, Value: entity.SchemaVersionCurrent},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	s.writeHeader(enc, dataset, company, verdict, override, opts.OverrideReason)
	s.writeMasterFiles(enc, dataset)
	s.writeSourceDocuments(enc, dataset, company)

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')

	return &entity.ExportDocument{
		ID:               uuid.New().String(),
		CompanyID:        dataset.CompanyID,
		Period:           dataset.Period,
		SchemaVersion:    entity.SchemaVersionCurrent,
		Generation:       1,
		XML:              buf.Bytes(),
		SalesTotal:       verdict.SalesTotal,
		PayrollTotal:     verdict.PayrollTotal,
		VarianceRatio:    verdict.Ratio,
		VarianceOverride: override,
		OverrideReason:   strings.TrimSpace(opts.OverrideReason),
		GeneratedAt:      dataset.GeneratedAt,
	}, nil
}

// writeHeader escreve CompanyInfo, PeriodInfo, GenerationInfo e VarianceCheck.
// GenerationInfo usa o GeneratedAt do dataset (não o relógio), para que
// reconstruções sejam determinísticas.
func (s *XMLBuilderService) writeHeader(
	enc *xml.Encoder,
	dataset *entity.PeriodDataset,
	company *entity.Company,
	verdict entity.VarianceVerdict,
	override bool,
	overrideReason string,
) {
	start, end := dataset.Period.Bounds()

	open(enc, "Header")

	open(enc, "CompanyInfo")
	writeEl(enc, "CompanyName", company.Name)
	writeEl(enc, "CompanyAddress", company.Address)
	writeEl(enc, "NUIT", pkgfiscal.NormalizeNUIT(company.NUIT))
	writeEl(enc, "CurrencyCode", company.Currency)
	closeEl(enc, "CompanyInfo")

	open(enc, "PeriodInfo")
	writeEl(enc, "StartDate", start.Format("2006-01-02"))
	writeEl(enc, "EndDate", end.Format("2006-01-02"))
	writeEl(enc, "Period", dataset.Period.String())
	closeEl(enc, "PeriodInfo")

	open(enc, "GenerationInfo")
	writeEl(enc, "GenerationDate", dataset.GeneratedAt.UTC().Format("2006-01-02"))
	writeEl(enc, "GenerationTime", dataset.GeneratedAt.UTC().Format("15:04:05"))
	writeEl(enc, "SoftwareVersion", softwareVersion)
	closeEl(enc, "GenerationInfo")

	open(enc, "VarianceCheck")
	writeEl(enc, "SalesTotal", formatAmount(verdict.SalesTotal))
	writeEl(enc, "PayrollTotal", formatAmount(verdict.PayrollTotal))
	writeEl(enc, "Ratio", verdict.Ratio.StringFixed(4))
	writeEl(enc, "Passed", boolString(verdict.Passed))
	writeEl(enc, "Override", boolString(override))
	if override {
		writeEl(enc, "OverrideReason", overrideReason)
	}
	closeEl(enc, "VarianceCheck")

	closeEl(enc, "Header")
}

// writeMasterFiles deriva Customers das vendas e Employees da folha.
// Ambos deduplicados e ordenados para serialização estável.
func (s *XMLBuilderService) writeMasterFiles(enc *xml.Encoder, dataset *entity.PeriodDataset) {
	open(enc, "MasterFiles")

	type customer struct{ nuit, name string }
	seen := map[string]customer{}
	var nuits []string
	for _, r := range dataset.SalesRecords {
		nuit := pkgfiscal.NormalizeNUIT(r.CounterpartTaxID)
		if nuit == "" {
			continue // consumidor final, sem registo mestre
		}
		if _, ok := seen[nuit]; !ok {
			seen[nuit] = customer{nuit: nuit, name: r.CounterpartName}
			nuits = append(nuits, nuit)
		}
	}
	sort.Strings(nuits)

	open(enc, "Customers")
	for _, nuit := range nuits {
		c := seen[nuit]
		open(enc, "Customer")
		writeEl(enc, "CustomerID", c.nuit)
		writeEl(enc, "CustomerName", c.name)
		writeEl(enc, "NUIT", c.nuit)
		closeEl(enc, "Customer")
	}
	closeEl(enc, "Customers")

	open(enc, "Employees")
	for _, r := range dataset.PayrollRecords {
		open(enc, "Employee")
		writeEl(enc, "EmployeeID", r.EmployeeRef)
		writeEl(enc, "EmployeeName", r.EmployeeName)
		closeEl(enc, "Employee")
	}
	closeEl(enc, "Employees")

	closeEl(enc, "MasterFiles")
}

func (s *XMLBuilderService) writeSourceDocuments(enc *xml.Encoder, dataset *entity.PeriodDataset, company *entity.Company) {
	open(enc, "SourceDocuments")

	open(enc, "SalesInvoices")
	for _, r := range dataset.SalesRecords {
		currency := r.Currency
		if currency == "" {
			currency = company.Currency
		}
		open(enc, "Invoice")
		writeEl(enc, "RecordID", RecordID(r.DocumentID))
		writeEl(enc, "InvoiceNumber", r.DocumentID)
		writeEl(enc, "InvoiceType", r.DocumentType)
		writeEl(enc, "InvoiceDate", r.IssueDate.Format("2006-01-02"))
		writeEl(enc, "CustomerNUIT", pkgfiscal.NormalizeNUIT(r.CounterpartTaxID))
		writeEl(enc, "NetAmount", formatAmount(r.NetAmount))
		writeEl(enc, "TaxAmount", formatAmount(r.TaxAmount))
		writeEl(enc, "GrossAmount", formatAmount(r.NetAmount.Add(r.TaxAmount)))
		writeEl(enc, "Currency", currency)
		closeEl(enc, "Invoice")
	}
	closeEl(enc, "SalesInvoices")

	open(enc, "PayrollEntries")
	totalBIK := decimal.Zero
	for _, r := range dataset.PayrollRecords {
		open(enc, "PayrollEntry")
		writeEl(enc, "RecordID", RecordID(r.EmployeeRef+"-"+r.Period.String()))
		writeEl(enc, "EmployeeID", r.EmployeeRef)
		writeEl(enc, "GrossAmount", formatAmount(r.GrossAmount))
		writeEl(enc, "EmployerContribution", formatAmount(r.EmployerContribution))
		writeEl(enc, "EmployeeContribution", formatAmount(r.EmployeeContribution))
		writeEl(enc, "BenefitsInKind", formatAmount(r.BenefitsInKindAmount))
		closeEl(enc, "PayrollEntry")
		totalBIK = totalBIK.Add(r.BenefitsInKindAmount)
	}
	writeEl(enc, "TotalBenefitsInKind", formatAmount(totalBIK))
	closeEl(enc, "PayrollEntries")

	closeEl(enc, "SourceDocuments")
}

// RecordID deriva um identificador estável de registo a partir do
// document_id de origem: NFC, maiúsculas, separadores colapsados em "-".
func RecordID(sourceID string) string {
	normalized := norm.NFC.String(strings.TrimSpace(sourceID))
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToUpper(normalized) {
		switch {
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash && b.Len() > 0 {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ── helpers de serialização ───────────────────────────────────────────────────

func open(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func closeEl(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

// writeEl escreve um elemento com o texto normalizado para NFC (encoding único declarado: UTF-8 NFC).
func writeEl(enc *xml.Encoder, local, value string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
	_ = enc.EncodeToken(xml.CharData(norm.NFC.String(value)))
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

// formatAmount formata montantes com a precisão da moeda: 2 casas, ponto decimal.
func formatAmount(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
