package saft_test

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	domsaft "github.com/bboa3/mz-compliance/internal/domain/saft"
	"github.com/bboa3/mz-compliance/internal/infrastructure/saft"
)

func testCompany() *entity.Company {
	return &entity.Company{
		ID:       "company-1",
		Name:     "Moçambique Comércio, Lda",
		NUIT:     "400 123 456",
		Address:  "Av. 25 de Setembro, Maputo",
		Currency: "MZN",
	}
}

func testDataset() *entity.PeriodDataset {
	period := entity.Period{Year: 2025, Month: time.July}
	return &entity.PeriodDataset{
		CompanyID: "company-1",
		Period:    period,
		SalesRecords: []entity.SalesRecord{
			{
				DocumentID:       "FT 2025/000041",
				DocumentType:     "FT",
				IssueDate:        time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC),
				NetAmount:        decimal.NewFromFloat(40_000),
				TaxAmount:        decimal.NewFromFloat(6_400),
				Currency:         "MZN",
				CounterpartTaxID: "400555666",
				CounterpartName:  "Cliente Alfa, SA",
			},
			{
				DocumentID:   "FT 2025/000042",
				DocumentType: "FT",
				IssueDate:    time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC),
				NetAmount:    decimal.NewFromFloat(60_000),
				TaxAmount:    decimal.NewFromFloat(9_600),
				Currency:     "MZN",
				// consumidor final: sem NUIT
			},
		},
		PayrollRecords: []entity.PayrollRecord{
			{
				EmployeeRef:          "EMP-001",
				EmployeeName:         "João Macamo",
				Period:               period,
				GrossAmount:          decimal.NewFromFloat(70_000),
				EmployerContribution: decimal.NewFromFloat(2_800), // 4%
				EmployeeContribution: decimal.NewFromFloat(2_100), // 3%
				BenefitsInKindAmount: decimal.NewFromFloat(1_500),
			},
			{
				EmployeeRef:          "EMP-002",
				EmployeeName:         "América Cossa",
				Period:               period,
				GrossAmount:          decimal.NewFromFloat(32_000),
				EmployerContribution: decimal.NewFromFloat(1_280),
				EmployeeContribution: decimal.NewFromFloat(960),
				BenefitsInKindAmount: decimal.Zero,
			},
		},
		GeneratedAt: time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC),
	}
}

func validVerdict(ds *entity.PeriodDataset) entity.VarianceVerdict {
	return domsaft.NewVarianceValidator(decimal.Zero).Validate(ds)
}

// Construir duas vezes com os mesmos dados produz XML byte a byte idêntico,
// pré-condição para o checksum ter significado e para reenvios idempotentes.
func TestBuild_Determinista(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	ds := testDataset()
	verdict := validVerdict(ds)

	doc1, err1 := builder.Build(ds, testCompany(), verdict, saft.BuildOptions{})
	doc2, err2 := builder.Build(ds, testCompany(), verdict, saft.BuildOptions{})
	require.NoError(t, err1)
	require.NoError(t, err2)

	assert.Equal(t, doc1.XML, doc2.XML, "reconstruções do mesmo período devem ser byte-idênticas")
	assert.Empty(t, doc1.Checksum, "Build não sela; o checksum fica vazio até ao Sealer")
}

func TestBuild_EstruturaDoDocumento(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	ds := testDataset()

	doc, err := builder.Build(ds, testCompany(), validVerdict(ds), saft.BuildOptions{})
	require.NoError(t, err)

	xmlStr := string(doc.XML)
	assert.Contains(t, xmlStr, `xmlns="urn:OECD:StandardAuditFile-Tax:Mozambique"`)
	assert.Contains(t, xmlStr, `version="1.0"`)
	assert.Contains(t, xmlStr, "<NUIT>400123456</NUIT>", "NUIT sai normalizado, só dígitos")
	assert.Contains(t, xmlStr, "<StartDate>2025-07-01</StartDate>")
	assert.Contains(t, xmlStr, "<EndDate>2025-07-31</EndDate>")
	assert.Contains(t, xmlStr, "<NetAmount>40000.00</NetAmount>")
	assert.Contains(t, xmlStr, "<GrossAmount>46400.00</GrossAmount>")
	assert.Contains(t, xmlStr, "<TotalBenefitsInKind>1500.00</TotalBenefitsInKind>")
	// cliente consumidor final não entra nos dados mestres
	assert.Equal(t, 1, strings.Count(xmlStr, "<Customer>"))
}

// Veredicto reprovado sem override: recusa com ErrVarianceExceeded.
func TestBuild_RecusaSemOverride(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	ds := testDataset()
	verdict := validVerdict(ds)
	verdict.Passed = false

	_, err := builder.Build(ds, testCompany(), verdict, saft.BuildOptions{})
	assert.ErrorIs(t, err, domain.ErrVarianceExceeded)
}

// O override nunca é silencioso: fica registado no Header com justificação.
func TestBuild_OverrideAuditado(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	ds := testDataset()
	verdict := validVerdict(ds)
	verdict.Passed = false

	doc, err := builder.Build(ds, testCompany(), verdict, saft.BuildOptions{
		Override:       true,
		OverrideReason: "Bónus anual pago em julho; aprovado pela direção financeira",
	})
	require.NoError(t, err)

	assert.True(t, doc.VarianceOverride)
	assert.Contains(t, string(doc.XML), "<Override>true</Override>")
	assert.Contains(t, string(doc.XML), "<OverrideReason>Bónus anual pago em julho; aprovado pela direção financeira</OverrideReason>")
}

// Override sem justificação é recusado.
func TestBuild_OverrideSemJustificacao(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	ds := testDataset()
	verdict := validVerdict(ds)
	verdict.Passed = false

	_, err := builder.Build(ds, testCompany(), verdict, saft.BuildOptions{Override: true})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRecordID_DerivadoDoDocumentID(t *testing.T) {
	assert.Equal(t, "FT-2025-000041", saft.RecordID("FT 2025/000041"))
	assert.Equal(t, "FT-2025-000041", saft.RecordID("  ft 2025/000041  "))
	assert.Equal(t, "EMP-001-2025-07", saft.RecordID("EMP-001-2025-07"))
}

func TestExportFilenames(t *testing.T) {
	doc := &entity.ExportDocument{
		Period:     entity.Period{Year: 2025, Month: time.July},
		Generation: 2,
	}
	xmlName, zipName := saft.ExportFilenames(testCompany(), doc)
	assert.Equal(t, "SAFT_400123456_2025-07_G2.xml", xmlName)
	assert.Equal(t, "SAFT_400123456_2025-07_G2.zip", zipName)
}
