package saft_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/infrastructure/saft"
)

func buildSealed(t *testing.T) string {
	t.Helper()
	builder := saft.NewXMLBuilderService()
	sealer := saft.NewSealerService()

	ds := testDataset()
	doc, err := builder.Build(ds, testCompany(), validVerdict(ds), saft.BuildOptions{})
	require.NoError(t, err)

	sealed, err := sealer.Seal(doc)
	require.NoError(t, err)
	return sealed.Checksum
}

func TestSeal_ChecksumDeterminista(t *testing.T) {
	first := buildSealed(t)
	second := buildSealed(t)

	assert.Len(t, first, 64, "SHA-256 em hexadecimal")
	assert.Equal(t, first, second, "mesmos dados, mesmo checksum")
}

// Mudar um único cêntimo num registo de origem muda o checksum.
func TestSeal_SensivelAAlteracoes(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	sealer := saft.NewSealerService()

	ds := testDataset()
	doc, err := builder.Build(ds, testCompany(), validVerdict(ds), saft.BuildOptions{})
	require.NoError(t, err)
	sealed, err := sealer.Seal(doc)
	require.NoError(t, err)

	tampered := testDataset()
	tampered.SalesRecords[0].NetAmount = tampered.SalesRecords[0].NetAmount.Add(decimal.NewFromFloat(0.01))
	docT, err := builder.Build(tampered, testCompany(), validVerdict(tampered), saft.BuildOptions{})
	require.NoError(t, err)
	sealedT, err := sealer.Seal(docT)
	require.NoError(t, err)

	assert.NotEqual(t, sealed.Checksum, sealedT.Checksum)
}

func TestSeal_NaoMutaNemSelaDuasVezes(t *testing.T) {
	builder := saft.NewXMLBuilderService()
	sealer := saft.NewSealerService()

	ds := testDataset()
	doc, err := builder.Build(ds, testCompany(), validVerdict(ds), saft.BuildOptions{})
	require.NoError(t, err)

	sealed, err := sealer.Seal(doc)
	require.NoError(t, err)
	assert.Empty(t, doc.Checksum, "o documento original não é mutado")
	assert.True(t, sealed.Sealed())

	_, err = sealer.Seal(sealed)
	assert.ErrorIs(t, err, domain.ErrAlreadySealed, "documento selado é imutável")
}

func TestSeal_DocumentoVazio(t *testing.T) {
	sealer := saft.NewSealerService()
	_, err := sealer.Seal(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// O checksum é calculado sobre a forma canónica: diferenças de indentação
// não alteram o valor.
func TestChecksum_IndiferenteAIndentacao(t *testing.T) {
	a := []byte("<SAFT xmlns=\"urn:OECD:StandardAuditFile-Tax:Mozambique\" version=\"1.0\"><Header><NUIT>400123456</NUIT></Header></SAFT>")
	b := []byte("<SAFT xmlns=\"urn:OECD:StandardAuditFile-Tax:Mozambique\"   version=\"1.0\" ><Header ><NUIT>400123456</NUIT></Header></SAFT>")

	ca, err := saft.Checksum(a)
	require.NoError(t, err)
	cb, err := saft.Checksum(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}
