package compliance_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/application/verification"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	domsaft "github.com/bboa3/mz-compliance/internal/domain/saft"
	"github.com/bboa3/mz-compliance/internal/infrastructure/at"
	"github.com/bboa3/mz-compliance/internal/infrastructure/saft"
)

// ── dados partilhados ─────────────────────────────────────────────────────────

func runCompany() *entity.Company {
	return &entity.Company{
		ID:         "company-1",
		Name:       "Moçambique Comércio, Lda",
		NUIT:       "400123456",
		Address:    "Av. 25 de Setembro, Maputo",
		Currency:   "MZN",
		AutoSubmit: true,
	}
}

func testRunDataset() *entity.PeriodDataset {
	period := julho()
	return &entity.PeriodDataset{
		CompanyID: "company-1",
		Period:    period,
		SalesRecords: []entity.SalesRecord{
			{
				DocumentID:   "FT 2025/000050",
				DocumentType: "FT",
				IssueDate:    time.Date(2025, 7, 8, 0, 0, 0, 0, time.UTC),
				NetAmount:    decimal.NewFromFloat(100_000),
				TaxAmount:    decimal.NewFromFloat(16_000),
				Currency:     "MZN",
			},
		},
		PayrollRecords: []entity.PayrollRecord{
			{
				EmployeeRef:          "EMP-001",
				EmployeeName:         "João Macamo",
				Period:               period,
				GrossAmount:          decimal.NewFromFloat(102_000),
				EmployerContribution: decimal.NewFromFloat(4_080),
				EmployeeContribution: decimal.NewFromFloat(3_060),
				BenefitsInKindAmount: decimal.Zero,
			},
		},
		GeneratedAt: time.Date(2025, 8, 1, 6, 0, 0, 0, time.UTC),
	}
}

func runVerdict(ds *entity.PeriodDataset) entity.VarianceVerdict {
	return domsaft.NewVarianceValidator(decimal.Zero).Validate(ds)
}

// ── fakes ─────────────────────────────────────────────────────────────────────

type memArchiveRepo struct {
	docs map[string]*entity.ExportDocument // por ID
}

func newMemArchiveRepo() *memArchiveRepo {
	return &memArchiveRepo{docs: map[string]*entity.ExportDocument{}}
}

func (m *memArchiveRepo) key(companyID string, period entity.Period, gen int) string {
	return fmt.Sprintf("%s/%s/%d", companyID, period, gen)
}

func (m *memArchiveRepo) maxGeneration(companyID string, period entity.Period) int {
	max := 0
	for _, d := range m.docs {
		if d.CompanyID == companyID && d.Period == period && d.Generation > max {
			max = d.Generation
		}
	}
	return max
}

func (m *memArchiveRepo) store(doc *entity.ExportDocument, gen int) (*entity.ArchiveRef, error) {
	if !doc.Sealed() {
		return nil, domain.ErrNotSealed
	}
	stored := *doc
	stored.Generation = gen
	stored.ArchivedAt = time.Now().UTC()
	m.docs[stored.ID] = &stored
	return &entity.ArchiveRef{
		ExportID:   stored.ID,
		CompanyID:  stored.CompanyID,
		Period:     stored.Period,
		Generation: gen,
		ArchivedAt: stored.ArchivedAt,
	}, nil
}

func (m *memArchiveRepo) Store(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error) {
	if m.maxGeneration(doc.CompanyID, doc.Period) > 0 {
		return nil, domain.ErrDuplicatePeriod
	}
	return m.store(doc, 1)
}

func (m *memArchiveRepo) Supersede(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error) {
	current := m.maxGeneration(doc.CompanyID, doc.Period)
	if current == 0 {
		return nil, domain.ErrNotFound
	}
	return m.store(doc, current+1)
}

func (m *memArchiveRepo) Retrieve(ctx context.Context, companyID string, period entity.Period) (*entity.ExportDocument, error) {
	gen := m.maxGeneration(companyID, period)
	if gen == 0 {
		return nil, domain.ErrNotFound
	}
	return m.RetrieveGeneration(ctx, companyID, period, gen)
}

func (m *memArchiveRepo) RetrieveGeneration(ctx context.Context, companyID string, period entity.Period, generation int) (*entity.ExportDocument, error) {
	for _, d := range m.docs {
		if d.CompanyID == companyID && d.Period == period && d.Generation == generation {
			return d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memArchiveRepo) GetByID(ctx context.Context, exportID string) (*entity.ExportDocument, error) {
	d, ok := m.docs[exportID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (m *memArchiveRepo) Delete(ctx context.Context, exportID string) error {
	delete(m.docs, exportID)
	return nil
}

type memCompanyRepo struct {
	company *entity.Company
}

func (m *memCompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	if m.company == nil || m.company.ID != id {
		return nil, domain.ErrNotFound
	}
	return m.company, nil
}

type memTokenRepo struct {
	tokens map[string]entity.ValidationToken
}

func newMemTokenRepo() *memTokenRepo {
	return &memTokenRepo{tokens: map[string]entity.ValidationToken{}}
}

func (m *memTokenRepo) Save(ctx context.Context, token *entity.ValidationToken) error {
	m.tokens[token.DocumentID] = *token
	return nil
}

func (m *memTokenRepo) GetByDocumentID(ctx context.Context, documentID string) (*entity.ValidationToken, error) {
	t, ok := m.tokens[documentID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type noDocumentSource struct{}

func (noDocumentSource) GetDocument(ctx context.Context, documentID string) (*entity.SalesRecord, string, error) {
	return nil, "", nil
}

type fakeRunLock struct {
	held     bool
	acquired int
	released int
}

func (f *fakeRunLock) Acquire(ctx context.Context, companyID string, period entity.Period) (func(), bool, error) {
	if f.held {
		return nil, false, nil
	}
	f.acquired++
	return func() { f.released++ }, true, nil
}

// ── montagem ──────────────────────────────────────────────────────────────────

type runFixture struct {
	runner    *compliance.Runner
	archive   *memArchiveRepo
	transRepo *memTransmissionRepo
	tokenRepo *memTokenRepo
	submitter *fakeSubmitter
	lock      *fakeRunLock
	sales     *fakeSalesLedger
	payroll   *fakePayrollLedger
}

func newRunFixture(t *testing.T, script ...func() (*at.SubmitResult, error)) *runFixture {
	t.Helper()
	ds := testRunDataset()
	f := &runFixture{
		archive:   newMemArchiveRepo(),
		transRepo: &memTransmissionRepo{},
		tokenRepo: newMemTokenRepo(),
		submitter: &fakeSubmitter{script: script},
		lock:      &fakeRunLock{},
		sales:     &fakeSalesLedger{records: ds.SalesRecords},
		payroll:   &fakePayrollLedger{records: ds.PayrollRecords},
	}
	companies := &memCompanyRepo{company: runCompany()}
	tokens := verification.NewService(f.tokenRepo, companies, noDocumentSource{}, []byte("segredo-de-teste"))
	transmitter := compliance.NewTransmitter(f.submitter, saft.NewSchemaValidatorService(), f.transRepo, fastPolicy(), quietLogger())
	aggregator := compliance.NewAggregator(f.sales, f.payroll, &fakeCalendar{closed: true})
	f.runner = compliance.NewRunner(
		aggregator,
		decimal.Zero,
		saft.NewXMLBuilderService(),
		saft.NewSealerService(),
		f.archive,
		companies,
		transmitter,
		tokens,
		f.lock,
		quietLogger(),
	)
	return f
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestRun_CicloCompleto(t *testing.T) {
	f := newRunFixture(t, accepted("AT-2025-000500"))

	res, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, compliance.OutcomeSucceeded, res.Outcome)
	assert.True(t, res.Verdict.Passed)
	require.NotNil(t, res.Export)
	assert.True(t, res.Export.Sealed())
	assert.Equal(t, 1, res.Export.Generation)
	require.NotNil(t, res.Transmission)
	assert.Equal(t, entity.TransmissionAccepted, res.Transmission.Status)
	assert.Equal(t, "AT-2025-000500", res.Transmission.AuthorityReference)

	// O export ficou arquivado e os tokens dos documentos emitidos.
	stored, err := f.archive.Retrieve(context.Background(), "company-1", julho())
	require.NoError(t, err)
	assert.Equal(t, res.Export.Checksum, stored.Checksum)
	assert.Len(t, f.tokenRepo.tokens, 1)
	assert.Equal(t, 1, f.lock.released, "o lock é sempre libertado")
}

// Variação acima do limiar sem override: para antes de construir.
func TestRun_VariacaoReprovada(t *testing.T) {
	f := newRunFixture(t)
	f.payroll.records = []entity.PayrollRecord{{
		EmployeeRef: "EMP-001",
		Period:      julho(),
		GrossAmount: decimal.NewFromFloat(103_500),
	}}

	res, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, compliance.OutcomeVarianceFailed, res.Outcome)
	assert.False(t, res.Verdict.Passed)
	assert.Nil(t, res.Export)
	assert.Zero(t, f.submitter.calls)
	assert.Empty(t, f.archive.docs)
}

// Override auditado permite a execução completa.
func TestRun_VariacaoComOverride(t *testing.T) {
	f := newRunFixture(t, accepted("AT-2025-000501"))
	f.payroll.records = []entity.PayrollRecord{{
		EmployeeRef: "EMP-001",
		Period:      julho(),
		GrossAmount: decimal.NewFromFloat(103_500),
	}}

	res, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{
		Override:       true,
		OverrideReason: "Bónus anual aprovado pela direção",
	})
	require.NoError(t, err)
	assert.Equal(t, compliance.OutcomeSucceeded, res.Outcome)
	assert.True(t, res.Export.VarianceOverride)
}

// O arquivo acontece antes do envio: a falha de transmissão deixa o export
// arquivado e retomável.
func TestRun_ArquivoAntesDoEnvio(t *testing.T) {
	f := newRunFixture(t, timeout(), timeout(), timeout(), timeout())

	res, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, compliance.OutcomeTransmissionFailed, res.Outcome)
	stored, err := f.archive.Retrieve(context.Background(), "company-1", julho())
	require.NoError(t, err)
	assert.True(t, stored.Sealed())

	// Retoma manual: o reenvio usa o export arquivado.
	f.submitter.script = append(f.submitter.script, accepted("AT-2025-000502"))
	resumed, err := f.runner.Resubmit(context.Background(), stored.ID)
	require.NoError(t, err)
	assert.Equal(t, compliance.OutcomeSucceeded, resumed.Outcome)
}

// Segunda execução do mesmo período sem supersede é recusada.
func TestRun_PeriodoDuplicado(t *testing.T) {
	f := newRunFixture(t, accepted("AT-1"), accepted("AT-2"))

	_, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	require.NoError(t, err)

	_, err = f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	assert.ErrorIs(t, err, domain.ErrDuplicatePeriod)

	res, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{Supersede: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Export.Generation)
}

// Execuções concorrentes do mesmo período são serializadas.
func TestRun_ExecucaoConcorrente(t *testing.T) {
	f := newRunFixture(t)
	f.lock.held = true

	_, err := f.runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	assert.ErrorIs(t, err, domain.ErrRunInProgress)
}

// Sem envio automático o export fica arquivado à espera de envio manual.
func TestRun_SemEnvioAutomatico(t *testing.T) {
	f := newRunFixture(t)
	company := runCompany()
	company.AutoSubmit = false
	// reconstruir o fixture com a empresa alterada
	companies := &memCompanyRepo{company: company}
	tokens := verification.NewService(f.tokenRepo, companies, noDocumentSource{}, []byte("segredo-de-teste"))
	transmitter := compliance.NewTransmitter(f.submitter, saft.NewSchemaValidatorService(), f.transRepo, fastPolicy(), quietLogger())
	aggregator := compliance.NewAggregator(f.sales, f.payroll, &fakeCalendar{closed: true})
	runner := compliance.NewRunner(aggregator, decimal.Zero, saft.NewXMLBuilderService(), saft.NewSealerService(),
		f.archive, companies, transmitter, tokens, f.lock, quietLogger())

	res, err := runner.Run(context.Background(), "company-1", julho(), compliance.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, compliance.OutcomeSucceeded, res.Outcome)
	assert.Nil(t, res.Transmission)
	assert.Zero(t, f.submitter.calls)
}
