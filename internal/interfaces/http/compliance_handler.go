package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
	"github.com/bboa3/mz-compliance/internal/infrastructure/saft"
)

// ComplianceHandler serve o painel de operação do pipeline SAF-T.
type ComplianceHandler struct {
	runner    *compliance.Runner
	transRepo repository.TransmissionRepository
	archive   repository.ArchiveRepository
	companies repository.CompanyRepository
}

// NewComplianceHandler constrói o handler de operação.
func NewComplianceHandler(
	runner *compliance.Runner,
	transRepo repository.TransmissionRepository,
	archive repository.ArchiveRepository,
	companies repository.CompanyRepository,
) *ComplianceHandler {
	return &ComplianceHandler{runner: runner, transRepo: transRepo, archive: archive, companies: companies}
}

// Run responde POST /api/compliance/runs: executa o pipeline de um período.
func (h *ComplianceHandler) Run(c *fiber.Ctx) error {
	var in RunRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	if in.CompanyID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: "company_id é obrigatório"})
	}
	period := entity.Period{Year: in.Year, Month: time.Month(in.Month)}
	if !period.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: "year/month inválidos"})
	}

	res, err := h.runner.Run(c.UserContext(), in.CompanyID, period, compliance.RunOptions{
		Override:       in.Override,
		OverrideReason: in.OverrideReason,
		Supersede:      in.Supersede,
	})
	if err != nil {
		return h.runError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(runResponse(period, res))
}

// Transmissions responde GET /api/compliance/exports/:id/transmissions.
func (h *ComplianceHandler) Transmissions(c *fiber.Ctx) error {
	exportID := c.Params("id")
	if exportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_ID", Message: "id é obrigatório"})
	}
	records, err := h.transRepo.ListByExport(c.UserContext(), exportID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}
	views := make([]TransmissionView, 0, len(records))
	for _, r := range records {
		views = append(views, transmissionView(&r))
	}
	return c.JSON(fiber.Map{"export_id": exportID, "transmissions": views})
}

// Resubmit responde POST /api/compliance/exports/:id/resubmit.
// Idempotente: um export já aceite devolve o registo aceite existente.
func (h *ComplianceHandler) Resubmit(c *fiber.Ctx) error {
	exportID := c.Params("id")
	if exportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_ID", Message: "id é obrigatório"})
	}
	res, err := h.runner.Resubmit(c.UserContext(), exportID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "export não encontrado"})
		}
		return h.runError(c, err)
	}
	return c.JSON(runResponse(res.Export.Period, res))
}

// Download responde GET /api/compliance/exports/:id/download: devolve o
// ficheiro ZIP do export selado, com o nome oficial SAFT_{NUIT}_{período}_G{n}.zip.
func (h *ComplianceHandler) Download(c *fiber.Ctx) error {
	exportID := c.Params("id")
	if exportID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_ID", Message: "id é obrigatório"})
	}
	doc, err := h.archive.GetByID(c.UserContext(), exportID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: "export não encontrado"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}
	company, err := h.companies.GetByID(c.UserContext(), doc.CompanyID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}

	xmlName, zipName := saft.ExportFilenames(company, doc)
	payload, err := saft.CompressXMLToZip(doc.XML, xmlName)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}

	c.Set(fiber.HeaderContentType, "application/zip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+zipName+`"`)
	return c.Send(payload)
}

func (h *ComplianceHandler) runError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Code: "RUN_IN_PROGRESS", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicatePeriod):
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Code: "DUPLICATE_PERIOD", Message: err.Error()})
	case errors.Is(err, domain.ErrPeriodNotClosed):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(ErrorResponse{Code: "PERIOD_NOT_CLOSED", Message: err.Error()})
	case errors.Is(err, domain.ErrSourceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Code: "SOURCE_UNAVAILABLE", Message: err.Error()})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Code: "NOT_FOUND", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}
}

func runResponse(period entity.Period, res *compliance.RunResult) RunResponse {
	out := RunResponse{
		Outcome:       string(res.Outcome),
		Period:        period.String(),
		VarianceRatio: res.Verdict.Ratio.String(),
		SalesTotal:    res.Verdict.SalesTotal.StringFixed(2),
		PayrollTotal:  res.Verdict.PayrollTotal.StringFixed(2),
	}
	if res.Export != nil {
		out.Export = &ExportSummary{
			ID:            res.Export.ID,
			Period:        res.Export.Period.String(),
			SchemaVersion: res.Export.SchemaVersion,
			Generation:    res.Export.Generation,
			Checksum:      res.Export.Checksum,
			Override:      res.Export.VarianceOverride,
			GeneratedAt:   res.Export.GeneratedAt,
			ArchivedAt:    res.Export.ArchivedAt,
		}
	}
	if res.Transmission != nil {
		view := transmissionView(res.Transmission)
		out.Transmission = &view
	}
	return out
}

func transmissionView(r *entity.TransmissionRecord) TransmissionView {
	return TransmissionView{
		AttemptNumber:      r.AttemptNumber,
		SentAt:             r.SentAt,
		Status:             r.Status,
		AuthorityReference: r.AuthorityReference,
		ErrorDetail:        r.ErrorDetail,
	}
}
