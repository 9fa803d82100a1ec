package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/application/verification"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	Runner           *compliance.Runner
	Verification     *verification.Service
	TransmissionRepo repository.TransmissionRepository
	ArchiveRepo      repository.ArchiveRepository
	CompanyRepo      repository.CompanyRepository
	JWTSecret        string
}

// Router regista as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Verificação pública de documentos (sem autenticação).
	verifyHandler := NewVerifyHandler(deps.Verification)
	api.Get("/validate/:document_id", verifyHandler.Verify)

	// Painel de operação (Bearer Token).
	complianceHandler := NewComplianceHandler(deps.Runner, deps.TransmissionRepo, deps.ArchiveRepo, deps.CompanyRepo)
	ops := api.Group("/compliance", AuthMiddleware(deps.JWTSecret))
	ops.Post("/runs", RequireRole(RoleOperator), complianceHandler.Run)
	ops.Get("/exports/:id/transmissions", RequireRole(RoleOperator, RoleAuditor), complianceHandler.Transmissions)
	ops.Get("/exports/:id/download", RequireRole(RoleOperator, RoleAuditor), complianceHandler.Download)
	ops.Post("/exports/:id/resubmit", RequireRole(RoleOperator), complianceHandler.Resubmit)
}
