package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bboa3/mz-compliance/internal/application/verification"
)

// VerifyHandler serve a verificação pública de documentos fiscais.
type VerifyHandler struct {
	svc *verification.Service
}

// NewVerifyHandler constrói o handler de verificação.
func NewVerifyHandler(svc *verification.Service) *VerifyHandler {
	return &VerifyHandler{svc: svc}
}

// Verify responde GET /api/validate/:document_id.
// Endpoint público: a resposta diz apenas se o documento está íntegro e
// quando o token foi emitido. Nunca expõe montantes nem o motivo da falha.
func (h *VerifyHandler) Verify(c *fiber.Ctx) error {
	documentID := c.Params("document_id")
	if documentID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Code: "MISSING_ID", Message: "document_id é obrigatório"})
	}

	res, err := h.svc.Verify(c.UserContext(), documentID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Code: "INTERNAL", Message: "erro interno"})
	}
	return c.JSON(res)
}
