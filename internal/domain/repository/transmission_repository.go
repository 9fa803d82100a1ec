package repository

import (
	"context"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// TransmissionRepository guarda o histórico append-only de envios à AT.
type TransmissionRepository interface {
	// Append regista uma nova tentativa. Nunca altera registos anteriores.
	Append(ctx context.Context, rec *entity.TransmissionRecord) error

	// ListByExport devolve todas as tentativas de um export, por AttemptNumber ascendente.
	ListByExport(ctx context.Context, exportID string) ([]entity.TransmissionRecord, error)

	// LatestByExport devolve a tentativa mais recente, ou nil se não houver nenhuma.
	LatestByExport(ctx context.Context, exportID string) (*entity.TransmissionRecord, error)
}

// TokenRepository guarda os tokens de validação emitidos (1:1 por documento).
type TokenRepository interface {
	// Save persiste o token emitido no submit do documento. Write-once.
	Save(ctx context.Context, token *entity.ValidationToken) error

	// GetByDocumentID devolve o token de um documento, ou nil se não existir.
	GetByDocumentID(ctx context.Context, documentID string) (*entity.ValidationToken, error)
}

// CompanyRepository lê dados mestres de empresas.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
}
