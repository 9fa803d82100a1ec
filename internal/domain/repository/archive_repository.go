package repository

import (
	"context"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// ArchiveRepository é o arquivo imutável de ficheiros SAF-T selados.
//
// Semântica write-once: Store falha com domain.ErrDuplicatePeriod se já existir
// um export selado para o mesmo (empresa, período); o refiling passa
// obrigatoriamente por Supersede, que cria uma nova geração mantendo as
// anteriores recuperáveis. Delete recusa com domain.ErrRetentionActive
// enquanto o horizonte legal de retenção não tiver decorrido.
type ArchiveRepository interface {
	// Store persiste um export selado como geração 1. Falha com
	// domain.ErrNotSealed se o checksum estiver vazio.
	Store(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error)

	// Supersede persiste uma nova geração para um período já arquivado.
	Supersede(ctx context.Context, doc *entity.ExportDocument) (*entity.ArchiveRef, error)

	// Retrieve devolve a geração mais recente para (empresa, período).
	Retrieve(ctx context.Context, companyID string, period entity.Period) (*entity.ExportDocument, error)

	// RetrieveGeneration devolve uma geração específica.
	RetrieveGeneration(ctx context.Context, companyID string, period entity.Period, generation int) (*entity.ExportDocument, error)

	// GetByID devolve um export arquivado pelo seu ID.
	GetByID(ctx context.Context, exportID string) (*entity.ExportDocument, error)

	// Delete remove um export cujo horizonte de retenção já passou.
	Delete(ctx context.Context, exportID string) error
}
