package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// Garante que TokenRepo implementa repository.TokenRepository.
var _ repository.TokenRepository = (*TokenRepo)(nil)

// TokenRepo persiste os tokens de validação emitidos (1:1 por documento).
type TokenRepo struct {
	pool *pgxpool.Pool
}

// NewTokenRepository constrói o adaptador de tokens de validação.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepo {
	return &TokenRepo{pool: pool}
}

// Save persiste o token emitido no submit do documento. Write-once:
// um segundo token para o mesmo documento é recusado.
func (r *TokenRepo) Save(ctx context.Context, token *entity.ValidationToken) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO validation_tokens (document_id, company_id, issued_at, signature, payload_digest)
		VALUES ($1, $2, $3, $4, $5)`,
		token.DocumentID, token.CompanyID, token.IssuedAt, token.Signature, token.PayloadDigest,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("token já emitido para o documento %s: %w", token.DocumentID, domain.ErrInvalidInput)
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// GetByDocumentID devolve o token de um documento, ou nil se não existir.
func (r *TokenRepo) GetByDocumentID(ctx context.Context, documentID string) (*entity.ValidationToken, error) {
	var t entity.ValidationToken
	err := r.pool.QueryRow(ctx, `
		SELECT document_id, company_id, issued_at, signature, payload_digest
		FROM validation_tokens
		WHERE document_id = $1`,
		documentID,
	).Scan(&t.DocumentID, &t.CompanyID, &t.IssuedAt, &t.Signature, &t.PayloadDigest)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return &t, nil
}
