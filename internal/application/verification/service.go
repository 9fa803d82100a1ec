// Package verification emite e verifica tokens de validação de documentos fiscais.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
	"github.com/bboa3/mz-compliance/internal/domain/fiscal"
	"github.com/bboa3/mz-compliance/internal/domain/repository"
)

// DocumentSource lê os valores atuais de um documento fiscal pela sua
// referência. Devolve nil (sem erro) quando o documento não existe.
type DocumentSource interface {
	GetDocument(ctx context.Context, documentID string) (*entity.SalesRecord, string, error)
}

// Result é a resposta pública de verificação. Nunca expõe montantes nem
// qualquer outro conteúdo financeiro do documento.
type Result struct {
	Valid    bool       `json:"valid"`
	IssuedAt *time.Time `json:"issued_at,omitempty"`
}

// Service emite tokens no submit do documento e verifica-os publicamente.
// O segredo mestre vive apenas aqui e no signer; nunca em logs nem em exports.
type Service struct {
	tokens       repository.TokenRepository
	companies    repository.CompanyRepository
	documents    DocumentSource
	masterSecret []byte
}

// NewService constrói o serviço de tokens de validação.
func NewService(
	tokens repository.TokenRepository,
	companies repository.CompanyRepository,
	documents DocumentSource,
	masterSecret []byte,
) *Service {
	return &Service{
		tokens:       tokens,
		companies:    companies,
		documents:    documents,
		masterSecret: masterSecret,
	}
}

// EnsureIssued emite o token de um documento se ainda não existir.
// A emissão é única por documento; chamadas seguintes devolvem o token original.
func (s *Service) EnsureIssued(ctx context.Context, company *entity.Company, rec *entity.SalesRecord) (*entity.ValidationToken, error) {
	existing, err := s.tokens.GetByDocumentID(ctx, rec.DocumentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	signer, err := fiscal.NewTokenSigner(s.masterSecret, company.NUIT)
	if err != nil {
		return nil, err
	}
	signature, digest, err := signer.Sign(&fiscal.TokenParams{
		DocumentID:  rec.DocumentID,
		IssueDate:   rec.IssueDate,
		NetAmount:   rec.NetAmount,
		TaxAmount:   rec.TaxAmount,
		CompanyNUIT: company.NUIT,
	})
	if err != nil {
		return nil, fmt.Errorf("emitir token de %s: %w", rec.DocumentID, err)
	}

	token := &entity.ValidationToken{
		DocumentID:    rec.DocumentID,
		CompanyID:     company.ID,
		IssuedAt:      time.Now().UTC(),
		Signature:     signature,
		PayloadDigest: digest,
	}
	if err := s.tokens.Save(ctx, token); err != nil {
		return nil, err
	}
	return token, nil
}

// Verify recalcula a assinatura sobre os valores atuais do documento e
// compara com o token emitido. Documento desconhecido, token inexistente ou
// qualquer divergência de conteúdo devolvem Valid=false sem erro; o endpoint
// público nunca distingue os casos nem expõe detalhe.
func (s *Service) Verify(ctx context.Context, documentID string) (Result, error) {
	token, err := s.tokens.GetByDocumentID(ctx, documentID)
	if err != nil {
		return Result{}, err
	}
	if token == nil {
		return Result{Valid: false}, nil
	}

	rec, companyID, err := s.documents.GetDocument(ctx, documentID)
	if err != nil {
		return Result{}, err
	}
	if rec == nil {
		return Result{Valid: false}, nil
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Result{Valid: false}, nil
		}
		return Result{}, err
	}

	signer, err := fiscal.NewTokenSigner(s.masterSecret, company.NUIT)
	if err != nil {
		return Result{}, err
	}
	valid, err := signer.Verify(&fiscal.TokenParams{
		DocumentID:  rec.DocumentID,
		IssueDate:   rec.IssueDate,
		NetAmount:   rec.NetAmount,
		TaxAmount:   rec.TaxAmount,
		CompanyNUIT: company.NUIT,
	}, token.Signature)
	if err != nil {
		return Result{}, err
	}
	if !valid {
		return Result{Valid: false}, nil
	}
	issued := token.IssuedAt
	return Result{Valid: true, IssuedAt: &issued}, nil
}
