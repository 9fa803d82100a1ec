// Package fiscal: token de validação de documentos fiscais.
// O token é um HMAC-SHA256 sobre o digest dos campos assinados do documento,
// com chave derivada por empresa a partir de um segredo mestre injetado.
// Permite provar, via consulta pública, que um documento impresso não foi
// alterado depois da emissão.
package fiscal

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/hkdf"
)

// tokenKeyInfo prefixa o contexto HKDF. Mudar este valor invalida todos os
// tokens emitidos; tratar como parte do contrato versionado.
const tokenKeyInfo = "mz-compliance/token/v1/"

// TokenParams são os campos do documento cobertos pela assinatura,
// na ordem fixa da cadeia canónica.
type TokenParams struct {
	DocumentID  string          // identificador fiscal do documento (série + número)
	IssueDate   time.Time       // data de emissão
	NetAmount   decimal.Decimal // valor líquido
	TaxAmount   decimal.Decimal // IVA
	CompanyNUIT string          // NUIT do emitente (só dígitos)
}

// TokenSigner assina e verifica tokens de validação. A chave é derivada no
// construtor e nunca lida de estado global, para permitir isolamento por
// empresa e testes determinísticos.
type TokenSigner struct {
	key []byte
}

// NewTokenSigner deriva a chave de assinatura da empresa via HKDF-SHA256
// a partir do segredo mestre. masterSecret nunca deve aparecer em logs.
func NewTokenSigner(masterSecret []byte, companyNUIT string) (*TokenSigner, error) {
	if len(masterSecret) == 0 {
		return nil, fmt.Errorf("fiscal: segredo mestre vazio")
	}
	nuit := onlyDigits(companyNUIT)
	if nuit == "" {
		return nil, fmt.Errorf("fiscal: NUIT da empresa é obrigatório")
	}

	r := hkdf.New(sha256.New, masterSecret, nil, []byte(tokenKeyInfo+nuit))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("fiscal: derivar chave: %w", err)
	}
	return &TokenSigner{key: key}, nil
}

// Sign calcula o digest do payload e a assinatura HMAC.
// Cadeia canónica (separador "|", montantes com 2 casas, data YYYY-MM-DD):
//
//	DocumentID|IssueDate|NetAmount|TaxAmount|CompanyNUIT
func (s *TokenSigner) Sign(p *TokenParams) (signature, payloadDigest string, err error) {
	digest, err := s.digest(p)
	if err != nil {
		return "", "", err
	}
	mac := hmac.New(sha256.New, s.key)
	mac.Write(digest)
	return hex.EncodeToString(mac.Sum(nil)), hex.EncodeToString(digest), nil
}

// Verify recalcula a assinatura a partir dos valores atuais dos campos e
// compara em tempo constante. Qualquer alteração posterior à emissão
// (incluindo um cêntimo num montante) devolve false. Nunca devolve erro por
// mismatch, só por parâmetros inválidos.
func (s *TokenSigner) Verify(p *TokenParams, signature string) (bool, error) {
	expected, _, err := s.Sign(p)
	if err != nil {
		return false, err
	}
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

func (s *TokenSigner) digest(p *TokenParams) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("fiscal: TokenParams é obrigatório")
	}
	docID := strings.TrimSpace(p.DocumentID)
	if docID == "" {
		return nil, fmt.Errorf("fiscal: DocumentID é obrigatório")
	}
	if p.IssueDate.IsZero() {
		return nil, fmt.Errorf("fiscal: IssueDate é obrigatória")
	}
	nuit := onlyDigits(p.CompanyNUIT)
	if nuit == "" {
		return nil, fmt.Errorf("fiscal: CompanyNUIT é obrigatório")
	}

	cadeia := docID + "|" +
		p.IssueDate.Format("2006-01-02") + "|" +
		p.NetAmount.Round(2).StringFixed(2) + "|" +
		p.TaxAmount.Round(2).StringFixed(2) + "|" +
		nuit

	sum := sha256.Sum256([]byte(cadeia))
	return sum[:], nil
}

// onlyDigits deixa apenas dígitos 0-9 (para NUIT).
func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
