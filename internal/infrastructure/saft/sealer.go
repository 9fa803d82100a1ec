package saft

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"

	"github.com/ucarion/c14n"

	"github.com/bboa3/mz-compliance/internal/domain"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// SealerService calcula e fixa o checksum de integridade de um export.
//
// O checksum é SHA-256 sobre a forma canónica (C14N) do XML, para que não
// dependa de detalhes de indentação nem de ordem de atributos, apenas do
// conteúdo declarado, na ordem fixa de elementos do esquema.
type SealerService struct{}

// NewSealerService cria o serviço.
func NewSealerService() *SealerService {
	return &SealerService{}
}

// Seal devolve um novo ExportDocument com o Checksum preenchido.
// Nunca muta o documento recebido; selar é tudo-ou-nada: em caso de erro
// nenhum checksum parcial é devolvido. Selar duas vezes é erro
// (domain.ErrAlreadySealed): o documento selado é imutável.
func (s *SealerService) Seal(doc *entity.ExportDocument) (*entity.ExportDocument, error) {
	if doc == nil || len(doc.XML) == 0 {
		return nil, fmt.Errorf("saft: documento vazio: %w", domain.ErrInvalidInput)
	}
	if doc.Sealed() {
		return nil, domain.ErrAlreadySealed
	}

	checksum, err := Checksum(doc.XML)
	if err != nil {
		return nil, err
	}

	sealed := *doc
	sealed.Checksum = checksum
	return &sealed, nil
}

// Checksum calcula o SHA-256 hex da forma canónica do XML.
func Checksum(xmlBytes []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(xmlBytes))
	dec.Entity = map[string]string{}
	canonical, err := c14n.Canonicalize(dec)
	if err != nil {
		return "", fmt.Errorf("saft: canonicalizar XML: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
