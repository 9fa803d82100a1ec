package entity

import "time"

// ValidationToken é a prova de integridade de um documento fiscal emitido.
// Criado uma única vez no submit do documento; só leitura a partir daí.
// Relação 1:1 com o documento, por DocumentID (referência fraca: o token
// não é dono do documento).
type ValidationToken struct {
	DocumentID    string
	CompanyID     string
	IssuedAt      time.Time
	Signature     string // HMAC-SHA256 hex sobre o digest do payload
	PayloadDigest string // SHA-256 hex dos campos assinados, guardado para auditoria
}
