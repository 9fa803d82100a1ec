package entity

import "time"

// Estados de uma tentativa de envio à AT (Autoridade Tributária).
const (
	TransmissionPending  = "PENDING"  // tentativa criada, resposta ainda não definitiva
	TransmissionAccepted = "ACCEPTED" // AT aceitou; AuthorityReference preenchido
	TransmissionRejected = "REJECTED" // AT recusou explicitamente; requer correção manual
	TransmissionFailed   = "FAILED"   // orçamento de retries esgotado sem resposta definitiva
)

// TransmissionRecord regista uma tentativa de envio de um export à AT.
// Append-only: cada tentativa cria um registo novo; nunca se altera um anterior.
type TransmissionRecord struct {
	ID                 string
	ExportID           string
	AttemptNumber      int
	SentAt             time.Time
	Status             string
	AuthorityReference string // referência devolvida pela AT na aceitação
	ErrorDetail        string // detalhe do erro de transporte ou motivo de rejeição
}

// Terminal indica se o estado encerra o ciclo automático de envio.
func (r *TransmissionRecord) Terminal() bool {
	return r.Status == TransmissionAccepted || r.Status == TransmissionRejected || r.Status == TransmissionFailed
}
