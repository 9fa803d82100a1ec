package entity

import "time"

// Company é a entidade contribuinte para a qual se geram ficheiros SAF-T.
type Company struct {
	ID       string
	Name     string
	NUIT     string // Número Único de Identificação Tributária (9 dígitos)
	Address  string
	Currency string // moeda funcional, normalmente MZN
	// AutoSubmit controla se o export é enviado à AT logo após o selo,
	// ou apenas arquivado para envio manual.
	AutoSubmit bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
