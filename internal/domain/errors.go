package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound          = errors.New("recurso não encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrPeriodNotClosed   = errors.New("período fiscal ainda aberto")
	ErrSourceUnavailable = errors.New("fonte de dados indisponível")
	ErrVarianceExceeded  = errors.New("variação folha/vendas acima do limite")
	ErrDuplicatePeriod   = errors.New("já existe um ficheiro SAF-T selado para este período")
	ErrRetentionActive   = errors.New("período de retenção legal ainda em vigor")
	ErrSchemaInvalid     = errors.New("documento SAF-T não conforme ao esquema")
	ErrNotSealed         = errors.New("documento ainda não selado")
	ErrAlreadySealed     = errors.New("documento já selado")
	ErrUnauthorized      = errors.New("não autorizado")
	ErrRunInProgress     = errors.New("já existe uma execução em curso para este período")
)
