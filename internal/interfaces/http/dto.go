// Package http expõe a API da aplicação sobre Fiber.
package http

import "time"

// ErrorResponse formato uniforme de erro da API.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RunRequest corpo de POST /api/compliance/runs.
type RunRequest struct {
	CompanyID      string `json:"company_id"`
	Year           int    `json:"year"`
	Month          int    `json:"month"`
	Override       bool   `json:"override"`
	OverrideReason string `json:"override_reason"`
	Supersede      bool   `json:"supersede"`
}

// RunResponse resultado de uma execução do pipeline.
type RunResponse struct {
	Outcome       string             `json:"outcome"`
	Period        string             `json:"period"`
	VarianceRatio string             `json:"variance_ratio"`
	SalesTotal    string             `json:"sales_total"`
	PayrollTotal  string             `json:"payroll_total"`
	Export        *ExportSummary     `json:"export,omitempty"`
	Transmission  *TransmissionView  `json:"transmission,omitempty"`
}

// ExportSummary metadados do export arquivado. Nunca inclui o XML.
type ExportSummary struct {
	ID            string    `json:"id"`
	Period        string    `json:"period"`
	SchemaVersion string    `json:"schema_version"`
	Generation    int       `json:"generation"`
	Checksum      string    `json:"checksum"`
	Override      bool      `json:"override"`
	GeneratedAt   time.Time `json:"generated_at"`
	ArchivedAt    time.Time `json:"archived_at"`
}

// TransmissionView uma tentativa de envio à AT.
type TransmissionView struct {
	AttemptNumber      int       `json:"attempt_number"`
	SentAt             time.Time `json:"sent_at"`
	Status             string    `json:"status"`
	AuthorityReference string    `json:"authority_reference,omitempty"`
	ErrorDetail        string    `json:"error_detail,omitempty"`
}
