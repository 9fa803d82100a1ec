// Package at implementa o cliente de transmissão para a Autoridade Tributária.
package at

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// TransmissionTypeSAFT identifica o tipo de transmissão no cabeçalho do pedido.
const TransmissionTypeSAFT = "SAFT"

// defaultTimeout cobre a chamada completa; o portal da AT pode demorar
// vários segundos a responder.
const defaultTimeout = 30 * time.Second

// maxResponseBytes limita a leitura da resposta (1 MB).
const maxResponseBytes = 1 << 20

// SubmitResult é o resultado de uma tentativa de entrega à AT.
//
// Accepted e Rejected são mutuamente exclusivos e ambos terminais; com os
// dois a falso a tentativa falhou por razões transitórias (rede, 5xx) e
// pode ser repetida.
type SubmitResult struct {
	AuthorityReference string // referência de receção atribuída pela AT
	Accepted           bool
	Rejected           bool   // recusa terminal (payload inválido para a AT)
	Errors             string // detalhe de erro/recusa (pode ser vazio)
}

// Submitter define o porto de saída para a entrega de exports à AT.
// A implementação concreta usa o endpoint JSON do portal; para tests
// injeta-se um fake.
type Submitter interface {
	// Submit entrega o export selado. requestID é o identificador
	// idempotente do pedido; reenvios do mesmo documento usam o mesmo ID.
	Submit(ctx context.Context, export *entity.ExportDocument, company *entity.Company, requestID string) (*SubmitResult, error)
}

// Client implementa Submitter contra o endpoint JSON da AT.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewClient constrói o cliente. timeout <= 0 assume 30 s.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// RequestID devolve o identificador idempotente de transmissão de um export.
// Estável entre reenvios: "SAF-T_SAFT-2025-07" para o período 2025-07.
func RequestID(doc *entity.ExportDocument) string {
	return fmt.Sprintf("SAF-T_%s-%s", TransmissionTypeSAFT, doc.Period.String())
}

// ── payloads JSON ─────────────────────────────────────────────────────────────

type submitRequest struct {
	RequestID     string `json:"request_id"`
	CompanyNUIT   string `json:"company_nuit"`
	Period        string `json:"period"`
	SchemaVersion string `json:"schema_version"`
	Checksum      string `json:"checksum"`
	Content       string `json:"content"` // XML em Base64
}

type submitResponse struct {
	Status    string   `json:"status"` // "ACCEPTED" | "REJECTED"
	Reference string   `json:"reference"`
	Errors    []string `json:"errors"`
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit entrega o export à AT. Erros de rede e respostas 5xx devolvem erro
// (tentativa transitória, repetível); respostas 4xx devolvem Rejected sem
// erro (recusa terminal, repetir não muda o resultado).
func (c *Client) Submit(ctx context.Context, export *entity.ExportDocument, company *entity.Company, requestID string) (*SubmitResult, error) {
	payload := submitRequest{
		RequestID:     requestID,
		CompanyNUIT:   company.NUIT,
		Period:        export.Period.String(),
		SchemaVersion: export.SchemaVersion,
		Checksum:      export.Checksum,
		Content:       base64.StdEncoding.EncodeToString(export.XML),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("at: serializar pedido: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/saft/submissions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("at: criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Company-NUIT", company.NUIT)
	req.Header.Set("X-Transmission-Type", TransmissionTypeSAFT)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("at: timeout ou cancelamento: %w", ctx.Err())
		}
		return nil, fmt.Errorf("at: chamada HTTP falhou: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("at: ler resposta: %w", err)
	}

	return c.parseResponse(resp.StatusCode, rawBody)
}

// parseResponse classifica a resposta da AT em aceite, recusada ou transitória.
func (c *Client) parseResponse(statusCode int, rawBody []byte) (*SubmitResult, error) {
	if statusCode >= 500 {
		return nil, fmt.Errorf("at: portal indisponível (HTTP %d): %s", statusCode, truncate(rawBody))
	}

	var parsed submitResponse
	if err := json.Unmarshal(rawBody, &parsed); err != nil {
		if statusCode >= 400 {
			return &SubmitResult{Rejected: true, Errors: fmt.Sprintf("HTTP %d: %s", statusCode, truncate(rawBody))}, nil
		}
		return nil, fmt.Errorf("at: resposta não parseável (HTTP %d): %s", statusCode, truncate(rawBody))
	}

	errs := strings.Join(parsed.Errors, "; ")
	switch {
	case statusCode >= 400 || parsed.Status == "REJECTED":
		return &SubmitResult{
			AuthorityReference: parsed.Reference,
			Rejected:           true,
			Errors:             errs,
		}, nil
	case parsed.Status == "ACCEPTED":
		return &SubmitResult{
			AuthorityReference: parsed.Reference,
			Accepted:           true,
			Errors:             errs,
		}, nil
	default:
		return nil, fmt.Errorf("at: estado desconhecido %q na resposta", parsed.Status)
	}
}

func truncate(b []byte) string {
	const max = 512
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "…"
	}
	return s
}
