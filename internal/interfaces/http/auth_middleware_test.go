package http_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "github.com/bboa3/mz-compliance/internal/interfaces/http"
	pkgjwt "github.com/bboa3/mz-compliance/pkg/jwt"
)

// ── helpers ───────────────────────────────────────────────────────────────────

const (
	testJWTSecret  = "test-secret-key-for-unit-tests"
	testOperatorID = "00000000-0000-0000-0000-000000000001"
	testCompanyID  = "00000000-0000-0000-0000-000000000002"
	testIssuer     = "mz-compliance-test"
	testExpMin     = 60
)

// buildTestApp monta uma app Fiber mínima com AuthMiddleware + RequireRole
// e um handler que devolve 200 se os middlewares deixarem passar.
func buildTestApp(allowedRoles ...string) *fiber.App {
	app := fiber.New()
	app.Get("/protected",
		apphttp.AuthMiddleware(testJWTSecret),
		apphttp.RequireRole(allowedRoles...),
		func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusOK).JSON(fiber.Map{
				"ok":      true,
				"role":    apphttp.GetRole(c),
				"company": apphttp.GetCompanyID(c),
			})
		},
	)
	return app
}

func tokenForRole(t *testing.T, role string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, testOperatorID, testCompanyID, role, testIssuer, testExpMin)
	require.NoError(t, err, "deve gerar um JWT válido")
	return "Bearer " + tok
}

func doRequest(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

// ── tests ────────────────────────────────────────────────────────────────────

func TestAuthMiddleware_OperadorAcede(t *testing.T) {
	app := buildTestApp(apphttp.RoleOperator)
	resp := doRequest(t, app, tokenForRole(t, apphttp.RoleOperator))
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, apphttp.RoleOperator, body["role"])
	assert.Equal(t, testCompanyID, body["company"], "o CompanyID do token fica disponível ao handler")
}

// Auditor pode ler rotas multi-papel mas não executar as de operador.
func TestRequireRole_AuditorSoLeitura(t *testing.T) {
	leitura := buildTestApp(apphttp.RoleOperator, apphttp.RoleAuditor)
	resp := doRequest(t, leitura, tokenForRole(t, apphttp.RoleAuditor))
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	escrita := buildTestApp(apphttp.RoleOperator)
	resp2 := doRequest(t, escrita, tokenForRole(t, apphttp.RoleAuditor))
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp2.StatusCode)
}

func TestAuthMiddleware_SemToken(t *testing.T) {
	app := buildTestApp(apphttp.RoleOperator)
	resp := doRequest(t, app, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthMiddleware_TokenMalformado(t *testing.T) {
	app := buildTestApp(apphttp.RoleOperator)

	for _, header := range []string{"Bearer", "Basic abc", "Bearer  ", "Bearer token-invalido"} {
		resp := doRequest(t, app, header)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "header %q deve ser recusado", header)
		resp.Body.Close()
	}
}

func TestAuthMiddleware_AssinaturaErrada(t *testing.T) {
	app := buildTestApp(apphttp.RoleOperator)
	tok, err := pkgjwt.Generate("outro-segredo", testOperatorID, testCompanyID, apphttp.RoleOperator, testIssuer, testExpMin)
	require.NoError(t, err)

	resp := doRequest(t, app, "Bearer "+tok)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
