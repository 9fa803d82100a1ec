package fiscal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bboa3/mz-compliance/pkg/fiscal"
)

func TestNormalizeNUIT(t *testing.T) {
	assert.Equal(t, "400123456", fiscal.NormalizeNUIT("400 123 456"))
	assert.Equal(t, "400123456", fiscal.NormalizeNUIT("400.123.456"))
	assert.Equal(t, "400123456", fiscal.NormalizeNUIT("400123456"))
	assert.Equal(t, "", fiscal.NormalizeNUIT("sem dígitos"))
}

func TestValidateNUIT(t *testing.T) {
	assert.NoError(t, fiscal.ValidateNUIT("400123456"))
	assert.NoError(t, fiscal.ValidateNUIT("100 123 456")) // pessoa singular
	assert.NoError(t, fiscal.ValidateNUIT("500123456"))

	assert.Error(t, fiscal.ValidateNUIT("40012345"))    // 8 dígitos
	assert.Error(t, fiscal.ValidateNUIT("4001234567"))  // 10 dígitos
	assert.Error(t, fiscal.ValidateNUIT("900123456"))   // prefixo inválido
	assert.Error(t, fiscal.ValidateNUIT(""))
}
