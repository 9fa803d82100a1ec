// Package fiscal: utilitários de identificação tributária moçambicana.
package fiscal

import (
	"fmt"
	"unicode"
)

// nuitLength: o NUIT (Número Único de Identificação Tributária) tem 9 dígitos.
const nuitLength = 9

// NormalizeNUIT remove pontos, espaços e quaisquer outros separadores,
// devolvendo apenas os dígitos. "400 123 456" → "400123456".
func NormalizeNUIT(raw string) string {
	var out []byte
	for _, r := range raw {
		if unicode.IsDigit(r) {
			out = append(out, byte(r))
		}
	}
	return string(out)
}

// ValidateNUIT valida o comprimento e o primeiro dígito do NUIT.
// O primeiro dígito identifica o tipo de contribuinte: 1 = singular,
// 4 = coletivo, 5 = outras entidades.
func ValidateNUIT(raw string) error {
	digits := NormalizeNUIT(raw)
	if len(digits) != nuitLength {
		return fmt.Errorf("fiscal: NUIT deve ter %d dígitos, encontrados %d", nuitLength, len(digits))
	}
	switch digits[0] {
	case '1', '4', '5':
		return nil
	default:
		return fmt.Errorf("fiscal: primeiro dígito do NUIT inválido: %c", digits[0])
	}
}
