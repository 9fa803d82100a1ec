// Package retry: política reutilizável de backoff exponencial.
// O atraso é uma função pura do número da tentativa, para ser testável de
// forma independente; o jitter é aplicado à parte, com uma fonte injetada.
package retry

import (
	"math"
	"math/rand"
	"time"
)

// Policy parametriza o ciclo de reenvio: número máximo de tentativas,
// atraso base, teto do atraso e fração de jitter.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterFrac  float64 // fração do atraso somada/subtraída aleatoriamente (ex: 0.2)
}

// DefaultPolicy é a política usada para envios à AT quando nada é configurado.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Second,
		MaxDelay:    5 * time.Minute,
		JitterFrac:  0.2,
	}
}

// Delay devolve o atraso determinístico antes da tentativa attempt (1-based):
// base * 2^(attempt-1), limitado a MaxDelay. attempt <= 1 devolve BaseDelay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.BaseDelay
	}
	exp := float64(attempt - 1)
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, exp))
	if delay > p.MaxDelay || delay <= 0 {
		return p.MaxDelay
	}
	return delay
}

// DelayWithJitter aplica jitter uniforme de ±JitterFrac sobre Delay(attempt).
// A fonte de aleatoriedade é injetada para permitir testes determinísticos.
func (p Policy) DelayWithJitter(attempt int, r *rand.Rand) time.Duration {
	delay := p.Delay(attempt)
	if p.JitterFrac <= 0 || r == nil {
		return delay
	}
	// fator uniforme em [1-jitter, 1+jitter]
	factor := 1 + p.JitterFrac*(2*r.Float64()-1)
	return time.Duration(float64(delay) * factor)
}

// Exhausted indica se já não restam tentativas depois de attempt tentativas feitas.
func (p Policy) Exhausted(attempt int) bool {
	return attempt >= p.MaxAttempts
}
