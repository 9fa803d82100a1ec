package postgres

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bboa3/mz-compliance/internal/application/compliance"
	"github.com/bboa3/mz-compliance/internal/domain/entity"
)

// Garante que RunLock implementa o porto de serialização de execuções.
var _ compliance.RunLock = (*RunLock)(nil)

// RunLock serializa execuções do pipeline por (empresa, período) com
// advisory locks do PostgreSQL. Funciona entre processos: duas instâncias
// da aplicação nunca geram o mesmo período em simultâneo.
type RunLock struct {
	pool *pgxpool.Pool
}

// NewRunLock constrói o lock de execução.
func NewRunLock(pool *pgxpool.Pool) *RunLock {
	return &RunLock{pool: pool}
}

// Acquire tenta obter o lock sem bloquear. Com ok=true, release devolve o
// lock e a conexão; com ok=false outra execução detém o período.
func (l *RunLock) Acquire(ctx context.Context, companyID string, period entity.Period) (release func(), ok bool, err error) {
	key := lockKey(companyID, period)

	// O advisory lock é de sessão; a conexão fica reservada até ao release.
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("adquirir conexão para lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("pg_try_advisory_lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	release = func() {
		_, _ = conn.Exec(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Release()
	}
	return release, true, nil
}

// lockKey deriva a chave int64 do advisory lock a partir de (empresa, período).
func lockKey(companyID string, period entity.Period) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("saft-run:" + companyID + ":" + period.String()))
	return int64(h.Sum64())
}
