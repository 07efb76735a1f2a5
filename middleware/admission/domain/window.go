package domain

import (
	"context"
	"time"
)

// WindowStore é um contador de eventos por chave em janela deslizante.
//
// A janela (duração) é fixada na construção da implementação. Toda chamada
// descarta primeiro os eventos mais antigos que now-janela (expurgo preguiçoso)
// e só então lê ou acrescenta.
type WindowStore interface {
	// Record acrescenta now à janela da chave e devolve a contagem resultante.
	Record(ctx context.Context, key Key, now time.Time) (int, error)
	// Count devolve a contagem atual sem acrescentar.
	Count(ctx context.Context, key Key, now time.Time) (int, error)
	// TryRecord acrescenta now somente se a contagem for menor que limit.
	TryRecord(ctx context.Context, key Key, now time.Time, limit int) (bool, int, error)
	// Reset apaga o histórico da chave.
	Reset(ctx context.Context, key Key) error
}

// BlockList guarda o instante de expiração do bloqueio de cada cliente.
//
// Entradas expiradas não são removidas por timer: quem consulta decide
// remover no próximo acesso do cliente.
type BlockList interface {
	BlockedUntil(ctx context.Context, key Key) (until time.Time, ok bool, err error)
	Block(ctx context.Context, key Key, until time.Time) error
	Unblock(ctx context.Context, key Key) error
}
