package repo

import (
	"context"

	"github.com/shaiso/Conduit/internal/domain"
)

// Коллекции записей состояния.
const (
	// CollectionState — записи состояния без тела (статистика, флаги маскирования).
	CollectionState = "b2b.node.state"

	// CollectionStateData — записи с замаскированными телами.
	CollectionStateData = "b2b.node.state.data"
)

// Store — документное хранилище записей состояния.
//
// Upsert создаёт или полностью заменяет документ с ключом key
// в коллекции collection. Реализации потокобезопасны.
type Store interface {
	Upsert(ctx context.Context, collection string, key domain.StateKey, doc []byte) error
	Get(ctx context.Context, collection string, key domain.StateKey) ([]byte, error)
	Count(ctx context.Context, collection string) (int, error)
	Close() error
}
