package lazydelete

import (
	"context"
	"sync"

	"github.com/elC0mpa/aws-teardown/model"
)

// Store is the persisted lazy-delete queue. Entries are keyed by their ID and
// are never removed; completed entries keep their history.
type Store interface {
	Upsert(ctx context.Context, entries ...model.LazyDeleteEntry) error
	List(ctx context.Context) ([]model.LazyDeleteEntry, error)
	Pending(ctx context.Context) ([]model.LazyDeleteEntry, error)
}

// trackingFile is the on-disk document.
type trackingFile struct {
	Version int                     `json:"version"`
	Entries []model.LazyDeleteEntry `json:"entries"`
}

var _ Store = &file{}

type file struct {
	mu   sync.Mutex
	path string
}
