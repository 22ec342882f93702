package repository

import (
	"context"
	"fmt"

	"github.com/bassista/go_datastore/internal/loader"
	"github.com/bassista/go_datastore/internal/record"
)

// Loader exposes a repository as a record loader, so a store can be filled
// from what was persisted last.
type Loader[ID comparable, S record.Identifiable[ID]] struct {
	repo Repository[S]
}

// NewLoader wraps repo.
func NewLoader[ID comparable, S record.Identifiable[ID]](repo Repository[S]) *Loader[ID, S] {
	return &Loader[ID, S]{repo: repo}
}

// LoadAll returns every persisted record.
func (l *Loader[ID, S]) LoadAll(ctx context.Context) ([]S, error) {
	doc, err := l.repo.Load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Records, nil
}

// LoadOne returns the persisted record with the given id.
func (l *Loader[ID, S]) LoadOne(ctx context.Context, id ID) (S, error) {
	var zero S
	doc, err := l.repo.Load(ctx)
	if err != nil {
		return zero, err
	}
	for _, s := range doc.Records {
		if s.RecordID() == id {
			return s, nil
		}
	}
	return zero, fmt.Errorf("%w: %v", loader.ErrNotFound, id)
}
