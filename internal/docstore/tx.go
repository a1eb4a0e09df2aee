package docstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Tx groups document writes that commit atomically.
type Tx struct {
	tx      *sql.Tx
	touched map[string]struct{}
}

// Batch runs fn inside one transaction. Returning an error from fn rolls
// every write back. Watchers of touched collections are notified after commit.
func (s *Store) Batch(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = sqlTx.Rollback()
		}
	}()

	t := &Tx{tx: sqlTx, touched: make(map[string]struct{})}
	if err := fn(t); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	committed = true

	collections := make([]string, 0, len(t.touched))
	for c := range t.touched {
		collections = append(collections, c)
	}
	s.notify(collections...)
	return nil
}

func (t *Tx) Create(ctx context.Context, collection string, data interface{}) (string, error) {
	id := uuid.NewString()
	if err := insertDocument(ctx, t.tx, collection, id, data); err != nil {
		return "", err
	}
	t.touched[collection] = struct{}{}
	return id, nil
}

func (t *Tx) Set(ctx context.Context, collection, id string, data interface{}) error {
	if err := upsertDocument(ctx, t.tx, collection, id, data); err != nil {
		return err
	}
	t.touched[collection] = struct{}{}
	return nil
}

func (t *Tx) Get(ctx context.Context, collection, id string) (Document, error) {
	return getDocument(ctx, t.tx, collection, id)
}

func (t *Tx) Update(ctx context.Context, collection, id string, patch map[string]interface{}) error {
	if err := updateDocument(ctx, t.tx, collection, id, patch); err != nil {
		return err
	}
	t.touched[collection] = struct{}{}
	return nil
}

func (t *Tx) Delete(ctx context.Context, collection, id string) error {
	if err := deleteDocument(ctx, t.tx, collection, id); err != nil {
		return err
	}
	t.touched[collection] = struct{}{}
	return nil
}

func (t *Tx) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	return queryDocuments(ctx, t.tx, collection, q)
}
