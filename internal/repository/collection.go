package repository

import (
	"context"
	"errors"
	"fmt"

	"salon/internal/docstore"
)

// Entity is a pointer to a document model that can carry its id.
type Entity[T any] interface {
	*T
	SetID(id string)
}

// Collection gives typed access to one named collection.
type Collection[T any, P Entity[T]] struct {
	session docstore.Session
	name    string
}

func NewCollection[T any, P Entity[T]](session docstore.Session, name string) *Collection[T, P] {
	return &Collection[T, P]{session: session, name: name}
}

func (c *Collection[T, P]) Name() string { return c.name }

// In returns the same collection bound to another session, typically a batch Tx.
func (c *Collection[T, P]) In(session docstore.Session) *Collection[T, P] {
	return &Collection[T, P]{session: session, name: c.name}
}

func (c *Collection[T, P]) decode(doc docstore.Document) (*T, error) {
	var v T
	if err := doc.DataTo(&v); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, doc.ID, err)
	}
	P(&v).SetID(doc.ID)
	return &v, nil
}

func (c *Collection[T, P]) decodeAll(docs []docstore.Document) ([]*T, error) {
	out := make([]*T, 0, len(docs))
	for _, doc := range docs {
		v, err := c.decode(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Collection[T, P]) List(ctx context.Context) ([]*T, error) {
	return c.Find(ctx, docstore.NewQuery())
}

func (c *Collection[T, P]) Find(ctx context.Context, q docstore.Query) ([]*T, error) {
	docs, err := c.session.Query(ctx, c.name, q)
	if err != nil {
		return nil, err
	}
	return c.decodeAll(docs)
}

func (c *Collection[T, P]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.session.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	return c.decode(doc)
}

// Add stores v under a new id and stamps the id on v.
func (c *Collection[T, P]) Add(ctx context.Context, v *T) (string, error) {
	P(v).SetID("")
	id, err := c.session.Create(ctx, c.name, v)
	if err != nil {
		return "", err
	}
	P(v).SetID(id)
	return id, nil
}

// Replace overwrites the document at id with v.
func (c *Collection[T, P]) Replace(ctx context.Context, id string, v *T) error {
	P(v).SetID("")
	if err := c.session.Set(ctx, c.name, id, v); err != nil {
		return err
	}
	P(v).SetID(id)
	return nil
}

func (c *Collection[T, P]) Update(ctx context.Context, id string, patch map[string]interface{}) error {
	return c.session.Update(ctx, c.name, id, patch)
}

func (c *Collection[T, P]) Delete(ctx context.Context, id string) error {
	return c.session.Delete(ctx, c.name, id)
}

type watcher interface {
	Watch(ctx context.Context, collection string, q docstore.Query, fn docstore.WatchFunc) error
}

// Watch streams decoded result sets of q until ctx is done. Documents that
// fail to decode are skipped.
func (c *Collection[T, P]) Watch(ctx context.Context, q docstore.Query, fn func([]*T)) error {
	w, ok := c.session.(watcher)
	if !ok {
		return errors.New("session does not support watch")
	}
	return w.Watch(ctx, c.name, q, func(docs []docstore.Document) {
		out := make([]*T, 0, len(docs))
		for _, doc := range docs {
			if v, err := c.decode(doc); err == nil {
				out = append(out, v)
			}
		}
		fn(out)
	})
}
