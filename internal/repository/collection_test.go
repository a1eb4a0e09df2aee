package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"salon/internal/docstore"
	"salon/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *docstore.Store {
	t.Helper()
	logger := zerolog.Nop()
	store, err := docstore.Open(filepath.Join(t.TempDir(), "salon.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCollection(t *testing.T) {
	store := setupStore(t)
	clients := NewCollection[models.Client](store, models.CollectionClients)
	ctx := context.Background()

	ana := &models.Client{Name: "Ana", Email: "ana@example.com", Phone: "1"}
	id, err := clients.Add(ctx, ana)
	require.NoError(t, err)
	assert.Equal(t, id, ana.ID)

	t.Run("GetStampsID", func(t *testing.T) {
		got, err := clients.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "Ana", got.Name)

		doc, err := store.Get(ctx, models.CollectionClients, id)
		require.NoError(t, err)
		assert.NotContains(t, string(doc.Data), `"id"`)
	})

	t.Run("FindAndUpdate", func(t *testing.T) {
		_, err := clients.Add(ctx, &models.Client{Name: "Bia", Email: "bia@example.com"})
		require.NoError(t, err)

		require.NoError(t, clients.Update(ctx, id, map[string]interface{}{"phone": "99"}))
		found, err := clients.Find(ctx, docstore.NewQuery().Where("phone", docstore.OpEq, "99"))
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "Ana", found[0].Name)

		all, err := clients.List(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})

	t.Run("Replace", func(t *testing.T) {
		c := &models.Client{Name: "Ana Maria"}
		require.NoError(t, clients.Replace(ctx, id, c))
		assert.Equal(t, id, c.ID)
		got, err := clients.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Ana Maria", got.Name)
		assert.Empty(t, got.Email)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, clients.Delete(ctx, id))
		_, err := clients.Get(ctx, id)
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})

	t.Run("InBatch", func(t *testing.T) {
		err := store.Batch(ctx, func(tx *docstore.Tx) error {
			_, err := clients.In(tx).Add(ctx, &models.Client{Name: "Tx"})
			return err
		})
		require.NoError(t, err)
		found, err := clients.Find(ctx, docstore.NewQuery().Where("name", docstore.OpEq, "Tx"))
		require.NoError(t, err)
		assert.Len(t, found, 1)
	})

	t.Run("Watch", func(t *testing.T) {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		got := make(chan []*models.Client, 8)
		require.NoError(t, clients.Watch(wctx, docstore.NewQuery(), func(cs []*models.Client) { got <- cs }))

		select {
		case cs := <-got:
			assert.NotEmpty(t, cs)
		case <-time.After(2 * time.Second):
			t.Fatal("no initial snapshot")
		}

		_, err := clients.In(txless{store}).Add(ctx, &models.Client{Name: "Late"})
		require.NoError(t, err)
		select {
		case cs := <-got:
			var names []string
			for _, c := range cs {
				names = append(names, c.Name)
			}
			assert.Contains(t, names, "Late")
		case <-time.After(2 * time.Second):
			t.Fatal("no update snapshot")
		}

		err = clients.In(txless{store}).Watch(wctx, docstore.NewQuery(), func([]*models.Client) {})
		assert.Error(t, err)
	})
}

// txless hides Watch from the wrapped store.
type txless struct{ docstore.Session }
