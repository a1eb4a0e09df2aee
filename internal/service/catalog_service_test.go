package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"salon/internal/docstore"
	"salon/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_CRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	nails := f.addService(t, "Unhas em gel", 120, 90)
	f.addService(t, "Design de sobrancelha", 40, 30)

	list, err := f.catalog.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Design de sobrancelha", list[0].Title)

	updated, err := f.catalog.Update(ctx, nails.ID, ServiceInput{Title: "Unhas em gel", Price: 130, Duration: 120})
	require.NoError(t, err)
	assert.Equal(t, nails.CreatedAt, updated.CreatedAt)
	assert.Equal(t, 130.0, updated.Price)

	durations, err := f.catalog.Durations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 120, durations["Unhas em gel"])
	assert.Equal(t, 30, durations["Design de sobrancelha"])

	require.NoError(t, f.catalog.Delete(ctx, nails.ID))
	_, err = f.catalog.Get(ctx, nails.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestCatalogService_UpdateMissingCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	svc, err := f.catalog.Update(ctx, "spa-pes", ServiceInput{Title: "Spa dos pés", Price: 80, Duration: 60})
	require.NoError(t, err)
	assert.Equal(t, "spa-pes", svc.ID)

	got, err := f.catalog.Get(ctx, "spa-pes")
	require.NoError(t, err)
	assert.Equal(t, "Spa dos pés", got.Title)
	assert.Equal(t, testNow, got.CreatedAt.UTC())
}

func TestCatalogService_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.catalog.Create(context.Background(), ServiceInput{Title: "", Price: -1, Duration: 0})

	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"title", "price", "duration"}, fields)
}

func TestCatalogService_Resolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := f.addService(t, "Manicure", 45, 60)

	byID, err := f.catalog.Resolve(ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Manicure", byID.Title)

	byTitle, err := f.catalog.Resolve(ctx, "stale-id", "Manicure")
	require.NoError(t, err)
	assert.Equal(t, svc.ID, byTitle.ID)

	_, err = f.catalog.Resolve(ctx, "", "")
	assert.ErrorIs(t, err, ErrServiceNotFound)
}

func TestCatalogService_Seed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`services:
  - title: Manicure
    description: Cutilagem e esmaltação
    price: 45
    duration: 60
  - title: Alongamento em fibra
    price: 150
    duration: 180
`), 0o644))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, 180, catalog[1].Duration)

	n, err := f.catalog.Seed(ctx, catalog)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = f.catalog.Seed(ctx, catalog)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := f.catalog.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadCatalogRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "services.yaml")
	require.NoError(t, os.WriteFile(path, []byte("services: [title"), 0o644))
	_, err := LoadCatalog(path)
	assert.Error(t, err)
}

