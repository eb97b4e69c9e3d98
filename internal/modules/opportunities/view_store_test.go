package opportunities

import (
	"context"
	"testing"

	"github.com/aristath/dealflow/internal/domain"
	testingpkg "github.com/aristath/dealflow/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewStore_PersistsAcrossReload(t *testing.T) {
	db := testingpkg.NewTestDB(t, "views")
	ctx := context.Background()

	store := NewViewStore(db.Conn(), zerolog.Nop())
	view := &domain.OpportunityView{
		InvestorID:       "inv-1",
		FilterSetVersion: 3,
		CatalogRevision:  12,
		GeneratedAt:      testingpkg.FixtureEpoch,
		Entries: []domain.ViewEntry{
			{DealID: "DGT-2026-001", Score: domain.Float(1), SubmittedAt: testingpkg.FixtureEpoch},
			{DealID: "DGT-2026-004"},
		},
		DealRevisions: map[string]int64{"DGT-2026-001": 1, "DGT-2026-004": 4, "DGT-2026-002": 2},
	}
	require.NoError(t, store.Put(ctx, view))

	reloaded := NewViewStore(db.Conn(), zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))

	got, ok := reloaded.Get("inv-1")
	require.True(t, ok)
	assert.Equal(t, int64(3), got.FilterSetVersion)
	assert.Equal(t, int64(12), got.CatalogRevision)
	assert.Equal(t, []string{"DGT-2026-001", "DGT-2026-004"}, got.DealIDs())
	require.NotNil(t, got.Entries[0].Score)
	assert.Equal(t, 1.0, *got.Entries[0].Score)
	assert.Nil(t, got.Entries[1].Score)
	assert.Equal(t, view.DealRevisions, got.DealRevisions)
	assert.True(t, got.GeneratedAt.Equal(testingpkg.FixtureEpoch))
}

func TestViewStore_Delete(t *testing.T) {
	db := testingpkg.NewTestDB(t, "views")
	ctx := context.Background()
	store := NewViewStore(db.Conn(), zerolog.Nop())

	require.NoError(t, store.Put(ctx, &domain.OpportunityView{InvestorID: "inv-1", Entries: []domain.ViewEntry{}}))
	require.NoError(t, store.Put(ctx, &domain.OpportunityView{InvestorID: "inv-2", Entries: []domain.ViewEntry{}}))
	assert.Equal(t, []string{"inv-1", "inv-2"}, store.Investors())

	require.NoError(t, store.Delete(ctx, "inv-1"))
	_, ok := store.Get("inv-1")
	assert.False(t, ok)

	reloaded := NewViewStore(db.Conn(), zerolog.Nop())
	require.NoError(t, reloaded.Load(ctx))
	assert.Equal(t, []string{"inv-2"}, reloaded.Investors())
}
