package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/anima-analytics/internal/db"
)

func ptr[T any](v T) *T { return &v }

func TestContent_WithTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := New()

	err := store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		item := &db.ContentItem{ExternalID: ptr("t1"), Title: "One"}
		require.NoError(t, w.Create(ctx, item))
		_, err := w.Link(ctx, db.AnalysisContent{AnalysisID: 1, ContentID: item.ID})
		require.NoError(t, err)
		return errors.New("abort")
	})
	require.Error(t, err)

	assert.Empty(t, store.ContentItems())
	assert.Empty(t, store.Links())
}

func TestContent_UniqueIdentityAndIdempotentLink(t *testing.T) {
	ctx := context.Background()
	store := New()

	var id int64
	require.NoError(t, store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		item := &db.ContentItem{ExternalID: ptr("t1"), ExternalURL: ptr("https://open.spotify.com/track/t1"), Title: "One"}
		if err := w.Create(ctx, item); err != nil {
			return err
		}
		id = item.ID
		return nil
	}))

	err := store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		return w.Create(ctx, &db.ContentItem{ExternalID: ptr("t1"), Title: "Again"})
	})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "external_id", dup.Column)

	require.NoError(t, store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		found, err := w.FindByExternalURL(ctx, "https://open.spotify.com/track/t1")
		require.NoError(t, err)
		assert.Equal(t, id, found.ID)

		created, err := w.Link(ctx, db.AnalysisContent{AnalysisID: 9, ContentID: id, Position: 0})
		require.NoError(t, err)
		assert.True(t, created)
		created, err = w.Link(ctx, db.AnalysisContent{AnalysisID: 9, ContentID: id, Position: 0})
		require.NoError(t, err)
		assert.False(t, created)
		return nil
	}))

	items, err := store.Content().ForAnalysis(ctx, 9)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "One", items[0].Title)
}

func TestContent_UniqueExternalURLWithoutID(t *testing.T) {
	ctx := context.Background()
	store := New()
	url := "https://open.spotify.com/track/u1"

	require.NoError(t, store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		return w.Create(ctx, &db.ContentItem{ExternalURL: ptr(url), Title: "First"})
	}))

	err := store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		return w.Create(ctx, &db.ContentItem{ExternalURL: ptr(url), Title: "Second"})
	})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "external_url", dup.Column)

	// The index only covers items without an external id.
	require.NoError(t, store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		return w.Create(ctx, &db.ContentItem{ExternalID: ptr("u1"), ExternalURL: ptr(url), Title: "Third"})
	}))
	assert.Len(t, store.ContentItems(), 2)
}

func TestContent_FailHook(t *testing.T) {
	ctx := context.Background()
	store := New()
	store.FailContentCreate = func(item db.ContentItem) error {
		if item.Title == "bad" {
			return errors.New("constraint violated")
		}
		return nil
	}

	err := store.Content().WithTx(ctx, func(w db.ContentWriter) error {
		return w.Create(ctx, &db.ContentItem{Title: "bad"})
	})
	assert.Error(t, err)
	assert.Empty(t, store.ContentItems())
}

func TestSessions_LatestOpenAndEnd(t *testing.T) {
	ctx := context.Background()
	store := New()
	sessions := store.Sessions()
	base := time.Date(2024, 3, 13, 9, 0, 0, 0, time.UTC)

	first := &db.Session{UserID: 1, StartedAt: base}
	second := &db.Session{UserID: 1, StartedAt: base.Add(time.Hour)}
	other := &db.Session{UserID: 2, StartedAt: base.Add(2 * time.Hour)}
	for _, s := range []*db.Session{first, second, other} {
		require.NoError(t, sessions.Create(ctx, s))
	}

	latest, err := sessions.LatestOpen(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	_, err = sessions.End(ctx, second.ID, 2, base)
	assert.ErrorIs(t, err, db.ErrNotFound)

	ended, err := sessions.End(ctx, second.ID, 1, base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.True(t, ended)

	ended, err = sessions.End(ctx, second.ID, 1, base.Add(4*time.Hour))
	require.NoError(t, err)
	assert.False(t, ended)

	latest, err = sessions.LatestOpen(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, latest.ID)

	ids, err := sessions.IDsForUser(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{first.ID, second.ID}, ids)
}
