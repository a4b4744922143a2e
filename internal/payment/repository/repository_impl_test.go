package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/appointly/internal/payment/domain"
	dbpkg "github.com/smallbiznis/appointly/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.EventRecord{}))
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return conn, node
}

func newEvent(node *snowflake.Node, providerEventID string, receivedAt time.Time) *domain.EventRecord {
	return &domain.EventRecord{
		ID:              node.Generate(),
		Provider:        "stripe",
		ProviderEventID: providerEventID,
		EventType:       "invoice.paid",
		Payload:         datatypes.JSON(`{}`),
		ReceivedAt:      receivedAt,
	}
}

func TestInsertEventIgnoresRedelivery(t *testing.T) {
	conn, node := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	inserted, err := r.InsertEvent(ctx, conn, newEvent(node, "evt_1", now))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = r.InsertEvent(ctx, conn, newEvent(node, "evt_1", now.Add(time.Minute)))
	require.NoError(t, err)
	assert.False(t, inserted)

	var count int64
	require.NoError(t, conn.Model(&domain.EventRecord{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	found, err := r.FindEvent(ctx, conn, "stripe", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.ReceivedAt.Equal(now))
}

func TestInsertEventScopesIDsByProvider(t *testing.T) {
	conn, node := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first := newEvent(node, "evt_1", now)
	inserted, err := r.InsertEvent(ctx, conn, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	other := newEvent(node, "evt_1", now)
	other.Provider = "paddle"
	inserted, err = r.InsertEvent(ctx, conn, other)
	require.NoError(t, err)
	assert.True(t, inserted)
}

func TestListUnprocessedSkipsAppliedAndRecentEvents(t *testing.T) {
	conn, node := setupDB(t)
	r := Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	stale := newEvent(node, "evt_stale", now.Add(-2*time.Hour))
	applied := newEvent(node, "evt_applied", now.Add(-3*time.Hour))
	recent := newEvent(node, "evt_recent", now.Add(-time.Minute))
	for _, e := range []*domain.EventRecord{stale, applied, recent} {
		_, err := r.InsertEvent(ctx, conn, e)
		require.NoError(t, err)
	}
	require.NoError(t, r.MarkProcessed(ctx, conn, applied.ID, now))

	items, err := r.ListUnprocessed(ctx, conn, now.Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "evt_stale", items[0].ProviderEventID)
}
