package migration

import (
	"io/fs"
	"strings"
	"testing"

	bookingdomain "github.com/smallbiznis/appointly/internal/booking/domain"
	dbpkg "github.com/smallbiznis/appointly/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, entry := range entries {
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	assert.Equal(t, ups, downs)
}

func TestEmbeddedSchemaCoversModels(t *testing.T) {
	raw, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_init.up.sql")
	require.NoError(t, err)
	schema := string(raw)

	for _, table := range []string{"users", "tech_profiles", "services", "bookings", "credit_transactions", "payment_events", "notifications", "audit_logs"} {
		assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS "+table+" ", table)
	}
	assert.Contains(t, schema, "ux_payment_events_provider_event")
	assert.Contains(t, schema, "ux_credit_tx_user_key")
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(conn))
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{"users", "tech_profiles", "services", "bookings", "credit_transactions", "payment_events", "notifications", "audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestAutoMigrateKeepsNullableDecimalColumn(t *testing.T) {
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, conn.AutoMigrate(&bookingdomain.Booking{}), "run %d", i+1)
	}

	columns, err := conn.Migrator().ColumnTypes(&bookingdomain.Booking{})
	require.NoError(t, err)
	found := map[string]bool{}
	for _, column := range columns {
		nullable, ok := column.Nullable()
		if !ok {
			continue
		}
		found[column.Name()] = nullable
	}
	assert.True(t, found["no_show_fee_amount"])
	assert.False(t, found["total_price"])
}
