package database

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icodeforyou/somenergia-go/types"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func makeSeries(start time.Time, prices ...string) types.PriceSeries {
	s := make(types.PriceSeries, len(prices))
	for i, p := range prices {
		s[i].Time = start.Add(time.Duration(i) * time.Hour)
		if p != "" {
			s[i].Price = decimal.NewNullDecimal(decimal.RequireFromString(p))
		}
	}
	return s
}

var (
	madrid, _ = time.LoadLocation("Europe/Madrid")
	start     = time.Date(2024, 10, 27, 0, 0, 0, 0, madrid)
	key       = types.StoreKey{Date: "2024-10-27"}
)

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := New(context.Background(), path)
	require.NoError(t, err)
	db.Close()

	db, err = New(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	var ver int
	require.NoError(t, db.read.QueryRow("PRAGMA user_version").Scan(&ver))
	assert.Equal(t, 1, ver)
}

func TestSeriesRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	// Fall back day, 02:00 exists twice with different offsets
	series := makeSeries(start, "0.1", "", "0.3", "0.4")

	require.NoError(t, db.SaveSeries(ctx, key, series))

	loaded, err := db.LoadSeries(ctx, key)
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	for i := range series {
		assert.True(t, series[i].Time.Equal(loaded[i].Time), "point %d time", i)
		assert.Equal(t, series[i].Price.Valid, loaded[i].Price.Valid, "point %d validity", i)
		assert.True(t, series[i].Price.Decimal.Equal(loaded[i].Price.Decimal), "point %d price", i)
	}
}

func TestSaveSeriesReplaces(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSeries(ctx, key, makeSeries(start, "1", "2", "3")))
	require.NoError(t, db.SaveSeries(ctx, key, makeSeries(start.Add(time.Hour), "9")))

	loaded, err := db.LoadSeries(ctx, key)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "9", loaded[0].Price.Decimal.String())
}

func TestLoadSeriesUnknownKey(t *testing.T) {
	db := newTestDatabase(t)

	loaded, err := db.LoadSeries(context.Background(), types.StoreKey{Date: "1999-01-01"})
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSeriesStoreCorruptRow(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	_, err := db.write.Exec(`INSERT INTO price_series (store_key, ts, time, price) VALUES (?, ?, ?, ?)`,
		key.Date, 1, "not a time", "0.1")
	require.NoError(t, err)

	_, err = NewSeriesStore(db).Load(ctx, key)

	var se *types.StorageError
	require.True(t, errors.As(err, &se), "expected StorageError, got %v", err)
	assert.Equal(t, key, se.Key)
}

func TestSeriesStoreIdentifier(t *testing.T) {
	db := newTestDatabase(t)

	id := NewSeriesStore(db).Identifier(key)

	assert.Equal(t, "sqlite:"+db.Path()+"#2024-10-27", id)
}

func TestPurgeSeries(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	for _, d := range []string{"2024-10-01", "2024-10-17", "2024-10-27"} {
		require.NoError(t, db.SaveSeries(ctx, types.StoreKey{Date: d}, makeSeries(start, "1")))
	}

	require.NoError(t, db.PurgeSeries(ctx, 10, key))

	for d, want := range map[string]int{"2024-10-01": 0, "2024-10-17": 1, "2024-10-27": 1} {
		loaded, err := db.LoadSeries(ctx, types.StoreKey{Date: d})
		require.NoError(t, err)
		assert.Len(t, loaded, want, d)
	}
}

func TestLogEntries(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	for i, lvl := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
		require.NoError(t, db.SaveLogEntry(ctx, LogEntryRow{
			Timestamp: time.Now(),
			Level:     int(lvl),
			Message:   lvl.String(),
			Attrs:     string(rune('a' + i)),
		}))
	}

	assert.Equal(t, []string{"DEBUG", "INFO", "ERROR"}, logMessages(t, db))

	require.NoError(t, db.PurgeLog(ctx, 1))
	assert.Equal(t, []string{"ERROR"}, logMessages(t, db))
}

func logMessages(t *testing.T, db *Database) []string {
	t.Helper()
	rows, err := db.read.QueryContext(context.Background(), "SELECT message FROM log ORDER BY id")
	require.NoError(t, err)
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var m string
		require.NoError(t, rows.Scan(&m))
		messages = append(messages, m)
	}
	require.NoError(t, rows.Err())
	return messages
}

func TestBackup(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.PurgeBackups(ctx, 1), "missing backup directory is not an error")
	require.NoError(t, db.Backup(ctx))

	files, err := os.ReadDir(db.BackupDir())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".zip", filepath.Ext(files[0].Name()))

	require.NoError(t, db.PurgeBackups(ctx, 1))
	files, err = os.ReadDir(db.BackupDir())
	require.NoError(t, err)
	assert.Len(t, files, 1, "a fresh backup must survive the purge")
}

func TestPurgeBackupsRemovesOnlyOldBackups(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()
	dir := db.BackupDir()
	require.NoError(t, os.MkdirAll(dir, 0755))

	old := filepath.Join(dir, time.Now().UTC().AddDate(0, 0, -10).Format("20060102_150405")+"_somenergia.db.zip")
	recent := filepath.Join(dir, time.Now().UTC().AddDate(0, 0, -2).Format("20060102_150405")+"_somenergia.db.zip")
	other := filepath.Join(dir, "20000101_000000_notes.txt")
	for _, f := range []string{old, recent, other} {
		require.NoError(t, os.WriteFile(f, []byte("x"), 0644))
	}

	require.NoError(t, db.PurgeBackups(ctx, 5))

	assert.NoFileExists(t, old)
	assert.FileExists(t, recent)
	assert.FileExists(t, other)
}
