package docstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fieldrow/companyfix/internal/errors"
)

func setupTestStore(t *testing.T) *DataStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: createGormLogger(false),
	})
	require.NoError(t, err)
	require.NoError(t, performAutoMigration(db, false, "SQLite", path))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return &DataStore{DB: db}
}

// seedDocs inserts n documents with strictly increasing CreatedAt so scan
// order is deterministic. Every third document already carries companyId.
func seedDocs(t *testing.T, ds *DataStore, collection string, n int) {
	t.Helper()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		fields := map[string]any{"title": fmt.Sprintf("doc %d", i)}
		if i%3 == 0 {
			fields["companyId"] = "CO-1"
		}
		err := ds.Insert(context.Background(), collection, Document{
			ID:        fmt.Sprintf("d%03d", i),
			Fields:    fields,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}
}

func TestScanPaginatesWithoutGapsOrDuplicates(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "conversations", 10)

	seen := make(map[string]bool)
	afterKey := ""
	pages := 0
	for {
		page, err := ds.Scan(context.Background(), "conversations", nil, OrderCreatedDesc, 4, afterKey)
		require.NoError(t, err)
		if len(page.Records) == 0 {
			break
		}
		pages++
		for _, doc := range page.Records {
			assert.False(t, seen[doc.ID], "document %s returned twice", doc.ID)
			seen[doc.ID] = true
		}
		if len(page.Records) < 4 {
			break
		}
		afterKey = page.LastKey
	}

	assert.Equal(t, 3, pages)
	assert.Len(t, seen, 10)
}

func TestScanNewestFirst(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "conversations", 5)

	page, err := ds.Scan(context.Background(), "conversations", nil, OrderCreatedDesc, 5, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 5)

	for i := 1; i < len(page.Records); i++ {
		assert.True(t, page.Records[i].CreatedAt.Before(page.Records[i-1].CreatedAt),
			"descending scan must yield newest first")
	}

	page, err = ds.Scan(context.Background(), "conversations", nil, OrderCreatedAsc, 5, "")
	require.NoError(t, err)
	require.Len(t, page.Records, 5)
	assert.Equal(t, "d000", page.Records[0].ID)
}

func TestScanEqualTimestampsBreakTiesByID(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range []string{"b", "a", "c"} {
		require.NoError(t, ds.Insert(context.Background(), "conversations",
			Document{ID: id, Fields: map[string]any{}, CreatedAt: ts}))
	}

	var got []string
	afterKey := ""
	for {
		page, err := ds.Scan(context.Background(), "conversations", nil, OrderCreatedAsc, 1, afterKey)
		require.NoError(t, err)
		if len(page.Records) == 0 {
			break
		}
		got = append(got, page.Records[0].ID)
		afterKey = page.LastKey
	}
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestScanWithFilterAdvancesResumeToken(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	// 12 documents, only every third has companyId, so a FieldAbsent filter
	// discards whole raw pages and the resume token must still move.
	seedDocs(t, ds, "conversations", 12)

	filter := &Filter{FieldAbsent: "companyId"}
	seen := make(map[string]bool)
	afterKey := ""
	for {
		page, err := ds.Scan(context.Background(), "conversations", filter, OrderCreatedAsc, 3, afterKey)
		require.NoError(t, err)
		for _, doc := range page.Records {
			assert.False(t, seen[doc.ID])
			assert.NotContains(t, doc.Fields, "companyId")
			seen[doc.ID] = true
		}
		if len(page.Records) < 3 {
			break
		}
		afterKey = page.LastKey
	}
	assert.Len(t, seen, 8)
}

func TestScanRejectsBadInput(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)

	_, err := ds.Scan(context.Background(), "conversations", nil, OrderCreatedDesc, 0, "")
	assert.Error(t, err)

	_, err = ds.Scan(context.Background(), "conversations", nil, OrderCreatedDesc, 5, "not-a-key")
	assert.Error(t, err)
}

func TestGetByID(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "users", 3)

	doc, err := ds.GetByID(context.Background(), "users", "d001")
	require.NoError(t, err)
	assert.Equal(t, "doc 1", doc.Fields["title"])

	_, err = ds.GetByID(context.Background(), "users", "ghost")
	assert.ErrorIs(t, err, errors.ErrNotFound)

	// Same id under another collection is a different document.
	_, err = ds.GetByID(context.Background(), "conversations", "d001")
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestAtomicBatchWriteMergesFields(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "conversations", 2)

	err := ds.AtomicBatchWrite(context.Background(), "conversations", []Write{
		{ID: "d001", Mutation: map[string]any{"companyId": "CO-7", "companyIdSource": "migration"}},
	})
	require.NoError(t, err)

	doc, err := ds.GetByID(context.Background(), "conversations", "d001")
	require.NoError(t, err)
	assert.Equal(t, "CO-7", doc.Fields["companyId"])
	assert.Equal(t, "migration", doc.Fields["companyIdSource"])
	assert.Equal(t, "doc 1", doc.Fields["title"], "untouched fields must survive the merge")
}

func TestAtomicBatchWriteAllOrNothing(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "conversations", 2)

	err := ds.AtomicBatchWrite(context.Background(), "conversations", []Write{
		{ID: "d001", Mutation: map[string]any{"companyId": "CO-7"}},
		{ID: "ghost", Mutation: map[string]any{"companyId": "CO-7"}},
	})
	require.Error(t, err)

	doc, err := ds.GetByID(context.Background(), "conversations", "d001")
	require.NoError(t, err)
	assert.NotContains(t, doc.Fields, "companyId",
		"failed batch must not leave partial writes behind")
}

func TestAtomicBatchWriteRefusesEmptyBatch(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	err := ds.AtomicBatchWrite(context.Background(), "conversations", nil)
	require.Error(t, err)

	var enhanced *errors.EnhancedError
	require.ErrorAs(t, err, &enhanced)
	assert.Equal(t, string(errors.CategoryValidation), enhanced.GetCategory())
}

func TestCount(t *testing.T) {
	t.Parallel()

	ds := setupTestStore(t)
	seedDocs(t, ds, "conversations", 12)
	seedDocs(t, ds, "users", 2)

	count, err := ds.Count(context.Background(), "conversations", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)

	count, err = ds.Count(context.Background(), "conversations", &Filter{FieldPresent: "companyId"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	count, err = ds.Count(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
