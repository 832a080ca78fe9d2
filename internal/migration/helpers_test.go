package migration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fieldrow/companyfix/internal/conf"
	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/errors"
)

// fakeStore is an in-memory docstore.Interface for engine and resolver tests.
// Scan order is insertion order; resume keys are slice indices.
type fakeStore struct {
	mu          sync.Mutex
	collections map[string][]docstore.Document
	getCalls    int
	writeCalls  [][]docstore.Write
	failWrites  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{collections: make(map[string][]docstore.Document)}
}

func (f *fakeStore) Open() error  { return nil }
func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) Scan(ctx context.Context, collection string, filter *docstore.Filter, order docstore.Order, pageSize int, afterKey string) (docstore.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	docs := f.collections[collection]
	start := 0
	if afterKey != "" {
		idx, err := strconv.Atoi(afterKey)
		if err != nil {
			return docstore.Page{}, fmt.Errorf("bad key %q", afterKey)
		}
		start = idx + 1
	}

	page := docstore.Page{}
	for i := start; i < len(docs) && len(page.Records) < pageSize; i++ {
		if !filter.Matches(&docs[i]) {
			continue
		}
		page.Records = append(page.Records, cloneDoc(docs[i]))
		page.LastKey = strconv.Itoa(i)
	}
	return page, nil
}

func (f *fakeStore) GetByID(ctx context.Context, collection, id string) (docstore.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls++
	for _, doc := range f.collections[collection] {
		if doc.ID == id {
			return cloneDoc(doc), nil
		}
	}
	return docstore.Document{}, errors.ErrNotFound
}

func (f *fakeStore) AtomicBatchWrite(ctx context.Context, collection string, writes []docstore.Write) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failWrites > 0 {
		f.failWrites--
		return fmt.Errorf("simulated write failure")
	}

	docs := f.collections[collection]
	for _, w := range writes {
		found := false
		for i := range docs {
			if docs[i].ID == w.ID {
				for k, v := range w.Mutation {
					docs[i].Fields[k] = v
				}
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("document %s not found", w.ID)
		}
	}
	f.writeCalls = append(f.writeCalls, writes)
	return nil
}

func (f *fakeStore) Count(ctx context.Context, collection string, filter *docstore.Filter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var count int64
	for i := range f.collections[collection] {
		if filter.Matches(&f.collections[collection][i]) {
			count++
		}
	}
	return count, nil
}

func (f *fakeStore) Insert(ctx context.Context, collection string, doc docstore.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collections[collection] = append(f.collections[collection], cloneDoc(doc))
	return nil
}

func (f *fakeStore) fields(collection, id string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.collections[collection] {
		if doc.ID == id {
			return doc.Fields
		}
	}
	return nil
}

func cloneDoc(doc docstore.Document) docstore.Document {
	fields := make(map[string]any, len(doc.Fields))
	for k, v := range doc.Fields {
		fields[k] = v
	}
	return docstore.Document{ID: doc.ID, Fields: fields, CreatedAt: doc.CreatedAt}
}

func testSettings(pageSize int) *conf.Settings {
	settings := &conf.Settings{}
	settings.Migration.PageSize = pageSize
	settings.Migration.Throttle = time.Millisecond
	settings.Migration.MinOwnerIDLength = 3
	settings.Migration.AuditLogSize = 200
	settings.Migration.Cache.Capacity = 100
	settings.Migration.Cache.TTL = time.Minute
	return settings
}

func testJob() JobConfig {
	return JobConfig{
		ID:                  "conversations",
		Title:               "Conversations companyId backfill",
		Collection:          "conversations",
		ReferenceCollection: "users",
		OwnerField:          "companyId",
		CandidatesField:     "participantIds",
		ReferenceOwnerField: "companyId",
		OrderBy:             docstore.OrderCreatedDesc,
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedUser(store *fakeStore, id string, fields map[string]any) {
	_ = store.Insert(context.Background(), "users", docstore.Document{ID: id, Fields: fields})
}

func seedConversation(store *fakeStore, id string, participants []any, extra map[string]any) {
	fields := map[string]any{"participantIds": participants}
	for k, v := range extra {
		fields[k] = v
	}
	_ = store.Insert(context.Background(), "conversations", docstore.Document{ID: id, Fields: fields})
}
