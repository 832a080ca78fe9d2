package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fieldrow/companyfix/internal/errors"
)

// documentRow is the storage shape of a Document. The body is kept as a JSON
// blob so collections stay schemaless, matching the managed store this tool
// repairs.
type documentRow struct {
	Collection string    `gorm:"primaryKey;size:64"`
	DocID      string    `gorm:"primaryKey;size:128"`
	CreatedAt  time.Time `gorm:"index:idx_documents_created"`
	Fields     string    `gorm:"type:text"`
}

func (documentRow) TableName() string { return "documents" }

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB *gorm.DB
}

// createGormLogger builds a GORM logger whose verbosity follows debug mode.
func createGormLogger(debug bool) gormlogger.Interface {
	level := gormlogger.Silent
	if debug {
		level = gormlogger.Info
	}
	return gormlogger.New(
		log.New(os.Stderr, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		},
	)
}

// performAutoMigration creates or updates the documents table schema.
func performAutoMigration(db *gorm.DB, debug bool, backend, connDetails string) error {
	if err := db.AutoMigrate(&documentRow{}); err != nil {
		return errors.Newf("failed to auto-migrate %s database: %w", backend, err).
			Component("docstore").
			Category(errors.CategoryDatabase).
			Context("backend", backend).
			Build()
	}
	if debug {
		log.Printf("%s database connected: %s", backend, connDetails)
	}
	return nil
}

func (row *documentRow) decode() (Document, error) {
	doc := Document{ID: row.DocID, CreatedAt: row.CreatedAt}
	if row.Fields != "" {
		if err := json.Unmarshal([]byte(row.Fields), &doc.Fields); err != nil {
			return Document{}, fmt.Errorf("decoding document %s: %w", row.DocID, err)
		}
	}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	return doc, nil
}

func encodeFields(fields map[string]any) (string, error) {
	if fields == nil {
		fields = map[string]any{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encoding document fields: %w", err)
	}
	return string(data), nil
}

// encodeKey builds the opaque resume token for a row.
func encodeKey(createdAt time.Time, id string) string {
	return strconv.FormatInt(createdAt.UnixNano(), 10) + "|" + id
}

func decodeKey(key string) (time.Time, string, error) {
	nanos, id, found := strings.Cut(key, "|")
	if !found {
		return time.Time{}, "", fmt.Errorf("malformed scan key %q", key)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("malformed scan key %q: %w", key, err)
	}
	return time.Unix(0, n), id, nil
}

// Scan returns up to pageSize documents matching the filter, resuming after
// afterKey. Filters are evaluated on decoded documents, so the store may read
// more than one raw page to fill a filtered one.
func (ds *DataStore) Scan(ctx context.Context, collection string, filter *Filter, order Order, pageSize int, afterKey string) (Page, error) {
	if pageSize <= 0 {
		return Page{}, errors.Newf("page size must be positive, got %d", pageSize).
			Component("docstore").
			Category(errors.CategoryValidation).
			Build()
	}

	page := Page{Records: make([]Document, 0, pageSize)}
	cursorKey := afterKey

	for len(page.Records) < pageSize {
		rows, err := ds.scanRaw(ctx, collection, order, pageSize, cursorKey)
		if err != nil {
			return Page{}, err
		}
		if len(rows) == 0 {
			break
		}
		for i := range rows {
			doc, err := rows[i].decode()
			if err != nil {
				return Page{}, errors.New(err).
					Component("docstore").
					Category(errors.CategoryDataIntegrity).
					Context("collection", collection).
					Build()
			}
			if !filter.Matches(&doc) {
				continue
			}
			page.Records = append(page.Records, doc)
			page.LastKey = encodeKey(rows[i].CreatedAt, rows[i].DocID)
			if len(page.Records) == pageSize {
				break
			}
		}
		cursorKey = encodeKey(rows[len(rows)-1].CreatedAt, rows[len(rows)-1].DocID)
		if len(page.Records) < pageSize {
			// Keep the resume token moving even when a whole raw page was
			// filtered out, otherwise the next call would re-read it.
			if len(page.Records) == 0 || page.LastKey < cursorKey {
				page.LastKey = cursorKey
			}
		}
		if len(rows) < pageSize {
			break
		}
	}

	return page, nil
}

func (ds *DataStore) scanRaw(ctx context.Context, collection string, order Order, pageSize int, afterKey string) ([]documentRow, error) {
	q := ds.DB.WithContext(ctx).Where("collection = ?", collection)

	switch order {
	case OrderCreatedAsc:
		q = q.Order("created_at asc, doc_id asc")
	default:
		q = q.Order("created_at desc, doc_id desc")
	}

	if afterKey != "" {
		createdAt, id, err := decodeKey(afterKey)
		if err != nil {
			return nil, errors.New(err).
				Component("docstore").
				Category(errors.CategoryValidation).
				Build()
		}
		if order == OrderCreatedAsc {
			q = q.Where("(created_at > ?) OR (created_at = ? AND doc_id > ?)", createdAt, createdAt, id)
		} else {
			q = q.Where("(created_at < ?) OR (created_at = ? AND doc_id < ?)", createdAt, createdAt, id)
		}
	}

	var rows []documentRow
	if err := q.Limit(pageSize).Find(&rows).Error; err != nil {
		return nil, errors.Newf("scanning %s: %w", collection, err).
			Component("docstore").
			Category(errors.CategoryDatabase).
			Context("collection", collection).
			Build()
	}
	return rows, nil
}

// GetByID retrieves a single document from a collection.
func (ds *DataStore) GetByID(ctx context.Context, collection, id string) (Document, error) {
	var row documentRow
	err := ds.DB.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Document{}, errors.ErrNotFound
		}
		return Document{}, errors.Newf("getting %s/%s: %w", collection, id, err).
			Component("docstore").
			Category(errors.CategoryDatabase).
			Build()
	}
	doc, err := row.decode()
	if err != nil {
		return Document{}, errors.New(err).
			Component("docstore").
			Category(errors.CategoryDataIntegrity).
			Build()
	}
	return doc, nil
}

// AtomicBatchWrite merges each mutation into its document inside one
// transaction. Either every write lands or none do.
func (ds *DataStore) AtomicBatchWrite(ctx context.Context, collection string, writes []Write) error {
	if len(writes) == 0 {
		return errors.Newf("refusing empty batch write to %s", collection).
			Component("docstore").
			Category(errors.CategoryValidation).
			Build()
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range writes {
			w := &writes[i]
			var row documentRow
			if err := tx.Where("collection = ? AND doc_id = ?", collection, w.ID).First(&row).Error; err != nil {
				return fmt.Errorf("loading %s/%s for write: %w", collection, w.ID, err)
			}
			doc, err := row.decode()
			if err != nil {
				return err
			}
			for k, v := range w.Mutation {
				doc.Fields[k] = v
			}
			encoded, err := encodeFields(doc.Fields)
			if err != nil {
				return err
			}
			if err := tx.Model(&documentRow{}).
				Where("collection = ? AND doc_id = ?", collection, w.ID).
				Update("fields", encoded).Error; err != nil {
				return fmt.Errorf("updating %s/%s: %w", collection, w.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return errors.New(err).
			Component("docstore").
			Category(errors.CategoryCommit).
			Context("collection", collection).
			Context("write_count", len(writes)).
			Build()
	}
	return nil
}

// Count returns the number of documents matching the filter. With no filter
// this is a plain SQL count; with a filter the collection is walked in pages.
func (ds *DataStore) Count(ctx context.Context, collection string, filter *Filter) (int64, error) {
	if filter == nil {
		var count int64
		err := ds.DB.WithContext(ctx).Model(&documentRow{}).
			Where("collection = ?", collection).
			Count(&count).Error
		if err != nil {
			return 0, errors.Newf("counting %s: %w", collection, err).
				Component("docstore").
				Category(errors.CategoryDatabase).
				Build()
		}
		return count, nil
	}

	const countPageSize = 500
	var count int64
	afterKey := ""
	for {
		page, err := ds.Scan(ctx, collection, filter, OrderCreatedDesc, countPageSize, afterKey)
		if err != nil {
			return 0, err
		}
		count += int64(len(page.Records))
		if len(page.Records) < countPageSize {
			return count, nil
		}
		afterKey = page.LastKey
	}
}

// Insert creates a new document in a collection.
func (ds *DataStore) Insert(ctx context.Context, collection string, doc Document) error {
	encoded, err := encodeFields(doc.Fields)
	if err != nil {
		return errors.New(err).
			Component("docstore").
			Category(errors.CategoryValidation).
			Build()
	}
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	row := documentRow{
		Collection: collection,
		DocID:      doc.ID,
		CreatedAt:  createdAt,
		Fields:     encoded,
	}
	if err := ds.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return errors.Newf("inserting %s/%s: %w", collection, doc.ID, err).
			Component("docstore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}
