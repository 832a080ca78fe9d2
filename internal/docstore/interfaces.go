// interfaces.go: this code defines the interface for the document store operations
package docstore

import (
	"context"
	"time"

	"github.com/fieldrow/companyfix/internal/conf"
)

// Document is one record of a collection. Fields carries the document body
// as decoded JSON; CreatedAt drives the stable scan order.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
}

// Write pairs a document id with a mutation. The mutation is merged into the
// document's fields; existing keys not named by the mutation are untouched.
type Write struct {
	ID       string
	Mutation map[string]any
}

// Filter restricts Scan and Count results. Zero value matches everything.
// FieldPresent matches documents whose named field exists with a non-null
// value; FieldAbsent matches the complement. Equals, when Field is set,
// matches documents whose field equals the given value.
type Filter struct {
	FieldPresent string
	FieldAbsent  string
	Field        string
	Equals       any
}

// Order is the scan direction over CreatedAt.
type Order string

const (
	OrderCreatedDesc Order = "createdAt desc"
	OrderCreatedAsc  Order = "createdAt asc"
)

// Page is one bounded slice of a collection scan. LastKey is an opaque
// resume token; it is only meaningful when passed back to the same Scan.
type Page struct {
	Records []Document
	LastKey string
}

// Interface abstracts the underlying document store implementation.
type Interface interface {
	Open() error
	Close() error
	// Scan returns up to pageSize documents after afterKey in the given
	// order. An empty afterKey starts from the beginning.
	Scan(ctx context.Context, collection string, filter *Filter, order Order, pageSize int, afterKey string) (Page, error)
	// GetByID returns errors.ErrNotFound when no document matches.
	GetByID(ctx context.Context, collection, id string) (Document, error)
	// AtomicBatchWrite applies all writes in one transaction, all-or-nothing.
	AtomicBatchWrite(ctx context.Context, collection string, writes []Write) error
	Count(ctx context.Context, collection string, filter *Filter) (int64, error)
	// Insert creates a document. Used by seed tooling and tests.
	Insert(ctx context.Context, collection string, doc Document) error
}

// New creates a store instance based on the configured backend.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}
	default:
		return nil
	}
}

// Matches reports whether doc satisfies the filter. Filtering happens on the
// decoded document so the same semantics hold across backends.
func (f *Filter) Matches(doc *Document) bool {
	if f == nil {
		return true
	}
	if f.FieldPresent != "" {
		v, ok := doc.Fields[f.FieldPresent]
		if !ok || v == nil {
			return false
		}
	}
	if f.FieldAbsent != "" {
		if v, ok := doc.Fields[f.FieldAbsent]; ok && v != nil {
			return false
		}
	}
	if f.Field != "" {
		if doc.Fields[f.Field] != f.Equals {
			return false
		}
	}
	return true
}
