package migration

import (
	"context"

	"github.com/fieldrow/companyfix/internal/docstore"
)

// Cursor is the resumable position of a collection scan. It advances strictly
// forward; only an explicit operator reset rewinds it.
type Cursor struct {
	LastSeenKey string `json:"lastSeenKey"`
	PageSize    int    `json:"pageSize"`
	Exhausted   bool   `json:"exhausted"`
}

// NewCursor returns a cursor at the start of a scan.
func NewCursor(pageSize int) Cursor {
	return Cursor{PageSize: pageSize}
}

// PageFetcher drives forward-only, page-sized scans of the target collection.
type PageFetcher struct {
	store      docstore.Interface
	collection string
	filter     *docstore.Filter
	order      docstore.Order
}

// NewPageFetcher creates a fetcher over one collection. filter may be nil.
func NewPageFetcher(store docstore.Interface, collection string, filter *docstore.Filter, order docstore.Order) *PageFetcher {
	return &PageFetcher{
		store:      store,
		collection: collection,
		filter:     filter,
		order:      order,
	}
}

// NextPage reads the page after cur. It does not mutate cur: the caller
// installs the returned cursor once the page's commit is confirmed. isLast is
// true when the page holds fewer than PageSize records; an empty page means
// no more data regardless of isLast.
func (pf *PageFetcher) NextPage(ctx context.Context, cur Cursor) (records []docstore.Document, next Cursor, isLast bool, err error) {
	if cur.Exhausted {
		return nil, cur, true, nil
	}

	page, err := pf.store.Scan(ctx, pf.collection, pf.filter, pf.order, cur.PageSize, cur.LastSeenKey)
	if err != nil {
		return nil, cur, false, err
	}

	next = cur
	isLast = len(page.Records) < cur.PageSize
	if len(page.Records) > 0 {
		next.LastSeenKey = page.LastKey
	}
	if isLast {
		next.Exhausted = true
	}
	return page.Records, next, isLast, nil
}
