package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fieldrow/companyfix/internal/docstore"
	"github.com/fieldrow/companyfix/internal/errors"
)

// Resolution is a successful owner lookup. ResolverIndex records which
// candidate matched and CandidatesChecked how many were examined, both kept
// as provenance on the staged mutation.
type Resolution struct {
	OwnerID           string `json:"ownerId"`
	ResolverIndex     int    `json:"resolverIndex"`
	CandidatesChecked int    `json:"candidatesChecked"`
}

// OwnerResolver walks an ordered candidate list and returns the first
// candidate whose reference record carries a valid owner identifier. The scan
// stops at the first valid match: candidate ordering is load-bearing, this is
// deliberately not a best-match search.
type OwnerResolver struct {
	store         docstore.Interface
	cache         *ReadThroughCache
	stats         *Stats
	audit         *AuditLog
	logger        *slog.Logger
	refCollection string
	refOwnerField string
	minOwnerLen   int
}

// NewOwnerResolver wires a resolver against one reference collection.
func NewOwnerResolver(store docstore.Interface, cache *ReadThroughCache, stats *Stats, audit *AuditLog, logger *slog.Logger, refCollection, refOwnerField string, minOwnerLen int) *OwnerResolver {
	return &OwnerResolver{
		store:         store,
		cache:         cache,
		stats:         stats,
		audit:         audit,
		logger:        logger,
		refCollection: refCollection,
		refOwnerField: refOwnerField,
		minOwnerLen:   minOwnerLen,
	}
}

// Resolve scans candidates in order. The second return is false when every
// candidate was exhausted without a valid owner. Per-candidate problems never
// abort the scan.
func (r *OwnerResolver) Resolve(ctx context.Context, subjectID string, candidates []any) (Resolution, bool) {
	checked := 0

	for i, raw := range candidates {
		checked = i + 1
		r.stats.AddCandidatesChecked(1)

		id, ok := raw.(string)
		if !ok || raw == nil {
			// A non-string candidate is a data-shape defect; a null or empty
			// one is only logged for diagnosis.
			if raw != nil {
				r.stats.IncValidationErrors()
			}
			r.audit.Append(subjectID, StatusValidation,
				fmt.Sprintf("candidate %d is not a usable identifier", i),
				map[string]any{"index": i, "type": fmt.Sprintf("%T", raw)})
			continue
		}
		if id == "" {
			r.audit.Append(subjectID, StatusValidation,
				fmt.Sprintf("candidate %d is empty", i),
				map[string]any{"index": i})
			continue
		}

		ref, err := r.lookup(ctx, id)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				r.audit.Append(subjectID, StatusWarning,
					fmt.Sprintf("candidate %s not found in %s", id, r.refCollection),
					map[string]any{"index": i, "candidate": id})
				continue
			}
			r.logger.Error("reference lookup failed",
				"subject", subjectID, "candidate", id, "error", err)
			r.audit.Append(subjectID, StatusError,
				fmt.Sprintf("lookup of candidate %s failed: %v", id, err),
				map[string]any{"index": i, "candidate": id})
			continue
		}

		result := ValidateOwnerField(ref.Fields, r.refOwnerField, r.minOwnerLen)
		if result.IsValid {
			r.stats.IncValidUsersFound()
			r.stats.IncUsersWithOwner()
			r.audit.Append(subjectID, StatusSuccess,
				fmt.Sprintf("owner %s resolved via candidate %d (%s)", result.Value, i, id),
				map[string]any{"index": i, "candidate": id, "owner": result.Value})
			return Resolution{
				OwnerID:           result.Value,
				ResolverIndex:     i,
				CandidatesChecked: checked,
			}, true
		}

		r.stats.IncUsersWithoutOwner()
		if !result.HasProperty {
			r.stats.IncDataIntegrityIssues()
		}
		if result.Reason == "wrong type" {
			r.stats.IncValidationErrors()
		}
		r.audit.Append(subjectID, StatusValidation,
			fmt.Sprintf("candidate %s has no valid owner: %s", id, result.Reason),
			map[string]any{"index": i, "candidate": id, "reason": result.Reason})
	}

	r.stats.IncNoValidCandidateFound()
	r.audit.Append(subjectID, StatusError,
		fmt.Sprintf("no valid owner among %d candidates", len(candidates)),
		map[string]any{"candidatesChecked": checked})
	return Resolution{CandidatesChecked: checked}, false
}

// lookup is the read-through path: cache first, then a point read of the
// reference collection, populating the cache on success.
func (r *OwnerResolver) lookup(ctx context.Context, id string) (docstore.Document, error) {
	if doc, ok := r.cache.Get(id); ok {
		return doc, nil
	}
	doc, err := r.store.GetByID(ctx, r.refCollection, id)
	if err != nil {
		return docstore.Document{}, err
	}
	r.cache.Set(id, doc)
	return doc, nil
}
