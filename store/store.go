package store

import (
	"context"
)

// Key identifies one record by its primary key attributes, e.g.
// {"id": "..."} or {"swiper_id": "...", "swiped_id": "..."}.
type Key map[string]any

// Query describes a filtered read against one collection. All listed
// conditions are combined with AND; Any adds an OR group on top.
type Query struct {
	Eq    map[string]any   // field == value
	Neq   map[string]any   // field != value
	In    map[string][]any // field IN (...)
	NotIn map[string][]any // field NOT IN (...)
	Any   []map[string]any // OR of equality groups, each group ANDed

	OrderBy string
	Desc    bool
	Limit   int
}

// Update names the fields to set on matching records.
type Update map[string]any

// DataService is the persistence surface every feature talks to. Backends
// translate these calls to their native storage; callers never see SQL or
// DynamoDB expressions.
//
// Errors are reported through the shared taxonomy: ErrNotFound for missing
// records, ErrDuplicate for unique violations, ErrConflict when a
// conditional write matched nothing, and BackendError for transport faults.
type DataService interface {
	// Query returns all records matching q, decoded into dest, which must
	// be a pointer to a slice of the collection's record type.
	Query(ctx context.Context, collection string, q Query, dest any) error

	// Get loads a single record by key into dest.
	Get(ctx context.Context, collection string, key Key, dest any) error

	// Insert creates a record, failing with ErrDuplicate if the key or a
	// unique constraint already exists.
	Insert(ctx context.Context, collection string, record any) error

	// Update overwrites the named fields of the record identified by key.
	Update(ctx context.Context, collection string, key Key, upd Update) error

	// Upsert inserts the record or replaces the existing one with the same key.
	Upsert(ctx context.Context, collection string, record any) error

	// Delete removes the record by key. Deleting an absent record is not
	// an error.
	Delete(ctx context.Context, collection string, key Key) error

	// DeleteWhere removes records matching all equality conditions and
	// fails with ErrConflict when nothing matched. It is the conditional
	// primitive behind queue claims.
	DeleteWhere(ctx context.Context, collection string, cond map[string]any) error

	// UpdateWhere applies upd to records matching cond and fails with
	// ErrConflict when nothing matched.
	UpdateWhere(ctx context.Context, collection string, cond map[string]any, upd Update) error
}
