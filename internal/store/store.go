// Package store is the document-store collaborator: named collections with
// find/insert/update/delete operations, backed by MongoDB in production and
// by an in-process map for local runs and tests.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// Collection names.
const (
	Services = "services"
	Bookings = "bookings"
	Users    = "users"
	Doctors  = "doctors"
)

var (
	// ErrNotFound is returned by FindOne when no document matches.
	ErrNotFound = errors.New("store: document not found")
	// ErrDuplicate is returned by InsertUnique when a document with the same
	// key already exists.
	ErrDuplicate = errors.New("store: duplicate key")
)

// Store hands out collections and owns the underlying connection.
type Store interface {
	Collection(name string) Collection
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Collection is the subset of document operations the API needs. Filters are
// equality matches on top-level fields; updates use $set and $setOnInsert.
type Collection interface {
	// Find decodes every matching document into results, a pointer to a slice.
	Find(ctx context.Context, filter bson.M, results any, opts ...FindOption) error
	// FindOne decodes the first match into result or returns ErrNotFound.
	FindOne(ctx context.Context, filter bson.M, result any) error
	InsertOne(ctx context.Context, doc any) (*InsertReceipt, error)
	// InsertUnique inserts doc only if nothing matches key, as one atomic
	// operation. When a match exists it is decoded into existing and
	// ErrDuplicate is returned.
	InsertUnique(ctx context.Context, key bson.M, doc any, existing any) (*InsertReceipt, error)
	UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (*UpdateReceipt, error)
	DeleteOne(ctx context.Context, filter bson.M) (*DeleteReceipt, error)
}

// FindOption tweaks a Find call.
type FindOption func(*findOptions)

type findOptions struct {
	projection []string
}

// Project limits results to _id and the given fields.
func Project(fields ...string) FindOption {
	return func(o *findOptions) {
		o.projection = append(o.projection, fields...)
	}
}

func buildFindOptions(opts []FindOption) findOptions {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// InsertReceipt mirrors the MongoDB insertOne acknowledgement.
type InsertReceipt struct {
	Acknowledged bool `json:"acknowledged"`
	InsertedID   any  `json:"insertedId"`
}

// UpdateReceipt mirrors the MongoDB updateOne acknowledgement.
type UpdateReceipt struct {
	Acknowledged  bool  `json:"acknowledged"`
	MatchedCount  int64 `json:"matchedCount"`
	ModifiedCount int64 `json:"modifiedCount"`
	UpsertedCount int64 `json:"upsertedCount"`
	UpsertedID    any   `json:"upsertedId"`
}

// DeleteReceipt mirrors the MongoDB deleteOne acknowledgement.
type DeleteReceipt struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
