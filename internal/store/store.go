// Package store executes create/read/update/delete against the product
// collection. Collection is implemented by MongoDB and by an in-memory store.
package store

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

// ErrEmptyQuery is returned by Delete when the filter identifies nothing.
// An empty filter would otherwise delete the first document of the collection.
var ErrEmptyQuery = errors.New("store: empty delete query")

// ErrEmptyPatch is returned by Update when there is nothing to set.
var ErrEmptyPatch = errors.New("store: empty update patch")

// ErrClosed is returned by handles used after Close.
var ErrClosed = errors.New("store: handle closed")

// ErrAuthFailed is returned by connectors rejecting the supplied credentials.
var ErrAuthFailed = errors.New("store: authentication failed")

// Collection is the single-document surface of a product collection.
type Collection interface {
	Find(ctx context.Context, filter bson.D) ([]bson.D, error)
	InsertOne(ctx context.Context, doc bson.D) error
	UpdateOne(ctx context.Context, filter, set bson.D) error
	DeleteOne(ctx context.Context, filter bson.D) error
}

// Handle is a live, authenticated collection connection.
type Handle interface {
	Collection
	// Drop removes the whole target database.
	Drop(ctx context.Context) error
	Close(ctx context.Context) error
}

// Seeder is implemented by handles that can bootstrap an absent collection.
type Seeder interface {
	CollectionExists(ctx context.Context) (bool, error)
	InsertMany(ctx context.Context, docs []bson.D) error
}

// Connector establishes handles for a set of credentials.
type Connector interface {
	Connect(ctx context.Context, creds model.Credentials) (Handle, error)
}

// Client applies single-document operations through a Handle and classifies
// their failures.
type Client struct {
	h Handle
}

// NewClient wraps h.
func NewClient(h Handle) *Client {
	return &Client{h: h}
}

// Create inserts doc.
func (c *Client) Create(ctx context.Context, doc bson.D) error {
	if err := c.h.InsertOne(ctx, doc); err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "store.create", apperr.MsgInsertFailed, err)
	}
	return nil
}

// Read returns every document matching filter in store iteration order.
// A nil filter matches all documents.
func (c *Client) Read(ctx context.Context, filter bson.D) ([]bson.D, error) {
	if filter == nil {
		filter = bson.D{}
	}
	docs, err := c.h.Find(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindStoreFailure, "store.read", apperr.MsgReadFailed, err)
	}
	if docs == nil {
		docs = []bson.D{}
	}
	return docs, nil
}

// Update sets the fields of patch on the first document matching filter.
// Fields absent from patch are left untouched.
func (c *Client) Update(ctx context.Context, filter, patch bson.D) error {
	if len(patch) == 0 {
		return apperr.Wrap(apperr.KindValidation, "store.update", apperr.MsgUpdateFailed, ErrEmptyPatch)
	}
	if err := c.h.UpdateOne(ctx, filter, patch); err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "store.update", apperr.MsgUpdateFailed, err)
	}
	return nil
}

// Delete removes the first document matching filter. Empty filters and
// filters carrying a missing value are rejected before reaching the store.
func (c *Client) Delete(ctx context.Context, filter bson.D) error {
	if emptyQuery(filter) {
		return apperr.Wrap(apperr.KindValidation, "store.delete", apperr.MsgSpecifyDelete, ErrEmptyQuery)
	}
	if err := c.h.DeleteOne(ctx, filter); err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "store.delete", apperr.MsgDeleteFailed, err)
	}
	return nil
}

// DropDatabase removes the target database.
func (c *Client) DropDatabase(ctx context.Context) error {
	if err := c.h.Drop(ctx); err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "store.drop", apperr.MsgDropFailed, err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *Client) Close(ctx context.Context) error {
	if err := c.h.Close(ctx); err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "store.close", apperr.MsgCloseFailed, err)
	}
	return nil
}

func emptyQuery(filter bson.D) bool {
	if len(filter) == 0 {
		return true
	}
	for _, e := range filter {
		if e.Key == "" || e.Value == nil {
			return true
		}
	}
	return false
}
