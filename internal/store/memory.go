package store

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

// Memory is an in-process Collection keeping documents in insertion order.
// Documents receive a generated _id on insert, like the document database.
type Memory struct {
	mu      sync.RWMutex
	docs    []bson.D
	created bool
}

func NewMemory() *Memory {
	return &Memory{}
}

// Len returns the number of stored documents.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func (s *Memory) Find(ctx context.Context, filter bson.D) ([]bson.D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]bson.D, 0, len(s.docs))
	for _, d := range s.docs {
		if matches(d, filter) {
			out = append(out, clone(d))
		}
	}
	return out, nil
}

func (s *Memory) InsertOne(ctx context.Context, doc bson.D) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.InsertMany(ctx, []bson.D{doc})
}

// InsertMany appends docs in order.
func (s *Memory) InsertMany(ctx context.Context, docs []bson.D) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		d := clone(doc)
		if _, ok := lookup(d, model.FieldInternalID); !ok {
			d = append(bson.D{{Key: model.FieldInternalID, Value: primitive.NewObjectID()}}, d...)
		}
		s.docs = append(s.docs, d)
	}
	s.created = true
	return nil
}

// CollectionExists reports whether anything was inserted since the last Drop.
func (s *Memory) CollectionExists(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created, nil
}

func (s *Memory) UpdateOne(ctx context.Context, filter, set bson.D) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs {
		if !matches(d, filter) {
			continue
		}
		for _, e := range set {
			d = assign(d, e.Key, e.Value)
		}
		s.docs[i] = d
		return nil
	}
	// no match
	return nil
}

func (s *Memory) DeleteOne(ctx context.Context, filter bson.D) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, d := range s.docs {
		if matches(d, filter) {
			s.docs = append(s.docs[:i:i], s.docs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Drop removes every document.
func (s *Memory) Drop(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs = nil
	s.created = false
	s.mu.Unlock()
	return nil
}

func matches(doc, filter bson.D) bool {
	for _, f := range filter {
		v, ok := lookup(doc, f.Key)
		if !ok || !equalValues(v, f.Value) {
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool {
	if fa, ok := model.AsFloat64(a); ok {
		fb, ok := model.AsFloat64(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func lookup(doc bson.D, key string) (any, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func assign(doc bson.D, key string, v any) bson.D {
	for i := range doc {
		if doc[i].Key == key {
			doc[i].Value = v
			return doc
		}
	}
	return append(doc, bson.E{Key: key, Value: v})
}

func clone(doc bson.D) bson.D {
	out := make(bson.D, len(doc))
	copy(out, doc)
	return out
}

// MemoryConnector hands out handles on a shared Memory for known users.
type MemoryConnector struct {
	store *Memory

	mu    sync.RWMutex
	users map[string]string
}

// NewMemoryConnector creates a connector over st accepting the given
// username/password pairs.
func NewMemoryConnector(st *Memory, users map[string]string) *MemoryConnector {
	c := &MemoryConnector{store: st, users: make(map[string]string, len(users))}
	for u, p := range users {
		c.users[u] = p
	}
	return c
}

// AddUser registers or replaces a user.
func (c *MemoryConnector) AddUser(username, password string) {
	c.mu.Lock()
	c.users[username] = password
	c.mu.Unlock()
}

// RemoveUser forgets a user.
func (c *MemoryConnector) RemoveUser(username string) {
	c.mu.Lock()
	delete(c.users, username)
	c.mu.Unlock()
}

// HasUser reports whether username is registered.
func (c *MemoryConnector) HasUser(username string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.users[username]
	return ok
}

func (c *MemoryConnector) Connect(ctx context.Context, creds model.Credentials) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	pw, ok := c.users[creds.Username]
	c.mu.RUnlock()
	if !ok || pw != creds.Password {
		return nil, ErrAuthFailed
	}
	return &memoryHandle{m: c.store}, nil
}

type memoryHandle struct {
	m      *Memory
	closed atomic.Bool
}

func (h *memoryHandle) Find(ctx context.Context, filter bson.D) ([]bson.D, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	return h.m.Find(ctx, filter)
}

func (h *memoryHandle) InsertOne(ctx context.Context, doc bson.D) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.m.InsertOne(ctx, doc)
}

func (h *memoryHandle) UpdateOne(ctx context.Context, filter, set bson.D) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.m.UpdateOne(ctx, filter, set)
}

func (h *memoryHandle) DeleteOne(ctx context.Context, filter bson.D) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.m.DeleteOne(ctx, filter)
}

func (h *memoryHandle) Drop(ctx context.Context) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.m.Drop(ctx)
}

func (h *memoryHandle) InsertMany(ctx context.Context, docs []bson.D) error {
	if h.closed.Load() {
		return ErrClosed
	}
	return h.m.InsertMany(ctx, docs)
}

func (h *memoryHandle) CollectionExists(ctx context.Context) (bool, error) {
	if h.closed.Load() {
		return false, ErrClosed
	}
	return h.m.CollectionExists(ctx)
}

func (h *memoryHandle) Close(context.Context) error {
	if !h.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return nil
}
