// Package provision creates the dashboard user, seeds the product collection
// on first run and tears both down again.
package provision

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
	"github.com/fairyhunter13/inventory-dashboard/internal/store"
)

// ErrNotSeedable is returned when a connector's handles cannot bootstrap a
// collection.
var ErrNotSeedable = errors.New("provision: handle does not support seeding")

// Users manages database users through an administrative connection.
type Users interface {
	HasUser(ctx context.Context, name string) (bool, error)
	// CreateUser grants name readWrite on db.
	CreateUser(ctx context.Context, name, password, db string) error
	DropUser(ctx context.Context, name string) error
}

// Provisioner bootstraps and removes the dashboard's database state.
type Provisioner struct {
	users     Users
	connector store.Connector
	database  string
	count     int
}

// New creates a Provisioner seeding count products into database.
func New(users Users, connector store.Connector, database string, count int) *Provisioner {
	return &Provisioner{users: users, connector: connector, database: database, count: count}
}

// EnsureUser creates the user unless it already exists.
func (p *Provisioner) EnsureUser(ctx context.Context, creds model.Credentials) (created bool, err error) {
	ok, err := p.users.HasUser(ctx, creds.Username)
	if err != nil {
		return false, fmt.Errorf("lookup user %q: %w", creds.Username, err)
	}
	if ok {
		return false, nil
	}
	if err := p.users.CreateUser(ctx, creds.Username, creds.Password, p.database); err != nil {
		return false, fmt.Errorf("create user %q: %w", creds.Username, err)
	}
	obs.Logger.Info("user_created", "user", creds.Username, "database", p.database)
	return true, nil
}

// Seed logs in as creds and fills the collection when it does not exist yet.
// It returns the number of inserted documents.
func (p *Provisioner) Seed(ctx context.Context, creds model.Credentials) (int, error) {
	h, err := p.connector.Connect(ctx, creds)
	if err != nil {
		return 0, fmt.Errorf("connect as %q: %w", creds.Username, err)
	}
	defer func() {
		if cerr := h.Close(ctx); cerr != nil {
			obs.Logger.Warn("seed_close_failed", "error", cerr)
		}
	}()
	s, ok := h.(store.Seeder)
	if !ok {
		return 0, ErrNotSeedable
	}
	exists, err := s.CollectionExists(ctx)
	if err != nil {
		return 0, fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return 0, nil
	}
	docs := SeedDocuments(p.count)
	if err := s.InsertMany(ctx, docs); err != nil {
		return 0, fmt.Errorf("insert seed documents: %w", err)
	}
	obs.Logger.Info("collection_seeded", "documents", len(docs))
	return len(docs), nil
}

// Bootstrap runs EnsureUser and Seed.
func (p *Provisioner) Bootstrap(ctx context.Context, creds model.Credentials) error {
	if _, err := p.EnsureUser(ctx, creds); err != nil {
		return err
	}
	_, err := p.Seed(ctx, creds)
	return err
}

// DropUser removes the user.
func (p *Provisioner) DropUser(ctx context.Context, name string) error {
	if err := p.users.DropUser(ctx, name); err != nil {
		return fmt.Errorf("drop user %q: %w", name, err)
	}
	obs.Logger.Info("user_dropped", "user", name)
	return nil
}

// Teardown drops the database as creds and then removes the user.
func (p *Provisioner) Teardown(ctx context.Context, creds model.Credentials) error {
	h, err := p.connector.Connect(ctx, creds)
	if err != nil {
		return fmt.Errorf("connect as %q: %w", creds.Username, err)
	}
	c := store.NewClient(h)
	if err := c.DropDatabase(ctx); err != nil {
		_ = c.Close(ctx)
		return err
	}
	if err := c.Close(ctx); err != nil {
		obs.Logger.Warn("teardown_close_failed", "error", err)
	}
	return p.DropUser(ctx, creds.Username)
}

// SeedDocuments returns n products with ids 0..n-1, empty names and zero
// price and quantity.
func SeedDocuments(n int) []bson.D {
	docs := make([]bson.D, 0, n)
	for i := 0; i < n; i++ {
		docs = append(docs, model.Product{ProductID: int64(i)}.Document())
	}
	return docs
}
