package provision

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fairyhunter13/inventory-dashboard/internal/store"
)

// MongoUsers manages users through the admin database. Every call opens and
// closes its own admin connection so no admin access outlives it.
type MongoUsers struct {
	URI     string
	Timeout time.Duration
}

// NewMongoUsers creates a user manager for the admin connection string uri.
func NewMongoUsers(uri string, timeout time.Duration) *MongoUsers {
	return &MongoUsers{URI: uri, Timeout: timeout}
}

func (u *MongoUsers) withAdmin(ctx context.Context, fn func(admin *mongo.Database) error) error {
	opts := options.Client().ApplyURI(u.URI)
	if u.Timeout > 0 {
		opts.SetServerSelectionTimeout(u.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("admin connect: %w", err)
	}
	defer func() { _ = client.Disconnect(context.Background()) }()
	return fn(client.Database("admin"))
}

// HasUser looks name up in admin.system.users.
func (u *MongoUsers) HasUser(ctx context.Context, name string) (bool, error) {
	var n int64
	err := u.withAdmin(ctx, func(admin *mongo.Database) error {
		var err error
		n, err = admin.Collection("system.users").CountDocuments(ctx, bson.D{{Key: "user", Value: name}})
		return err
	})
	return n > 0, err
}

// CreateUser runs createUser with the readWrite role on db.
func (u *MongoUsers) CreateUser(ctx context.Context, name, password, db string) error {
	return u.withAdmin(ctx, func(admin *mongo.Database) error {
		cmd := bson.D{
			{Key: "createUser", Value: name},
			{Key: "pwd", Value: password},
			{Key: "roles", Value: bson.A{bson.D{{Key: "role", Value: "readWrite"}, {Key: "db", Value: db}}}},
		}
		return admin.RunCommand(ctx, cmd).Err()
	})
}

// DropUser runs dropUser.
func (u *MongoUsers) DropUser(ctx context.Context, name string) error {
	return u.withAdmin(ctx, func(admin *mongo.Database) error {
		return admin.RunCommand(ctx, bson.D{{Key: "dropUser", Value: name}}).Err()
	})
}

// MemoryUsers adapts the in-memory connector's user table.
type MemoryUsers struct {
	Connector *store.MemoryConnector
}

func (u MemoryUsers) HasUser(_ context.Context, name string) (bool, error) {
	return u.Connector.HasUser(name), nil
}

func (u MemoryUsers) CreateUser(_ context.Context, name, password, _ string) error {
	u.Connector.AddUser(name, password)
	return nil
}

func (u MemoryUsers) DropUser(_ context.Context, name string) error {
	u.Connector.RemoveUser(name)
	return nil
}
