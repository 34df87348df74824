package store

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

// MongoConnector dials a MongoDB deployment with user credentials scoped to
// one database/collection pair.
type MongoConnector struct {
	Host       string
	Port       int
	AuthSource string
	Database   string
	Collection string
	// ServerSelectionTimeout bounds how long Connect waits for a reachable server.
	ServerSelectionTimeout time.Duration
}

// NewMongoConnector builds a connector from configuration.
func NewMongoConnector(cfg config.Config) *MongoConnector {
	return &MongoConnector{
		Host:                   cfg.MongoHost,
		Port:                   cfg.MongoPort,
		AuthSource:             cfg.MongoAuthSource,
		Database:               cfg.Database,
		Collection:             cfg.Collection,
		ServerSelectionTimeout: cfg.LoginTimeout,
	}
}

// URI returns the connection string without credentials.
func (c *MongoConnector) URI() string {
	return fmt.Sprintf("mongodb://%s/", net.JoinHostPort(c.Host, strconv.Itoa(c.Port)))
}

// Connect authenticates and verifies connectivity before returning a handle.
func (c *MongoConnector) Connect(ctx context.Context, creds model.Credentials) (Handle, error) {
	opts := options.Client().
		ApplyURI(c.URI()).
		SetAuth(options.Credential{
			AuthSource: c.AuthSource,
			Username:   creds.Username,
			Password:   creds.Password,
		})
	if c.ServerSelectionTimeout > 0 {
		opts.SetServerSelectionTimeout(c.ServerSelectionTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	db := client.Database(c.Database)
	return &mongoHandle{client: client, db: db, coll: db.Collection(c.Collection)}, nil
}

type mongoHandle struct {
	client *mongo.Client
	db     *mongo.Database
	coll   *mongo.Collection
}

func (h *mongoHandle) Find(ctx context.Context, filter bson.D) ([]bson.D, error) {
	if filter == nil {
		filter = bson.D{}
	}
	cur, err := h.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []bson.D
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (h *mongoHandle) InsertOne(ctx context.Context, doc bson.D) error {
	_, err := h.coll.InsertOne(ctx, doc)
	return err
}

func (h *mongoHandle) UpdateOne(ctx context.Context, filter, set bson.D) error {
	_, err := h.coll.UpdateOne(ctx, filter, bson.D{{Key: "$set", Value: set}})
	return err
}

func (h *mongoHandle) DeleteOne(ctx context.Context, filter bson.D) error {
	_, err := h.coll.DeleteOne(ctx, filter)
	return err
}

func (h *mongoHandle) InsertMany(ctx context.Context, docs []bson.D) error {
	if len(docs) == 0 {
		return nil
	}
	batch := make([]any, len(docs))
	for i, d := range docs {
		batch[i] = d
	}
	_, err := h.coll.InsertMany(ctx, batch)
	return err
}

func (h *mongoHandle) CollectionExists(ctx context.Context) (bool, error) {
	names, err := h.db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: h.coll.Name()}})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (h *mongoHandle) Drop(ctx context.Context) error {
	return h.db.Drop(ctx)
}

func (h *mongoHandle) Close(ctx context.Context) error {
	return h.client.Disconnect(ctx)
}
