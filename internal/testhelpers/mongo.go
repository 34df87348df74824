// Package testhelpers starts a disposable MongoDB for integration tests.
package testhelpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// MongoImage is the server image used by integration tests.
const MongoImage = "mongo:7"

// Mongo is a running MongoDB container without access control.
type Mongo struct {
	Container testcontainers.Container
	Host      string
	Port      int
}

// AdminURI returns the connection string of the unauthenticated admin.
func (m *Mongo) AdminURI() string {
	return fmt.Sprintf("mongodb://%s:%d/", m.Host, m.Port)
}

// StartMongo starts a MongoDB container and registers its termination with
// t.Cleanup. It skips the test in -short mode.
func StartMongo(t *testing.T) *Mongo {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping container-based test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        MongoImage,
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Failed to terminate MongoDB container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get MongoDB host: %v", err)
	}
	port, err := container.MappedPort(ctx, "27017/tcp")
	if err != nil {
		t.Fatalf("Failed to get MongoDB port: %v", err)
	}
	t.Logf("MongoDB started: %s:%d", host, port.Int())
	return &Mongo{Container: container, Host: host, Port: port.Int()}
}
