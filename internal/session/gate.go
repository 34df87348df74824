// Package session gates every store operation on an authenticated login and
// derives the UI affordances that depend on it.
package session

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/fairyhunter13/inventory-dashboard/internal/apperr"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/obs"
	"github.com/fairyhunter13/inventory-dashboard/internal/store"
)

// Button labels of the login toggle.
const (
	LabelLogin  = "Login"
	LabelLogout = "Logout"
)

// Affordances are the session dependent UI flags.
type Affordances struct {
	LoginFieldsVisible        bool   `json:"login_fields_visible"`
	ModificationFieldsVisible bool   `json:"modification_fields_visible"`
	LoginButton               string `json:"login_button"`
	DropDatabaseVisible       bool   `json:"drop_database_visible"`
}

// Gate owns the single store connection of the process. It is safe for
// concurrent use; store operations are serialized.
type Gate struct {
	connector store.Connector
	timeout   time.Duration

	mu     sync.Mutex
	client *store.Client
	user   string
}

// NewGate creates an unauthenticated gate. loginTimeout bounds the
// connectivity check made by Login; zero means no bound.
func NewGate(connector store.Connector, loginTimeout time.Duration) *Gate {
	return &Gate{connector: connector, timeout: loginTimeout}
}

// Login connects with creds. Any held connection is released first, so a
// failed login always leaves the gate unauthenticated.
func (g *Gate) Login(ctx context.Context, creds model.Credentials) error {
	if creds.Empty() {
		return apperr.New(apperr.KindInvalidCredentials, "session.login", apperr.MsgInvalidCredentials)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseLocked(ctx)

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	h, err := g.connector.Connect(ctx, creds)
	if err != nil {
		obs.Logger.Warn("login_failed", "user", creds.Username, "error", err)
		return apperr.Wrap(apperr.KindInvalidCredentials, "session.login", apperr.MsgInvalidCredentials, err)
	}
	g.client = store.NewClient(h)
	g.user = creds.Username
	obs.Logger.Info("login_succeeded", "user", creds.Username)
	return nil
}

// Logout releases the held connection. Without one it reports a non-fatal
// store failure.
func (g *Gate) Logout(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		obs.Logger.Warn("logout_without_connection")
		return apperr.New(apperr.KindStoreFailure, "session.logout", apperr.MsgCloseFailed)
	}
	user := g.user
	err := g.client.Close(ctx)
	g.client, g.user = nil, ""
	if err != nil {
		obs.Logger.Warn("logout_close_failed", "user", user, "error", err)
		return err
	}
	obs.Logger.Info("logout", "user", user)
	return nil
}

func (g *Gate) releaseLocked(ctx context.Context) {
	if g.client == nil {
		return
	}
	if err := g.client.Close(ctx); err != nil {
		obs.Logger.Warn("release_connection_failed", "user", g.user, "error", err)
	}
	g.client, g.user = nil, ""
}

// Authenticated reports whether a connection is held.
func (g *Gate) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client != nil
}

// Username returns the logged in user or "".
func (g *Gate) Username() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.user
}

// Affordances returns the UI flags for the current session state.
func (g *Gate) Affordances() Affordances {
	if g.Authenticated() {
		return Affordances{ModificationFieldsVisible: true, LoginButton: LabelLogout, DropDatabaseVisible: true}
	}
	return Affordances{LoginFieldsVisible: true, LoginButton: LabelLogin}
}

func errLoginFirst(op string) error {
	return apperr.New(apperr.KindAuthRequired, op, apperr.MsgLoginFirst)
}

// Create inserts doc.
func (g *Gate) Create(ctx context.Context, doc bson.D) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return errLoginFirst("session.create")
	}
	return g.client.Create(ctx, doc)
}

// Read returns the documents matching filter. Unauthenticated reads return
// an empty, non-nil slice alongside the error.
func (g *Gate) Read(ctx context.Context, filter bson.D) ([]bson.D, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return []bson.D{}, errLoginFirst("session.read")
	}
	return g.client.Read(ctx, filter)
}

// Update patches the first document matching filter.
func (g *Gate) Update(ctx context.Context, filter, patch bson.D) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return errLoginFirst("session.update")
	}
	return g.client.Update(ctx, filter, patch)
}

// Delete removes the first document matching filter.
func (g *Gate) Delete(ctx context.Context, filter bson.D) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return errLoginFirst("session.delete")
	}
	return g.client.Delete(ctx, filter)
}

// DropDatabase drops the target database and logs out. It returns the user
// that was logged in so the caller can remove it.
func (g *Gate) DropDatabase(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.client == nil {
		return "", errLoginFirst("session.drop")
	}
	if err := g.client.DropDatabase(ctx); err != nil {
		return "", err
	}
	user := g.user
	g.releaseLocked(ctx)
	obs.Logger.Info("database_dropped", "user", user)
	return user, nil
}
