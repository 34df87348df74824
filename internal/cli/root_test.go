package cli

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	httpapi "github.com/fairyhunter13/inventory-dashboard/internal/http"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "seed", "drop", "config"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestConfigCommandReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store_backend: memory\npage_size: 10\nseed_count: 5\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":9999")

	out, err := execute(t, "config", "--config", path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "memory", got["store_backend"])
	assert.Equal(t, 10, got["page_size"])
	assert.Equal(t, ":9999", got["http_addr"])
	assert.Equal(t, "********", got["seed_password"])
	assert.Equal(t, "1s", got["login_timeout"])
}

func TestInvalidConfigIsRejected(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	_, err := execute(t, "config")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store backend")
}

func TestSeedMemoryBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	out, err := execute(t, "seed")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, `user "user" created=true, seeded 100 documents`), out)
}

func TestDropWithoutUserFails(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	_, err := execute(t, "drop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `connect as "user"`)
}

func TestBuildAppBootstrapsMemoryBackend(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = config.BackendMemory
	cfg.SeedCount = 7

	app, err := buildApp(context.Background(), cfg, true)
	require.NoError(t, err)
	require.NoError(t, app.Gate.Login(context.Background(), model.Credentials{Username: "user", Password: "password"}))

	rr := httptest.NewRecorder()
	httpapi.NewRouter(app).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":7`)
}

func TestBuildAppWithoutBootstrap(t *testing.T) {
	cfg := config.Defaults()
	cfg.StoreBackend = config.BackendMemory

	app, err := buildApp(context.Background(), cfg, false)
	require.NoError(t, err)
	assert.Error(t, app.Gate.Login(context.Background(), model.Credentials{Username: "user", Password: "password"}))
}
