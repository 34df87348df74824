// Package cli implements the inventory-dashboard command line.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/inventory-dashboard/internal/config"
	"github.com/fairyhunter13/inventory-dashboard/internal/model"
	"github.com/fairyhunter13/inventory-dashboard/internal/provision"
	"github.com/fairyhunter13/inventory-dashboard/internal/store"
)

// adminTimeout bounds server selection of administrative connections.
const adminTimeout = 10 * time.Second

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "inventory-dashboard",
		Short: "Inventory management dashboard",
		Long:  "Browse and edit the product inventory stored in MongoDB through a web dashboard.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "YAML configuration file (environment variables still apply)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewDropCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))

	return cmd
}

// loadConfig reads and validates the configuration selected by opts.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg := config.Load()
	if opts.ConfigPath != "" {
		var err error
		if cfg, err = config.LoadFile(opts.ConfigPath); err != nil {
			return cfg, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// backend is the store wiring selected by configuration.
type backend struct {
	connector   store.Connector
	provisioner *provision.Provisioner
}

func newBackend(cfg config.Config) backend {
	if cfg.StoreBackend == config.BackendMemory {
		conn := store.NewMemoryConnector(store.NewMemory(), nil)
		return backend{
			connector:   conn,
			provisioner: provision.New(provision.MemoryUsers{Connector: conn}, conn, cfg.Database, cfg.SeedCount),
		}
	}
	conn := store.NewMongoConnector(cfg)
	users := provision.NewMongoUsers(cfg.MongoAdminURI, adminTimeout)
	return backend{
		connector:   conn,
		provisioner: provision.New(users, conn, cfg.Database, cfg.SeedCount),
	}
}

func seedCredentials(cfg config.Config) model.Credentials {
	return model.Credentials{Username: cfg.SeedUser, Password: cfg.SeedPassword}
}
