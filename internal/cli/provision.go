package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "seed",
		Short:        "Create the dashboard user and seed the product collection if absent",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			p := newBackend(cfg).provisioner
			creds := seedCredentials(cfg)
			created, err := p.EnsureUser(cmd.Context(), creds)
			if err != nil {
				return err
			}
			n, err := p.Seed(cmd.Context(), creds)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %q created=%t, seeded %d documents into %s.%s\n",
				creds.Username, created, n, cfg.Database, cfg.Collection)
			return nil
		},
	}
}

// NewDropCommand creates the drop command.
func NewDropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "drop",
		Short:        "Drop the inventory database and remove the dashboard user",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			if err := newBackend(cfg).provisioner.Teardown(cmd.Context(), seedCredentials(cfg)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "dropped database %s and user %q\n", cfg.Database, cfg.SeedUser)
			return nil
		},
	}
}

// NewConfigCommand creates the config command printing the effective
// configuration as YAML.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "config",
		Short:        "Print the effective configuration",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			cfg.SeedPassword = "********"
			if cfg.SessionSecret != "" {
				cfg.SessionSecret = "********"
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}
