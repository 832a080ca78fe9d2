// Package config implements the configuration dump subcommand.
package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldrow/companyfix/internal/conf"
)

// Command creates the config subcommand.
func Command(settings *conf.Settings) *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Write the effective configuration to a YAML file",
		Long: "Writes the merged configuration, defaults plus config file plus " +
			"environment overrides, so a deployment can be pinned to an explicit file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := conf.SaveYAML(settings, outPath); err != nil {
				return fmt.Errorf("writing configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", outPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "config.yaml", "Destination file")

	return cmd
}
