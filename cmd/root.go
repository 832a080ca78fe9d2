// Package cmd assembles the companyfix command tree.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fieldrow/companyfix/cmd/config"
	"github.com/fieldrow/companyfix/cmd/migrate"
	"github.com/fieldrow/companyfix/cmd/progress"
	"github.com/fieldrow/companyfix/cmd/serve"
	"github.com/fieldrow/companyfix/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "companyfix",
		Short: "companyfix backfills missing owning-company identifiers",
		Long: "companyfix repairs document collections of the management console by " +
			"resolving and backfilling the owning-company identifier on records that lack it.",
	}

	setupFlags(rootCmd, settings)

	subcommands := []*cobra.Command{
		migrate.Command(settings),
		progress.Command(settings),
		serve.Command(settings),
		config.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().BoolVar(&settings.Migration.DryRun, "dry-run", viper.GetBool("migration.dryrun"), "Stage and count updates without writing them")
	rootCmd.PersistentFlags().IntVar(&settings.Migration.PageSize, "page-size", viper.GetInt("migration.pagesize"), "Records per page")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
