// Package app provides the commands of the pulp repository sync job.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/thoth-station/pulp-repository-sync-job/internal/config"
	"github.com/thoth-station/pulp-repository-sync-job/internal/versions"
)

// NewRootCmd creates the root command, which runs one sync pass.
func NewRootCmd(logger *slog.Logger) *cobra.Command {
	return newRootCmd(newRunner(logger))
}

func newRootCmd(r *runner) *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               "pulp-repository-sync",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		SilenceErrors:     true,
		Short:             "Register Pulp Python repositories in the Thoth knowledge graph",
		Long: `pulp-repository-sync lists the Python distributions served by a Pulp instance
and registers every simple index the knowledge graph does not know yet as a
Python package index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(
				config.WithViper(v),
				config.WithConfigPath(v.GetString(config.KeyConfig)),
			)
			if err != nil {
				return err
			}
			return r.run(cmd.Context(), cfg)
		},
	}

	config.RegisterFlags(rootCmd.Flags())
	rootCmd.MarkFlagsMutuallyExclusive("disable-index", "enable-index")
	if err := config.BindFlags(v, rootCmd.Flags()); err != nil {
		r.logger.Error("Error binding flags", "error", err)
	}

	rootCmd.AddCommand(newVersionCmd(r.logger))

	return rootCmd
}

func newVersionCmd(logger *slog.Logger) *cobra.Command {
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("error retrieving format flag: %w", err)
			}

			switch format {
			case "json":
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			case "":
				logger.Info("pulp-repository-sync-job version",
					"version", info.Version,
					"component", info.Component,
					"commit", info.Commit,
					"built", info.BuildDate,
					"go", info.GoVersion,
					"platform", info.Platform)
				return nil
			default:
				return fmt.Errorf("unsupported format %q", format)
			}
		},
	}
	versionCmd.Flags().String("format", "", "Output format (json)")
	return versionCmd
}
