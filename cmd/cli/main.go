// Command intuneapp packages installers into .intunewin containers and publishes
// them as line-of-business apps.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lwalthert/intuneapp/internal/config"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/internal/version"
)

var (
	// configPath to the configuration file, empty to use the optional default file.
	configPath string
	// logLevel overrides the configured log level when set.
	logLevel string
	// chunkSize overrides the configured upload block size when set.
	chunkSize config.ByteSize

	// settings is loaded before any subcommand runs.
	settings *config.Config

	rootCmd = &cobra.Command{
		Use:           "intuneapp",
		Short:         "Package and publish Intune line-of-business apps",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			settings = cfg

			return nil
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "",
		"path to configuration file (default "+config.DefaultConfigFilename+" when present)")
	flags.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.Var(&chunkSize, "chunk-size", "upload block size, e.g. 8MiB")

	rootCmd.AddCommand(packCmd, publishCmd, extractCmd, verifyCmd)
	version.AttachCobraVersionCommand(rootCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Logger().Error(err)
		os.Exit(1)
	}
}
