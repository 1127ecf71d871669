package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lwalthert/intuneapp/internal/config"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/internal/validator"
	"github.com/lwalthert/intuneapp/pkg"
)

var (
	errUnknownLogLevel  = errors.New("unknown log level")
	errNoSources        = errors.New("no sources given")
	errNotMetadataFile  = errors.New("not a package metadata file")
	errInvalidOutputDir = errors.New("output is not a directory")
	errSharedMetadata   = errors.New("installer metadata applies to a single source")
)

// loadSettings reads the configuration and applies the persistent flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if flags.Changed("chunk-size") {
		cfg.Upload.ChunkSize = chunkSize
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, ok := logger.ParseLogLevel(cfg.LogLevel)
	if !ok {
		return nil, fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
	}

	logger.SetLevel(level)

	return cfg, nil
}

// signalContext is canceled on SIGINT and SIGTERM.
func signalContext(name string) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)

	return logger.WithName(ctx, name), stop
}

// checkPackSource accepts directories and single .msi files.
func checkPackSource(source string) error {
	if !validator.PathIsValid(source, validator.Any) {
		return fmt.Errorf("%w: %s", pkg.ErrSourceNotFound, source)
	}

	if validator.PathIsValid(source, validator.Directory) || validator.HasExtension(source, ".msi") {
		return nil
	}

	return fmt.Errorf("%w: %s", pkg.ErrorUnsupportedSource, source)
}

// checkInstallerMetadata refuses one installer metadata file for several sources,
// which would give all of them the same product code.
func checkInstallerMetadata(sources []string, metadataPath string) error {
	if metadataPath != "" && len(sources) > 1 {
		return fmt.Errorf("%w: --msi-metadata was given with %d sources", errSharedMetadata, len(sources))
	}

	return nil
}

// collectMetadataFiles expands directories into the package metadata files below them.
func collectMetadataFiles(sources []string) ([]string, error) {
	if len(sources) == 0 {
		return nil, errNoSources
	}

	var files []string

	for _, source := range sources {
		stat, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", pkg.ErrSourceNotFound, source)
		}

		if !stat.IsDir() {
			if !strings.HasSuffix(source, pkg.MetadataSuffix) {
				return nil, fmt.Errorf("%w: %s", errNotMetadataFile, source)
			}
			files = append(files, source)

			continue
		}

		err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), pkg.MetadataSuffix) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", source, err)
		}
	}

	return files, nil
}
