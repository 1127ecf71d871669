package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lwalthert/intuneapp/internal/msi"
	"github.com/lwalthert/intuneapp/internal/validator"
	"github.com/lwalthert/intuneapp/pkg"
)

var (
	packSources     []string
	packOutput      string
	packSetupFile   string
	packMsiMetadata string

	packCmd = &cobra.Command{
		Use:   "pack",
		Short: "Package directories or .msi files into .intunewin artifacts",
		Long: "Encrypts every source into a container and writes <name>.intunewin.json, " +
			"<name>.intunewin and <name>.portal.intunewin into the output directory.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext("pack")
			defer stop()

			return runPack(ctx)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	flags := packCmd.Flags()
	flags.StringArrayVarP(&packSources, "source", "s", nil, "directory or .msi file to package, repeatable")
	flags.StringVarP(&packOutput, "output", "o", ".", "directory the artifacts are written to")
	flags.StringVar(&packSetupFile, "setup", "", "setup file of a directory source, relative to it")
	flags.StringVar(&packMsiMetadata, "msi-metadata", "", "YAML file with installer properties for a single .msi source")

	//nolint:errcheck // The flag is defined right above.
	_ = packCmd.MarkFlagRequired("source")
}

func runPack(ctx context.Context) error {
	if !validator.PathIsValid(packOutput, validator.Directory) {
		return fmt.Errorf("%w: %s", errInvalidOutputDir, packOutput)
	}

	for _, source := range packSources {
		if err := checkPackSource(source); err != nil {
			return err
		}
	}

	if err := checkInstallerMetadata(packSources, packMsiMetadata); err != nil {
		return err
	}

	opts := []pkg.BuildOption{pkg.WithSetupFile(packSetupFile)}

	if packMsiMetadata != "" {
		inspector, err := msi.LoadStatic(packMsiMetadata)
		if err != nil {
			return err
		}
		opts = append(opts, pkg.WithInspector(inspector))
	}

	for _, source := range packSources {
		if err := packOne(ctx, source, opts); err != nil {
			return err
		}
	}

	return nil
}

func packOne(ctx context.Context, source string, opts []pkg.BuildOption) error {
	p, err := pkg.BuildPackage(ctx, source, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	_, err = pkg.WriteArtifacts(ctx, p, packOutput)

	return err
}
