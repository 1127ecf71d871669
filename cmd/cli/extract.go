package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/internal/validator"
	"github.com/lwalthert/intuneapp/pkg"
)

// zipMagic starts every zip archive, so directory packages can be told from single files.
var zipMagic = []byte("PK\x03\x04")

var (
	extractOutput string

	extractCmd = &cobra.Command{
		Use:   "extract <portal.intunewin>",
		Short: "Decrypt the content of a portal package",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext("extract")
			defer stop()

			_, err := extractPortal(ctx, args[0], extractOutput)

			return err
		},
	}

	verifyCmd = &cobra.Command{
		Use:   "verify <portal.intunewin>",
		Short: "Check the HMAC, padding and digest of a portal package",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext("verify")
			defer stop()

			return verifyPortal(ctx, args[0])
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", ".", "directory the content is written to")
}

// extractPortal decrypts the container of a portal package into outputDir.
func extractPortal(ctx context.Context, file, outputDir string) (string, error) {
	if !validator.PathIsValid(outputDir, validator.Directory) {
		return "", fmt.Errorf("%w: %s", errInvalidOutputDir, outputDir)
	}

	iw, err := pkg.OpenFile(file)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", file, err)
	}
	defer iw.Close()

	meta := iw.Metadata()
	logger.Infof(ctx, "Extracting %s (%s) from %s", meta.Name, humanize.IBytes(uint64(meta.UnencryptedContentSize)), file)

	out, err := os.CreateTemp(outputDir, ".extract*")
	if err != nil {
		return "", err
	}
	defer os.Remove(out.Name())

	if err := iw.ExtractContent(out); err != nil {
		out.Close()
		return "", err
	}

	head := make([]byte, len(zipMagic))
	if _, err := out.ReadAt(head, 0); err != nil && !errors.Is(err, io.EOF) {
		out.Close()
		return "", err
	}

	if err := out.Close(); err != nil {
		return "", err
	}

	target := filepath.Join(outputDir, contentName(file, meta, head))

	if err := os.Rename(out.Name(), target); err != nil {
		return "", err
	}

	logger.Infof(ctx, "Extracted content to %s", target)

	return target, nil
}

// contentName names extracted content after the portal file: .zip for directory
// packages, .msi for installer packages, the setup file's extension otherwise.
func contentName(portal string, meta *data.ApplicationInfo, head []byte) string {
	base := filepath.Base(portal)
	for _, suffix := range []string{pkg.PortalSuffix, pkg.DataSuffix} {
		base = strings.TrimSuffix(base, suffix)
	}

	switch {
	case bytes.Equal(head, zipMagic):
		return base + ".zip"
	case meta.MsiInfo != nil:
		return base + ".msi"
	default:
		return base + filepath.Ext(meta.SetupFile)
	}
}

// verifyPortal fully decrypts a portal package without keeping the plaintext.
func verifyPortal(ctx context.Context, file string) error {
	iw, err := pkg.OpenFile(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer iw.Close()

	if err := iw.ExtractContent(io.Discard); err != nil {
		return fmt.Errorf("verify %s: %w", file, err)
	}

	info := iw.EncryptionInfo()
	logger.InfoKV(ctx, "Verified portal package", "file", file, "app", iw.Name,
		"profile", info.ProfileIdentifier, "digest", info.FileDigestAlgorithm)

	return nil
}
