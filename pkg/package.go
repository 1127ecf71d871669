package pkg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/internal/msi"
	"github.com/lwalthert/intuneapp/internal/validator"
)

const (
	msiExtension = ".msi"
	exeExtension = ".exe"
)

type buildOptions struct {
	setupFile string
	inspector msi.Inspector
	tempDir   string
}

// BuildOption configures BuildPackage.
type BuildOption func(*buildOptions)

// WithSetupFile names the setup file of a directory source, relative to the directory.
func WithSetupFile(name string) BuildOption {
	return func(o *buildOptions) { o.setupFile = name }
}

// WithInspector sets the installer metadata reader. The default is msi.Unavailable.
func WithInspector(inspector msi.Inspector) BuildOption {
	return func(o *buildOptions) { o.inspector = inspector }
}

// WithTempDir sets where intermediate archives and container data are written.
func WithTempDir(dir string) BuildOption {
	return func(o *buildOptions) { o.tempDir = dir }
}

// BuildPackage encrypts a directory or a single file into a package. The package
// owns a temporary container file that is removed when the package is closed.
//
// Directories are zipped first and packaged as win32 apps. A single .msi with
// readable installer metadata becomes a windowsMobileMSI app.
func BuildPackage(ctx context.Context, sourcePath string, opts ...BuildOption) (*data.Package, error) {
	start := time.Now()

	options := buildOptions{inspector: msi.Unavailable{}}
	for _, opt := range opts {
		opt(&options)
	}

	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(absSource)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return nil, err
	}

	ctx = logger.WithKV(ctx, "source", absSource)
	logger.Infof(ctx, "Creating app package from %s", absSource)

	name := strings.TrimSuffix(filepath.Base(absSource), filepath.Ext(absSource))
	inputPath := absSource
	setupPath := absSource
	setupFile := filepath.Base(absSource)
	archived := stat.IsDir()

	if archived {
		setupFile, err = resolveSetupFile(absSource, options.setupFile)
		if err != nil {
			return nil, err
		}
		setupPath = filepath.Join(absSource, setupFile)

		archive, err := newTempFile(options.tempDir, name+"*.intunewin.zip")
		if err != nil {
			return nil, err
		}
		defer archive.Close()

		logger.Infof(ctx, "Creating intermediate zip of %s at %s", absSource, archive.Name())

		if err := zipDirectory(ctx, absSource, archive); err != nil {
			return nil, fmt.Errorf("zip %s: %w", absSource, err)
		}

		if err := archive.Sync(); err != nil {
			return nil, err
		}
		inputPath = archive.Name()
	}

	plain, err := os.Stat(inputPath)
	if err != nil {
		return nil, err
	}

	container, err := newTempFile(options.tempDir, "IntunePackage*.intunewin")
	if err != nil {
		return nil, err
	}

	logger.Infof(ctx, "Generating encrypted version of %s (%s)", inputPath, humanize.IBytes(uint64(plain.Size())))

	info, err := EncryptFile(inputPath, container)
	if err != nil {
		container.Close()
		return nil, err
	}

	encryptedSize, err := streamLength(container)
	if err != nil {
		container.Close()
		return nil, err
	}

	meta, err := inspect(ctx, options.inspector, setupPath)
	if err != nil {
		container.Close()
		return nil, err
	}

	app := newApp(name, setupFile, meta, archived)

	file := &data.ContentFileDescriptor{
		Name:          app.FileName,
		Size:          plain.Size(),
		SizeEncrypted: encryptedSize,
	}

	if app.IsMSI() {
		manifest, err := meta.Manifest.Bytes()
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		file.Manifest = manifest
	}

	logger.Infof(ctx, "Created app package for %s in %s", app.DisplayName, time.Since(start).Round(time.Millisecond))

	return data.NewPackage(app, info, file, container), nil
}

// resolveSetupFile returns the setup file relative to dir. Without an explicit
// name the single top-level .msi is used, then the single top-level .exe.
func resolveSetupFile(dir, explicit string) (string, error) {
	if explicit != "" {
		if !validator.FileIsInDirectory(explicit, dir) {
			return "", fmt.Errorf("%w: %s is not in content folder %s", ErrorInvalidSetupFile, explicit, dir)
		}
		return filepath.Clean(explicit), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrorInvalidContentFolder, err)
	}

	var msis, exes []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		switch {
		case validator.HasExtension(e.Name(), msiExtension):
			msis = append(msis, e.Name())
		case validator.HasExtension(e.Name(), exeExtension):
			exes = append(exes, e.Name())
		}
	}

	switch {
	case len(msis) == 1:
		return msis[0], nil
	case len(msis) == 0 && len(exes) == 1:
		return exes[0], nil
	default:
		return "", fmt.Errorf("%w: found %d .msi and %d .exe files in %s, name one explicitly",
			ErrorInvalidSetupFile, len(msis), len(exes), dir)
	}
}

// inspect reads installer metadata for .msi setup files. A reader that is not
// available yields nil metadata.
func inspect(ctx context.Context, inspector msi.Inspector, setupPath string) (*msi.Info, error) {
	if !validator.HasExtension(setupPath, msiExtension) {
		return nil, nil
	}

	info, err := inspector.Inspect(ctx, setupPath)
	if errors.Is(err, msi.ErrUnavailable) {
		logger.Warnf(ctx, "Installer metadata unavailable for %s, packaging as an opaque payload", setupPath)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read installer metadata: %w", err)
	}

	return info, nil
}

// newApp describes the package. A zip of a directory holding an .msi is still a win32 app.
func newApp(name, setupFile string, meta *msi.Info, archived bool) *data.MobileLobApp {
	app := new(data.MobileLobApp)

	if meta != nil && !archived {
		app.ODataType = data.WindowsMobileMSIType
		app.ProductCode = meta.Information.ProductCode
		app.ProductVersion = meta.Information.ProductVersion
		app.IdentityVersion = meta.Information.ProductVersion
	} else {
		app.ODataType = data.Win32LobAppType
		app.SetupFilePath = strings.ReplaceAll(filepath.ToSlash(setupFile), "/", `\`)
		app.InstallExperience = &data.InstallExperience{RunAsAccount: data.RunAsAccountSystem}

		if meta != nil {
			app.MsiInformation = meta.Information
			if meta.Information.PackageType == data.MsiPackageTypePerUser {
				app.InstallExperience.RunAsAccount = data.RunAsAccountUser
			}
		}
	}

	app.DisplayName = name
	if meta != nil {
		if meta.Information.ProductName != "" {
			app.DisplayName = meta.Information.ProductName
		}
		app.Publisher = meta.Information.Publisher
	}

	app.FileName = toValidFileName(app.DisplayName) + ".intunewin"

	return app
}
