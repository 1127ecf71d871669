package pkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
)

// Suffixes of the files written by WriteArtifacts.
const (
	MetadataSuffix = ".intunewin.json"
	DataSuffix     = ".intunewin"
	PortalSuffix   = ".portal.intunewin"

	artifactPermissions = 0o644
)

// Artifacts are the paths written for one package.
type Artifacts struct {
	Metadata string
	Data     string
	Portal   string
}

// WriteArtifacts writes the three packaging artifacts into outputDir, named after
// the app file name: <base>.intunewin.json with the package metadata,
// <base>.intunewin with the raw container and <base>.portal.intunewin for the portal.
func WriteArtifacts(ctx context.Context, p *data.Package, outputDir string) (*Artifacts, error) {
	base := strings.TrimSuffix(p.App.FileName, filepath.Ext(p.App.FileName))
	out := &Artifacts{
		Metadata: filepath.Join(outputDir, base+MetadataSuffix),
		Data:     filepath.Join(outputDir, base+DataSuffix),
		Portal:   filepath.Join(outputDir, base+PortalSuffix),
	}

	metadata, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal package: %w", err)
	}

	if err := os.WriteFile(out.Metadata, metadata, artifactPermissions); err != nil {
		return nil, fmt.Errorf("write package metadata: %w", err)
	}

	if err := writeFile(out.Data, func(w io.Writer) error {
		if err := p.Rewind(); err != nil {
			return err
		}
		_, err := copyInChunks(p.Data(), w)
		return err
	}); err != nil {
		return nil, fmt.Errorf("write package data: %w", err)
	}

	if err := writeFile(out.Portal, func(w io.Writer) error {
		return WritePortalPackage(ctx, p, w)
	}); err != nil {
		return nil, fmt.Errorf("write portal package: %w", err)
	}

	logger.Infof(ctx, "Finished writing %s package files to %s", base, outputDir)

	return out, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.OpenFile(filepath.Clean(path), os.O_RDWR|os.O_CREATE|os.O_TRUNC, artifactPermissions)
	if err != nil {
		return err
	}

	if err := fill(f); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// LoadPackage reads a package written by WriteArtifacts. The container is opened
// from the file next to jsonPath, the sizes are checked against it and its HMAC
// is verified. The caller closes the returned package.
func LoadPackage(ctx context.Context, jsonPath string) (*data.Package, error) {
	logger.Infof(ctx, "Loading package from file %s", jsonPath)

	raw, err := os.ReadFile(filepath.Clean(jsonPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, jsonPath)
		}
		return nil, err
	}

	p := new(data.Package)
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", jsonPath, err)
	}

	if p.App == nil || p.File == nil || p.EncryptionInfo == nil {
		return nil, fmt.Errorf("decode %s: %w", jsonPath, ErrInvalidEnvelope)
	}

	dataPath := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath))

	f, err := os.Open(filepath.Clean(dataPath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: could not find data file at %s", ErrSourceNotFound, dataPath)
		}
		return nil, err
	}

	logger.Infof(ctx, "Using package data file %s", dataPath)

	if err := p.SetData(f); err != nil {
		f.Close()
		return nil, err
	}

	if err := ValidatePackage(p); err != nil {
		p.Close()
		return nil, fmt.Errorf("%s: %w", jsonPath, err)
	}

	return p, nil
}

// ValidatePackage checks the size invariants, the container HMAC and the plaintext
// digest. The stream is rewound afterwards.
func ValidatePackage(p *data.Package) error {
	if !p.EncryptionInfo.Valid() {
		return ErrInvalidEnvelope
	}

	if p.File.SizeEncrypted != EncryptedSize(p.File.Size) {
		return fmt.Errorf("%w: size %d implies %d encrypted bytes, descriptor says %d",
			ErrSizeMismatch, p.File.Size, EncryptedSize(p.File.Size), p.File.SizeEncrypted)
	}

	if p.Data() == nil {
		return nil
	}

	length, err := streamLength(p.Data())
	if err != nil {
		return err
	}

	if length != p.File.SizeEncrypted {
		return fmt.Errorf("%w: container has %d bytes, descriptor says %d", ErrSizeMismatch, length, p.File.SizeEncrypted)
	}

	ok, err := VerifyMAC(p.Data(), p.EncryptionInfo)
	if err != nil {
		return err
	}

	if !ok {
		return ErrMACMismatch
	}

	// Sizes within one padding block share an encrypted size, count the plaintext.
	if err := p.Rewind(); err != nil {
		return err
	}

	var plain countingWriter
	if err := DecryptContent(p.Data(), &plain, p.EncryptionInfo); err != nil {
		return err
	}

	if plain.n != p.File.Size {
		return fmt.Errorf("%w: container holds %d bytes of content, descriptor says %d", ErrSizeMismatch, plain.n, p.File.Size)
	}

	return p.Rewind()
}
