package pkg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/zip"

	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
)

const contentsDir = "IntuneWinPackage/Contents/"

// WritePortalPackage writes the zip the management portal accepts: the container
// and Detection.xml, both stored without compression.
func WritePortalPackage(ctx context.Context, p *data.Package, w io.Writer) error {
	logger.Infof(ctx, "Building portal package for %s", p.App.DisplayName)

	detection, err := DetectionXML(p)
	if err != nil {
		return err
	}

	if err := p.Rewind(); err != nil {
		return err
	}

	zw := zip.NewWriter(w)

	if err := storeEntry(zw, contentsEntry, p.Data()); err != nil {
		zw.Close()
		return fmt.Errorf("write %s: %w", contentsEntry, err)
	}

	if err := storeEntry(zw, metadataEntry, bytes.NewReader(detection)); err != nil {
		zw.Close()
		return fmt.Errorf("write %s: %w", metadataEntry, err)
	}

	return zw.Close()
}

// Intunewin is an opened portal package.
type Intunewin struct {
	Name string // The application name from Detection.xml
	Path string // The path to the portal package

	reader      *zip.ReadCloser
	metadata    *data.ApplicationInfo
	info        *data.EncryptionInfo
	contentFile string
}

// OpenFile opens a portal package, parses its metadata and verifies the container HMAC.
func OpenFile(file string) (*Intunewin, error) {
	r, err := zip.OpenReader(file)
	if err != nil {
		return nil, err
	}

	iw, err := openPortal(r, file)
	if err != nil {
		r.Close()
		return nil, err
	}

	return iw, nil
}

func openPortal(r *zip.ReadCloser, file string) (*Intunewin, error) {
	f, err := r.Open(metadataEntry)
	if err != nil {
		return nil, err
	}

	raw, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	metadata, err := parseDetectionXML(raw)
	if err != nil {
		return nil, err
	}

	info, err := metadata.EncryptionInfo.Decode()
	if err != nil {
		return nil, fmt.Errorf("decode encryption info: %w", err)
	}

	iw := &Intunewin{
		Name:        metadata.Name,
		Path:        file,
		reader:      r,
		metadata:    metadata,
		info:        info,
		contentFile: path.Join(contentsDir, metadata.FileName),
	}

	content, err := r.Open(iw.contentFile)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	ok, err := VerifyMAC(content, info)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, ErrMACMismatch
	}

	return iw, nil
}

// Metadata returns the parsed Detection.xml.
func (iw *Intunewin) Metadata() *data.ApplicationInfo {
	return iw.metadata
}

// EncryptionInfo returns the envelope from Detection.xml.
func (iw *Intunewin) EncryptionInfo() *data.EncryptionInfo {
	return iw.info
}

func (iw *Intunewin) Close() error {
	return iw.reader.Close()
}

// ExtractContent decrypts the content file into w and verifies its digest.
func (iw *Intunewin) ExtractContent(w io.Writer) error {
	content, err := iw.reader.Open(iw.contentFile)
	if err != nil {
		return err
	}
	defer content.Close()

	return DecryptContent(content, w, iw.info)
}
