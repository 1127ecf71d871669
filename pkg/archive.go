package pkg

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// Entries of the portal package.
const (
	contentsEntry = "IntuneWinPackage/Contents/" + outputFileName
	metadataEntry = "IntuneWinPackage/Metadata/Detection.xml"
)

// zipDirectory writes every regular file below dir to w as a Deflate-compressed zip.
// Entry names are relative to dir and use forward slashes.
func zipDirectory(ctx context.Context, dir string, w io.Writer) error {
	zw := zip.NewWriter(w)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		return addFile(zw, path, filepath.ToSlash(rel))
	})
	if err != nil {
		zw.Close()
		return err
	}

	return zw.Close()
}

func addFile(zw *zip.Writer, path, name string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(stat)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	fw, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}

	_, err = copyInChunks(file, fw)

	return err
}

// storeEntry writes r as an uncompressed entry. The portal cannot read compressed entries.
func storeEntry(zw *zip.Writer, name string, r io.Reader) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Store,
	})
	if err != nil {
		return err
	}

	_, err = copyInChunks(r, fw)

	return err
}
