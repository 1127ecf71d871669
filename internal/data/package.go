package data

import (
	"errors"
	"io"
)

// DataStream is the seekable container storage owned by a Package.
type DataStream interface {
	io.ReadWriteSeeker
	io.Closer
}

// Package is a packaged app: descriptor, envelope, content file descriptor and the
// encrypted container bytes. The package owns its stream; Close releases it.
type Package struct {
	App            *MobileLobApp          `json:"app"`
	EncryptionInfo *EncryptionInfo        `json:"encryptionInfo"`
	File           *ContentFileDescriptor `json:"file"`

	data DataStream
}

var errNoData = errors.New("package has no data stream")

// NewPackage wraps the given descriptors and stream.
func NewPackage(app *MobileLobApp, info *EncryptionInfo, file *ContentFileDescriptor, data DataStream) *Package {
	return &Package{
		App:            app,
		EncryptionInfo: info,
		File:           file,
		data:           data,
	}
}

// Data returns the container stream.
func (p *Package) Data() DataStream {
	return p.data
}

// SetData replaces the stream. Any previous stream is closed.
func (p *Package) SetData(data DataStream) error {
	var err error
	if p.data != nil {
		err = p.data.Close()
	}

	p.data = data

	return err
}

// Rewind seeks the container stream to its first byte.
func (p *Package) Rewind() error {
	if p.data == nil {
		return errNoData
	}

	_, err := p.data.Seek(0, io.SeekStart)

	return err
}

// Close releases the container stream.
func (p *Package) Close() error {
	if p.data == nil {
		return nil
	}

	err := p.data.Close()
	p.data = nil

	return err
}
