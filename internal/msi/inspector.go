package msi

import (
	"context"
	"errors"

	"github.com/lwalthert/intuneapp/internal/data"
)

// ErrUnavailable is returned when installer metadata cannot be read on this platform.
var ErrUnavailable = errors.New("installer metadata is unavailable")

// Info is the metadata read from an installer.
type Info struct {
	// Information describes the product for the application record.
	Information *data.MsiInformation
	// Manifest is the device-side manifest uploaded with the content file.
	Manifest *data.MsiManifest
}

// Inspector reads installer metadata from a file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (*Info, error)
}

// Unavailable is the Inspector used when no installer reader exists.
type Unavailable struct{}

// Inspect always returns ErrUnavailable.
func (Unavailable) Inspect(context.Context, string) (*Info, error) {
	return nil, ErrUnavailable
}
