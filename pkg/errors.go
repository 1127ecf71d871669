package pkg

import "errors"

var (
	ErrorInvalidContentFolder = errors.New("invalid content folder")
	ErrorInvalidSetupFile     = errors.New("invalid setup file")
	ErrorUnsupportedSource    = errors.New("source must be a directory or an .msi file")

	// ErrSourceNotFound is returned when the file or directory to package does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrSizeMismatch is returned when a package's sizes disagree with its container.
	ErrSizeMismatch = errors.New("package size mismatch")
	// ErrMACMismatch is returned when a container fails HMAC verification.
	ErrMACMismatch = errors.New("hmac mismatch")
	// ErrDigestMismatch is returned when decrypted content does not match the file digest.
	ErrDigestMismatch = errors.New("file digest mismatch")
	// ErrInvalidPadding is returned when decrypted content is not PKCS#7 padded.
	ErrInvalidPadding = errors.New("invalid padding")
	// ErrInvalidEnvelope is returned when key material has the wrong size.
	ErrInvalidEnvelope = errors.New("invalid encryption info")
)
