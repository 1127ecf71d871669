package pkg

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lwalthert/intuneapp/internal/data"
)

// Container layout: HMAC, then IV, then the AES-CBC ciphertext.
const (
	macOffset  = 0
	ivOffset   = macOffset + data.MacSize
	HeaderSize = ivOffset + data.IVSize
)

// EncryptedSize returns the container size for n bytes of plaintext.
// PKCS#7 always adds between 1 and 16 bytes of padding.
func EncryptedSize(n int64) int64 {
	return HeaderSize + (n/aes.BlockSize+1)*aes.BlockSize
}

// CBCEncrypter encrypts everything written to it with AES-CBC and writes the
// ciphertext to the underlying writer. The IV and all ciphertext are fed to an
// HMAC. Close appends the PKCS#7 padding block.
type CBCEncrypter struct {
	mode    cipher.BlockMode
	mac     hash.Hash
	writer  io.Writer
	pending []byte
	closed  bool
}

// NewCBCEncrypter writes iv to w and returns an encrypter for the bytes that follow.
func NewCBCEncrypter(w io.Writer, iv, aesKey, macKey []byte) (*CBCEncrypter, error) {
	// Create a new aes block cipher
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}

	// The IV is always written ahead of the ciphertext and is covered by the HMAC.
	if _, err := w.Write(iv); err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, macKey)
	mac.Write(iv)

	return &CBCEncrypter{
		mode:   cipher.NewCBCEncrypter(block, iv),
		mac:    mac,
		writer: w,
	}, nil
}

func (e *CBCEncrypter) Write(b []byte) (int, error) {
	if e.closed {
		return 0, os.ErrClosed
	}

	e.pending = append(e.pending, b...)

	full := len(e.pending) - len(e.pending)%aes.BlockSize
	if full == 0 {
		return len(b), nil
	}

	if err := e.emit(e.pending[:full]); err != nil {
		return 0, err
	}

	e.pending = append(e.pending[:0], e.pending[full:]...)

	return len(b), nil
}

// Close pads and encrypts the remaining bytes. It does not close the underlying writer.
func (e *CBCEncrypter) Close() error {
	if e.closed {
		return nil
	}

	e.closed = true

	// https://datatracker.ietf.org/doc/html/rfc5652#section-6.3
	padding := aes.BlockSize - len(e.pending)%aes.BlockSize
	e.pending = append(e.pending, bytes.Repeat([]byte{byte(padding)}, padding)...)

	return e.emit(e.pending)
}

// Sum returns the HMAC of the IV and the ciphertext written so far.
func (e *CBCEncrypter) Sum(b []byte) []byte {
	return e.mac.Sum(b)
}

func (e *CBCEncrypter) emit(b []byte) error {
	e.mode.CryptBlocks(b, b)

	if _, err := e.writer.Write(b); err != nil {
		return err
	}

	e.mac.Write(b)

	return nil
}

// CBCDecrypter decrypts AES-CBC ciphertext written to it. The last block is held
// back until Close, which strips and checks the PKCS#7 padding.
type CBCDecrypter struct {
	mode    cipher.BlockMode
	writer  io.Writer
	pending []byte
}

// NewCBCDecrypter returns a decrypter writing plaintext to w.
func NewCBCDecrypter(w io.Writer, iv, aesKey []byte) (*CBCDecrypter, error) {
	// Create a new aes block cipher
	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, err
	}

	return &CBCDecrypter{
		mode:   cipher.NewCBCDecrypter(block, iv),
		writer: w,
	}, nil
}

func (d *CBCDecrypter) Write(b []byte) (int, error) {
	d.pending = append(d.pending, b...)

	// Keep at least one full block for Close.
	ready := len(d.pending) - len(d.pending)%aes.BlockSize - aes.BlockSize
	if ready <= 0 {
		return len(b), nil
	}

	d.mode.CryptBlocks(d.pending[:ready], d.pending[:ready])

	if _, err := d.writer.Write(d.pending[:ready]); err != nil {
		return 0, err
	}

	d.pending = append(d.pending[:0], d.pending[ready:]...)

	return len(b), nil
}

// Close decrypts the final block and writes it without its padding.
func (d *CBCDecrypter) Close() error {
	if len(d.pending) != aes.BlockSize {
		return fmt.Errorf("%w: data is not block-aligned", ErrInvalidPadding)
	}

	d.mode.CryptBlocks(d.pending, d.pending)

	padLen := int(d.pending[aes.BlockSize-1])
	if padLen == 0 || padLen > aes.BlockSize {
		return ErrInvalidPadding
	}

	if !bytes.Equal(d.pending[aes.BlockSize-padLen:], bytes.Repeat([]byte{byte(padLen)}, padLen)) {
		return ErrInvalidPadding
	}

	_, err := d.writer.Write(d.pending[:aes.BlockSize-padLen])
	d.pending = d.pending[:0]

	return err
}

// EncryptFile encrypts the file at sourcePath into out and returns the envelope
// needed to decrypt and verify it. out is rewound to its first byte on success.
func EncryptFile(sourcePath string, out io.ReadWriteSeeker) (*data.EncryptionInfo, error) {
	input, err := os.Open(filepath.Clean(sourcePath))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourcePath)
		}
		return nil, err
	}
	defer input.Close()

	aesKey, err := generateKey(data.KeySize)
	if err != nil {
		return nil, err
	}

	macKey, err := generateKey(data.KeySize)
	if err != nil {
		return nil, err
	}

	iv, err := generateKey(data.IVSize)
	if err != nil {
		return nil, err
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	// The HMAC is only known after encrypting, reserve room for it.
	if _, err := out.Write(make([]byte, data.MacSize)); err != nil {
		return nil, err
	}

	enc, err := NewCBCEncrypter(out, iv, aesKey, macKey)
	if err != nil {
		return nil, err
	}

	digest := sha256.New()
	if _, err := copyInChunks(io.TeeReader(input, digest), enc); err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", sourcePath, err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encrypt %s: %w", sourcePath, err)
	}

	mac := enc.Sum(nil)

	if _, err := out.Seek(macOffset, io.SeekStart); err != nil {
		return nil, err
	}

	if _, err := out.Write(mac); err != nil {
		return nil, err
	}

	if _, err := out.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	return &data.EncryptionInfo{
		EncryptionKey:        aesKey,
		MacKey:               macKey,
		InitializationVector: iv,
		Mac:                  mac,
		ProfileIdentifier:    data.ProfileVersion1,
		FileDigest:           digest.Sum(nil),
		FileDigestAlgorithm:  data.FileDigestSHA256,
	}, nil
}

// VerifyMAC reads a whole container from r and reports whether the HMAC stored in
// its header matches both the recomputed value and the envelope.
func VerifyMAC(r io.Reader, info *data.EncryptionInfo) (bool, error) {
	if !info.Valid() {
		return false, ErrInvalidEnvelope
	}

	stored := make([]byte, data.MacSize)
	if _, err := io.ReadFull(r, stored); err != nil {
		return false, fmt.Errorf("read container header: %w", err)
	}

	mac := hmac.New(sha256.New, info.MacKey)
	if _, err := copyInChunks(r, mac); err != nil {
		return false, err
	}

	expected := mac.Sum(nil)

	return hmac.Equal(expected, stored) && hmac.Equal(expected, info.Mac), nil
}

// DecryptContent reads a container from in, writes the plaintext to out and checks
// the HMAC and the plaintext digest against info.
func DecryptContent(in io.Reader, out io.Writer, info *data.EncryptionInfo) error {
	if !info.Valid() {
		return ErrInvalidEnvelope
	}

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return fmt.Errorf("read container header: %w", err)
	}

	if !hmac.Equal(header[macOffset:ivOffset], info.Mac) {
		return fmt.Errorf("%w: header does not match the envelope", ErrMACMismatch)
	}

	iv := header[ivOffset:HeaderSize]

	mac := hmac.New(sha256.New, info.MacKey)
	mac.Write(iv)

	digest := sha256.New()

	dec, err := NewCBCDecrypter(io.MultiWriter(out, digest), iv, info.EncryptionKey)
	if err != nil {
		return err
	}

	if _, err := copyInChunks(io.TeeReader(in, mac), dec); err != nil {
		return err
	}

	if !hmac.Equal(mac.Sum(nil), info.Mac) {
		return ErrMACMismatch
	}

	if err := dec.Close(); err != nil {
		return err
	}

	if !bytes.Equal(digest.Sum(nil), info.FileDigest) {
		return ErrDigestMismatch
	}

	return nil
}
