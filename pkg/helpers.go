package pkg

import (
	"crypto/rand"
	"errors"
	"io"
	"os"
	"strings"
	"unicode"
)

// chunkSize is the buffer size used when streaming files.
const chunkSize = 2 << 20

func copyInChunks(r io.Reader, out io.Writer) (int64, error) {
	var written int64 // counts the bytes written to the writer
	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			m, werr := out.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, werr
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return written, nil // Reached end of file
			}
			return written, err
		}
	}
}

// countingWriter discards what is written and counts the bytes.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.n += int64(len(b))
	return len(b), nil
}

func generateKey(length int) ([]byte, error) {
	key := make([]byte, length)
	_, err := rand.Read(key)
	if err != nil {
		return nil, err
	}

	return key, nil
}

// streamLength returns the size of s and leaves it positioned at the start.
func streamLength(s io.Seeker) (int64, error) {
	n, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}

	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}

	return n, nil
}

// toValidFileName drops characters Windows does not allow in paths.
func toValidFileName(name string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || strings.ContainsRune(`"<>|`, r) {
			return -1
		}
		return r
	}, name)
}

// tempFile is a container stream that deletes its file on Close.
type tempFile struct {
	*os.File
}

func newTempFile(dir, pattern string) (*tempFile, error) {
	f, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return nil, err
	}

	return &tempFile{File: f}, nil
}

func (t *tempFile) Close() error {
	err := t.File.Close()
	if rerr := os.Remove(t.Name()); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
		err = rerr
	}

	return err
}
