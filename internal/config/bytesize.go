package config

import (
	"fmt"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var _ pflag.Value = (*ByteSize)(nil)

// ByteSize is a size in bytes that reads and prints human units such as "25MiB".
// It can be used as a pflag value and as a YAML scalar.
type ByteSize int64

// ParseByteSize parses "4MiB", "25 MB" or a plain byte count.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse byte size %q: %w", s, err)
	}

	if n > uint64(1<<62) {
		return 0, fmt.Errorf("byte size %q is too large", s)
	}

	return ByteSize(n), nil
}

// Int64 returns the size as a plain byte count.
func (b ByteSize) Int64() int64 { return int64(b) }

// String implements pflag.Value.
func (b ByteSize) String() string {
	if b < 0 {
		return strconv.FormatInt(int64(b), 10)
	}

	return humanize.IBytes(uint64(b))
}

// Set implements pflag.Value.
func (b *ByteSize) Set(s string) error {
	v, err := ParseByteSize(s)
	if err != nil {
		return err
	}

	*b = v

	return nil
}

// Type implements pflag.Value.
func (*ByteSize) Type() string { return "bytes" }

// UnmarshalYAML accepts either an integer byte count or a human-readable string.
func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode byte size: %w", err)
	}

	return b.Set(raw)
}

// MarshalYAML writes the human-readable form.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}
