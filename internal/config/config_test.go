package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/lwalthert/intuneapp/pkg/upload"
)

// TestValidateFillsDefaults checks an empty configuration receives every default.
func TestValidateFillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := new(Config)
	require.NoError(t, Validate(cfg))

	require.Equal(t, DefaultGraphBaseURL, cfg.Graph.BaseURL)
	require.Equal(t, DefaultChunkSize, cfg.Upload.ChunkSize)
	require.Equal(t, 7*time.Minute+30*time.Second, cfg.Upload.RenewAfter)
	require.Equal(t, 30, cfg.Upload.MaxAttempts)
	require.Equal(t, []int{307, 400, 403}, cfg.Upload.RetryStatuses)
	require.Equal(t, 2*time.Second, cfg.Lifecycle.PollInterval)
	require.Equal(t, 10*time.Minute, cfg.Lifecycle.Timeout)
	require.Equal(t, "info", cfg.LogLevel)
}

// TestDefaultMatchesUploader keeps the configured defaults equal to the uploader's own.
func TestDefaultMatchesUploader(t *testing.T) {
	t.Parallel()

	cfg := Default()

	require.Equal(t, int64(upload.DefaultChunkSize), cfg.Upload.ChunkSize.Int64())
	require.Equal(t, upload.DefaultRenewAfter, cfg.Upload.RenewAfter)
	require.Equal(t, upload.DefaultMaxAttempts, cfg.Upload.MaxAttempts)
	require.Equal(t, upload.DefaultRetryDelay, cfg.Upload.RetryDelay)
	require.Equal(t, upload.DefaultRetryStatuses(), cfg.Upload.RetryStatuses)
	require.Equal(t, upload.DefaultPollInterval, cfg.Lifecycle.PollInterval)
	require.Equal(t, upload.DefaultWaitTimeout, cfg.Lifecycle.Timeout)
}

// TestValidateRejectsBadValues covers the fields that cannot be defaulted.
func TestValidateRejectsBadValues(t *testing.T) {
	t.Parallel()

	require.Error(t, Validate(nil))
	require.Error(t, Validate(&Config{Graph: GraphConfig{BaseURL: "not a url"}}))
	require.Error(t, Validate(&Config{Upload: UploadConfig{ChunkSize: -1}}))
	require.Error(t, Validate(&Config{Upload: UploadConfig{MaxAttempts: -3}}))
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := &Config{
		Graph:  GraphConfig{BaseURL: "https://graph.example.test/beta/"},
		Upload: UploadConfig{ChunkSize: 4 << 20, RetryDelay: time.Second},
	}
	require.NoError(t, Save(path, cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "chunk_size: 4.0 MiB")

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://graph.example.test/beta", loaded.Graph.BaseURL)
	require.Equal(t, ByteSize(4<<20), loaded.Upload.ChunkSize)
	require.Equal(t, time.Second, loaded.Upload.RetryDelay)
}

// TestParseJSONC accepts comments and trailing commas in JSON settings.
func TestParseJSONC(t *testing.T) {
	t.Parallel()

	src := []byte(`{
		// smaller blocks for slow links
		"upload": {"chunk_size": "8MiB", "max_attempts": 5,},
		"lifecycle": {"poll_interval": "500ms"},
	}`)

	cfg, err := Parse(src, ".jsonc")
	require.NoError(t, err)
	require.Equal(t, ByteSize(8<<20), cfg.Upload.ChunkSize)
	require.Equal(t, 5, cfg.Upload.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Lifecycle.PollInterval)
}

// TestLoadExplicitMissingFile fails for a path the user named.
func TestLoadExplicitMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

// TestByteSize parses and prints human units.
func TestByteSize(t *testing.T) {
	t.Parallel()

	var b ByteSize
	require.NoError(t, b.Set("25MiB"))
	require.Equal(t, DefaultChunkSize, b)
	require.Equal(t, "25 MiB", b.String())
	require.Equal(t, "bytes", b.Type())

	require.NoError(t, b.Set("1024"))
	require.Equal(t, int64(1024), b.Int64())

	require.Error(t, b.Set("lots"))
}

// TestByteSizeFlag reads a byte size from the command line.
func TestByteSizeFlag(t *testing.T) {
	t.Parallel()

	var b ByteSize

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Var(&b, "chunk-size", "")

	require.NoError(t, flags.Parse([]string{"--chunk-size", "8MiB"}))
	require.Equal(t, ByteSize(8<<20), b)
	require.Error(t, flags.Parse([]string{"--chunk-size", "much"}))
}
