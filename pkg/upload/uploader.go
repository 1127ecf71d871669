package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/lwalthert/intuneapp/internal/blob"
	"github.com/lwalthert/intuneapp/internal/clock"
	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/logger"
)

// Defaults for Uploader.
const (
	DefaultChunkSize   = 25 << 20
	DefaultRenewAfter  = 7*time.Minute + 30*time.Second
	DefaultMaxAttempts = 30
	DefaultRetryDelay  = 10 * time.Second
)

// ContentFiles is the part of the management API the uploader drives.
type ContentFiles interface {
	RenewUpload(ctx context.Context, ref data.ContentFileRef) error
}

// BlockStore stages and commits blocks on a storage URI.
type BlockStore interface {
	StageBlock(ctx context.Context, sasURI, blockID string, body io.Reader, size int64) error
	CommitBlockList(ctx context.Context, sasURI string, blockIDs []string) error
}

// Uploader stages a container in blocks and commits it.
type Uploader struct {
	files       ContentFiles
	blocks      BlockStore
	waiter      *Waiter
	clock       clock.Clock
	chunkSize   int64
	renewAfter  time.Duration
	maxAttempts int
	retryDelay  time.Duration
	retryable   RetryPredicate
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithChunkSize sets the block size in bytes.
func WithChunkSize(n int64) Option {
	return func(u *Uploader) { u.chunkSize = n }
}

// WithRenewAfter sets how long a storage URI is used before it is renewed.
func WithRenewAfter(d time.Duration) Option {
	return func(u *Uploader) { u.renewAfter = d }
}

// WithMaxAttempts sets the total number of attempts per block and retry cycle.
func WithMaxAttempts(n int) Option {
	return func(u *Uploader) { u.maxAttempts = n }
}

// WithRetryDelay sets the pause between attempts of the same block.
func WithRetryDelay(d time.Duration) Option {
	return func(u *Uploader) { u.retryDelay = d }
}

// WithRetryPredicate replaces DefaultRetryPredicate.
func WithRetryPredicate(p RetryPredicate) Option {
	return func(u *Uploader) { u.retryable = p }
}

// WithClock sets the time source used for retry delays and URI renewal.
func WithClock(c clock.Clock) Option {
	return func(u *Uploader) { u.clock = c }
}

// NewUploader creates an Uploader. The waiter must poll the same content files.
func NewUploader(files ContentFiles, blocks BlockStore, waiter *Waiter, opts ...Option) *Uploader {
	u := &Uploader{
		files:       files,
		blocks:      blocks,
		waiter:      waiter,
		clock:       clock.Real(),
		chunkSize:   DefaultChunkSize,
		renewAfter:  DefaultRenewAfter,
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		retryable:   DefaultRetryPredicate(),
	}

	for _, opt := range opts {
		opt(u)
	}

	if u.chunkSize <= 0 {
		u.chunkSize = DefaultChunkSize
	}

	if u.maxAttempts < 1 {
		u.maxAttempts = 1
	}

	return u
}

// Upload waits for the storage URI of ref, stages stream block by block and
// commits the block list. Streams needing more than MaxBlocks blocks are refused
// before anything is sent.
func (u *Uploader) Upload(ctx context.Context, stream io.ReadSeeker, ref data.ContentFileRef) error {
	ctx = logger.WithKV(ctx, "file", ref.FileID)

	length, err := stream.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("measure stream: %w", err)
	}

	blocks := Partition(length, u.chunkSize)
	if len(blocks) > MaxBlocks {
		return fmt.Errorf("%w: %s in blocks of %s needs %d, at most %d are allowed",
			ErrTooManyBlocks, humanize.IBytes(uint64(length)), humanize.IBytes(uint64(u.chunkSize)), len(blocks), MaxBlocks)
	}

	file, err := u.waiter.WaitFor(ctx, ref, data.AzureStorageURIRequestSuccess)
	if err != nil {
		return err
	}

	uri := file.AzureStorageURI
	renewed := u.clock.Now()
	start := renewed

	ids := make([]string, 0, len(blocks))
	lastID := BlockID(max(len(blocks)-1, 0))

	for _, block := range blocks {
		if clock.Since(u.clock, renewed) >= u.renewAfter {
			if uri, err = u.renew(ctx, ref); err != nil {
				return err
			}
			renewed = u.clock.Now()
		}

		logger.Infof(ctx, "Uploading block %s of %s (%s)", block.ID, lastID, humanize.IBytes(uint64(block.Length)))

		err := u.stage(ctx, stream, uri, block)

		var blockErr *BlockError
		if errors.As(err, &blockErr) && blockErr.Status == http.StatusForbidden {
			// Renewal on a timer does not cover every expiry, retry once with a fresh URI.
			logger.Warnf(ctx, "Block %s was rejected with 403, renewing the storage URI", block.ID)

			if uri, err = u.renew(ctx, ref); err != nil {
				return err
			}
			renewed = u.clock.Now()

			err = u.stage(ctx, stream, uri, block)
		}

		if err != nil {
			return err
		}

		ids = append(ids, block.ID)
	}

	if err := u.blocks.CommitBlockList(ctx, uri, ids); err != nil {
		return fmt.Errorf("commit %d blocks: %w", len(ids), err)
	}

	logger.Infof(ctx, "Uploaded %s in %d blocks in %s",
		humanize.IBytes(uint64(length)), len(ids), clock.Since(u.clock, start).Round(time.Millisecond))

	return nil
}

// stage uploads one block, retrying errors accepted by the retry predicate.
func (u *Uploader) stage(ctx context.Context, stream io.ReadSeeker, uri string, block Block) error {
	for attempt := 1; ; attempt++ {
		if _, err := stream.Seek(block.Offset, io.SeekStart); err != nil {
			return fmt.Errorf("seek to block %s: %w", block.ID, err)
		}

		err := u.blocks.StageBlock(ctx, uri, block.ID, io.LimitReader(stream, block.Length), block.Length)
		if err == nil {
			return nil
		}

		status, _ := blob.StatusCode(err)

		if ctx.Err() != nil || !u.retryable(err) || attempt >= u.maxAttempts {
			return &BlockError{BlockID: block.ID, Attempts: attempt, Status: status, Err: err}
		}

		logger.Infof(ctx, "Encountered retryable error (%d) uploading block %s, will retry in %s", status, block.ID, u.retryDelay)

		if err := clock.Sleep(ctx, u.clock, u.retryDelay); err != nil {
			return err
		}
	}
}

// renew requests a fresh storage URI and waits until the service has issued it.
func (u *Uploader) renew(ctx context.Context, ref data.ContentFileRef) (string, error) {
	logger.Infof(ctx, "Renewing storage URI for %s", ref)

	if err := u.files.RenewUpload(ctx, ref); err != nil {
		return "", fmt.Errorf("renew upload: %w", err)
	}

	file, err := u.waiter.WaitFor(ctx, ref, data.AzureStorageURIRenewalSuccess)
	if err != nil {
		return "", err
	}

	return file.AzureStorageURI, nil
}
