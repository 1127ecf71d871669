package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lwalthert/intuneapp/internal/blob"
	"github.com/lwalthert/intuneapp/internal/config"
	"github.com/lwalthert/intuneapp/internal/graph"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/internal/version"
	"github.com/lwalthert/intuneapp/pkg"
	"github.com/lwalthert/intuneapp/pkg/publish"
	"github.com/lwalthert/intuneapp/pkg/upload"
)

var errMissingToken = errors.New("no management API token, set graph.token or " + config.TokenEnv)

var (
	publishSources []string

	publishCmd = &cobra.Command{
		Use:   "publish",
		Short: "Upload packaged apps and commit them as the current app content",
		Long: "Publishes every given .intunewin.json file, and every one found below given " +
			"directories. Apps that do not exist yet are created.",
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, stop := signalContext("publish")
			defer stop()

			return runPublish(ctx, settings)
		},
	}
)

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	publishCmd.Flags().StringArrayVarP(&publishSources, "source", "s", nil,
		"package metadata file or directory to search for them, repeatable")

	//nolint:errcheck // The flag is defined right above.
	_ = publishCmd.MarkFlagRequired("source")
}

func runPublish(ctx context.Context, cfg *config.Config) error {
	files, err := collectMetadataFiles(publishSources)
	if err != nil {
		return err
	}

	if len(files) == 0 {
		logger.Warnf(ctx, "No %s files found", pkg.MetadataSuffix)
		return nil
	}

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}

	for _, file := range files {
		if err := publishOne(ctx, publisher, file); err != nil {
			return fmt.Errorf("publish %s: %w", file, err)
		}
	}

	return nil
}

func publishOne(ctx context.Context, publisher *publish.Publisher, file string) error {
	p, err := pkg.LoadPackage(ctx, file)
	if err != nil {
		return err
	}
	defer p.Close()

	return publisher.Publish(ctx, p)
}

// newPublisher wires the management API and blob clients from cfg.
func newPublisher(cfg *config.Config) (*publish.Publisher, error) {
	if cfg.Graph.Token == "" {
		return nil, errMissingToken
	}

	httpClient := &http.Client{Timeout: cfg.Graph.Timeout}

	api := graph.New(cfg.Graph.BaseURL, httpClient,
		graph.WithToken(cfg.Graph.Token),
		graph.WithUserAgent(version.UserAgent()),
	)

	waiter := upload.NewWaiter(api,
		upload.WithPollInterval(cfg.Lifecycle.PollInterval),
		upload.WithWaitTimeout(cfg.Lifecycle.Timeout),
	)

	uploader := upload.NewUploader(api, blob.New(httpClient, version.UserAgent()), waiter,
		upload.WithChunkSize(cfg.Upload.ChunkSize.Int64()),
		upload.WithRenewAfter(cfg.Upload.RenewAfter),
		upload.WithMaxAttempts(cfg.Upload.MaxAttempts),
		upload.WithRetryDelay(cfg.Upload.RetryDelay),
		upload.WithRetryPredicate(upload.RetryOnStatus(cfg.Upload.RetryStatuses...)),
	)

	return publish.New(api, uploader, waiter), nil
}
