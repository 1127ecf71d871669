// Package publish uploads a package to the management service as the new
// content of a line-of-business app, creating the app when needed.
package publish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lwalthert/intuneapp/internal/clock"
	"github.com/lwalthert/intuneapp/internal/data"
	"github.com/lwalthert/intuneapp/internal/graph"
	"github.com/lwalthert/intuneapp/internal/logger"
	"github.com/lwalthert/intuneapp/pkg"
	"github.com/lwalthert/intuneapp/pkg/upload"
)

// Defaults for creating the content file, which can 404 right after its content
// version was created.
const (
	DefaultCreateFileRetries = 10
	DefaultCreateFileDelay   = 30 * time.Second
)

var (
	// ErrAppTypeMismatch is returned when an existing app has a different type than the package.
	ErrAppTypeMismatch = errors.New("existing app has a different type")
	// ErrNotLobApp is returned when an app id resolves to something other than a line-of-business app.
	ErrNotLobApp = errors.New("app is not a line-of-business app")
)

// API is the management API surface the publisher uses.
type API interface {
	GetApp(ctx context.Context, id string) (*data.MobileLobApp, error)
	FindAppByName(ctx context.Context, name string) (*data.MobileLobApp, error)
	CreateApp(ctx context.Context, app *data.MobileLobApp) (*data.MobileLobApp, error)
	SetCommittedContentVersion(ctx context.Context, app *data.MobileLobApp, versionID string) error
	ListContentVersions(ctx context.Context, appID, appType string) ([]data.ContentVersion, error)
	CreateContentVersion(ctx context.Context, appID, appType string) (*data.ContentVersion, error)
	CreateContentFile(ctx context.Context, ref data.ContentFileRef, file *data.ContentFileDescriptor) (*data.ContentFile, error)
	CommitContentFile(ctx context.Context, ref data.ContentFileRef, info *data.EncryptionInfo) error
}

// Publisher drives a package through app resolution, upload and commit.
type Publisher struct {
	api             API
	uploader        *upload.Uploader
	waiter          *upload.Waiter
	clock           clock.Clock
	createRetries   int
	createFileDelay time.Duration
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithClock sets the time source for content file creation retries.
func WithClock(c clock.Clock) Option {
	return func(p *Publisher) { p.clock = c }
}

// WithCreateFileRetry sets how often and how far apart a 404 on content file creation is retried.
func WithCreateFileRetry(retries int, delay time.Duration) Option {
	return func(p *Publisher) {
		p.createRetries = retries
		p.createFileDelay = delay
	}
}

// New creates a Publisher.
func New(api API, uploader *upload.Uploader, waiter *upload.Waiter, opts ...Option) *Publisher {
	p := &Publisher{
		api:             api,
		uploader:        uploader,
		waiter:          waiter,
		clock:           clock.Real(),
		createRetries:   DefaultCreateFileRetries,
		createFileDelay: DefaultCreateFileDelay,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Publish uploads the package as a new content version of its app and makes that
// version the committed one.
func (p *Publisher) Publish(ctx context.Context, pack *data.Package) error {
	if err := pkg.ValidatePackage(pack); err != nil {
		return err
	}

	ctx = logger.WithKV(ctx, "app", pack.App.DisplayName)
	logger.Infof(ctx, "Publishing app package for %s", pack.App.DisplayName)

	app, err := p.resolveApp(ctx, pack.App)
	if err != nil {
		return err
	}

	start := p.clock.Now()
	appType := app.Kind()

	version, err := p.contentVersion(ctx, app)
	if err != nil {
		return err
	}

	file := *pack.File
	// Manifests are only accepted for windowsMobileMSI apps, not for win32 apps wrapping an msi.
	if !app.IsMSI() {
		file.Manifest = nil
	}

	ref := data.ContentFileRef{AppID: app.ID, AppType: appType, ContentVersionID: version.ID}

	created, err := p.createContentFile(ctx, ref, &file)
	if err != nil {
		return err
	}
	ref.FileID = created.ID

	if err := pack.Rewind(); err != nil {
		return err
	}

	if err := p.uploader.Upload(ctx, pack.Data(), ref); err != nil {
		return fmt.Errorf("upload %s: %w", ref, err)
	}

	if err := p.api.CommitContentFile(ctx, ref, pack.EncryptionInfo); err != nil {
		return fmt.Errorf("commit %s: %w", ref, err)
	}

	if _, err := p.waiter.WaitFor(ctx, ref, data.CommitFileSuccess); err != nil {
		return err
	}

	if err := p.api.SetCommittedContentVersion(ctx, app, version.ID); err != nil {
		return fmt.Errorf("set committed content version: %w", err)
	}

	logger.Infof(ctx, "Published app package for %s in %s", app.DisplayName, clock.Since(p.clock, start).Round(time.Millisecond))

	return nil
}

// resolveApp finds the app by id or display name, creating it when it does not exist.
func (p *Publisher) resolveApp(ctx context.Context, want *data.MobileLobApp) (*data.MobileLobApp, error) {
	var (
		found *data.MobileLobApp
		err   error
	)

	if id, ok := appID(want); ok {
		found, err = p.api.GetApp(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get app %s: %w", id, err)
		}

		if !found.IsWin32() && !found.IsMSI() {
			return nil, fmt.Errorf("%w: %s is %s", ErrNotLobApp, id, found.Kind())
		}
	} else {
		found, err = p.api.FindAppByName(ctx, want.DisplayName)
		if errors.Is(err, graph.ErrNotFound) {
			found, err = nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("find app %q: %w", want.DisplayName, err)
		}
	}

	if found == nil {
		create := *want
		create.ApplyDefaults()

		logger.Infof(ctx, "App %s does not exist, creating new app", want.DisplayName)

		found, err = p.api.CreateApp(ctx, &create)
		if err != nil {
			return nil, fmt.Errorf("create app %q: %w", want.DisplayName, err)
		}
	}

	if found.Kind() != want.Kind() {
		return nil, fmt.Errorf("%w: found %s (%s) of type %s, the package is of type %s; delete the existing app and try again",
			ErrAppTypeMismatch, found.DisplayName, found.ID, found.Kind(), want.Kind())
	}

	logger.Infof(ctx, "Using app %s (%s)", found.ID, found.DisplayName)

	return found, nil
}

// appID returns the id to fetch the app by: the record id, or a display name that is a UUID.
func appID(app *data.MobileLobApp) (string, bool) {
	for _, candidate := range []string{app.ID, app.DisplayName} {
		if _, err := uuid.Parse(candidate); err == nil {
			return candidate, true
		}
	}

	return "", false
}

// contentVersion reuses the newest content version of an app that has never been
// committed, otherwise creates a new one.
func (p *Publisher) contentVersion(ctx context.Context, app *data.MobileLobApp) (*data.ContentVersion, error) {
	if app.CommittedContentVersion == "" {
		versions, err := p.api.ListContentVersions(ctx, app.ID, app.Kind())
		if err != nil {
			return nil, fmt.Errorf("list content versions: %w", err)
		}

		if len(versions) > 0 {
			logger.Infof(ctx, "Reusing uncommitted content version %s", versions[0].ID)
			return &versions[0], nil
		}
	}

	version, err := p.api.CreateContentVersion(ctx, app.ID, app.Kind())
	if err != nil {
		return nil, fmt.Errorf("create content version: %w", err)
	}

	logger.Infof(ctx, "Created content version %s", version.ID)

	return version, nil
}

// createContentFile registers the file, retrying while the content version is not yet visible.
func (p *Publisher) createContentFile(
	ctx context.Context,
	ref data.ContentFileRef,
	file *data.ContentFileDescriptor,
) (*data.ContentFile, error) {
	for retry := 0; ; retry++ {
		created, err := p.api.CreateContentFile(ctx, ref, file)
		if err == nil {
			return created, nil
		}

		if !errors.Is(err, graph.ErrNotFound) || retry >= p.createRetries {
			return nil, fmt.Errorf("create content file: %w", err)
		}

		logger.Infof(ctx, "Content version %s is not available yet, retrying in %s", ref.ContentVersionID, p.createFileDelay)

		if err := clock.Sleep(ctx, p.clock, p.createFileDelay); err != nil {
			return nil, err
		}
	}
}
