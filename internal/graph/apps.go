package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/lwalthert/intuneapp/internal/data"
)

const mobileAppsPath = "/deviceAppManagement/mobileApps"

// GetApp fetches a mobile app by id.
func (c *Client) GetApp(ctx context.Context, id string) (*data.MobileLobApp, error) {
	app := new(data.MobileLobApp)
	if err := c.do(ctx, http.MethodGet, mobileAppsPath+"/"+url.PathEscape(id), nil, app); err != nil {
		return nil, err
	}

	return app, nil
}

// FindAppByName returns the first line-of-business app with the given display name,
// or ErrNotFound.
func (c *Client) FindAppByName(ctx context.Context, name string) (*data.MobileLobApp, error) {
	query := url.Values{}
	query.Set("$filter", fmt.Sprintf("displayName eq '%s'", strings.ReplaceAll(name, "'", "''")))

	var list collection[data.MobileLobApp]
	if err := c.do(ctx, http.MethodGet, mobileAppsPath+"?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}

	for i := range list.Value {
		if app := &list.Value[i]; app.IsWin32() || app.IsMSI() {
			return app, nil
		}
	}

	return nil, fmt.Errorf("app %q: %w", name, ErrNotFound)
}

// CreateApp creates the app record and returns it as stored by the service.
func (c *Client) CreateApp(ctx context.Context, app *data.MobileLobApp) (*data.MobileLobApp, error) {
	created := new(data.MobileLobApp)
	if err := c.do(ctx, http.MethodPost, mobileAppsPath, app, created); err != nil {
		return nil, err
	}

	return created, nil
}

// SetCommittedContentVersion points the app at a committed content version.
func (c *Client) SetCommittedContentVersion(ctx context.Context, app *data.MobileLobApp, versionID string) error {
	update := map[string]string{
		"@odata.type":             app.ODataType,
		"committedContentVersion": versionID,
	}

	return c.do(ctx, http.MethodPatch, mobileAppsPath+"/"+url.PathEscape(app.ID), update, nil)
}
