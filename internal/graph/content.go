package graph

import (
	"context"
	"net/http"
	"net/url"

	"github.com/lwalthert/intuneapp/internal/data"
)

func contentVersionsPath(appID, appType string) string {
	return mobileAppsPath + "/" + url.PathEscape(appID) + "/" + url.PathEscape(appType) + "/contentVersions"
}

func contentFilesPath(ref data.ContentFileRef) string {
	return contentVersionsPath(ref.AppID, ref.AppType) + "/" + url.PathEscape(ref.ContentVersionID) + "/files"
}

func contentFilePath(ref data.ContentFileRef) string {
	return contentFilesPath(ref) + "/" + url.PathEscape(ref.FileID)
}

// ListContentVersions returns the app's content versions, newest first.
func (c *Client) ListContentVersions(ctx context.Context, appID, appType string) ([]data.ContentVersion, error) {
	query := url.Values{}
	query.Set("$orderby", "id desc")

	var list collection[data.ContentVersion]
	if err := c.do(ctx, http.MethodGet, contentVersionsPath(appID, appType)+"?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}

	return list.Value, nil
}

// CreateContentVersion adds an empty content version.
func (c *Client) CreateContentVersion(ctx context.Context, appID, appType string) (*data.ContentVersion, error) {
	version := new(data.ContentVersion)
	if err := c.do(ctx, http.MethodPost, contentVersionsPath(appID, appType), struct{}{}, version); err != nil {
		return nil, err
	}

	return version, nil
}

// CreateContentFile registers a content file in a content version. ref.FileID is ignored.
func (c *Client) CreateContentFile(
	ctx context.Context,
	ref data.ContentFileRef,
	file *data.ContentFileDescriptor,
) (*data.ContentFile, error) {
	created := new(data.ContentFile)
	if err := c.do(ctx, http.MethodPost, contentFilesPath(ref), file, created); err != nil {
		return nil, err
	}

	return created, nil
}

// GetContentFile fetches the current state of a content file.
func (c *Client) GetContentFile(ctx context.Context, ref data.ContentFileRef) (*data.ContentFile, error) {
	file := new(data.ContentFile)
	if err := c.do(ctx, http.MethodGet, contentFilePath(ref), nil, file); err != nil {
		return nil, err
	}

	return file, nil
}

// RenewUpload asks the service for a fresh storage URI.
func (c *Client) RenewUpload(ctx context.Context, ref data.ContentFileRef) error {
	return c.do(ctx, http.MethodPost, contentFilePath(ref)+"/renewUpload", struct{}{}, nil)
}

type commitRequest struct {
	FileEncryptionInfo *data.EncryptionInfo `json:"fileEncryptionInfo"`
}

// CommitContentFile submits the envelope once all blocks are in place.
func (c *Client) CommitContentFile(ctx context.Context, ref data.ContentFileRef, info *data.EncryptionInfo) error {
	return c.do(ctx, http.MethodPost, contentFilePath(ref)+"/commit", commitRequest{FileEncryptionInfo: info}, nil)
}
