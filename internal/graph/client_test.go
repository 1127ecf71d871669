package graph

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/lwalthert/intuneapp/internal/data"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(srv.URL+"/beta/", srv.Client(), WithToken("secret"), WithUserAgent("intuneapp/test"))
}

// TestRequestHeaders sends the token, a request id and the user agent.
func TestRequestHeaders(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/beta/deviceAppManagement/mobileApps/abc", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.Equal(t, "intuneapp/test", r.Header.Get("User-Agent"))

		_, err := uuid.Parse(r.Header.Get("client-request-id"))
		require.NoError(t, err)

		_, _ = io.WriteString(w, `{"@odata.type":"#microsoft.graph.win32LobApp","id":"abc","displayName":"Agent"}`)
	})

	app, err := c.GetApp(context.Background(), "abc")
	require.NoError(t, err)
	require.True(t, app.IsWin32())
	require.Equal(t, "Agent", app.DisplayName)
}

// TestNotFound maps 404 responses to ErrNotFound.
func TestNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"code":"ResourceNotFound"}}`, http.StatusNotFound)
	})

	_, err := c.GetApp(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.MethodGet, apiErr.Method)
	require.Contains(t, apiErr.Body, "ResourceNotFound")
}

// TestFindAppByName escapes quotes and skips non line-of-business apps.
func TestFindAppByName(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "displayName eq 'O''Brien Tools'", r.URL.Query().Get("$filter"))

		_, _ = io.WriteString(w, `{"value":[
			{"@odata.type":"#microsoft.graph.webApp","id":"1"},
			{"@odata.type":"#microsoft.graph.windowsMobileMSI","id":"2"}
		]}`)
	})

	app, err := c.FindAppByName(context.Background(), "O'Brien Tools")
	require.NoError(t, err)
	require.Equal(t, "2", app.ID)

	empty := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"value":[]}`)
	})

	_, err = empty.FindAppByName(context.Background(), "none")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestContentLifecycleCalls exercises the content version and file endpoints.
func TestContentLifecycleCalls(t *testing.T) {
	t.Parallel()

	ref := data.ContentFileRef{
		AppID:            "app",
		AppType:          "microsoft.graph.win32LobApp",
		ContentVersionID: "1",
		FileID:           "f1",
	}
	base := "/beta/deviceAppManagement/mobileApps/app/microsoft.graph.win32LobApp/contentVersions"

	var commitBody map[string]json.RawMessage

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == base:
			require.Equal(t, "id desc", r.URL.Query().Get("$orderby"))
			_, _ = io.WriteString(w, `{"value":[{"id":"2"},{"id":"1"}]}`)
		case r.Method == http.MethodPost && r.URL.Path == base:
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"3"}`)
		case r.Method == http.MethodPost && r.URL.Path == base+"/1/files":
			var desc data.ContentFileDescriptor
			require.NoError(t, json.NewDecoder(r.Body).Decode(&desc))
			require.Equal(t, int64(10), desc.Size)
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"id":"f1","uploadState":"azureStorageUriRequestPending"}`)
		case r.Method == http.MethodGet && r.URL.Path == base+"/1/files/f1":
			_, _ = io.WriteString(w, `{"id":"f1","uploadState":"azureStorageUriRequestSuccess","azureStorageUri":"https://blob/x?sig=1"}`)
		case r.Method == http.MethodPost && r.URL.Path == base+"/1/files/f1/renewUpload":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == base+"/1/files/f1/commit":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&commitBody))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, r.Method+" "+r.URL.Path, http.StatusTeapot)
		}
	})
	ctx := context.Background()

	versions, err := c.ListContentVersions(ctx, ref.AppID, ref.AppType)
	require.NoError(t, err)
	require.Equal(t, []data.ContentVersion{{ID: "2"}, {ID: "1"}}, versions)

	version, err := c.CreateContentVersion(ctx, ref.AppID, ref.AppType)
	require.NoError(t, err)
	require.Equal(t, "3", version.ID)

	created, err := c.CreateContentFile(ctx, ref, &data.ContentFileDescriptor{Name: "a.intunewin", Size: 10, SizeEncrypted: 64})
	require.NoError(t, err)
	require.Equal(t, data.AzureStorageURIRequestPending, created.UploadState)

	file, err := c.GetContentFile(ctx, ref)
	require.NoError(t, err)
	require.Equal(t, "https://blob/x?sig=1", file.AzureStorageURI)

	require.NoError(t, c.RenewUpload(ctx, ref))
	require.NoError(t, c.CommitContentFile(ctx, ref, &data.EncryptionInfo{FileDigestAlgorithm: data.FileDigestSHA256}))
	require.Contains(t, commitBody, "fileEncryptionInfo")
}

// TestSetCommittedContentVersion patches the app with its type discriminator.
func TestSetCommittedContentVersion(t *testing.T) {
	t.Parallel()

	var got map[string]string

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	})

	app := &data.MobileLobApp{ID: "app", ODataType: data.WindowsMobileMSIType}
	require.NoError(t, c.SetCommittedContentVersion(context.Background(), app, "7"))
	require.Equal(t, data.WindowsMobileMSIType, got["@odata.type"])
	require.Equal(t, "7", got["committedContentVersion"])
}
