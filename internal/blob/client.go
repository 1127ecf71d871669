package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// APIVersion is sent as x-ms-version on every request.
const APIVersion = "2019-12-12"

// maxErrorBody bounds how much of a failed response is kept in StatusError.
const maxErrorBody = 4 << 10

var errEmptyURI = errors.New("storage URI is empty")

// HTTPDoer is an interface for making HTTP requests.
// This allows injecting mock HTTP clients for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client stages and commits blocks against shared-access URIs.
type Client struct {
	doer      HTTPDoer
	userAgent string
}

// New creates a Client. A nil doer uses http.DefaultClient.
func New(doer HTTPDoer, userAgent string) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}

	return &Client{doer: doer, userAgent: userAgent}
}

// StatusError is returned when the endpoint answers with a non-success status.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: unexpected status %d", e.Op, e.StatusCode)
	}

	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from err, if it carries one.
func StatusCode(err error) (int, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode, true
	}

	return 0, false
}

// EncodeBlockID returns the wire form of a block id.
func EncodeBlockID(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}

// StageBlock uploads size bytes from body as the block named blockID.
func (c *Client) StageBlock(ctx context.Context, sasURI, blockID string, body io.Reader, size int64) error {
	target, err := withQuery(sasURI, url.Values{
		"comp":    {"block"},
		"blockid": {EncodeBlockID(blockID)},
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return fmt.Errorf("create stage block request: %w", err)
	}

	req.ContentLength = size
	if size == 0 {
		req.Body = http.NoBody
	}

	return c.do(req, "stage block "+blockID)
}

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

// CommitBlockList assembles the blob from the staged blocks in the given order.
func (c *Client) CommitBlockList(ctx context.Context, sasURI string, blockIDs []string) error {
	target, err := withQuery(sasURI, url.Values{"comp": {"blocklist"}})
	if err != nil {
		return err
	}

	list := blockList{Latest: make([]string, 0, len(blockIDs))}
	for _, id := range blockIDs {
		list.Latest = append(list.Latest, EncodeBlockID(id))
	}

	payload, err := xml.Marshal(list)
	if err != nil {
		return fmt.Errorf("marshal block list: %w", err)
	}

	payload = append([]byte(xml.Header), payload...)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create commit block list request: %w", err)
	}

	req.Header.Set("Content-Type", "application/xml")

	return c.do(req, "commit block list")
}

func (c *Client) do(req *http.Request, op string) error {
	req.Header.Set("x-ms-version", APIVersion)

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		//nolint:errcheck // Draining lets the connection be reused.
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	return &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// withQuery appends params to a shared-access URI, keeping its signature intact.
func withQuery(sasURI string, params url.Values) (string, error) {
	if strings.TrimSpace(sasURI) == "" {
		return "", errEmptyURI
	}

	u, err := url.Parse(sasURI)
	if err != nil {
		return "", fmt.Errorf("parse storage URI: %w", err)
	}

	extra := params.Encode()
	if u.RawQuery == "" {
		u.RawQuery = extra
	} else {
		u.RawQuery += "&" + extra
	}

	return u.String(), nil
}
