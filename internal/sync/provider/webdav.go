package provider

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/syncledger/backend/internal/errors"
)

// WebDAVProvider talks to a WebDAV-compatible blob store over HTTPS using
// HTTP Basic Auth. Its client reuses a modest pool of idle connections and
// applies a 30-second timeout to every request, uploads included, on top
// of any deadline in the caller's context.
type WebDAVProvider struct {
	baseURL  string
	username string
	password string
	client   *http.Client
}

// NewWebDAVProvider builds a provider rooted at baseURL, authenticating
// every request with HTTP Basic Auth.
func NewWebDAVProvider(baseURL, username, password string) *WebDAVProvider {
	return &WebDAVProvider{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:       10,
				IdleConnTimeout:    30 * time.Second,
				DisableCompression: false,
			},
		},
	}
}

var _ Provider = (*WebDAVProvider)(nil)

func (p *WebDAVProvider) urlFor(path string) string {
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (p *WebDAVProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.urlFor(path), body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to build webdav request", err)
	}
	req.SetBasicAuth(p.username, p.password)
	return req, nil
}

// TestConnection issues an OPTIONS request and reports whether the server
// answered usefully: any status below 500, including 4xx, counts as
// reachable since it proves the endpoint and credentials were accepted or
// rejected by a real server; a 5xx status reports false.
func (p *WebDAVProvider) TestConnection(ctx context.Context) (bool, error) {
	req, err := p.newRequest(ctx, http.MethodOptions, "/", nil)
	if err != nil {
		return false, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav server unreachable", err)
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500, nil
}

type multistatusResponse struct {
	Href     string `xml:"href"`
	Propstat struct {
		Prop struct {
			GetContentLength string `xml:"getcontentlength"`
			GetLastModified  string `xml:"getlastmodified"`
			GetETag          string `xml:"getetag"`
			ResourceType     struct {
				Collection *struct{} `xml:"collection"`
			} `xml:"resourcetype"`
		} `xml:"prop"`
	} `xml:"propstat"`
}

type multistatus struct {
	Responses []multistatusResponse `xml:"response"`
}

// List issues a depth-1 PROPFIND and returns every non-collection member
// of path.
func (p *WebDAVProvider) List(ctx context.Context, path string) ([]Item, error) {
	req, err := p.newRequest(ctx, "PROPFIND", path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Depth", "1")
	req.Header.Set("Content-Type", "application/xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav PROPFIND failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return nil, statusErr("PROPFIND", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to read PROPFIND response", err)
	}

	var ms multistatus
	if err := xml.Unmarshal(body, &ms); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to parse PROPFIND response", err)
	}

	items := make([]Item, 0, len(ms.Responses))
	for _, r := range ms.Responses {
		if r.Propstat.Prop.ResourceType.Collection != nil {
			continue
		}
		href, err := url.QueryUnescape(r.Href)
		if err != nil {
			href = r.Href
		}
		size, _ := strconv.ParseInt(r.Propstat.Prop.GetContentLength, 10, 64)
		modified, _ := time.Parse(time.RFC1123, r.Propstat.Prop.GetLastModified)
		items = append(items, Item{
			Name:           pathBase(href),
			Path:           href,
			Size:           size,
			RemoteModified: modified,
			Hash:           strings.Trim(r.Propstat.Prop.GetETag, `"`),
		})
	}
	return items, nil
}

func pathBase(p string) string {
	p = strings.TrimRight(p, "/")
	if idx := strings.LastIndex(p, "/"); idx >= 0 {
		return p[idx+1:]
	}
	return p
}

// Upload PUTs data at path, creating or overwriting it.
func (p *WebDAVProvider) Upload(ctx context.Context, path string, data []byte) error {
	req, err := p.newRequest(ctx, http.MethodPut, path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))

	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav PUT failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusErr("PUT", path, resp.StatusCode)
	}
	return nil
}

// Download GETs the bytes previously uploaded at path.
func (p *WebDAVProvider) Download(ctx context.Context, path string) ([]byte, error) {
	req, err := p.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav GET failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.New(apperrors.ErrRecordNotFound, fmt.Sprintf("no blob at %q", path))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusErr("GET", path, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrProviderUnreachable, "failed to read GET response", err)
	}
	return data, nil
}

// Delete removes the blob at path. A 404 is treated as success since the
// end state the caller wants is already true.
func (p *WebDAVProvider) Delete(ctx context.Context, path string) error {
	req, err := p.newRequest(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav DELETE failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		return statusErr("DELETE", path, resp.StatusCode)
	}
	return nil
}

// CreateDirectory issues MKCOL. A 405 (method not allowed) means the
// collection already exists, which makes this idempotent.
func (p *WebDAVProvider) CreateDirectory(ctx context.Context, path string) error {
	req, err := p.newRequest(ctx, "MKCOL", path, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav MKCOL failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusMethodNotAllowed {
		return statusErr("MKCOL", path, resp.StatusCode)
	}
	return nil
}

// Metadata issues HEAD and reports the size and last-modified time of the
// blob at path.
func (p *WebDAVProvider) Metadata(ctx context.Context, path string) (Item, error) {
	req, err := p.newRequest(ctx, http.MethodHead, path, nil)
	if err != nil {
		return Item{}, err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return Item{}, apperrors.Wrap(apperrors.ErrProviderUnreachable, "webdav HEAD failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Item{}, apperrors.New(apperrors.ErrRecordNotFound, fmt.Sprintf("no blob at %q", path))
	}
	if resp.StatusCode != http.StatusOK {
		return Item{}, statusErr("HEAD", path, resp.StatusCode)
	}

	modified, _ := time.Parse(time.RFC1123, resp.Header.Get("Last-Modified"))
	return Item{
		Name:           pathBase(path),
		Path:           path,
		Size:           resp.ContentLength,
		RemoteModified: modified,
		Hash:           strings.Trim(resp.Header.Get("ETag"), `"`),
	}, nil
}

func statusErr(verb, path string, status int) error {
	code := apperrors.ErrProviderUnreachable
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		code = apperrors.ErrSyncAuthFailed
	}
	return apperrors.New(code, fmt.Sprintf("webdav %s %q returned %d", verb, path, status))
}
