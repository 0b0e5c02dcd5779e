package router

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/itchan-dev/tinychan/internal/config"
	mw "github.com/itchan-dev/tinychan/internal/middleware"
	"github.com/itchan-dev/tinychan/internal/setup"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, mutate func(*config.Public)) *httptest.Server {
	t.Helper()
	public := config.Default()
	public.BoardCount = 3
	public.PublicRoot = t.TempDir()
	public.ErrorLog = ""
	if mutate != nil {
		mutate(&public)
	}
	cfg := &config.Config{
		Public:  public,
		Private: config.Private{DB: config.DB{Driver: "sqlite", Dbname: filepath.Join(t.TempDir(), "posts.db")}},
	}

	deps, err := setup.SetupDependencies(cfg)
	require.NoError(t, err)
	t.Cleanup(deps.Cleanup)
	require.NoError(t, deps.Storage.Migrate(context.Background()))

	srv := httptest.NewServer(New(deps))
	t.Cleanup(srv.Close)
	return srv
}

func noRedirectClient() *http.Client {
	return &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func postForm(t *testing.T, client *http.Client, srv *httptest.Server, values url.Values, cookies ...*http.Cookie) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/post", strings.NewReader(values.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == mw.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestStaticSite(t *testing.T) {
	srv := newServer(t, nil)
	client := noRedirectClient()

	resp := postForm(t, client, srv, url.Values{
		"post": {"New Thread"}, "board": {"2"}, "subject": {"Hello"}, "message": {"World"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/2/", resp.Header.Get("Location"))
	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)

	// the regenerated index is on disk before the redirect
	page, err := client.Get(srv.URL + "/2/")
	require.NoError(t, err)
	defer page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, body(t, page), "Hello")

	again := postForm(t, client, srv, url.Values{
		"post": {"New Thread"}, "board": {"2"}, "subject": {"Again"}, "message": {"World"},
	}, cookie)
	assert.Equal(t, http.StatusTooManyRequests, again.StatusCode)

	listing, err := client.Get(srv.URL + "/2/src/")
	require.NoError(t, err)
	defer listing.Body.Close()
	assert.Equal(t, http.StatusNotFound, listing.StatusCode, "no directory listings")
}

func TestOperationalEndpoints(t *testing.T) {
	srv := newServer(t, nil)

	for _, path := range []string{"/healthz", "/readyz", "/rules"} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"), path)
	}

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, body(t, resp), "tinychan_http_requests_total")
}

var csrfField = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func TestDynamicSiteRequiresCSRF(t *testing.T) {
	srv := newServer(t, func(cfg *config.Public) {
		cfg.Mode = config.ModeDynamic
		cfg.MultiBoard = false
	})
	client := noRedirectClient()

	index, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	defer index.Body.Close()
	require.Equal(t, http.StatusOK, index.StatusCode)
	cookie := sessionCookie(index)
	require.NotNil(t, cookie)
	match := csrfField.FindStringSubmatch(body(t, index))
	require.Len(t, match, 2, "the form carries the session token")
	token := html.UnescapeString(match[1])

	form := url.Values{"post": {"1"}, "subject": {"Hello"}, "message": {"World"}}
	rejected := postForm(t, client, srv, form, cookie)
	assert.Equal(t, http.StatusForbidden, rejected.StatusCode)

	form.Set("csrf_token", token)
	accepted := postForm(t, client, srv, form, cookie)
	require.Equal(t, http.StatusSeeOther, accepted.StatusCode)
	assert.Equal(t, "/", accepted.Header.Get("Location"))

	page, err := client.Get(srv.URL + "/?thread=1")
	require.NoError(t, err)
	defer page.Body.Close()
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, body(t, page), "World")
}

func TestTruncatedUploadShowsRules(t *testing.T) {
	srv := newServer(t, nil)

	payload := "--cut\r\n" +
		"Content-Disposition: form-data; name=\"post\"\r\n\r\nNew Thread\r\n" +
		"--cut\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"cat.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n" +
		"\x89PNG\r\n\x1a\n"
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/post", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=cut")

	resp, err := noRedirectClient().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	page := body(t, resp)
	assert.Contains(t, page, "Upload rules")
	assert.Contains(t, page, "file upload failed")
}
